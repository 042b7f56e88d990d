package tokens

import (
	"fmt"

	"github.com/anonto42/nano-midea/identity/internal/models"
)

// Kind selects which of a user's digest fields a token belongs to.
type Kind int

const (
	Remember Kind = iota + 1
	Activation
	Reset
)

func (k Kind) String() string {
	switch k {
	case Remember:
		return "remember"
	case Activation:
		return "activation"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a name back to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "remember":
		return Remember, nil
	case "activation":
		return Activation, nil
	case "reset":
		return Reset, nil
	default:
		return 0, fmt.Errorf("unknown token kind %q", name)
	}
}

// column is the users column holding the digest for k.
func (k Kind) column() string {
	switch k {
	case Remember:
		return "remember_digest"
	case Activation:
		return "activation_digest"
	case Reset:
		return "reset_digest"
	default:
		return ""
	}
}

// field points at the in-memory digest for k, or nil for an unknown kind.
func (k Kind) field(u *models.User) **string {
	switch k {
	case Remember:
		return &u.RememberDigest
	case Activation:
		return &u.ActivationDigest
	case Reset:
		return &u.ResetDigest
	default:
		return nil
	}
}

// Digest returns the stored digest for k, or "" when absent.
func (k Kind) Digest(u *models.User) string {
	f := k.field(u)
	if f == nil || *f == nil {
		return ""
	}
	return **f
}
