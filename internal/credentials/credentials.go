// Package credentials hashes and verifies passwords and opaque bearer tokens.
//
// Passwords and tokens go through the same bcrypt digest so that a stored
// value never reveals the secret it was derived from.
package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// TokenBytes is the amount of CSPRNG output behind every opaque token.
const TokenBytes = 32

// MaxSecretBytes is the longest secret bcrypt accepts.
const MaxSecretBytes = 72

var (
	// ErrEmptyInput is returned when Digest is called with an empty secret.
	ErrEmptyInput = errors.New("secret cannot be empty")

	// ErrTooLong is returned when a secret exceeds MaxSecretBytes.
	ErrTooLong = errors.New("secret exceeds 72 bytes")
)

// Hasher digests secrets with bcrypt at a fixed cost.
type Hasher struct {
	cost int
	// dummy digests a value nobody knows, at the same cost as real ones. It is
	// computed on first use.
	dummy func() ([]byte, error)
}

// NewHasher returns a Hasher using cost, clamped to bcrypt's valid range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	h := &Hasher{cost: cost}
	h.dummy = sync.OnceValues(func() ([]byte, error) {
		seed, err := NewToken()
		if err != nil {
			return nil, err
		}
		digest, err := h.Digest(seed)
		if err != nil {
			return nil, err
		}
		return []byte(digest), nil
	})
	return h
}

// Cost reports the bcrypt work factor in use.
func (h *Hasher) Cost() int {
	return h.cost
}

// Warm computes the digest DummyVerify compares against. Callers run it at
// startup so a broken random source is reported before the first login.
func (h *Hasher) Warm() error {
	_, err := h.dummy()
	return err
}

// Digest returns a salted bcrypt digest of raw.
func (h *Hasher) Digest(raw string) (string, error) {
	if raw == "" {
		return "", oops.Code("CREDENTIAL_EMPTY_INPUT").Wrap(ErrEmptyInput)
	}
	if len(raw) > MaxSecretBytes {
		return "", oops.Code("CREDENTIAL_TOO_LONG").
			With("bytes", len(raw)).
			Wrap(ErrTooLong)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", oops.Code("CREDENTIAL_DIGEST_FAILED").
			With("cost", h.cost).
			Wrap(err)
	}
	return string(digest), nil
}

// Verify reports whether raw matches digest. An empty or malformed digest is a
// mismatch, never an error.
func (h *Hasher) Verify(raw, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(raw)) == nil
}

// DummyVerify burns the time of one verify and always reports false. Callers
// use it when the account lookup failed so both failures look alike. Without
// a dummy digest it hashes a fixed value at the same cost instead.
func (h *Hasher) DummyVerify(raw string) bool {
	dummy, err := h.dummy()
	if err != nil {
		_, _ = bcrypt.GenerateFromPassword([]byte("x"), h.cost)
		return false
	}
	_ = bcrypt.CompareHashAndPassword(dummy, []byte(raw))
	return false
}

// NewToken returns a URL-safe random token carrying TokenBytes of entropy.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("CREDENTIAL_TOKEN_FAILED").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
