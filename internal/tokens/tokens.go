// Package tokens manages the lifecycle of remember, activation and password
// reset tokens. Raw tokens are handed back to the caller once; only their
// digests are written to the user record.
package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/nano-midea/identity/internal/credentials"
	"github.com/anonto42/nano-midea/identity/internal/models"
	"github.com/samber/oops"
)

// DefaultResetTTL is how long a password reset token stays valid.
const DefaultResetTTL = 2 * time.Hour

var (
	// ErrInvalidToken is returned when a token is absent or does not match.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a reset token is past its window.
	ErrTokenExpired = errors.New("token expired")
)

// DigestStore persists digest columns. UpdateColumns must write all columns
// in one statement.
type DigestStore interface {
	UpdateColumns(ctx context.Context, id uint, columns map[string]any) error
}

// Service issues, verifies and clears tokens.
type Service struct {
	store    DigestStore
	hasher   *credentials.Hasher
	now      func() time.Time
	resetTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithResetTTL overrides DefaultResetTTL.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// NewService creates a Service.
func NewService(store DigestStore, hasher *credentials.Hasher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, oops.Code("TOKENS_INVALID_DEPENDENCY").Errorf("digest store is required")
	}
	if hasher == nil {
		return nil, oops.Code("TOKENS_INVALID_DEPENDENCY").Errorf("hasher is required")
	}
	s := &Service{store: store, hasher: hasher, now: time.Now, resetTTL: DefaultResetTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a new token of kind for user, stores its digest and returns
// the raw token. A previous token of the same kind stops verifying.
func (s *Service) Issue(ctx context.Context, user *models.User, kind Kind) (string, error) {
	raw, digest, err := s.NewPair(kind)
	if err != nil {
		return "", err
	}

	columns := map[string]any{kind.column(): digest}
	var sentAt time.Time
	if kind == Reset {
		sentAt = s.now()
		columns["reset_sent_at"] = sentAt
	}
	if err := s.store.UpdateColumns(ctx, user.ID, columns); err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("kind", kind.String()).
			With("user_id", user.ID).
			Wrap(err)
	}

	*kind.field(user) = &digest
	if kind == Reset {
		user.ResetSentAt = &sentAt
	}
	return raw, nil
}

// NewPair generates a raw token and its digest without persisting anything.
// Registration uses it to set the activation digest before the user exists.
func (s *Service) NewPair(kind Kind) (raw, digest string, err error) {
	if kind.column() == "" {
		return "", "", oops.Code("TOKEN_UNKNOWN_KIND").With("kind", int(kind)).Errorf("unknown token kind")
	}
	raw, err = credentials.NewToken()
	if err != nil {
		return "", "", err
	}
	digest, err = s.hasher.Digest(raw)
	if err != nil {
		return "", "", err
	}
	return raw, digest, nil
}

// Authenticated reports whether raw matches the user's stored digest for kind.
func (s *Service) Authenticated(user *models.User, kind Kind, raw string) bool {
	if user == nil {
		return false
	}
	digest := kind.Digest(user)
	if digest == "" {
		return false
	}
	return s.hasher.Verify(raw, digest)
}

// Clear removes the stored digest for kind.
func (s *Service) Clear(ctx context.Context, user *models.User, kind Kind) error {
	field := kind.field(user)
	if field == nil {
		return oops.Code("TOKEN_UNKNOWN_KIND").With("kind", int(kind)).Errorf("unknown token kind")
	}

	columns := map[string]any{kind.column(): nil}
	if kind == Reset {
		columns["reset_sent_at"] = nil
	}
	if err := s.store.UpdateColumns(ctx, user.ID, columns); err != nil {
		return oops.Code("TOKEN_CLEAR_FAILED").
			With("kind", kind.String()).
			With("user_id", user.ID).
			Wrap(err)
	}

	*field = nil
	if kind == Reset {
		user.ResetSentAt = nil
	}
	return nil
}

// ResetExpired reports whether the user's reset token is past its window.
// A token issued at T is still valid at exactly T+ttl. A user without a
// recorded issuance time counts as expired.
func (s *Service) ResetExpired(user *models.User) bool {
	if user.ResetSentAt == nil {
		return true
	}
	return s.now().Sub(*user.ResetSentAt) > s.resetTTL
}

// CheckReset validates a reset token: ErrTokenExpired when the window has
// passed, ErrInvalidToken when it does not match.
func (s *Service) CheckReset(user *models.User, raw string) error {
	if !s.Authenticated(user, Reset, raw) {
		return ErrInvalidToken
	}
	if s.ResetExpired(user) {
		return ErrTokenExpired
	}
	return nil
}

// Activate marks the user activated now. Calling it again moves the timestamp.
func (s *Service) Activate(ctx context.Context, user *models.User) error {
	at := s.now()
	err := s.store.UpdateColumns(ctx, user.ID, map[string]any{
		"activated":    true,
		"activated_at": at,
	})
	if err != nil {
		return oops.Code("ACTIVATE_FAILED").With("user_id", user.ID).Wrap(err)
	}
	user.Activated = true
	user.ActivatedAt = &at
	return nil
}
