// Package accounts implements registration, login, activation, password reset
// and account removal on top of the credential, token and graph packages.
package accounts

import (
	"context"
	"errors"

	"github.com/anonto42/nano-midea/identity/internal/credentials"
	"github.com/anonto42/nano-midea/identity/internal/graph"
	"github.com/anonto42/nano-midea/identity/internal/logging"
	"github.com/anonto42/nano-midea/identity/internal/mailer"
	"github.com/anonto42/nano-midea/identity/internal/models"
	"github.com/anonto42/nano-midea/identity/internal/repositories"
	"github.com/anonto42/nano-midea/identity/internal/tokens"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Service owns the account lifecycle.
type Service struct {
	repos    *repositories.Repositories
	hasher   *credentials.Hasher
	tokens   *tokens.Service
	graph    *graph.Service
	mailer   mailer.Mailer
	validate *validator.Validate
	log      *zap.Logger
}

// NewService creates a new Service. A nil mailer drops outgoing mail.
func NewService(
	repos *repositories.Repositories,
	hasher *credentials.Hasher,
	tok *tokens.Service,
	g *graph.Service,
	m mailer.Mailer,
	log *zap.Logger,
) *Service {
	log = logging.OrNop(log).Named("accounts")
	if m == nil {
		m = mailer.NopMailer{Log: log}
	}
	return &Service{
		repos:    repos,
		hasher:   hasher,
		tokens:   tok,
		graph:    g,
		mailer:   m,
		validate: models.NewValidator(),
		log:      log,
	}
}

// RegisterResult is a newly created account and the raw activation token
// that was mailed to it.
type RegisterResult struct {
	User            *models.User
	ActivationToken string
}

// Register validates req and creates an unactivated account. The activation
// email is sent afterwards; a delivery failure is logged and does not undo
// the registration.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*RegisterResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, oops.Code("INVALID_INPUT").With("operation", "register").Wrap(err)
	}

	digest, err := s.digestPassword(req.Password, "register")
	if err != nil {
		return nil, err
	}
	raw, activationDigest, err := s.tokens.NewPair(tokens.Activation)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:             req.Name,
		Email:            models.NormalizeEmail(req.Email),
		PasswordDigest:   digest,
		ActivationDigest: &activationDigest,
	}
	if err := s.repos.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, oops.Code("EMAIL_TAKEN").With("email", user.Email).Wrap(ErrEmailTaken)
		}
		return nil, oops.Code("REGISTER_FAILED").Wrap(err)
	}
	s.log.Info("user registered", zap.Uint("user_id", user.ID))

	if err := s.mailer.SendActivationEmail(ctx, user, raw); err != nil {
		logging.Warn(s.log, "activation email not sent", err, zap.Uint("user_id", user.ID))
	}
	return &RegisterResult{User: user, ActivationToken: raw}, nil
}

// Authenticate returns the user whose email and password match.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repos.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		s.hasher.DummyVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, oops.Code("AUTHENTICATE_FAILED").Wrap(err)
	}
	if !s.hasher.Verify(password, user.PasswordDigest) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Remember issues a remember token for a persistent session.
func (s *Service) Remember(ctx context.Context, user *models.User) (string, error) {
	return s.tokens.Issue(ctx, user, tokens.Remember)
}

// Forget invalidates the user's remember token.
func (s *Service) Forget(ctx context.Context, user *models.User) error {
	return s.tokens.Clear(ctx, user, tokens.Remember)
}

// UserFromRemember restores a session from a user id and raw remember token.
func (s *Service) UserFromRemember(ctx context.Context, userID uint, raw string) (*models.User, error) {
	user, err := s.repos.Users.GetUserByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, oops.Code("AUTHENTICATE_FAILED").With("user_id", userID).Wrap(err)
	}
	if !s.tokens.Authenticated(user, tokens.Remember, raw) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ActivateAccount activates the account behind an activation link.
func (s *Service) ActivateAccount(ctx context.Context, email, raw string) (*models.User, error) {
	user, err := s.repos.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidActivation
	}
	if err != nil {
		return nil, oops.Code("ACTIVATE_FAILED").Wrap(err)
	}
	if user.Activated || !s.tokens.Authenticated(user, tokens.Activation, raw) {
		return nil, ErrInvalidActivation
	}
	if err := s.tokens.Activate(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user activated", zap.Uint("user_id", user.ID))
	return user, nil
}

// ResendActivation issues a fresh activation token for an unactivated account
// and mails it. The previous link stops working.
func (s *Service) ResendActivation(ctx context.Context, email string) (string, error) {
	user, err := s.repos.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", oops.Code("ACTIVATE_FAILED").With("email", models.NormalizeEmail(email)).Wrap(err)
	}
	if user.Activated {
		return "", ErrInvalidActivation
	}
	raw, err := s.tokens.Issue(ctx, user, tokens.Activation)
	if err != nil {
		return "", err
	}
	if err := s.mailer.SendActivationEmail(ctx, user, raw); err != nil {
		logging.Warn(s.log, "activation email not sent", err, zap.Uint("user_id", user.ID))
	}
	return raw, nil
}

// RequestPasswordReset issues a reset token and mails it. An unknown email is
// reported as repositories.ErrNotFound.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.repos.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("email", models.NormalizeEmail(email)).Wrap(err)
	}
	raw, err := s.tokens.Issue(ctx, user, tokens.Reset)
	if err != nil {
		return "", err
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user, raw); err != nil {
		logging.Warn(s.log, "reset email not sent", err, zap.Uint("user_id", user.ID))
	}
	return raw, nil
}

// ResetPassword sets a new password through a reset link. The account must be
// activated and the token must match (tokens.ErrInvalidToken) and be inside
// its window (tokens.ErrTokenExpired). The token cannot be used twice.
func (s *Service) ResetPassword(ctx context.Context, email, raw string, req models.ResetPasswordRequest) (*models.User, error) {
	user, err := s.repos.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, tokens.ErrInvalidToken
	}
	if err != nil {
		return nil, oops.Code("RESET_FAILED").Wrap(err)
	}
	if !user.Activated {
		return nil, tokens.ErrInvalidToken
	}
	if err := s.tokens.CheckReset(user, raw); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, oops.Code("INVALID_INPUT").With("operation", "reset_password").Wrap(err)
	}

	digest, err := s.digestPassword(req.Password, "reset_password")
	if err != nil {
		return nil, err
	}
	err = s.repos.Users.UpdateColumns(ctx, user.ID, map[string]any{
		"password_digest": digest,
		"reset_digest":    nil,
		"reset_sent_at":   nil,
	})
	if err != nil {
		return nil, oops.Code("RESET_FAILED").With("user_id", user.ID).Wrap(err)
	}
	user.PasswordDigest = digest
	user.ResetDigest = nil
	user.ResetSentAt = nil
	s.log.Info("password reset", zap.Uint("user_id", user.ID))
	return user, nil
}

// UpdateProfile changes name and email, and the password when one is given.
// Only those columns are written, so token digests changed concurrently by
// Forget or a consumed reset stay as they are.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, oops.Code("INVALID_INPUT").With("operation", "update_profile").Wrap(err)
	}

	email := models.NormalizeEmail(req.Email)
	columns := map[string]any{"name": req.Name, "email": email}
	if req.Password != "" {
		digest, err := s.digestPassword(req.Password, "update_profile")
		if err != nil {
			return nil, err
		}
		columns["password_digest"] = digest
	}

	if err := s.repos.Users.UpdateColumns(ctx, userID, columns); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, oops.Code("EMAIL_TAKEN").With("email", email).Wrap(ErrEmailTaken)
		}
		return nil, oops.Code("UPDATE_PROFILE_FAILED").With("user_id", userID).Wrap(err)
	}

	user, err := s.repos.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, oops.Code("UPDATE_PROFILE_FAILED").With("user_id", userID).Wrap(err)
	}
	return user, nil
}

// digestPassword reports a secret bcrypt cannot take as invalid input.
func (s *Service) digestPassword(password, operation string) (string, error) {
	digest, err := s.hasher.Digest(password)
	if errors.Is(err, credentials.ErrTooLong) {
		return "", oops.Code("INVALID_INPUT").With("operation", operation).Wrap(err)
	}
	return digest, err
}

// DeleteUser removes the account with its follow edges and posts in one
// transaction.
func (s *Service) DeleteUser(ctx context.Context, userID uint) error {
	err := s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := s.graph.WithRepositories(tx).OnUserDeleted(ctx, userID); err != nil {
			return err
		}
		if _, err := tx.Posts.DeletePostsByUserID(ctx, userID); err != nil {
			return err
		}
		return tx.Users.DeleteUser(ctx, userID)
	})
	if err != nil {
		return oops.Code("DELETE_USER_FAILED").With("user_id", userID).Wrap(err)
	}
	s.log.Info("user deleted", zap.Uint("user_id", userID))
	return nil
}
