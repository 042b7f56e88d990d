package accounts

import "errors"

var (
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("email has already been taken")

	// ErrInvalidCredentials covers both an unknown email and a wrong password
	// so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid email/password combination")

	// ErrInvalidActivation is returned for an unknown, mismatched or already
	// used activation link.
	ErrInvalidActivation = errors.New("invalid activation link")
)
