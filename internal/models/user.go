package models

import (
	"strings"
	"time"
)

// User is the identity record. Only digests of passwords and tokens are stored.
type User struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	Name             string     `json:"name" gorm:"size:50;not null"`
	Email            string     `json:"email" gorm:"size:255;not null;uniqueIndex"` // always stored lowercased
	PasswordDigest   string     `json:"-" gorm:"not null"`
	ActivationDigest *string    `json:"-"`
	Activated        bool       `json:"activated" gorm:"default:false"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
	RememberDigest   *string    `json:"-"`
	ResetDigest      *string    `json:"-"`
	ResetSentAt      *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NormalizeEmail lowercases and trims the email. Every writer calls it before
// the record reaches the database.
func (u *User) NormalizeEmail() {
	u.Email = NormalizeEmail(u.Email)
}

// NormalizeEmail returns the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserCompact is the public projection used in follower listings.
type UserCompact struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ToCompact returns the public projection of the user.
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Name: u.Name}
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,max=50"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=6,maxbytes=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// UpdateProfileRequest carries a profile edit. A blank password keeps the old one.
type UpdateProfileRequest struct {
	Name                 string `json:"name" validate:"required,max=50"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password,omitempty" validate:"omitempty,min=6,maxbytes=72"`
	PasswordConfirmation string `json:"password_confirmation,omitempty" validate:"eqfield=Password"`
}

// ResetPasswordRequest carries the new password submitted through a reset link.
type ResetPasswordRequest struct {
	Password             string `json:"password" validate:"required,min=6,maxbytes=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}
