package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/nano-midea/identity/internal/models"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateColumns(ctx context.Context, id uint, columns map[string]any) error
	DeleteUser(ctx context.Context, id uint) error
}

// PostgresUserRepository implements UserRepository over gorm
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser normalizes the email and inserts the user
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.NormalizeEmail()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return translate(err, "CreateUser")
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "GetUserByID")
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", models.NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "GetUserByEmail")
	}
	return &user, nil
}

// UpdateUser writes the profile fields (name and email) of user. Digest and
// activation columns are left alone; they change only through UpdateColumns.
func (r *PostgresUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	user.NormalizeEmail()
	res := r.db.WithContext(ctx).
		Model(&models.User{ID: user.ID}).
		Updates(map[string]any{"name": user.Name, "email": user.Email})
	if res.Error != nil {
		return translate(res.Error, "UpdateUser")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateColumns writes the given columns in a single UPDATE statement, so a
// concurrent reader sees either all of the old values or all of the new ones.
func (r *PostgresUserRepository) UpdateColumns(ctx context.Context, id uint, columns map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{ID: id}).Updates(columns)
	if res.Error != nil {
		return translate(res.Error, "UpdateColumns")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user row. Dependent rows are removed by the caller
// within the same transaction.
func (r *PostgresUserRepository) DeleteUser(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return translate(res.Error, "DeleteUser")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// translate maps gorm errors onto the package sentinels and tags everything
// else with the failing operation.
func translate(err error, operation string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return oops.Code("STORAGE_CONSTRAINT").
			With("operation", operation).
			Wrap(ErrDuplicate)
	default:
		return oops.Code("STORAGE_FAILED").
			With("operation", operation).
			Wrap(err)
	}
}
