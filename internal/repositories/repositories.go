package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles the repositories that share one database handle, which
// is either the pool or an open transaction.
type Repositories struct {
	db      *gorm.DB
	Users   UserRepository
	Follows FollowRepository
	Posts   PostRepository
}

// New builds the repositories over db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:      db,
		Users:   NewPostgresUserRepository(db),
		Follows: NewPostgresFollowRepository(db),
		Posts:   NewPostgresPostRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
