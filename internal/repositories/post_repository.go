package repositories

import (
	"context"
	"time"

	"github.com/anonto42/nano-midea/identity/internal/models"
	"gorm.io/gorm"
)

// FeedCursor marks the last post of a feed page. Posts strictly older than it
// (by created_at, then id) form the next page.
type FeedCursor struct {
	CreatedAt time.Time
	ID        uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	GetPostsByUserID(ctx context.Context, userID uint, skip, limit int) ([]models.Post, error)
	GetFeedPage(ctx context.Context, userID uint, after *FeedCursor, limit int) ([]models.Post, error)
	DeletePost(ctx context.Context, id uint) error
	DeletePostsByUserID(ctx context.Context, userID uint) (int64, error)
}

// PostgresPostRepository implements PostRepository over gorm
type PostgresPostRepository struct {
	db *gorm.DB
}

// NewPostgresPostRepository creates a new PostgresPostRepository
func NewPostgresPostRepository(db *gorm.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

// CreatePost inserts a post; CreatedAt defaults to now when unset. Timestamps
// are stored in UTC so feed cursors compare consistently on every driver.
func (r *PostgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return translate(err, "CreatePost")
	}
	return nil
}

func (r *PostgresPostRepository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err, "GetPostByID")
	}
	return &post, nil
}

// GetPostsByUserID retrieves a user's own posts, newest first
func (r *PostgresPostRepository) GetPostsByUserID(ctx context.Context, userID uint, skip, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "GetPostsByUserID")
	}
	return posts, nil
}

// GetFeedPage returns up to limit posts authored by userID or by anyone userID
// follows, newest first. The follow predicate runs as a subquery in the
// database; the following set is never loaded into memory.
func (r *PostgresPostRepository) GetFeedPage(ctx context.Context, userID uint, after *FeedCursor, limit int) ([]models.Post, error) {
	following := r.db.Model(&models.Follow{}).Select("followed_id").Where("follower_id = ?", userID)

	q := r.db.WithContext(ctx).
		Where("(user_id = ? OR user_id IN (?))", userID, following)
	if after != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var posts []models.Post
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, translate(err, "GetFeedPage")
	}
	return posts, nil
}

func (r *PostgresPostRepository) DeletePost(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return translate(res.Error, "DeletePost")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePostsByUserID removes every post authored by userID
func (r *PostgresPostRepository) DeletePostsByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Post{})
	if res.Error != nil {
		return 0, translate(res.Error, "DeletePostsByUserID")
	}
	return res.RowsAffected, nil
}
