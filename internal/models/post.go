package models

import "time"

// Post is a content item owned by exactly one user.
type Post struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index:idx_posts_user_created,priority:1"`
	Content   string    `json:"content" gorm:"size:140;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index;index:idx_posts_user_created,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatePostRequest defines the body of a new post.
type CreatePostRequest struct {
	Content string `json:"content" validate:"required,min=1,max=140"`
}
