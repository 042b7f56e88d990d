package models

import "time"

// Follow is a directed edge: FollowerID follows FollowedID.
type Follow struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	FollowerID uint      `json:"follower_id" gorm:"not null;index;uniqueIndex:idx_follow_pair"`
	FollowedID uint      `json:"followed_id" gorm:"not null;index;uniqueIndex:idx_follow_pair"`
	CreatedAt  time.Time `json:"created_at"`
}
