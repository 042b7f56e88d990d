// Package graph maintains the directed follow graph between users.
package graph

import (
	"context"
	"errors"

	"github.com/anonto42/nano-midea/identity/internal/logging"
	"github.com/anonto42/nano-midea/identity/internal/models"
	"github.com/anonto42/nano-midea/identity/internal/repositories"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// ErrSelfFollow is returned when a user tries to follow itself.
var ErrSelfFollow = errors.New("cannot follow yourself")

// Service handles follow and unfollow operations.
type Service struct {
	users   repositories.UserRepository
	follows repositories.FollowRepository
	log     *zap.Logger
}

// NewService creates a new Service
func NewService(users repositories.UserRepository, follows repositories.FollowRepository, log *zap.Logger) *Service {
	return &Service{
		users:   users,
		follows: follows,
		log:     logging.OrNop(log).Named("graph"),
	}
}

// WithRepositories returns a copy of s that reads and writes through repos,
// typically repositories bound to an open transaction.
func (s *Service) WithRepositories(repos *repositories.Repositories) *Service {
	return &Service{users: repos.Users, follows: repos.Follows, log: s.log}
}

// Follow makes followerID follow followedID. Following someone already
// followed is a no-op.
func (s *Service) Follow(ctx context.Context, followerID, followedID uint) error {
	if followerID == followedID {
		return oops.Code("SELF_FOLLOW").With("user_id", followerID).Wrap(ErrSelfFollow)
	}

	// Both endpoints must exist
	for _, id := range []uint{followerID, followedID} {
		if _, err := s.users.GetUserByID(ctx, id); err != nil {
			return oops.Code("FOLLOW_FAILED").With("user_id", id).Wrap(err)
		}
	}

	created, err := s.follows.CreateFollow(ctx, followerID, followedID)
	if err != nil {
		return oops.Code("FOLLOW_FAILED").
			With("follower_id", followerID).
			With("followed_id", followedID).
			Wrap(err)
	}
	if created {
		s.log.Debug("follow created",
			zap.Uint("follower_id", followerID),
			zap.Uint("followed_id", followedID))
	}
	return nil
}

// Unfollow removes the edge if it exists. An absent edge is not an error.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID uint) error {
	removed, err := s.follows.DeleteFollow(ctx, followerID, followedID)
	if err != nil {
		return oops.Code("UNFOLLOW_FAILED").
			With("follower_id", followerID).
			With("followed_id", followedID).
			Wrap(err)
	}
	if removed {
		s.log.Debug("follow removed",
			zap.Uint("follower_id", followerID),
			zap.Uint("followed_id", followedID))
	}
	return nil
}

// Following returns the users userID follows.
func (s *Service) Following(ctx context.Context, userID uint) ([]models.User, error) {
	users, err := s.follows.GetFollowing(ctx, userID)
	if err != nil {
		return nil, oops.Code("GRAPH_QUERY_FAILED").With("user_id", userID).Wrap(err)
	}
	return users, nil
}

// Followers returns the users following userID.
func (s *Service) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	users, err := s.follows.GetFollowers(ctx, userID)
	if err != nil {
		return nil, oops.Code("GRAPH_QUERY_FAILED").With("user_id", userID).Wrap(err)
	}
	return users, nil
}

// IsFollowing reports whether userID follows otherID.
func (s *Service) IsFollowing(ctx context.Context, userID, otherID uint) (bool, error) {
	ok, err := s.follows.IsFollowing(ctx, userID, otherID)
	if err != nil {
		return false, oops.Code("GRAPH_QUERY_FAILED").With("user_id", userID).Wrap(err)
	}
	return ok, nil
}

// Counts returns how many users userID follows and how many follow it.
func (s *Service) Counts(ctx context.Context, userID uint) (following, followers int64, err error) {
	following, err = s.follows.GetFollowingCount(ctx, userID)
	if err != nil {
		return 0, 0, oops.Code("GRAPH_QUERY_FAILED").With("user_id", userID).Wrap(err)
	}
	followers, err = s.follows.GetFollowersCount(ctx, userID)
	if err != nil {
		return 0, 0, oops.Code("GRAPH_QUERY_FAILED").With("user_id", userID).Wrap(err)
	}
	return following, followers, nil
}

// OnUserDeleted removes every edge where userID is follower or followed.
// Run it through WithRepositories inside the deleting transaction.
func (s *Service) OnUserDeleted(ctx context.Context, userID uint) error {
	n, err := s.follows.DeleteAllForUser(ctx, userID)
	if err != nil {
		return oops.Code("GRAPH_CASCADE_FAILED").With("user_id", userID).Wrap(err)
	}
	s.log.Debug("edges removed", zap.Uint("user_id", userID), zap.Int64("count", n))
	return nil
}
