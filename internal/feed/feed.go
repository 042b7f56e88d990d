// Package feed derives the posts visible to a user from the follow graph and
// publishes new posts.
package feed

import (
	"context"
	"iter"
	"time"

	"github.com/anonto42/nano-midea/identity/internal/logging"
	"github.com/anonto42/nano-midea/identity/internal/models"
	"github.com/anonto42/nano-midea/identity/internal/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// DefaultPageSize is used when the builder is given a non-positive size.
const DefaultPageSize = 30

// Builder reads feeds and writes posts.
type Builder struct {
	posts    repositories.PostRepository
	pageSize int
	validate *validator.Validate
	now      func() time.Time
	log      *zap.Logger
}

// NewBuilder creates a new Builder
func NewBuilder(posts repositories.PostRepository, pageSize int, log *zap.Logger) *Builder {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Builder{
		posts:    posts,
		pageSize: pageSize,
		validate: models.NewValidator(),
		now:      time.Now,
		log:      logging.OrNop(log).Named("feed"),
	}
}

// Feed yields the posts authored by userID or by anyone userID follows, newest
// first. Nothing is fetched until the sequence is ranged over, and every range
// starts over from the newest post. A storage error is yielded once and ends
// the sequence.
func (b *Builder) Feed(ctx context.Context, userID uint) iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		var after *repositories.FeedCursor
		for {
			posts, err := b.posts.GetFeedPage(ctx, userID, after, b.pageSize)
			if err != nil {
				yield(models.Post{}, oops.Code("FEED_FAILED").With("user_id", userID).Wrap(err))
				return
			}
			for _, p := range posts {
				if !yield(p, nil) {
					return
				}
			}
			if len(posts) < b.pageSize {
				return
			}
			last := posts[len(posts)-1]
			after = &repositories.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Page returns one page of the feed after cursor ("" for the first page) and
// the cursor of the next page, which is "" when there is none.
func (b *Builder) Page(ctx context.Context, userID uint, cursor string, limit int) ([]models.Post, string, error) {
	if limit <= 0 {
		limit = b.pageSize
	}
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	posts, err := b.posts.GetFeedPage(ctx, userID, after, limit)
	if err != nil {
		return nil, "", oops.Code("FEED_FAILED").With("user_id", userID).Wrap(err)
	}
	if len(posts) < limit {
		return posts, "", nil
	}
	last := posts[len(posts)-1]
	return posts, EncodeCursor(repositories.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}), nil
}

// Publish validates content and stores it as a new post by userID.
func (b *Builder) Publish(ctx context.Context, userID uint, content string) (*models.Post, error) {
	req := models.CreatePostRequest{Content: content}
	if err := b.validate.Struct(req); err != nil {
		return nil, oops.Code("POST_INVALID").With("user_id", userID).Wrap(err)
	}

	post := &models.Post{UserID: userID, Content: req.Content, CreatedAt: b.now().UTC()}
	if err := b.posts.CreatePost(ctx, post); err != nil {
		return nil, oops.Code("POST_CREATE_FAILED").With("user_id", userID).Wrap(err)
	}
	b.log.Debug("post created", zap.Uint("user_id", userID), zap.Uint("post_id", post.ID))
	return post, nil
}

// UserPosts lists the posts authored by userID, newest first.
func (b *Builder) UserPosts(ctx context.Context, userID uint, skip, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = b.pageSize
	}
	posts, err := b.posts.GetPostsByUserID(ctx, userID, skip, limit)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return posts, nil
}
