package feed

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/nano-midea/identity/internal/repositories"
	"github.com/samber/oops"
)

// ErrInvalidCursor is returned for a cursor that EncodeCursor did not produce.
var ErrInvalidCursor = errors.New("invalid feed cursor")

// EncodeCursor renders c as an opaque URL-safe string.
func EncodeCursor(c repositories.FeedCursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + strconv.FormatUint(uint64(c.ID), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor from EncodeCursor. The empty string decodes to
// nil, the start of the feed.
func DecodeCursor(s string) (*repositories.FeedCursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, oops.Code("FEED_BAD_CURSOR").Wrap(ErrInvalidCursor)
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, oops.Code("FEED_BAD_CURSOR").Wrap(ErrInvalidCursor)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, oops.Code("FEED_BAD_CURSOR").Wrap(ErrInvalidCursor)
	}
	i, err := strconv.ParseUint(id, 10, 0)
	if err != nil {
		return nil, oops.Code("FEED_BAD_CURSOR").Wrap(ErrInvalidCursor)
	}
	return &repositories.FeedCursor{CreatedAt: time.Unix(0, n).UTC(), ID: uint(i)}, nil
}
