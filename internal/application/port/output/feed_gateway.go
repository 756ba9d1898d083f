package output

import (
	"context"
	"errors"
	"time"

	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

var (
	// ErrRateLimited means the feed refused the request for now. Transient;
	// the caller may retry after backing off.
	ErrRateLimited = errors.New("feed rate limited")

	// ErrSubjectGone means the feed no longer knows the subject. Fatal for
	// this subject; retrying cannot help.
	ErrSubjectGone = errors.New("subject gone from feed")
)

// FeedGateway fetches historical posts from the upstream feed, walking a
// subject's timeline from newest to oldest.
type FeedGateway interface {
	// FetchOlder returns the next batch of the subject's posts older than
	// the watermark, newest first. A nil watermark starts from the top of
	// the timeline. Posts dated before floor are not returned; an empty
	// batch means the walk is complete.
	FetchOlder(ctx context.Context, subject journal.Subject, before *journal.Watermark, floor time.Time) ([]post.Post, error)
}
