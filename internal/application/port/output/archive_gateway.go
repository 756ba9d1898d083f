package output

import (
	"context"
	"errors"

	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

// ErrArchiveNotFound is returned when a subject has no usable archive:
// no archive file, or one with no records.
var ErrArchiveNotFound = errors.New("no archive for subject")

// ArchiveGateway is the interface for per-subject post archives.
// Supports both local filesystem and S3 backends. Each subject owns one
// append-only archive of post records, named by the subject's folded form.
type ArchiveGateway interface {
	// ListSubjects returns the folded names of every subject that has an
	// archive, sorted.
	ListSubjects(ctx context.Context) ([]string, error)

	// LoadPosts reads a subject's whole archive. Returns
	// ErrArchiveNotFound when the subject has no archive.
	LoadPosts(ctx context.Context, subject journal.Subject) ([]post.Post, error)

	// AppendPosts appends a batch of records to a subject's archive,
	// creating it if needed.
	AppendPosts(ctx context.Context, subject journal.Subject, posts []post.Post) error

	// Oldest returns the archived post with the smallest identifier, which
	// seeds the watermark for subjects whose journal has no state. Returns
	// ErrArchiveNotFound when the subject has no usable archive.
	Oldest(ctx context.Context, subject journal.Subject) (post.Post, error)
}
