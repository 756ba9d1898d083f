package repository

import (
	"context"
	"time"

	"github.com/feedloom/backfill/internal/domain/model/journal"
)

// JournalRepository coordinates claims on subjects through their append-only
// journals. All mutating operations hold the subject's file lock for the
// duration of the call; concurrent processes coordinate purely through the
// journal files.
type JournalRepository interface {
	// TryStart resolves the subject's state and, unless the subject is in
	// use, claims it by appending a Started entry. The returned Result tells
	// the caller whether it holds the claim and where to resume.
	TryStart(ctx context.Context, subject journal.Subject) (journal.Result, error)

	// ForceStart claims the subject at an explicit watermark without
	// consulting prior state. Existing claims are not checked; the caller
	// takes responsibility for any run it tramples.
	ForceStart(ctx context.Context, subject journal.Subject, mark journal.Watermark) (journal.Result, error)

	// Finish closes the claim taken at prior, recording the new watermark
	// and its post date.
	Finish(ctx context.Context, subject journal.Subject, prior *journal.Watermark, next journal.Watermark, nextDate time.Time) error

	// Abandon closes the claim taken at prior without moving the watermark.
	Abandon(ctx context.Context, subject journal.Subject, prior *journal.Watermark) error

	// Inspect resolves the subject's state without claiming it. The journal
	// is not modified and no lock is taken; the result is a point-in-time
	// snapshot.
	Inspect(ctx context.Context, subject journal.Subject) (journal.Result, error)

	// Subjects lists every subject that has a journal file, in folded form,
	// sorted.
	Subjects(ctx context.Context) ([]journal.Subject, error)
}
