package service

import (
	"context"
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feedloom/backfill/internal/application/dto"
	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
	"github.com/feedloom/backfill/internal/domain/repository"
	"github.com/feedloom/backfill/internal/infra/fs"
	"github.com/feedloom/backfill/internal/infra/logging"
)

const (
	// DefaultWorkers is the worker count used when the run config gives none.
	DefaultWorkers = 4

	maxFetchAttempts = 5
	fetchBackoffBase = 2 * time.Second
	fetchBackoffMax  = time.Minute
)

// BackfillService walks subjects backwards through the feed, one claimed
// batch at a time. Progress is recorded in the journal after every batch,
// so a crashed or parallel run resumes from the last finished batch
// instead of refetching.
type BackfillService struct {
	journal repository.JournalRepository
	archive output.ArchiveGateway
	feed    output.FeedGateway
	logger  logging.Logger
	workers int

	// sleep is replaced in tests to skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBackfillService creates a backfill service with the given collaborators
func NewBackfillService(
	journalRepo repository.JournalRepository,
	archive output.ArchiveGateway,
	feed output.FeedGateway,
	logger logging.Logger,
	workers int,
) *BackfillService {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &BackfillService{
		journal: journalRepo,
		archive: archive,
		feed:    feed,
		logger:  logger,
		workers: workers,
		sleep:   sleepContext,
	}
}

// Run processes every subject until it is exhausted, at the floor date, or
// failed. Subjects are spread across the configured worker count; each
// worker owns one subject at a time and claims it batch by batch.
func (s *BackfillService) Run(ctx context.Context, subjects []journal.Subject, floor time.Time) (dto.RunStats, error) {
	runID := newRunID()
	log := s.logger.With(zap.String("run_id", runID))

	stats := dto.RunStats{Subjects: len(subjects)}
	if len(subjects) == 0 {
		log.Info("no subjects to backfill")
		return stats, nil
	}

	workers := s.workers
	if workers > len(subjects) {
		workers = len(subjects)
	}

	log.Info("backfill run starting",
		zap.Int("subjects", len(subjects)),
		zap.Int("workers", workers),
		zap.String("floor", floor.UTC().Format(time.RFC3339)))

	queue := make(chan journal.Subject)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", id))
			for subject := range queue {
				var local dto.RunStats
				s.drainSubject(ctx, wlog, subject, floor, &local)
				mu.Lock()
				stats.Merge(local)
				mu.Unlock()
			}
		}(i)
	}

dispatch:
	for _, subject := range subjects {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- subject:
		}
	}
	close(queue)
	wg.Wait()

	log.Info("backfill run finished",
		zap.Int("claimed", stats.Claimed),
		zap.Int("batches", stats.Batches),
		zap.Int("posts", stats.Posts),
		zap.Int("skipped", stats.Skipped),
		zap.Int("exhausted", stats.Exhausted),
		zap.Int("failed", stats.Failed))
	return stats, ctx.Err()
}

// drainSubject claims, fetches, and archives batch after batch for one
// subject until the feed runs out, the floor is reached, or something goes
// wrong. Every iteration is a full claim/finish cycle, so an interruption
// between batches loses at most the batch in flight.
func (s *BackfillService) drainSubject(ctx context.Context, log logging.Logger, subject journal.Subject, floor time.Time, stats *dto.RunStats) {
	slog := log.With(zap.String("subject", subject.Key()))

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := s.journal.TryStart(ctx, subject)
		if err != nil {
			if errors.Is(err, fs.ErrLockTimeout) {
				slog.Warn("journal lock busy, leaving subject for a later run", zap.Error(err))
				stats.Skipped++
				return
			}
			slog.Error("journal claim failed", zap.Error(err))
			stats.Failed++
			return
		}

		var prior, before *journal.Watermark
		switch res.Status {
		case journal.StatusInUse:
			slog.Info("subject claimed by another run, skipping")
			stats.Skipped++
			return
		case journal.StatusFound:
			prior = res.Watermark
			before = res.Watermark
		case journal.StatusNotFound:
			// Fresh subject: the journal has no watermark, so the oldest
			// archived post seeds the walk.
			seed, err := s.archive.Oldest(ctx, subject)
			if err != nil {
				if errors.Is(err, output.ErrArchiveNotFound) {
					slog.Warn("no journal state and no archive to seed from, releasing subject")
					s.abandon(ctx, slog, subject, nil)
					stats.Skipped++
					return
				}
				slog.Error("archive seed lookup failed", zap.Error(err))
				s.abandon(ctx, slog, subject, nil)
				stats.Failed++
				return
			}
			mark := journal.Watermark(seed.Body.ID)
			before = &mark
		}
		stats.Claimed++

		posts, err := s.fetchWithRetry(ctx, slog, subject, before, floor)
		if err != nil {
			if errors.Is(err, output.ErrSubjectGone) {
				slog.Warn("subject no longer on the feed, abandoning")
				s.abandon(ctx, slog, subject, prior)
				stats.Failed++
				return
			}
			if ctx.Err() != nil {
				// Shutdown, not a subject failure. The open claim expires
				// on its own after the lease TTL.
				return
			}
			slog.Error("fetch failed, abandoning claim", zap.Error(err))
			s.abandon(ctx, slog, subject, prior)
			stats.Failed++
			return
		}

		if len(posts) == 0 {
			slog.Info("timeline exhausted down to the floor")
			s.abandon(ctx, slog, subject, prior)
			stats.Exhausted++
			return
		}

		if err := s.archive.AppendPosts(ctx, subject, posts); err != nil {
			slog.Error("archive append failed, abandoning claim", zap.Error(err))
			s.abandon(ctx, slog, subject, prior)
			stats.Failed++
			return
		}

		oldest, _ := post.Oldest(posts)
		next := journal.Watermark(oldest.Body.ID)
		if err := s.journal.Finish(ctx, subject, prior, next, oldest.UTCDate); err != nil {
			slog.Error("journal finish failed", zap.Error(err))
			stats.Failed++
			return
		}

		stats.Batches++
		stats.Posts += len(posts)
		slog.Info("batch archived",
			zap.Int("posts", len(posts)),
			zap.Int64("watermark", int64(next)),
			zap.String("watermark_date", oldest.UTCDate.Format(time.RFC3339)))
	}
}

// fetchWithRetry calls the feed, backing off and retrying on rate limits.
// Any other error is returned as is.
func (s *BackfillService) fetchWithRetry(ctx context.Context, log logging.Logger, subject journal.Subject, before *journal.Watermark, floor time.Time) ([]post.Post, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, fetchBackoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		posts, err := s.feed.FetchOlder(ctx, subject, before, floor)
		if err == nil {
			return posts, nil
		}
		if !errors.Is(err, output.ErrRateLimited) {
			return nil, err
		}
		lastErr = err
		log.Warn("feed rate limited, backing off", zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("fetch gave up after %d attempts: %w", maxFetchAttempts, lastErr)
}

// abandon closes an open claim, logging instead of failing when the close
// itself cannot be written. An unclosed claim is recoverable: it expires
// after the lease TTL.
func (s *BackfillService) abandon(ctx context.Context, log logging.Logger, subject journal.Subject, prior *journal.Watermark) {
	if err := s.journal.Abandon(ctx, subject, prior); err != nil {
		log.Warn("failed to close claim, lease will expire on its own", zap.Error(err))
	}
}

// fetchBackoff doubles the wait per retry, capped, with jitter so parallel
// workers spread out.
func fetchBackoff(retry int) time.Duration {
	d := fetchBackoffBase << (retry - 1)
	if d > fetchBackoffMax {
		d = fetchBackoffMax
	}
	return d + time.Duration(rand.Int63n(int64(d/2)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newRunID() string {
	entropy := ulid.Monotonic(cryptorand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
