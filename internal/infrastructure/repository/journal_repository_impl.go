package repository

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/infra/fs"
	"github.com/feedloom/backfill/internal/infra/logging"
)

// JournalRepositoryImpl implements repository.JournalRepository over
// per-subject journal files in a single directory. Every operation opens the
// subject's file, takes an exclusive lock on it, and releases the lock
// before returning; the files are the only shared state between processes.
type JournalRepositoryImpl struct {
	dir         string
	locker      fs.Locker
	lockTimeout time.Duration
	leaseTTL    time.Duration
	logger      logging.Logger
	now         func() time.Time
}

// NewJournalRepositoryImpl creates a journal repository rooted at dir.
func NewJournalRepositoryImpl(dir string, locker fs.Locker, lockTimeout, leaseTTL time.Duration, logger logging.Logger) *JournalRepositoryImpl {
	return &JournalRepositoryImpl{
		dir:         dir,
		locker:      locker,
		lockTimeout: lockTimeout,
		leaseTTL:    leaseTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TryStart resolves the subject under its file lock and claims it when free.
// An in-use subject is reported without appending anything.
func (r *JournalRepositoryImpl) TryStart(ctx context.Context, subject journal.Subject) (journal.Result, error) {
	var result journal.Result
	err := r.withLockedFile(ctx, subject, func(f *os.File) error {
		entries, err := r.readEntries(f)
		if err != nil {
			return err
		}
		res, err := journal.Replay(subject, entries, r.leaseTTL, r.now())
		if err != nil {
			return err
		}
		result = res
		if res.Status == journal.StatusInUse {
			return nil
		}
		return r.appendEntry(f, journal.NewStarted(r.now(), subject, res.Watermark))
	})
	if err != nil {
		return journal.Result{}, fmt.Errorf("try start %s: %w", subject.Key(), err)
	}
	return result, nil
}

// ForceStart claims the subject at mark without reading existing state.
func (r *JournalRepositoryImpl) ForceStart(ctx context.Context, subject journal.Subject, mark journal.Watermark) (journal.Result, error) {
	var result journal.Result
	err := r.withLockedFile(ctx, subject, func(f *os.File) error {
		now := r.now()
		result = journal.ResultForced(subject, mark, now)
		return r.appendEntry(f, journal.NewStarted(now, subject, &mark))
	})
	if err != nil {
		return journal.Result{}, fmt.Errorf("force start %s: %w", subject.Key(), err)
	}
	return result, nil
}

// Finish closes the claim taken at prior with the run's new watermark.
func (r *JournalRepositoryImpl) Finish(ctx context.Context, subject journal.Subject, prior *journal.Watermark, next journal.Watermark, nextDate time.Time) error {
	err := r.withLockedFile(ctx, subject, func(f *os.File) error {
		return r.appendEntry(f, journal.NewFinished(r.now(), subject, prior, next, nextDate))
	})
	if err != nil {
		return fmt.Errorf("finish %s: %w", subject.Key(), err)
	}
	return nil
}

// Abandon closes the claim taken at prior without moving the watermark.
func (r *JournalRepositoryImpl) Abandon(ctx context.Context, subject journal.Subject, prior *journal.Watermark) error {
	err := r.withLockedFile(ctx, subject, func(f *os.File) error {
		return r.appendEntry(f, journal.NewAbandoned(r.now(), subject, prior))
	})
	if err != nil {
		return fmt.Errorf("abandon %s: %w", subject.Key(), err)
	}
	return nil
}

// Inspect resolves the subject's state without modifying the journal. A
// subject with no journal file is NotFound; the file is not created. The
// read takes no lock, so the result is a point-in-time snapshot: entries
// are only ever appended, and a busy subject must not block a status
// listing for the whole lock budget.
func (r *JournalRepositoryImpl) Inspect(ctx context.Context, subject journal.Subject) (journal.Result, error) {
	f, err := os.Open(r.path(subject))
	if os.IsNotExist(err) {
		return journal.ResultNotFound(subject), nil
	}
	if err != nil {
		return journal.Result{}, fmt.Errorf("inspect %s: %w", subject.Key(), err)
	}
	defer f.Close()

	entries, err := r.readEntries(f)
	if err != nil {
		return journal.Result{}, fmt.Errorf("inspect %s: %w", subject.Key(), err)
	}
	res, err := journal.Replay(subject, entries, r.leaseTTL, r.now())
	if err != nil {
		return journal.Result{}, fmt.Errorf("inspect %s: %w", subject.Key(), err)
	}
	return res, nil
}

// Subjects lists every subject with a journal file in the directory.
// Hidden files and files without the journal suffix are ignored.
func (r *JournalRepositoryImpl) Subjects(ctx context.Context) ([]journal.Subject, error) {
	dirEntries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	var subjects []journal.Subject
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, journal.FileExt) {
			continue
		}
		subject, err := journal.NewSubject(strings.TrimSuffix(name, journal.FileExt))
		if err != nil {
			r.logger.Warn("skipping unusable journal file name",
				zap.String("file", name), zap.Error(err))
			continue
		}
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Key() < subjects[j].Key() })
	return subjects, nil
}

func (r *JournalRepositoryImpl) path(subject journal.Subject) string {
	return filepath.Join(r.dir, subject.FileName())
}

// withLockedFile opens (creating if needed) the subject's journal, acquires
// its lock, runs fn, and releases the lock.
func (r *JournalRepositoryImpl) withLockedFile(ctx context.Context, subject journal.Subject, fn func(f *os.File) error) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	path := r.path(subject)
	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if err := fs.AcquireLock(ctx, r.locker, f, r.lockTimeout); err != nil {
		return err
	}
	defer r.unlock(f)

	if created {
		// The new file's directory entry must reach disk too, or a crash
		// could keep the first entry but lose the file name.
		if err := fs.FsyncDir(r.dir); err != nil {
			r.logger.Warn("journal dir sync failed", zap.String("dir", r.dir), zap.Error(err))
		}
	}
	return fn(f)
}

func (r *JournalRepositoryImpl) unlock(f *os.File) {
	if err := r.locker.Unlock(f); err != nil {
		r.logger.Warn("journal unlock failed", zap.String("file", f.Name()), zap.Error(err))
	}
}

// readEntries parses the whole journal. Blank lines are skipped; any other
// unparseable line aborts the read, because resolving state from a corrupt
// journal could hand the same subject to two runs.
func (r *JournalRepositoryImpl) readEntries(f *os.File) ([]journal.Entry, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek journal: %w", err)
	}

	var entries []journal.Entry
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := journal.ParseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// appendEntry writes one entry and flushes it to disk. The file is opened
// with O_APPEND, so the write lands at the end regardless of the read
// position. A failed sync is logged and tolerated; the entry is in the OS
// buffer and the next reader sees it.
func (r *JournalRepositoryImpl) appendEntry(f *os.File, e journal.Entry) error {
	if _, err := f.WriteString(e.String() + "\n"); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		r.logger.Warn("journal sync failed", zap.String("file", f.Name()), zap.Error(err))
	}
	return nil
}
