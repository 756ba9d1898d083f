package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/application/service"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/repository"
)

// setupSignalHandler sets up graceful shutdown on SIGINT/SIGTERM
func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		os.Interrupt,    // Ctrl+C (SIGINT)
		syscall.SIGTERM, // kill command
	)

	go func() {
		sig := <-sigChan
		globalLogger.Info("received signal, stopping after current batches",
			zap.String("signal", sig.String()))
		cancel()
	}()

	return ctx, cancel
}

func newRunCmd() *cobra.Command {
	var targetDate string
	var workers int
	cmd := &cobra.Command{
		Use:   "run [subject...]",
		Short: "Backfill subjects until the feed is exhausted or the target date is reached",
		Long: "Claim each subject through its journal, fetch posts older than its\n" +
			"watermark batch by batch, and append them to the archive. With no\n" +
			"arguments every journaled or archived subject is processed.",
		RunE: func(c *cobra.Command, args []string) error {
			settings := globalSettings
			if targetDate == "" {
				targetDate = settings.TargetDate
			}
			floor, err := parseTargetDate(targetDate)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = settings.Workers
			}

			ctx, cancel := setupSignalHandler()
			defer cancel()

			repo := newJournalRepository(settings)
			archive, err := newArchiveGateway(ctx, settings, "")
			if err != nil {
				return err
			}
			feedGateway, err := newFeedGateway(settings)
			if err != nil {
				return err
			}

			subjects, err := resolveSubjects(ctx, args, repo, archive)
			if err != nil {
				return err
			}

			svc := service.NewBackfillService(repo, archive, feedGateway, globalLogger, workers)
			stats, err := svc.Run(ctx, subjects, floor)
			if err != nil {
				return err
			}

			fmt.Printf("Backfill finished: %d subject(s), %d batch(es), %d post(s)\n",
				stats.Subjects, stats.Batches, stats.Posts)
			if stats.Skipped > 0 {
				fmt.Printf("  skipped: %d\n", stats.Skipped)
			}
			if stats.HasFailures() {
				return fmt.Errorf("%d subject(s) failed", stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&targetDate, "target-date", "", "Oldest post date to reach back to (YYYY-MM-DD or RFC3339)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (default from settings)")
	return cmd
}

// parseTargetDate accepts a plain date or a full RFC3339 timestamp. An
// empty value means no floor: walk the feed all the way back.
func parseTargetDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid target date %q: want YYYY-MM-DD or RFC3339", s)
}

// resolveSubjects turns command arguments into subjects, or discovers the
// union of journaled and archived subjects when no arguments are given.
func resolveSubjects(ctx context.Context, args []string, repo repository.JournalRepository, archive output.ArchiveGateway) ([]journal.Subject, error) {
	if len(args) > 0 {
		subjects := make([]journal.Subject, 0, len(args))
		for _, arg := range args {
			subject, err := journal.NewSubject(arg)
			if err != nil {
				return nil, fmt.Errorf("subject %q: %w", arg, err)
			}
			subjects = append(subjects, subject)
		}
		return subjects, nil
	}

	journaled, err := repo.Subjects(ctx)
	if err != nil {
		return nil, err
	}
	archived, err := archive.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]journal.Subject, len(journaled)+len(archived))
	for _, subject := range journaled {
		byKey[subject.Key()] = subject
	}
	for _, name := range archived {
		subject, err := journal.NewSubject(name)
		if err != nil {
			globalLogger.Warn("skipping unusable archive name",
				zap.String("name", name), zap.Error(err))
			continue
		}
		if _, ok := byKey[subject.Key()]; ok {
			continue
		}
		byKey[subject.Key()] = subject
	}

	subjects := make([]journal.Subject, 0, len(byKey))
	for _, subject := range byKey {
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Key() < subjects[j].Key() })
	return subjects, nil
}
