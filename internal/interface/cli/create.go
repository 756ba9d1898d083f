package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/feedloom/backfill/internal/domain/model/journal"
)

func newCreateCmd() *cobra.Command {
	var archiveDir string
	var journalDir string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a journal directory from an existing archive",
		Long: "Write one journal per archived subject, seeded with the oldest archived\n" +
			"post as the resume watermark. Refuses to touch an existing journal directory.",
		RunE: func(c *cobra.Command, _ []string) error {
			settings := *globalSettings
			if journalDir != "" {
				settings.JournalDir = journalDir
			}

			if _, err := os.Stat(settings.JournalDir); err == nil {
				return fmt.Errorf("journal directory %s already exists; refusing to overwrite", settings.JournalDir)
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("check journal directory: %w", err)
			}

			ctx := context.Background()
			archive, err := newArchiveGateway(ctx, &settings, archiveDir)
			if err != nil {
				return err
			}
			repo := newJournalRepository(&settings)

			names, err := archive.ListSubjects(ctx)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return fmt.Errorf("no archived subjects found")
			}

			for _, name := range names {
				subject, err := journal.NewSubject(name)
				if err != nil {
					return fmt.Errorf("unusable archive name %q: %w", name, err)
				}
				oldest, err := archive.Oldest(ctx, subject)
				if err != nil {
					return fmt.Errorf("read archive for %s: %w", subject.Key(), err)
				}
				mark := journal.Watermark(oldest.Body.ID)
				if err := repo.Finish(ctx, subject, nil, mark, oldest.UTCDate); err != nil {
					return err
				}
				fmt.Printf("  %s: watermark %d (%s)\n",
					subject.Key(), oldest.Body.ID, oldest.UTCDate.Format("2006-01-02"))
			}

			fmt.Printf("Created %d journal(s) in %s\n", len(names), settings.JournalDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&archiveDir, "archive-dir", "", "Read archives from this directory instead of the configured backend")
	cmd.Flags().StringVar(&journalDir, "journal-dir", "", "Write journals here instead of the configured journal_dir")
	return cmd
}
