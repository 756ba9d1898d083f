package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/repository"
)

// SubjectStatus is one subject's line in the status listing.
type SubjectStatus struct {
	Subject    string `json:"subject"`
	State      string `json:"state"`
	Watermark  *int64 `json:"watermark"`
	Date       string `json:"date,omitempty"`
	LastAccess string `json:"last_access,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show every subject's journal state",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := context.Background()
			repo := newJournalRepository(globalSettings)

			subjects, err := repo.Subjects(ctx)
			if err != nil {
				return err
			}

			statuses := make([]SubjectStatus, 0, len(subjects))
			for _, subject := range subjects {
				statuses = append(statuses, subjectStatus(ctx, repo, subject))
			}

			if jsonOutput {
				b, err := json.MarshalIndent(statuses, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal json: %w", err)
				}
				fmt.Println(string(b))
				return nil
			}

			if len(statuses) == 0 {
				fmt.Println("No journals found.")
				return nil
			}
			for _, st := range statuses {
				mark := "-"
				if st.Watermark != nil {
					mark = fmt.Sprintf("%d", *st.Watermark)
				}
				line := fmt.Sprintf("%-24s %-10s %-12s %s", st.Subject, st.State, mark, st.Date)
				if st.Error != "" {
					line = fmt.Sprintf("%-24s %-10s %s", st.Subject, st.State, st.Error)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status in JSON format")
	return cmd
}

// subjectStatus resolves one subject, folding any replay or parse failure
// into the row so a corrupt journal does not stop the listing.
func subjectStatus(ctx context.Context, repo repository.JournalRepository, subject journal.Subject) SubjectStatus {
	res, err := repo.Inspect(ctx, subject)
	if err != nil {
		return SubjectStatus{
			Subject: subject.Key(),
			State:   "corrupt",
			Error:   err.Error(),
		}
	}

	st := SubjectStatus{
		Subject: subject.Key(),
		State:   res.Status.String(),
	}
	if res.Watermark != nil {
		v := int64(*res.Watermark)
		st.Watermark = &v
	}
	if res.LastDate != nil {
		st.Date = res.LastDate.Format("2006-01-02")
	}
	if !res.LastAccess.IsZero() {
		st.LastAccess = res.LastAccess.UTC().Format(time.RFC3339)
	}
	return st
}
