package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subjects",
		Short: "List every subject that has a journal",
		RunE: func(c *cobra.Command, _ []string) error {
			repo := newJournalRepository(globalSettings)
			subjects, err := repo.Subjects(context.Background())
			if err != nil {
				return err
			}
			for _, subject := range subjects {
				fmt.Println(subject.Key())
			}
			return nil
		},
	}
}
