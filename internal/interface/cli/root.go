package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/feedloom/backfill/internal/infra/config"
	"github.com/feedloom/backfill/internal/infra/logging"
	"github.com/feedloom/backfill/internal/interface/cli/version"
)

// globalSettings holds the loaded configuration for all commands
var globalSettings *config.Settings

// globalLogger is shared by all commands. Logs go to stderr so stdout stays
// free for command output.
var globalLogger logging.Logger = logging.NewNop()

// baseDir returns the directory backfill.yaml is looked up in
func baseDir() string {
	if home := os.Getenv("BACKFILL_HOME"); home != "" {
		return home
	}
	return ".backfill"
}

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Resumable feed backfill with journaled progress",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs
			// Priority: backfill.yaml > defaults
			settings, err := config.LoadSettings(baseDir())
			if err != nil {
				return err
			}
			globalSettings = settings

			logger, err := logging.New(logging.Config{Level: settings.LogLevel})
			if err != nil {
				return err
			}
			globalLogger = logger
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSubjectsCmd())
	cmd.AddCommand(version.NewCommand())
	return cmd
}
