package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/feedloom/backfill/internal/infra/config"
	"github.com/feedloom/backfill/internal/infra/fs"
)

func newInitCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a backfill home directory with default settings",
		RunE: func(c *cobra.Command, _ []string) error {
			if dir == "" {
				dir = baseDir()
			}

			dirs := []string{
				dir,
				filepath.Join(dir, "journal"),
				filepath.Join(dir, "archive"),
			}
			for _, d := range dirs {
				if err := os.MkdirAll(d, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", d, err)
				}
			}

			settingsPath := filepath.Join(dir, config.SettingsFileName)
			if err := writeIfNotExists(settingsPath, config.DefaultSettingsFor(dir)); err != nil {
				return fmt.Errorf("failed to create %s: %w", settingsPath, err)
			}

			fmt.Println("Initialized backfill home:")
			fmt.Printf("  %s\n", settingsPath)
			fmt.Printf("  %s%c\n", filepath.Join(dir, "journal"), os.PathSeparator)
			fmt.Printf("  %s%c\n", filepath.Join(dir, "archive"), os.PathSeparator)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Home directory (default $BACKFILL_HOME or .backfill)")
	return cmd
}

func writeIfNotExists(path string, b []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil // never overwrite an existing file
	}
	return fs.WriteFileSync(path, b, 0o644)
}
