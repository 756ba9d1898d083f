package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedloom/backfill/internal/adapter/gateway/storage"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

func mustCliSubject(t *testing.T, name string) journal.Subject {
	t.Helper()
	s, err := journal.NewSubject(name)
	require.NoError(t, err)
	return s
}

func cliPost(author string, id int64) post.Post {
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute)
	return post.Post{
		LocalDate: at,
		UTCDate:   at,
		Body:      post.Body{Author: author, ID: id, Message: "m"},
	}
}

// writeHome writes a backfill.yaml pointing at dirs under home and sets
// BACKFILL_HOME for the test.
func writeHome(t *testing.T) (home, journalDir, archiveDir string) {
	t.Helper()
	home = t.TempDir()
	journalDir = filepath.Join(home, "journal")
	archiveDir = filepath.Join(home, "archive")

	settings := fmt.Sprintf("journal_dir: %s\narchive_dir: %s\n", journalDir, archiveDir)
	require.NoError(t, os.WriteFile(filepath.Join(home, "backfill.yaml"), []byte(settings), 0o644))
	t.Setenv("BACKFILL_HOME", home)
	return home, journalDir, archiveDir
}

func readJournalLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestCreateCommand_BootstrapsJournalsFromArchive(t *testing.T) {
	_, journalDir, archiveDir := writeHome(t)
	ctx := context.Background()

	archive := storage.NewLocalArchiveGateway(afero.NewOsFs(), archiveDir)
	require.NoError(t, archive.AppendPosts(ctx, mustCliSubject(t, "bob"),
		[]post.Post{cliPost("bob", 520), cliPost("bob", 500)}))
	require.NoError(t, archive.AppendPosts(ctx, mustCliSubject(t, "Zoe"),
		[]post.Post{cliPost("Zoe", 700)}))

	root := NewRoot()
	root.SetArgs([]string{"create"})
	require.NoError(t, root.Execute())

	bobLines := readJournalLines(t, filepath.Join(journalDir, "bob.journal"))
	require.Len(t, bobLines, 1)
	entry, err := journal.ParseEntry(bobLines[0])
	require.NoError(t, err)
	assert.Equal(t, journal.Finished, entry.Kind)
	assert.Nil(t, entry.Prior)
	require.NotNil(t, entry.Next)
	assert.Equal(t, journal.Watermark(500), *entry.Next)
	require.NotNil(t, entry.NextDate)
	assert.True(t, cliPost("bob", 500).UTCDate.Equal(*entry.NextDate))

	zoeLines := readJournalLines(t, filepath.Join(journalDir, "zoe.journal"))
	require.Len(t, zoeLines, 1)
}

func TestCreateCommand_RefusesExistingJournalDir(t *testing.T) {
	_, journalDir, archiveDir := writeHome(t)
	ctx := context.Background()

	archive := storage.NewLocalArchiveGateway(afero.NewOsFs(), archiveDir)
	require.NoError(t, archive.AppendPosts(ctx, mustCliSubject(t, "bob"),
		[]post.Post{cliPost("bob", 500)}))

	require.NoError(t, os.MkdirAll(journalDir, 0o755))

	root := NewRoot()
	root.SetArgs([]string{"create"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}

func TestCreateCommand_FailsWithoutArchives(t *testing.T) {
	writeHome(t)

	root := NewRoot()
	root.SetArgs([]string{"create"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no archived subjects")
}

func TestCreateCommand_HonorsDirFlags(t *testing.T) {
	home, _, _ := writeHome(t)
	ctx := context.Background()

	altArchive := filepath.Join(home, "alt-archive")
	altJournal := filepath.Join(home, "alt-journal")

	archive := storage.NewLocalArchiveGateway(afero.NewOsFs(), altArchive)
	require.NoError(t, archive.AppendPosts(ctx, mustCliSubject(t, "bob"),
		[]post.Post{cliPost("bob", 500)}))

	root := NewRoot()
	root.SetArgs([]string{"create", "--archive-dir", altArchive, "--journal-dir", altJournal})
	require.NoError(t, root.Execute())

	assert.FileExists(t, filepath.Join(altJournal, "bob.journal"))
}
