package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

// ArchiveExt is the fixed suffix for per-subject archive files.
const ArchiveExt = ".posts"

// LocalArchiveGateway implements ArchiveGateway on a filesystem directory.
// Each subject owns one archive file named by its folded form, one post
// record per line.
type LocalArchiveGateway struct {
	fsys afero.Fs
	dir  string
}

var _ output.ArchiveGateway = (*LocalArchiveGateway)(nil)

// NewLocalArchiveGateway creates a filesystem-backed archive gateway rooted
// at dir.
func NewLocalArchiveGateway(fsys afero.Fs, dir string) *LocalArchiveGateway {
	return &LocalArchiveGateway{fsys: fsys, dir: dir}
}

// ListSubjects returns the folded names of every subject with an archive
// file, sorted. Hidden files and files without the archive suffix are
// ignored.
func (g *LocalArchiveGateway) ListSubjects(ctx context.Context) ([]string, error) {
	infos, err := afero.ReadDir(g.fsys, g.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	var subjects []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ArchiveExt) {
			continue
		}
		subjects = append(subjects, strings.TrimSuffix(name, ArchiveExt))
	}
	sort.Strings(subjects)
	return subjects, nil
}

// LoadPosts reads a subject's whole archive.
func (g *LocalArchiveGateway) LoadPosts(ctx context.Context, subject journal.Subject) ([]post.Post, error) {
	f, err := g.fsys.Open(g.path(subject))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", subject.Key(), output.ErrArchiveNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", subject.Key(), err)
	}
	defer f.Close()

	var posts []post.Post
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := post.ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("archive %s line %d: %w", subject.Key(), lineNum, err)
		}
		posts = append(posts, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive %s: %w", subject.Key(), err)
	}
	return posts, nil
}

// AppendPosts appends a batch of records to the subject's archive, creating
// the file on first write.
func (g *LocalArchiveGateway) AppendPosts(ctx context.Context, subject journal.Subject, posts []post.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if err := g.fsys.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	f, err := g.fsys.OpenFile(g.path(subject), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", subject.Key(), err)
	}
	defer f.Close()

	var b strings.Builder
	for _, p := range posts {
		b.WriteString(p.Record())
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append archive %s: %w", subject.Key(), err)
	}
	return nil
}

// Oldest returns the archived post with the smallest identifier.
func (g *LocalArchiveGateway) Oldest(ctx context.Context, subject journal.Subject) (post.Post, error) {
	posts, err := g.LoadPosts(ctx, subject)
	if err != nil {
		return post.Post{}, err
	}
	oldest, ok := post.Oldest(posts)
	if !ok {
		return post.Post{}, fmt.Errorf("%s: %w", subject.Key(), output.ErrArchiveNotFound)
	}
	return oldest, nil
}

func (g *LocalArchiveGateway) path(subject journal.Subject) string {
	return filepath.Join(g.dir, subject.Key()+ArchiveExt)
}
