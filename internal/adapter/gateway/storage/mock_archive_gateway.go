package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

// MockArchiveGateway is an in-memory ArchiveGateway for testing.
// It keys archives by folded subject name, like the real backends.
type MockArchiveGateway struct {
	mu        sync.RWMutex
	archives  map[string][]post.Post
	appendErr error
}

var _ output.ArchiveGateway = (*MockArchiveGateway)(nil)

// NewMockArchiveGateway creates an empty in-memory archive gateway
func NewMockArchiveGateway() *MockArchiveGateway {
	return &MockArchiveGateway{
		archives: make(map[string][]post.Post),
	}
}

// Seed pre-populates a subject's archive (for testing)
func (m *MockArchiveGateway) Seed(subjectKey string, posts ...post.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[subjectKey] = append(m.archives[subjectKey], posts...)
}

// FailAppendWith makes every AppendPosts call fail with err (for testing)
func (m *MockArchiveGateway) FailAppendWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// PostsForTest returns a subject's stored posts (for testing)
func (m *MockArchiveGateway) PostsForTest(subjectKey string) []post.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]post.Post(nil), m.archives[subjectKey]...)
}

// ListSubjects returns the folded names of seeded subjects, sorted
func (m *MockArchiveGateway) ListSubjects(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subjects := make([]string, 0, len(m.archives))
	for key := range m.archives {
		subjects = append(subjects, key)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// LoadPosts returns a copy of the subject's archive
func (m *MockArchiveGateway) LoadPosts(ctx context.Context, subject journal.Subject) ([]post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts, exists := m.archives[subject.Key()]
	if !exists {
		return nil, fmt.Errorf("%s: %w", subject.Key(), output.ErrArchiveNotFound)
	}
	return append([]post.Post(nil), posts...), nil
}

// AppendPosts appends to the subject's in-memory archive
func (m *MockArchiveGateway) AppendPosts(ctx context.Context, subject journal.Subject, posts []post.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	if len(posts) == 0 {
		return nil
	}
	m.archives[subject.Key()] = append(m.archives[subject.Key()], posts...)
	return nil
}

// Oldest returns the stored post with the smallest identifier
func (m *MockArchiveGateway) Oldest(ctx context.Context, subject journal.Subject) (post.Post, error) {
	posts, err := m.LoadPosts(ctx, subject)
	if err != nil {
		return post.Post{}, err
	}
	oldest, ok := post.Oldest(posts)
	if !ok {
		return post.Post{}, fmt.Errorf("%s: %w", subject.Key(), output.ErrArchiveNotFound)
	}
	return oldest, nil
}
