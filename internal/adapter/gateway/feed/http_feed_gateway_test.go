package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/journal"
)

func gatewayFor(t *testing.T, srv *httptest.Server) *HTTPFeedGateway {
	t.Helper()
	g, err := NewHTTPFeedGateway(Config{
		BaseURL:    srv.URL + "/api",
		RatePerMin: 60000, // keep tests from sleeping between calls
		PageSize:   25,
	})
	require.NoError(t, err)
	g.SetHTTPClient(srv.Client())
	return g
}

func feedSubject(t *testing.T, name string) journal.Subject {
	t.Helper()
	s, err := journal.NewSubject(name)
	require.NoError(t, err)
	return s
}

func TestHTTPFeedGateway_FetchOlder(t *testing.T) {
	floor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/subjects/bob/posts", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "500", r.URL.Query().Get("before"))
		assert.Equal(t, "2026-01-01T00:00:00Z", r.URL.Query().Get("since"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"id": 499, "author": "Bob", "message": "newer",
				"local_date": "2026-01-10T17:15:04-05:00",
				"utc_date": "2026-01-10T22:15:04Z",
				"card": {"url": "https://example.com/a", "card_url": "https://cards.example.com/a",
					"title": "A page", "content": "Body."}
			},
			{
				"id": 488, "author": "Bob", "message": "older",
				"local_date": "2026-01-09T10:00:00-05:00",
				"utc_date": "2026-01-09T15:00:00Z",
				"quoted": {"id": 21, "author": "alice", "message": "root",
					"local_date": "2026-01-01T00:00:00Z", "utc_date": "2026-01-01T00:00:00Z"}
			}
		]`))
	}))
	defer srv.Close()

	g := gatewayFor(t, srv)
	posts, err := g.FetchOlder(context.Background(), feedSubject(t, "Bob"), journal.Mark(500), floor)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	first := posts[0]
	assert.Equal(t, int64(499), first.Body.ID)
	require.NotNil(t, first.Body.Card)
	assert.True(t, first.Body.Card.Captured)
	assert.Equal(t, "A page", first.Body.Card.Title)
	assert.Equal(t, time.Date(2026, 1, 10, 22, 15, 4, 0, time.UTC), first.UTCDate)

	second := posts[1]
	require.NotNil(t, second.Body.Embedded)
	assert.Equal(t, "alice", second.Body.Embedded.Author)
	assert.Nil(t, second.Body.Card)
}

func TestHTTPFeedGateway_FirstPageHasNoBeforeParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("before"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := gatewayFor(t, srv)
	posts, err := g.FetchOlder(context.Background(), feedSubject(t, "bob"), nil, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestHTTPFeedGateway_UncapturedCard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "author": "bob", "message": "m",
			"local_date": "2026-01-10T00:00:00Z", "utc_date": "2026-01-10T00:00:00Z",
			"card": {"url": "https://example.com/a", "card_url": "https://cards.example.com/a"}}]`))
	}))
	defer srv.Close()

	g := gatewayFor(t, srv)
	posts, err := g.FetchOlder(context.Background(), feedSubject(t, "bob"), nil, time.Time{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Body.Card)
	assert.False(t, posts[0].Body.Card.Captured)
}

func TestHTTPFeedGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: output.ErrRateLimited},
		{name: "not found", status: http.StatusNotFound, want: output.ErrSubjectGone},
		{name: "gone", status: http.StatusGone, want: output.ErrSubjectGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			g := gatewayFor(t, srv)
			_, err := g.FetchOlder(context.Background(), feedSubject(t, "bob"), nil, time.Time{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestHTTPFeedGateway_ServerErrorIsPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := gatewayFor(t, srv)
	_, err := g.FetchOlder(context.Background(), feedSubject(t, "bob"), nil, time.Time{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, output.ErrRateLimited))
	assert.False(t, errors.Is(err, output.ErrSubjectGone))
}

func TestHTTPFeedGateway_DropsPostsOutsideWindow(t *testing.T) {
	floor := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": 600, "author": "bob", "message": "at or above watermark",
				"local_date": "2026-01-10T00:00:00Z", "utc_date": "2026-01-10T00:00:00Z"},
			{"id": 499, "author": "bob", "message": "in window",
				"local_date": "2026-01-10T00:00:00Z", "utc_date": "2026-01-10T00:00:00Z"},
			{"id": 498, "author": "bob", "message": "below floor",
				"local_date": "2026-01-01T00:00:00Z", "utc_date": "2026-01-01T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	g := gatewayFor(t, srv)
	posts, err := g.FetchOlder(context.Background(), feedSubject(t, "bob"), journal.Mark(500), floor)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(499), posts[0].Body.ID)
}

func TestNewHTTPFeedGateway_RejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPFeedGateway(Config{BaseURL: "/api"})
	assert.Error(t, err)
}
