// Package feed contains gateways to the upstream post feed. The production
// gateway speaks the feed's HTTP API; the scripted gateway replays canned
// batches for tests and offline runs.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

// Config holds HTTP feed gateway configuration
type Config struct {
	BaseURL    string // Feed API root, e.g. https://feed.example.com/api
	RatePerMin int    // Request budget per minute
	PageSize   int    // Posts requested per call
}

// HTTPFeedGateway implements FeedGateway against the feed's HTTP API.
// Requests are spaced by a client-side rate limiter; every request carries
// a unique X-Request-ID so feed-side logs can be correlated with run logs.
type HTTPFeedGateway struct {
	base     *url.URL
	client   *http.Client
	limiter  *rate.Limiter
	pageSize int
}

var _ output.FeedGateway = (*HTTPFeedGateway)(nil)

// NewHTTPFeedGateway creates a feed gateway for the API at cfg.BaseURL.
func NewHTTPFeedGateway(cfg Config) (*HTTPFeedGateway, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("feed base url %q must be absolute", cfg.BaseURL)
	}
	ratePerMin := cfg.RatePerMin
	if ratePerMin <= 0 {
		ratePerMin = 60
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &HTTPFeedGateway{
		base:     base,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMin)), 1),
		pageSize: pageSize,
	}, nil
}

// SetHTTPClient replaces the HTTP client. For tests.
func (g *HTTPFeedGateway) SetHTTPClient(client *http.Client) {
	g.client = client
}

// FetchOlder requests the next page of the subject's timeline below the
// watermark. HTTP 429 maps to ErrRateLimited and HTTP 404/410 to
// ErrSubjectGone; both keep their meaning across retries.
func (g *HTTPFeedGateway) FetchOlder(ctx context.Context, subject journal.Subject, before *journal.Watermark, floor time.Time) ([]post.Post, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := g.base.JoinPath("subjects", subject.Key(), "posts")
	q := u.Query()
	q.Set("limit", strconv.Itoa(g.pageSize))
	q.Set("since", floor.UTC().Format(time.RFC3339))
	if before != nil {
		q.Set("before", strconv.FormatInt(int64(*before), 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", subject.Key(), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetch %s: %w", subject.Key(), output.ErrRateLimited)
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("fetch %s: %w", subject.Key(), output.ErrSubjectGone)
	default:
		return nil, fmt.Errorf("fetch %s: unexpected status %s", subject.Key(), resp.Status)
	}

	var wire []wirePost
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode feed response for %s: %w", subject.Key(), err)
	}

	posts := make([]post.Post, 0, len(wire))
	for _, w := range wire {
		p := w.toDomain()
		// The server owns the window, but a misbehaving page must not
		// stall the walk or leak posts below the floor.
		if before != nil && p.Body.ID >= int64(*before) {
			continue
		}
		if p.UTCDate.Before(floor) {
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// wirePost is the feed API's JSON shape for one post.
type wirePost struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	LocalDate time.Time `json:"local_date"`
	UTCDate   time.Time `json:"utc_date"`
	Card      *wireCard `json:"card,omitempty"`
	Quoted    *wirePost `json:"quoted,omitempty"`
}

type wireCard struct {
	URL     string  `json:"url"`
	CardURL string  `json:"card_url"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

func (w wirePost) toDomain() post.Post {
	return post.Post{
		LocalDate: w.LocalDate,
		UTCDate:   w.UTCDate.UTC(),
		Body:      w.toBody(),
	}
}

func (w wirePost) toBody() post.Body {
	b := post.Body{Author: w.Author, ID: w.ID, Message: w.Message}
	if w.Card != nil {
		card := post.LinkCard{URL: w.Card.URL, CardURL: w.Card.CardURL}
		if w.Card.Title != nil && w.Card.Content != nil {
			card.Captured = true
			card.Title = *w.Card.Title
			card.Content = *w.Card.Content
		}
		b.Card = &card
	}
	if w.Quoted != nil {
		quoted := w.Quoted.toBody()
		b.Embedded = &quoted
	}
	return b
}
