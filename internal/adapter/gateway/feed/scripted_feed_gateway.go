package feed

import (
	"context"
	"sync"
	"time"

	"github.com/feedloom/backfill/internal/application/port/output"
	"github.com/feedloom/backfill/internal/domain/model/journal"
	"github.com/feedloom/backfill/internal/domain/model/post"
)

// ScriptedFeedGateway is a FeedGateway that replays queued batches.
// Each subject has a queue of responses consumed in order; an exhausted
// queue answers with an empty batch, which callers read as the end of the
// timeline.
type ScriptedFeedGateway struct {
	mu     sync.Mutex
	queues map[string][]scriptedResponse
	calls  []FetchCall
}

type scriptedResponse struct {
	posts []post.Post
	err   error
}

// FetchCall records one FetchOlder invocation (for testing)
type FetchCall struct {
	SubjectKey string
	Before     *journal.Watermark
	Floor      time.Time
}

var _ output.FeedGateway = (*ScriptedFeedGateway)(nil)

// NewScriptedFeedGateway creates an empty scripted gateway
func NewScriptedFeedGateway() *ScriptedFeedGateway {
	return &ScriptedFeedGateway{
		queues: make(map[string][]scriptedResponse),
	}
}

// QueueBatch appends a batch to the subject's response queue
func (g *ScriptedFeedGateway) QueueBatch(subjectKey string, posts ...post.Post) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[subjectKey] = append(g.queues[subjectKey], scriptedResponse{posts: posts})
}

// QueueError appends an error response to the subject's queue
func (g *ScriptedFeedGateway) QueueError(subjectKey string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[subjectKey] = append(g.queues[subjectKey], scriptedResponse{err: err})
}

// Calls returns every recorded FetchOlder invocation (for testing)
func (g *ScriptedFeedGateway) Calls() []FetchCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]FetchCall(nil), g.calls...)
}

// FetchOlder pops the next scripted response for the subject.
func (g *ScriptedFeedGateway) FetchOlder(ctx context.Context, subject journal.Subject, before *journal.Watermark, floor time.Time) ([]post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, FetchCall{SubjectKey: subject.Key(), Before: before, Floor: floor})

	queue := g.queues[subject.Key()]
	if len(queue) == 0 {
		return nil, nil
	}
	next := queue[0]
	g.queues[subject.Key()] = queue[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.posts, nil
}
