package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/accueilpro/accueilpro/pkg/events"
	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/visits"
)

var (
	// ErrStale means a fetch finished after a newer invalidation; its
	// result was dropped.
	ErrStale  = errors.New("visitor list superseded by a newer fetch")
	ErrClosed = errors.New("visitor query closed")
)

// VisitorQuery keeps the full visitor list, newest check-in first, in step
// with the change stream. Every change triggers a full refetch.
type VisitorQuery struct {
	client   *Client
	token    func() string
	retryMin time.Duration
	retryMax time.Duration

	mu        sync.Mutex
	list      []visits.Visitor
	loaded    bool
	gen       uint64
	listeners map[int]func([]visits.Visitor)
	nextID    int
	started   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
}

type QueryOption func(*VisitorQuery)

// WithRetryDelay bounds the backoff between change stream reconnects.
func WithRetryDelay(first, limit time.Duration) QueryOption {
	return func(q *VisitorQuery) {
		q.retryMin, q.retryMax = first, limit
	}
}

// NewVisitorQuery reads the bearer token through token on every request so
// a refreshed session is picked up.
func NewVisitorQuery(c *Client, token func() string, opts ...QueryOption) *VisitorQuery {
	q := &VisitorQuery{
		client:    c,
		token:     token,
		retryMin:  500 * time.Millisecond,
		retryMax:  30 * time.Second,
		listeners: make(map[int]func([]visits.Visitor)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start opens the one change subscription and loads the list.
func (q *VisitorQuery) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.started {
		q.mu.Unlock()
		return errors.New("visitor query already started")
	}
	q.started = true
	streamCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})
	q.mu.Unlock()

	go q.follow(streamCtx)

	// A change arriving mid-fetch supersedes it and delivers its own list.
	if _, err := q.Fetch(ctx); err != nil && !errors.Is(err, ErrStale) {
		return err
	}
	return nil
}

// follow keeps the change subscription open until ctx is cancelled,
// reconnecting with backoff. Changes missed while disconnected are picked up
// by refetching once the stream is back.
func (q *VisitorQuery) follow(ctx context.Context) {
	defer close(q.done)

	delay := q.retryMin
	for attempt := 0; ; attempt++ {
		reconnect := attempt > 0
		onOpen := func() {
			delay = q.retryMin
			if reconnect {
				logger.InfoContext(ctx, "Visitor change stream reconnected")
				q.refetch(ctx)
			}
		}
		err := q.client.changes(ctx, q.token(), onOpen, func(ev events.ChangeEvent) {
			logger.DebugContext(ctx, "Visitor change received", "type", ev.Type, "record_id", ev.RecordID)
			q.refetch(ctx)
		})
		if ctx.Err() != nil {
			return
		}
		logger.WarnContext(ctx, "Visitor change stream ended", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, q.retryMax)
	}
}

func (q *VisitorQuery) refetch(ctx context.Context) {
	if err := q.Invalidate(ctx); err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, ErrClosed) && ctx.Err() == nil {
		logger.WarnContext(ctx, "Visitor refetch failed", "error", err)
	}
}

// Fetch loads the full list. The result is stored and handed to listeners
// unless a newer invalidation happened meanwhile.
func (q *VisitorQuery) Fetch(ctx context.Context) ([]visits.Visitor, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	gen := q.gen
	q.mu.Unlock()

	list, err := q.client.ListVisitors(ctx, q.token())
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	if gen != q.gen {
		q.mu.Unlock()
		return nil, ErrStale
	}
	q.list = list
	q.loaded = true
	fns := make([]func([]visits.Visitor), 0, len(q.listeners))
	for _, fn := range q.listeners {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn(cloneList(list))
	}
	return cloneList(list), nil
}

// Invalidate drops the cached list, outdating any fetch in flight, and
// fetches again.
func (q *VisitorQuery) Invalidate(ctx context.Context) error {
	q.mu.Lock()
	q.gen++
	q.list = nil
	q.loaded = false
	q.mu.Unlock()

	_, err := q.Fetch(ctx)
	return err
}

// List returns the cached list and whether one has been loaded.
func (q *VisitorQuery) List() ([]visits.Visitor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneList(q.list), q.loaded
}

// OnChange registers fn for every freshly fetched list.
func (q *VisitorQuery) OnChange(fn func([]visits.Visitor)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.listeners, id)
	}
}

// Close ends the subscription and waits for it to stop. Results arriving
// afterwards are dropped.
func (q *VisitorQuery) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.listeners = make(map[int]func([]visits.Visitor))
	cancel, done := q.cancel, q.done
	q.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func cloneList(list []visits.Visitor) []visits.Visitor {
	if list == nil {
		return nil
	}
	return append([]visits.Visitor(nil), list...)
}
