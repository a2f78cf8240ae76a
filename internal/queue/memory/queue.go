// Package memory provides an in-process priority queue with delayed
// retries, used for local development and tests.
package memory

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/clock/system"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/id/uuid"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// DeadLetter is a job that exhausted its attempts.
type DeadLetter struct {
	Job       piracy.Job
	LastError string
	FailedAt  time.Time
}

// Stats counts jobs by state for one topic.
type Stats struct {
	Ready    int
	Delayed  int
	InFlight int
	Dead     int
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the time source.
func WithClock(c piracy.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(g piracy.IDGenerator) Option {
	return func(q *Queue) { q.ids = g }
}

// Queue implements piracy.Queue.
type Queue struct {
	mu     sync.Mutex
	clock  piracy.Clock
	ids    piracy.IDGenerator
	topics map[piracy.Topic]*topicState
	seq    uint64
	closed bool
}

type topicState struct {
	ready    readyHeap
	delayed  []*entry
	inflight map[string]*entry
	dead     []DeadLetter
	// signal is closed and replaced whenever new work may be visible.
	signal chan struct{}
}

type entry struct {
	job       piracy.Job
	visibleAt time.Time
	seq       uint64
}

// New constructs an empty Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		clock:  system.New(),
		ids:    uuid.NewUUIDGenerator(),
		topics: make(map[piracy.Topic]*topicState),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) topic(t piracy.Topic) *topicState {
	ts, ok := q.topics[t]
	if !ok {
		ts = &topicState{inflight: make(map[string]*entry), signal: make(chan struct{})}
		q.topics[t] = ts
	}
	return ts
}

func (ts *topicState) notify() {
	close(ts.signal)
	ts.signal = make(chan struct{})
}

// Enqueue adds a job, delayed by opts.Delay when set.
func (q *Queue) Enqueue(ctx context.Context, topic piracy.Topic, payload []byte, opts piracy.EnqueueOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("enqueue canceled: %w", err)
	}
	id, err := q.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("job id: %w", err)
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", piracy.ErrQueueClosed
	}
	now := q.clock.Now()
	q.seq++
	e := &entry{
		job: piracy.Job{
			ID:          id,
			Topic:       topic,
			Payload:     append([]byte(nil), payload...),
			Priority:    opts.Priority,
			MaxAttempts: maxAttempts,
			Backoff:     opts.Backoff,
			EnqueuedAt:  now,
		},
		visibleAt: now.Add(opts.Delay),
		seq:       q.seq,
	}
	ts := q.topic(topic)
	if opts.Delay > 0 {
		ts.delayed = append(ts.delayed, e)
	} else {
		heap.Push(&ts.ready, e)
	}
	ts.notify()
	return id, nil
}

// Dequeue blocks until a job is visible on topic.
func (q *Queue) Dequeue(ctx context.Context, topic piracy.Topic) (piracy.Job, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return piracy.Job{}, piracy.ErrQueueClosed
		}
		ts := q.topic(topic)
		now := q.clock.Now()
		ts.promote(now)
		if ts.ready.Len() > 0 {
			e := heap.Pop(&ts.ready).(*entry)
			e.job.Attempt++
			ts.inflight[e.job.ID] = e
			job := e.job
			q.mu.Unlock()
			return job, nil
		}
		signal := ts.signal
		wait, hasDelayed := ts.nextVisible(now)
		q.mu.Unlock()

		if err := waitFor(ctx, signal, wait, hasDelayed); err != nil {
			return piracy.Job{}, err
		}
	}
}

func waitFor(ctx context.Context, signal <-chan struct{}, wait time.Duration, timed bool) error {
	var timeout <-chan time.Time
	if timed {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-signal:
	case <-timeout:
	}
	return nil
}

// Complete acknowledges a delivered job.
func (q *Queue) Complete(_ context.Context, job piracy.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts := q.topic(job.Topic)
	if _, ok := ts.inflight[job.ID]; !ok {
		return fmt.Errorf("complete job %s: %w", job.ID, piracy.ErrNotFound)
	}
	delete(ts.inflight, job.ID)
	return nil
}

// Fail reschedules the job with exponential backoff or dead-letters it.
func (q *Queue) Fail(_ context.Context, job piracy.Job, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts := q.topic(job.Topic)
	e, ok := ts.inflight[job.ID]
	if !ok {
		return fmt.Errorf("fail job %s: %w", job.ID, piracy.ErrNotFound)
	}
	delete(ts.inflight, job.ID)

	now := q.clock.Now()
	if !piracy.ShouldRetry(cause, e.job.Attempt, e.job.MaxAttempts) {
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		ts.dead = append(ts.dead, DeadLetter{Job: e.job, LastError: msg, FailedAt: now})
		return nil
	}
	delay := piracy.ExponentialBackoff{Base: e.job.Backoff}.Delay(e.job.Attempt)
	e.visibleAt = now.Add(delay)
	if delay > 0 {
		ts.delayed = append(ts.delayed, e)
	} else {
		heap.Push(&ts.ready, e)
	}
	ts.notify()
	return nil
}

// DeadLetters returns the dead-lettered jobs for topic, oldest first.
func (q *Queue) DeadLetters(topic piracy.Topic) []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.topic(topic).dead...)
}

// Stats reports queue depth for topic.
func (q *Queue) Stats(topic piracy.Topic) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts := q.topic(topic)
	return Stats{
		Ready:    ts.ready.Len(),
		Delayed:  len(ts.delayed),
		InFlight: len(ts.inflight),
		Dead:     len(ts.dead),
	}
}

// Close wakes all blocked consumers; further calls fail with ErrQueueClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for _, ts := range q.topics {
		ts.notify()
	}
	return nil
}

// promote moves delayed entries that became visible into the ready heap.
func (ts *topicState) promote(now time.Time) {
	if len(ts.delayed) == 0 {
		return
	}
	kept := ts.delayed[:0]
	for _, e := range ts.delayed {
		if !e.visibleAt.After(now) {
			heap.Push(&ts.ready, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(ts.delayed); i++ {
		ts.delayed[i] = nil
	}
	ts.delayed = kept
}

func (ts *topicState) nextVisible(now time.Time) (time.Duration, bool) {
	if len(ts.delayed) == 0 {
		return 0, false
	}
	sort.Slice(ts.delayed, func(i, j int) bool {
		return ts.delayed[i].visibleAt.Before(ts.delayed[j].visibleAt)
	})
	return ts.delayed[0].visibleAt.Sub(now), true
}

// readyHeap orders by priority, then visibility, then insertion.
type readyHeap []*entry

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority < h[j].job.Priority
	}
	if !h[i].visibleAt.Equal(h[j].visibleAt) {
		return h[i].visibleAt.Before(h[j].visibleAt)
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
