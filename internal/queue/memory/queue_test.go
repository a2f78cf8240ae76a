package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := New()
	result := make(chan piracy.Job, 1)
	errCh := make(chan error, 1)

	go func() {
		job, err := q.Dequeue(context.Background(), piracy.TopicCrawl)
		if err != nil {
			errCh <- err
			return
		}
		result <- job
	}()

	time.Sleep(10 * time.Millisecond)
	id, err := q.Enqueue(context.Background(), piracy.TopicCrawl, []byte(`{"query":"x"}`), piracy.CrawlDelivery)
	require.NoError(t, err)

	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, id, got.ID)
		require.Equal(t, 1, got.Attempt)
		require.Equal(t, 3, got.MaxAttempts)
		require.JSONEq(t, `{"query":"x"}`, string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueuePriorityOrder(t *testing.T) {
	t.Parallel()

	q := New()
	ctx := context.Background()
	for _, p := range []int{2, 0, 1} {
		_, err := q.Enqueue(ctx, piracy.TopicCrawl, []byte{byte('0' + p)}, piracy.EnqueueOptions{Priority: p})
		require.NoError(t, err)
	}
	for want := 0; want < 3; want++ {
		job, err := q.Dequeue(ctx, piracy.TopicCrawl)
		require.NoError(t, err)
		require.Equal(t, want, job.Priority)
	}
}

func TestQueueTopicsAreIsolated(t *testing.T) {
	t.Parallel()

	q := New()
	_, err := q.Enqueue(context.Background(), piracy.TopicExtract, []byte("x"), piracy.ExtractDelivery)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(ctx, piracy.TopicCrawl)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueFailRetriesWithBackoff(t *testing.T) {
	t.Parallel()

	clk := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := New(WithClock(clk))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, piracy.TopicCrawl, []byte("x"), piracy.EnqueueOptions{MaxAttempts: 3, Backoff: 5 * time.Second})
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, piracy.TopicCrawl)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, job, errors.New("timeout")))
	require.Equal(t, Stats{Delayed: 1}, q.Stats(piracy.TopicCrawl))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	_, err = q.Dequeue(short, piracy.TopicCrawl)
	cancel()
	require.Error(t, err, "job must stay hidden during the 5s backoff")

	clk.Advance(5 * time.Second)
	job, err = q.Dequeue(ctx, piracy.TopicCrawl)
	require.NoError(t, err)
	require.Equal(t, 2, job.Attempt)

	// Second failure waits 10s.
	require.NoError(t, q.Fail(ctx, job, errors.New("timeout")))
	clk.Advance(9 * time.Second)
	short, cancel = context.WithTimeout(ctx, 20*time.Millisecond)
	_, err = q.Dequeue(short, piracy.TopicCrawl)
	cancel()
	require.Error(t, err)
	clk.Advance(time.Second)
	job, err = q.Dequeue(ctx, piracy.TopicCrawl)
	require.NoError(t, err)
	require.Equal(t, 3, job.Attempt)

	require.NoError(t, q.Fail(ctx, job, errors.New("still down")))
	dead := q.DeadLetters(piracy.TopicCrawl)
	require.Len(t, dead, 1)
	require.Equal(t, "still down", dead[0].LastError)
	require.Equal(t, Stats{Dead: 1}, q.Stats(piracy.TopicCrawl))
}

func TestQueuePermanentFailureDeadLetters(t *testing.T) {
	t.Parallel()

	q := New()
	ctx := context.Background()
	_, err := q.Enqueue(ctx, piracy.TopicExtract, []byte("bad"), piracy.ExtractDelivery)
	require.NoError(t, err)
	job, err := q.Dequeue(ctx, piracy.TopicExtract)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, job, piracy.Permanent(errors.New("decode"))))
	require.Len(t, q.DeadLetters(piracy.TopicExtract), 1)
}

func TestQueueDelayedEnqueue(t *testing.T) {
	t.Parallel()

	q := New()
	ctx := context.Background()
	_, err := q.Enqueue(ctx, piracy.TopicTakedown, []byte("later"), piracy.EnqueueOptions{Delay: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	job, err := q.Dequeue(ctx, piracy.TopicTakedown)
	require.NoError(t, err)
	require.Equal(t, "later", string(job.Payload))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestQueueCompleteUnknownJob(t *testing.T) {
	t.Parallel()

	q := New()
	err := q.Complete(context.Background(), piracy.Job{ID: "nope", Topic: piracy.TopicCrawl})
	require.ErrorIs(t, err, piracy.ErrNotFound)
}

func TestQueueCompleteRemovesInFlight(t *testing.T) {
	t.Parallel()

	q := New()
	ctx := context.Background()
	_, err := q.Enqueue(ctx, piracy.TopicCrawl, []byte("x"), piracy.CrawlDelivery)
	require.NoError(t, err)
	job, err := q.Dequeue(ctx, piracy.TopicCrawl)
	require.NoError(t, err)
	require.Equal(t, 1, q.Stats(piracy.TopicCrawl).InFlight)
	require.NoError(t, q.Complete(ctx, job))
	require.Equal(t, Stats{}, q.Stats(piracy.TopicCrawl))
}

func TestQueueCloseWakesConsumers(t *testing.T) {
	t.Parallel()

	q := New()
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background(), piracy.TopicCrawl)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, piracy.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("consumer not woken by Close")
	}

	_, err := q.Enqueue(context.Background(), piracy.TopicCrawl, nil, piracy.CrawlDelivery)
	require.ErrorIs(t, err, piracy.ErrQueueClosed)
}

func TestQueueCanceledContext(t *testing.T) {
	t.Parallel()

	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx, piracy.TopicCrawl); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}
	if _, err := q.Enqueue(ctx, piracy.TopicCrawl, nil, piracy.CrawlDelivery); err == nil {
		t.Fatal("expected enqueue cancel error")
	}
}
