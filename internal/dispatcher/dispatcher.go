// Package dispatcher fans stage queues out to pools of handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/telemetry"
)

type route struct {
	topic       piracy.Topic
	handler     piracy.Handler
	concurrency int
}

// Dispatcher runs N consumers per registered topic.
type Dispatcher struct {
	queue  piracy.Queue
	routes []route
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(queue piracy.Queue, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: queue, logger: logger.Named("dispatcher")}
}

// Register adds a handler for topic. A concurrency below 1 disables the topic.
func (d *Dispatcher) Register(topic piracy.Topic, handler piracy.Handler, concurrency int) {
	d.routes = append(d.routes, route{topic: topic, handler: handler, concurrency: concurrency})
}

// Run starts all consumers and blocks until ctx ends and they have stopped.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, r := range d.routes {
		for i := 0; i < r.concurrency; i++ {
			wg.Add(1)
			go func(r route, n int) {
				defer wg.Done()
				d.consume(ctx, r, n)
			}(r, i)
		}
		d.logger.Info("consumers started", zap.String("topic", string(r.topic)), zap.Int("concurrency", r.concurrency))
	}
	wg.Wait()
}

func (d *Dispatcher) consume(ctx context.Context, r route, n int) {
	logger := d.logger.With(zap.String("topic", string(r.topic)), zap.Int("consumer", n))
	for {
		job, err := d.queue.Dequeue(ctx, r.topic)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, piracy.ErrQueueClosed) {
				return
			}
			logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		d.process(ctx, r, job, logger)
	}
}

func (d *Dispatcher) process(ctx context.Context, r route, job piracy.Job, logger *zap.Logger) {
	ctx, span := telemetry.StartSpan(ctx, "queue."+string(r.topic))
	defer span.End()

	err := safeHandle(ctx, r.handler, job)
	// Settle the job even when shutdown cancelled ctx mid-handle.
	settleCtx := context.WithoutCancel(ctx)
	if err == nil {
		if cerr := d.queue.Complete(settleCtx, job); cerr != nil {
			logger.Error("complete job failed", zap.String("queue_job", job.ID), zap.Error(cerr))
		}
		metrics.ObserveQueueJob(string(r.topic), "completed")
		return
	}

	outcome := "retried"
	if !piracy.ShouldRetry(err, job.Attempt, job.MaxAttempts) {
		outcome = "dead"
	}
	logger.Warn("job failed",
		zap.String("queue_job", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	if ferr := d.queue.Fail(settleCtx, job, err); ferr != nil {
		logger.Error("fail job failed", zap.String("queue_job", job.ID), zap.Error(ferr))
	}
	metrics.ObserveQueueJob(string(r.topic), outcome)
}

func safeHandle(ctx context.Context, h piracy.Handler, job piracy.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.Handle(ctx, job)
}
