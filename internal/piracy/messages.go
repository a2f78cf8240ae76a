package piracy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Topic names a stage queue.
type Topic string

// Stage queues.
const (
	TopicCrawl    Topic = "crawl"
	TopicExtract  Topic = "extract"
	TopicTakedown Topic = "takedown"
)

// CrawlMessage asks the crawl stage to resolve and fetch one query.
type CrawlMessage struct {
	JobID    string `json:"jobId"`
	WorkID   string `json:"workId"`
	TenantID string `json:"tenantId"`
	Query    string `json:"query"`
	Priority int    `json:"priority"`
}

// ExtractionMessage asks the detection stage to classify a crawl result.
type ExtractionMessage struct {
	CrawlResultID string `json:"crawlResultId"`
	URL           string `json:"url"`
	ContentRef    string `json:"contentRef"`
}

// TakedownMessage asks the takedown stage to deliver a request.
type TakedownMessage struct {
	CaseID            string           `json:"caseId"`
	TakedownRequestID string           `json:"takedownRequestId"`
	Platform          TakedownPlatform `json:"platform"`
	Attempt           int              `json:"attempt"`
}

// EnqueueOptions controls delivery of one queued job.
type EnqueueOptions struct {
	// Priority orders visible jobs; lower runs first.
	Priority    int
	MaxAttempts int
	// Backoff is the base delay of the exponential retry schedule.
	Backoff time.Duration
	Delay   time.Duration
}

// Default delivery options per stage.
var (
	CrawlDelivery       = EnqueueOptions{MaxAttempts: 3, Backoff: 5 * time.Second}
	ExtractDelivery     = EnqueueOptions{MaxAttempts: 2, Backoff: 3 * time.Second}
	TakedownDelivery    = EnqueueOptions{MaxAttempts: 3, Backoff: time.Minute}
	ManualRetryDelivery = EnqueueOptions{MaxAttempts: 1}
)

// Job is one delivery of a queued payload.
type Job struct {
	ID          string
	Topic       Topic
	Payload     []byte
	Priority    int
	Attempt     int
	MaxAttempts int
	Backoff     time.Duration
	EnqueuedAt  time.Time
}

// Redelivery reports whether the queue has handed this job out before.
func (j Job) Redelivery() bool {
	return j.Attempt > 1
}

// Publish encodes msg and enqueues it on topic.
func Publish[T any](ctx context.Context, q Queue, topic Topic, msg T, opts EnqueueOptions) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode %s message: %w", topic, err)
	}
	id, err := q.Enqueue(ctx, topic, payload, opts)
	if err != nil {
		return "", fmt.Errorf("enqueue %s message: %w", topic, err)
	}
	return id, nil
}

// Decode unmarshals a job payload. Malformed payloads are permanent failures.
func Decode[T any](job Job) (T, error) {
	var msg T
	if err := json.Unmarshal(job.Payload, &msg); err != nil {
		return msg, Permanent(fmt.Errorf("decode %s job %s: %w", job.Topic, job.ID, err))
	}
	return msg, nil
}
