package piracy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	topic   Topic
	payload []byte
	opts    EnqueueOptions
	err     error
}

func (q *recordingQueue) Enqueue(_ context.Context, topic Topic, payload []byte, opts EnqueueOptions) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.topic, q.payload, q.opts = topic, payload, opts
	return "job-1", nil
}

func (q *recordingQueue) Dequeue(context.Context, Topic) (Job, error) { return Job{}, nil }
func (q *recordingQueue) Complete(context.Context, Job) error        { return nil }
func (q *recordingQueue) Fail(context.Context, Job, error) error     { return nil }

func TestPublishEncodesWireNames(t *testing.T) {
	t.Parallel()

	q := &recordingQueue{}
	msg := CrawlMessage{JobID: "j", WorkID: "w", TenantID: "t", Query: "https://x.test", Priority: 2}
	opts := CrawlDelivery
	opts.Priority = 2

	id, err := Publish(context.Background(), q, TopicCrawl, msg, opts)
	require.NoError(t, err)
	require.Equal(t, "job-1", id)
	require.Equal(t, TopicCrawl, q.topic)
	require.Equal(t, 3, q.opts.MaxAttempts)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(q.payload, &wire))
	require.Equal(t, "j", wire["jobId"])
	require.Equal(t, "w", wire["workId"])
	require.Equal(t, "t", wire["tenantId"])
	require.EqualValues(t, 2, wire["priority"])

	decoded, err := Decode[CrawlMessage](Job{Payload: q.payload})
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestPublishWrapsQueueErrors(t *testing.T) {
	t.Parallel()

	q := &recordingQueue{err: errors.New("down")}
	_, err := Publish(context.Background(), q, TopicTakedown, TakedownMessage{}, TakedownDelivery)
	require.EqualError(t, err, "enqueue takedown message: down")
}

func TestDecodeMalformedIsPermanent(t *testing.T) {
	t.Parallel()

	_, err := Decode[ExtractionMessage](Job{ID: "x", Topic: TopicExtract, Payload: []byte("{")})
	require.Error(t, err)
	require.True(t, IsPermanent(err))
}
