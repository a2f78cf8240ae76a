package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishWritesKeyedMessage(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	pub := New(w, "detections")
	id, err := pub.Publish(context.Background(), "detection.created", map[string]string{"detectionId": "d1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "detections/detection.created/"))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	require.Equal(t, "detection.created", string(msg.Key))
	require.JSONEq(t, `{"detectionId":"d1"}`, string(msg.Value))
	require.Equal(t, EventHeader, msg.Headers[0].Key)
	require.Equal(t, "detection.created", string(msg.Headers[0].Value))

	require.NoError(t, pub.Close())
	require.True(t, w.closed)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	pub := New(&fakeWriter{err: errors.New("broker down")}, "detections")
	_, err := pub.Publish(context.Background(), "detection.created", "x")
	require.ErrorContains(t, err, "broker down")

	_, err = pub.Publish(context.Background(), "bad", make(chan int))
	require.Error(t, err)
}

func TestNewWriterTargetsTopic(t *testing.T) {
	t.Parallel()

	w := NewWriter([]string{"localhost:9092"}, "detections")
	require.Equal(t, "detections", w.Topic)
	require.IsType(t, &kafka.Hash{}, w.Balancer)
}
