// Package kafka publishes detection events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/telemetry"
)

// EventHeader carries the event name on every message.
const EventHeader = "event"

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes one message per event, keyed by the event name.
type Publisher struct {
	writer MessageWriter
	topic  string
}

// NewWriter builds a synchronous lz4-compressed writer.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Compression(new(lz4.Codec).Code()),
	}
}

// New wraps writer. topic is reported in errors only; the writer owns routing.
func New(writer MessageWriter, topic string) *Publisher {
	return &Publisher{writer: writer, topic: topic}
}

// Publish implements piracy.Publisher. Kafka assigns no message ID, so the
// returned ID is "<topic>/<event>/<unix nanos>".
func (p *Publisher) Publish(ctx context.Context, event string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", event, err)
	}
	headers := []kafka.Header{{Key: EventHeader, Value: []byte(event)}}
	for k, v := range telemetry.Inject(ctx) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	now := time.Now()
	msg := kafka.Message{
		Key:     []byte(event),
		Value:   body,
		Headers: headers,
		Time:    now,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("write %s event to %s: %w", event, p.topic, err)
	}
	return fmt.Sprintf("%s/%s/%d", p.topic, event, now.UnixNano()), nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
