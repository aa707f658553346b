// Package kafka publishes reply events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/neolink/pkg/eventstream"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config is the configuration options for a Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout defaults to 10s.
	WriteTimeout time.Duration
}

// Publisher writes one message per event, keyed by session id so a
// session's events stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}

	return newPublisher(&kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           c.WriteTimeout,
		AllowAutoTopicCreation: true,
	}), nil
}

func newPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// PublishReply encodes event as JSON and writes it.
func (p *Publisher) PublishReply(ctx context.Context, event *eventstream.ReplyEvent) error {
	if event == nil {
		return eventstream.ErrNilReplyEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding reply event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Exchange.SessionID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing reply event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
