package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/signup/internal/domain"
	"example.com/signup/internal/observability"
)

// MessageWriter is satisfied by *kafka.Writer bound to a single topic.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewRosterWriter builds the writer for the roster topic. Keys hash to a fixed
// partition so one activity's events stay ordered.
func NewRosterWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// KafkaPublisher implements domain.EventPublisher on the roster topic.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaPublisher publishes roster events to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(NewRosterWriter(brokers, topic), topic)
}

func newKafkaPublisher(writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// PublishRosterEvent implements domain.EventPublisher.
func (p *KafkaPublisher) PublishRosterEvent(ctx context.Context, event domain.RosterEvent) error {
	payload := NewRosterChanged(event)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode roster event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(payload.Activity),
		Value: body,
		Time:  payload.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(payload.EventType)},
			{Key: HeaderEventID, Value: []byte(payload.EventID)},
		},
	}

	err = p.writer.WriteMessages(ctx, msg)
	observability.RecordEventPublished(payload.EventType, err)
	if err != nil {
		return fmt.Errorf("write roster event to %s: %w", p.topic, err)
	}
	return nil
}
