package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher publishes allocation events to a Kafka topic. Messages
// are keyed by order id so that the events of one order keep their order on
// a single partition.
type KafkaEventPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaEventPublisher creates a publisher writing to topic on brokers.
func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (p *KafkaEventPublisher) Name() string { return "kafka" }

// Publish writes one message per event.
func (p *KafkaEventPublisher) Publish(ctx context.Context, events []model.AllocationEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
		}
		msg := kafka.Message{
			Key:   []byte(e.OrderID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(e.ID)},
				{Key: "event-type", Value: []byte(e.Type)},
				{Key: "content-type", Value: []byte("application/json")},
			},
			Time: e.OccurredAt,
		}
		if e.TripID != "" {
			msg.Headers = append(msg.Headers, kafka.Header{Key: "trip-id", Value: []byte(e.TripID)})
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish events to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
