package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

const (
	headerEventType   = "event-type"
	headerSource      = "source"
	headerContentType = "content-type"
)

type Producer struct {
	writer *kafka.Writer
}

// NewProducer writes synchronously with full acks; ingest reports the outcome
// to the webhook caller, so a buffered write would hide failures.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}}
}

// PublishEvent wraps data in an Event envelope keyed by key, so every event
// for one video lands on the same partition.
func (p *Producer) PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	message, err := encodeEvent(event, key)
	if err != nil {
		return err
	}

	log := logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.writer.Topic,
		"key":        string(message.Key),
	})
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		log.WithError(err).Error("Failed to publish event")
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	log.Info("Event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// encodeEvent builds the wire message. An empty key falls back to the event id.
func encodeEvent(event models.Event, key string) (kafka.Message, error) {
	if key == "" {
		key = event.ID
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerSource, Value: []byte(event.Source)},
			{Key: headerContentType, Value: []byte("application/json")},
		},
	}, nil
}
