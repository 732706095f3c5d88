package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

const defaultRetryDelay = 5 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	retryDelay time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

// ErrDiscard tells Consume to commit a message the handler cannot ever process.
var ErrDiscard = errors.New("discard event")

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, retryDelay: defaultRetryDelay}
}

// Consume blocks until ctx is cancelled. A later commit would move the
// partition offset past any earlier message, so a failing message is retried
// in place and nothing after it is fetched until the handler succeeds or
// discards it. Undecodable messages are committed and skipped.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal event")
			c.commit(ctx, message)
			continue
		}

		if err := c.handle(ctx, message, event, handler); err != nil {
			return err
		}
		c.commit(ctx, message)
	}
}

// handle runs handler until it succeeds or discards the event. Only a
// cancelled context ends it with an error.
func (c *Consumer) handle(ctx context.Context, message kafka.Message, event models.Event, handler EventHandler) error {
	log := logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"partition":  message.Partition,
		"offset":     message.Offset,
	})
	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrDiscard) {
			log.WithError(err).Warn("Discarding event")
			return nil
		}
		log.WithError(err).WithField("attempt", attempt).Error("Failed to process event, retrying")

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
