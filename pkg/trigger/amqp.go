package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/common/models"
)

// AMQPTrigger publishes jobs to a durable RabbitMQ queue. The connection is
// dialed on first use and redialed after it closes.
type AMQPTrigger struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewAMQPTrigger(url, queue string) *AMQPTrigger {
	return &AMQPTrigger{url: url, queue: queue}
}

func (t *AMQPTrigger) Fire(ctx context.Context, job models.VideoJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	conn, err := t.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		t.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", t.queue, err)
	}

	err = ch.PublishWithContext(ctx, "", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.VideoID,
		Type:         models.EventVideoIngested,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", q.Name, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"queue":    q.Name,
		"video_id": job.VideoID,
	}).Info("Job queued for processing")
	return nil
}

func (t *AMQPTrigger) connection() (*amqp.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil && !t.conn.IsClosed() {
		return t.conn, nil
	}
	conn, err := amqp.Dial(t.url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	t.conn = conn
	return conn, nil
}

func (t *AMQPTrigger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.conn.IsClosed() {
		return nil
	}
	return t.conn.Close()
}
