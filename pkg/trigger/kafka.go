package trigger

import (
	"context"

	"github.com/reelqueue/platform/pkg/common/models"
)

const eventSource = "reelqueue.ingest"

type eventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error
	Close() error
}

// KafkaTrigger publishes a video.ingested event keyed by video id.
type KafkaTrigger struct {
	producer eventPublisher
}

func NewKafkaTrigger(producer eventPublisher) *KafkaTrigger {
	return &KafkaTrigger{producer: producer}
}

func (t *KafkaTrigger) Fire(ctx context.Context, job models.VideoJob) error {
	return t.producer.PublishEvent(ctx, models.EventVideoIngested, eventSource, job.VideoID, job.Data())
}

func (t *KafkaTrigger) Close() error {
	return t.producer.Close()
}
