package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/common/models"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/observability/metrics"
	"github.com/reelqueue/platform/pkg/queue"
	"github.com/reelqueue/platform/pkg/trigger"
)

const operation = "ingest"

// Result is the outcome of one notification.
type Result struct {
	Success   bool   `json:"success,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	VideoID   string `json:"videoId,omitempty"`
	Triggered bool   `json:"triggered"`
}

type Options struct {
	Sheet           string
	SourceURLPrefix string
	Filter          Filter
	Now             func() time.Time
	History         history.Recorder
}

// Service appends qualifying videos to the queue and hands them to processing.
type Service struct {
	store   queue.Store
	schema  *queue.Schema
	trigger trigger.Trigger
	opts    Options
}

func NewService(store queue.Store, schema *queue.Schema, tr trigger.Trigger, opts Options) *Service {
	if tr == nil {
		tr = trigger.Nop{}
	}
	if opts.Sheet == "" {
		opts.Sheet = schema.Sheet
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.History == nil {
		opts.History = history.Nop{}
	}
	return &Service{store: store, schema: schema, trigger: tr, opts: opts}
}

// Notify parses body, filters it, appends a row and fires the trigger.
// ErrMissingVideoID is returned unwrapped for unparseable payloads.
func (s *Service) Notify(ctx context.Context, body []byte) (Result, error) {
	n, err := ParseNotification(body)
	if err != nil {
		metrics.ObserveOperation(operation, "invalid")
		return Result{}, err
	}
	log := logger.Log.WithFields(map[string]interface{}{
		"operation": operation,
		"video_id":  n.VideoID,
	})

	if ok, reason := s.opts.Filter.Accept(n); !ok {
		log.WithField("title", n.Title).Info("notification skipped")
		metrics.ObserveOperation(operation, history.OutcomeSkipped)
		s.opts.History.Record(ctx, history.Entry{
			Operation: operation, Sheet: s.opts.Sheet, Outcome: history.OutcomeSkipped, Error: reason,
			Details: map[string]interface{}{"videoId": n.VideoID},
		})
		return Result{Skipped: true, Reason: reason, VideoID: n.VideoID}, nil
	}

	sourceURL := s.opts.SourceURLPrefix + n.VideoID
	values := s.schema.Encode(map[queue.Field]string{
		queue.FieldTimestamp:   queue.FormatTimestamp(s.opts.Now()),
		queue.FieldSourceURL:   sourceURL,
		queue.FieldTitle:       n.Title,
		queue.FieldDescription: n.Description,
		queue.FieldThumbnail:   n.Thumbnail,
	})
	if err := s.store.AppendRow(ctx, s.opts.Sheet, values); err != nil {
		log.WithError(err).Error("failed to append queue row")
		metrics.ObserveOperation(operation, history.OutcomeFailed)
		s.opts.History.Record(ctx, history.Entry{
			Operation: operation, Sheet: s.opts.Sheet, Outcome: history.OutcomeFailed, Error: err.Error(),
		})
		return Result{}, fmt.Errorf("append row for %s: %w", n.VideoID, err)
	}
	log.Info("video queued")

	res := Result{Success: true, VideoID: n.VideoID}
	job := models.VideoJob{VideoID: n.VideoID, SourceURL: sourceURL, Title: n.Title, Sheet: s.opts.Sheet}
	if _, none := s.trigger.(trigger.Nop); none {
		log.Debug("no processing trigger configured")
	} else if err := s.trigger.Fire(ctx, job); err != nil {
		log.WithError(err).Warn("processing trigger failed")
	} else {
		res.Triggered = true
	}

	metrics.ObserveOperation(operation, history.OutcomeSuccess)
	s.opts.History.Record(ctx, history.Entry{
		Operation: operation, Sheet: s.opts.Sheet, Outcome: history.OutcomeSuccess,
		Details: map[string]interface{}{"videoId": n.VideoID, "triggered": res.Triggered},
	})
	return res, nil
}
