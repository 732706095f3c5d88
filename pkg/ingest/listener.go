package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/reelqueue/platform/pkg/common/kafka"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/common/models"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/queue"
)

// Listener fills media_url on queued rows once the processing service reports
// a hosted file for them.
type Listener struct {
	selector        *queue.Selector
	updater         *queue.Updater
	sheet           string
	sourceURLPrefix string
	history         history.Recorder
}

func NewListener(selector *queue.Selector, updater *queue.Updater, sheet, sourceURLPrefix string, rec history.Recorder) *Listener {
	if rec == nil {
		rec = history.Nop{}
	}
	return &Listener{
		selector:        selector,
		updater:         updater,
		sheet:           sheet,
		sourceURLPrefix: sourceURLPrefix,
		history:         rec,
	}
}

// HandleEvent is a kafka.EventHandler. Events that can never apply are wrapped
// in kafka.ErrDiscard; store failures are returned as is and the consumer retries them in place.
func (l *Listener) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != "" && event.Type != models.EventMediaReady {
		return fmt.Errorf("%w: unexpected event type %s", kafka.ErrDiscard, event.Type)
	}
	ready := models.MediaReadyFromEvent(event)
	return l.Apply(ctx, ready)
}

func (l *Listener) Apply(ctx context.Context, ready models.MediaReady) error {
	if strings.TrimSpace(ready.MediaURL) == "" {
		return fmt.Errorf("%w: media_url missing", kafka.ErrDiscard)
	}
	source := strings.TrimSpace(ready.SourceURL)
	if source == "" && ready.VideoID != "" {
		source = l.sourceURLPrefix + ready.VideoID
	}
	if source == "" {
		return fmt.Errorf("%w: neither source_url nor video_id given", kafka.ErrDiscard)
	}
	sheet := ready.Sheet
	if sheet == "" {
		sheet = l.sheet
	}

	rows, err := l.selector.Rows(ctx, sheet)
	if err != nil {
		return err
	}
	row, ok := queue.FirstMatch(rows, awaitingMedia(source))
	if !ok {
		return fmt.Errorf("%w: no row awaiting media for %s", kafka.ErrDiscard, source)
	}

	if err := l.updater.Apply(ctx, sheet, row.Index, queue.Patch{queue.FieldMediaURL: ready.MediaURL}); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"sheet":      sheet,
		"row":        row.Index,
		"source_url": source,
	}).Info("media url recorded")
	l.history.Record(ctx, history.Entry{
		Operation: "media-ready",
		Sheet:     sheet,
		Row:       row.Index,
		Outcome:   history.OutcomeSuccess,
		Details:   map[string]interface{}{"mediaUrl": ready.MediaURL},
	})
	return nil
}

func awaitingMedia(source string) queue.Predicate {
	return func(r queue.Row) bool {
		return r.Get(queue.FieldSourceURL) == source && r.Get(queue.FieldMediaURL) == ""
	}
}
