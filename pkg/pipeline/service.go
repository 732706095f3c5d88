package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/observability/metrics"
	"github.com/reelqueue/platform/pkg/publisher"
	"github.com/reelqueue/platform/pkg/queue"
)

const (
	OpStage  = "stage"
	OpCommit = "commit"
	OpReap   = "reap"
)

type Captioner interface {
	Generate(ctx context.Context, title, description string) (string, error)
}

type Publisher interface {
	CreateContainer(ctx context.Context, req publisher.ContainerRequest) (string, error)
	PublishContainer(ctx context.Context, creationID string) (string, error)
}

type AssetDeleter interface {
	Delete(ctx context.Context, publicID string) (string, error)
}

// ConfigError means a collaborator needed by the operation has no credentials.
// It is raised before any row is read.
type ConfigError struct {
	Component string
}

func (e *ConfigError) Error() string {
	return e.Component + " is not configured"
}

// ValidationError lists required row fields that were empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// RowError ties a failure to the queue row it was recorded on.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

type Deps struct {
	Selector  *queue.Selector
	Updater   *queue.Updater
	Captioner Captioner
	Publisher Publisher
	Assets    AssetDeleter
	History   history.Recorder
	Now       func() time.Time
}

// Service runs the stage, commit and reap operations over the queue.
// Collaborators left nil are reported as ConfigError when an operation needs them.
type Service struct {
	selector  *queue.Selector
	updater   *queue.Updater
	captioner Captioner
	publisher Publisher
	assets    AssetDeleter
	history   history.Recorder
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.History == nil {
		d.History = history.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		selector:  d.Selector,
		updater:   d.Updater,
		captioner: d.Captioner,
		publisher: d.Publisher,
		assets:    d.Assets,
		history:   d.History,
		now:       d.Now,
	}
}

func (s *Service) sheet(name string) string {
	if name == "" {
		return s.selector.Schema().Sheet
	}
	return name
}

// fail appends msg to the row's error cell and wraps cause in a RowError. A
// failed error write is logged; cause still wins.
func (s *Service) fail(ctx context.Context, op, sheet string, row int, msg string, cause error) error {
	log := logger.Log.WithFields(map[string]interface{}{
		"operation": op,
		"sheet":     sheet,
		"row":       row,
	})
	if err := s.updater.AppendError(ctx, sheet, row, msg); err != nil {
		log.WithError(err).Error("failed to record row error")
	}
	log.WithError(cause).Warn(msg)
	return &RowError{Row: row, Err: cause}
}

func (s *Service) observe(ctx context.Context, op, sheet string, row int, err error, details map[string]interface{}) {
	outcome := history.OutcomeSuccess
	entry := history.Entry{Operation: op, Sheet: sheet, Row: row, Details: details}
	switch {
	case errors.Is(err, queue.ErrNoRow):
		outcome = history.OutcomeNoop
	case err != nil:
		outcome = history.OutcomeFailed
		entry.Error = err.Error()
		// A missing collaborator is not a row outcome, even when it is only
		// discovered after a row was selected.
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			entry.Row = 0
		}
	}
	entry.Outcome = outcome
	metrics.ObserveOperation(op, outcome)
	s.history.Record(ctx, entry)
}

func release(ctx context.Context, op string, lease queue.Lease) {
	if lease == nil {
		return
	}
	if err := lease.Release(ctx); err != nil {
		logger.Log.WithError(err).WithField("operation", op).Warn("failed to release row claim")
	}
}

// upstreamMessage renders err for the row's error cell, keeping the platform code when present.
func upstreamMessage(prefix string, err error) string {
	var ue *publisher.UpstreamError
	if errors.As(err, &ue) {
		if ue.Code != 0 {
			return fmt.Sprintf("%s: %s (code %d)", prefix, ue.Message, ue.Code)
		}
		return fmt.Sprintf("%s: %s", prefix, ue.Message)
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
