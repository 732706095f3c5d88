package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reelqueue/platform/pkg/common/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OutcomeSuccess = "success"
	OutcomeNoop    = "noop"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Entry is one operation invocation as seen by the caller.
type Entry struct {
	Operation string
	Sheet     string
	Row       int
	Outcome   string
	Error     string
	Details   map[string]interface{}
}

// Recorder persists invocation outcomes. Recording is best effort.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

type Record struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Operation string            `gorm:"index" json:"operation"`
	Sheet     string            `json:"sheet,omitempty"`
	Row       int               `json:"row,omitempty"`
	Outcome   string            `gorm:"index" json:"outcome"`
	Error     string            `json:"error,omitempty"`
	Details   datatypes.JSONMap `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (Record) TableName() string {
	return "operation_history"
}

func newRecord(e Entry, now time.Time) Record {
	var details datatypes.JSONMap
	if len(e.Details) > 0 {
		details = datatypes.JSONMap(e.Details)
	}
	return Record{
		ID:        uuid.New(),
		Operation: e.Operation,
		Sheet:     e.Sheet,
		Row:       e.Row,
		Outcome:   e.Outcome,
		Error:     e.Error,
		Details:   details,
		CreatedAt: now.UTC(),
	}
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{})
}

func (r *Repository) Create(ctx context.Context, e Entry) (Record, error) {
	rec := newRecord(e, time.Now())
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Record implements Recorder; failures are logged and dropped.
func (r *Repository) Record(ctx context.Context, e Entry) {
	if _, err := r.Create(ctx, e); err != nil {
		logger.Log.WithError(err).WithField("operation", e.Operation).Warn("Failed to record history")
	}
}

// List returns the newest records first. limit <= 0 means 50.
func (r *Repository) List(ctx context.Context, operation string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if operation != "" {
		q = q.Where("operation = ?", operation)
	}
	var out []Record
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CleanupExpired deletes records older than ttl and returns how many went.
func (r *Repository) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Record{})
	return res.RowsAffected, res.Error
}
