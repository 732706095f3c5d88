package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelqueue/platform/pkg/common/logger"
)

// ErrNoRow means no row satisfied the predicate.
var ErrNoRow = errors.New("no matching queue row")

// Selector reads the queue fresh on every call and picks eligible rows in sheet order.
type Selector struct {
	store   Store
	schema  *Schema
	claimer Claimer
	ttl     time.Duration
}

func NewSelector(store Store, schema *Schema, claimer Claimer, ttl time.Duration) *Selector {
	if claimer == nil {
		claimer = NopClaimer{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Selector{store: store, schema: schema, claimer: claimer, ttl: ttl}
}

func (s *Selector) Schema() *Schema {
	return s.schema
}

// Rows decodes every data row of the sheet.
func (s *Selector) Rows(ctx context.Context, sheet string) ([]Row, error) {
	if sheet == "" {
		sheet = s.schema.Sheet
	}
	raw, err := s.store.ReadRows(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	first := s.schema.FirstDataRow()
	rows := make([]Row, 0, len(raw))
	for i, cells := range raw {
		index := i + 1
		if index < first {
			continue
		}
		rows = append(rows, s.schema.Decode(index, cells))
	}
	return rows, nil
}

// Next returns the earliest row satisfying pred that can be claimed for op.
// Rows held by another invocation are skipped. The caller must release the lease.
func (s *Selector) Next(ctx context.Context, sheet, op string, pred Predicate) (Row, Lease, error) {
	if sheet == "" {
		sheet = s.schema.Sheet
	}
	rows, err := s.Rows(ctx, sheet)
	if err != nil {
		return Row{}, nil, err
	}
	for _, row := range rows {
		if !pred(row) {
			continue
		}
		lease, err := s.claimer.Claim(ctx, claimKey(op, sheet, row), s.ttl)
		if errors.Is(err, ErrClaimed) {
			logger.Log.WithFields(map[string]interface{}{
				"operation": op,
				"sheet":     sheet,
				"row":       row.Index,
			}).Info("row claimed by another invocation, skipping")
			continue
		}
		if err != nil {
			return Row{}, nil, err
		}
		if _, nop := s.claimer.(NopClaimer); nop {
			return row, lease, nil
		}

		// The snapshot predates the lease; another invocation may have finished
		// this row in between.
		fresh, ok, err := s.reload(ctx, sheet, row.Index)
		if err != nil {
			releaseQuietly(ctx, lease)
			return Row{}, nil, err
		}
		if !ok || !pred(fresh) {
			releaseQuietly(ctx, lease)
			logger.Log.WithFields(map[string]interface{}{
				"operation": op,
				"sheet":     sheet,
				"row":       row.Index,
			}).Info("row changed before claim, skipping")
			continue
		}
		return fresh, lease, nil
	}
	return Row{}, nil, ErrNoRow
}

// reload re-reads one data row. ok is false when the row no longer exists.
func (s *Selector) reload(ctx context.Context, sheet string, index int) (Row, bool, error) {
	rows, err := s.Rows(ctx, sheet)
	if err != nil {
		return Row{}, false, err
	}
	for _, r := range rows {
		if r.Index == index {
			return r, true, nil
		}
	}
	return Row{}, false, nil
}

func releaseQuietly(ctx context.Context, lease Lease) {
	if err := lease.Release(ctx); err != nil {
		logger.Log.WithError(err).Warn("failed to release row claim")
	}
}

// All returns every row satisfying pred in sheet order.
func (s *Selector) All(ctx context.Context, sheet string, pred Predicate) ([]Row, error) {
	rows, err := s.Rows(ctx, sheet)
	if err != nil {
		return nil, err
	}
	return Filter(rows, pred), nil
}

func claimKey(op, sheet string, row Row) string {
	return fmt.Sprintf("%s:%s:%d", op, sheet, row.Index)
}
