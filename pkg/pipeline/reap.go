package pipeline

import (
	"context"

	"github.com/reelqueue/platform/pkg/assets"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/observability/metrics"
	"github.com/reelqueue/platform/pkg/queue"
)

const (
	ReapDeleted = "deleted"
	ReapSkipped = "skipped"
	ReapError   = "error"
)

type ReapItem struct {
	Row      int    `json:"row"`
	PublicID string `json:"publicId,omitempty"`
	Status   string `json:"status"`
	Result   string `json:"result,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ReapReport struct {
	Success            bool       `json:"success"`
	TotalRowsProcessed int        `json:"totalRowsProcessed"`
	DeletedCount       int        `json:"deletedCount"`
	Results            []ReapItem `json:"results"`
}

// Reap deletes the hosted asset of every published row, one row at a time.
// Per-row failures land in the report only; the sheet is not written.
func (s *Service) Reap(ctx context.Context, sheet string) (*ReapReport, error) {
	if s.assets == nil {
		return nil, &ConfigError{Component: "asset storage"}
	}
	sheet = s.sheet(sheet)

	rows, err := s.selector.All(ctx, sheet, queue.Reapable)
	if err != nil {
		s.observe(ctx, OpReap, sheet, 0, err, nil)
		return nil, err
	}

	report := &ReapReport{Success: true, Results: make([]ReapItem, 0, len(rows))}
	for _, row := range rows {
		item := s.reapRow(ctx, sheet, row)
		if item.Status == ReapDeleted {
			report.DeletedCount++
		}
		report.Results = append(report.Results, item)
	}
	report.TotalRowsProcessed = len(rows)

	metrics.ObserveAssetsDeleted(report.DeletedCount)
	s.observe(ctx, OpReap, sheet, 0, nil, map[string]interface{}{
		"totalRowsProcessed": report.TotalRowsProcessed,
		"deletedCount":       report.DeletedCount,
	})
	return report, nil
}

func (s *Service) reapRow(ctx context.Context, sheet string, row queue.Row) ReapItem {
	log := logger.Log.WithFields(map[string]interface{}{
		"operation": OpReap,
		"sheet":     sheet,
		"row":       row.Index,
	})

	publicID, ok := assets.ExtractPublicID(row.Get(queue.FieldMediaURL))
	if !ok {
		log.Info("media url has no asset id, skipping")
		return ReapItem{Row: row.Index, Status: ReapSkipped, Reason: "could not extract public id from media url"}
	}

	result, err := s.assets.Delete(ctx, publicID)
	if err != nil {
		log.WithError(err).WithField("public_id", publicID).Warn("asset delete failed")
		return ReapItem{Row: row.Index, PublicID: publicID, Status: ReapError, Error: err.Error()}
	}
	if result != assets.ResultOK && result != assets.ResultNotFound {
		log.WithField("public_id", publicID).WithField("result", result).Warn("asset delete returned unexpected result")
		return ReapItem{Row: row.Index, PublicID: publicID, Status: ReapError, Result: result, Error: "unexpected delete result: " + result}
	}
	return ReapItem{Row: row.Index, PublicID: publicID, Status: ReapDeleted, Result: result}
}
