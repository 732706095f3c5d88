package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/queue"
)

// RowSource is the read side of the queue selector.
type RowSource interface {
	Rows(ctx context.Context, sheet string) ([]queue.Row, error)
}

type QueueOverview struct {
	Sheet  string              `json:"sheet"`
	Total  int                 `json:"total"`
	States map[queue.State]int `json:"states"`
	// Next rows each operation would pick, 0 when none.
	NextStage  int `json:"nextStage"`
	NextCommit int `json:"nextCommit"`
	Reapable   int `json:"reapable"`
}

type OverviewHandler struct {
	rows  RowSource
	sheet string
}

func NewOverviewHandler(rows RowSource, defaultSheet string) *OverviewHandler {
	return &OverviewHandler{rows: rows, sheet: defaultSheet}
}

func (h *OverviewHandler) Register(r *mux.Router) {
	r.HandleFunc("/queue/overview", h.handleOverview).Methods(http.MethodGet)
}

func (h *OverviewHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	sheet := r.URL.Query().Get("sheetName")
	if sheet == "" {
		sheet = h.sheet
	}

	rows, err := h.rows.Rows(r.Context(), sheet)
	if err != nil {
		logger.Log.WithError(err).WithField("sheet", sheet).Error("failed to read queue for overview")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to read queue"})
		return
	}

	respondJSON(w, http.StatusOK, Summarize(sheet, rows))
}

// Summarize counts rows per lifecycle state.
func Summarize(sheet string, rows []queue.Row) QueueOverview {
	o := QueueOverview{
		Sheet:  sheet,
		Total:  len(rows),
		States: make(map[queue.State]int),
	}
	for _, row := range rows {
		o.States[row.State()]++
		if queue.Reapable(row) {
			o.Reapable++
		}
	}
	if row, ok := queue.FirstMatch(rows, queue.StageReady); ok {
		o.NextStage = row.Index
	}
	if row, ok := queue.FirstMatch(rows, queue.CommitReady); ok {
		o.NextCommit = row.Index
	}
	return o
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
