package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reelqueue/platform/pkg/caption"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/publisher"
	"github.com/reelqueue/platform/pkg/queue"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/stage", h.handleStage).Methods(http.MethodPost)
	r.HandleFunc("/commit", h.handleCommit).Methods(http.MethodPost)
	r.HandleFunc("/reap", h.handleReap).Methods(http.MethodGet)
}

type sheetRequest struct {
	SheetName string `json:"sheetName"`
}

// decodeSheet reads an optional {sheetName} body. An empty body is allowed.
func decodeSheet(r *http.Request) (string, error) {
	var req sheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return req.SheetName, nil
}

func (h *Handler) handleStage(w http.ResponseWriter, r *http.Request) {
	sheet, err := decodeSheet(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}
	res, err := h.service.Stage(r.Context(), sheet)
	if err != nil {
		writeError(w, OpStage, err, "No rows ready for staging")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	sheet, err := decodeSheet(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}
	res, err := h.service.Commit(r.Context(), sheet)
	if err != nil {
		writeError(w, OpCommit, err, "No rows ready for publishing")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleReap(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reap(r.Context(), r.URL.Query().Get("sheetName"))
	if err != nil {
		writeError(w, OpReap, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeError maps an operation failure onto a status code and JSON envelope.
func writeError(w http.ResponseWriter, op string, err error, noRowMessage string) {
	body := map[string]interface{}{"success": false}
	var (
		rowErr  *RowError
		cfgErr  *ConfigError
		valErr  *ValidationError
		genErr  *caption.GenerationError
		upErr   *publisher.UpstreamError
		status  = http.StatusInternalServerError
		message = "internal error"
	)
	if errors.As(err, &rowErr) {
		body["row"] = rowErr.Row
	}

	switch {
	case errors.Is(err, queue.ErrNoRow):
		status, message = http.StatusNotFound, noRowMessage
	case errors.As(err, &cfgErr):
		message = cfgErr.Error()
	case errors.As(err, &valErr):
		status, message = http.StatusBadRequest, valErr.Error()
	case errors.As(err, &genErr):
		message = genErr.Error()
	case errors.As(err, &upErr):
		status, message = http.StatusBadGateway, upErr.Error()
		body["details"] = upErr.Payload
	default:
		logger.Log.WithError(err).WithField("operation", op).Error("operation failed")
	}
	body["error"] = message
	if status == http.StatusNotFound {
		delete(body, "error")
		body["message"] = message
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
