package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/reelqueue/platform/pkg/common/logger"
)

const maxNotificationBytes = 1 << 20

// Verify answers a subscription handshake: the challenge is echoed only for
// mode=subscribe with a non-empty challenge.
func Verify(mode, challenge string) (string, bool) {
	if mode != "subscribe" || challenge == "" {
		return "", false
	}
	return challenge, true
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the YouTube endpoints; the service serves them under /webhook.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/youtube", h.handleVerify).Methods(http.MethodGet)
	r.HandleFunc("/youtube", h.handleNotify).Methods(http.MethodPost)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := Verify(hubParam(q, "mode"), hubParam(q, "challenge"))
	if !ok {
		logger.Log.WithFields(map[string]interface{}{
			"mode":  hubParam(q, "mode"),
			"topic": hubParam(q, "topic"),
		}).Warn("subscription verification rejected")
		http.Error(w, "invalid verification request", http.StatusBadRequest)
		return
	}
	logger.Log.WithField("topic", hubParam(q, "topic")).Info("subscription verified")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Log.WithField("limit", tooLarge.Limit).Warn("notification body too large")
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{"success": false, "error": "notification too large"})
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	res, err := h.service.Notify(r.Context(), body)
	switch {
	case errors.Is(err, ErrMissingVideoID):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "failed to queue video"})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// hubParam reads the WebSub "hub."-prefixed parameter, falling back to the bare name.
func hubParam(q url.Values, name string) string {
	if v := q.Get("hub." + name); v != "" {
		return v
	}
	return q.Get(name)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
