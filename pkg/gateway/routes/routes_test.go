package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/gateway/auth"
	"github.com/reelqueue/platform/pkg/gateway/middleware"
	"github.com/reelqueue/platform/pkg/queue"
)

func init() {
	logger.Silence()
}

type fakeRows struct {
	rows  []queue.Row
	err   error
	sheet string
}

func (f *fakeRows) Rows(_ context.Context, sheet string) ([]queue.Row, error) {
	f.sheet = sheet
	return f.rows, f.err
}

func TestSummarize(t *testing.T) {
	rows := []queue.Row{
		queue.NewRow(2, map[queue.Field]string{queue.FieldTitle: "pending"}),
		queue.NewRow(3, map[queue.Field]string{queue.FieldMediaURL: "https://cdn/a.mp4"}),
		queue.NewRow(4, map[queue.Field]string{queue.FieldMediaURL: "https://cdn/b.mp4", queue.FieldCreationID: "c1"}),
		queue.NewRow(5, map[queue.Field]string{queue.FieldMediaURL: "https://cdn/c.mp4", queue.FieldPublishedAt: "2024-01-01T00:00:00.000Z"}),
		queue.NewRow(6, map[queue.Field]string{queue.FieldMediaURL: "https://cdn/d.mp4", queue.FieldError: "boom"}),
	}

	o := Summarize("Sheet1", rows)
	if o.Total != 5 || o.NextStage != 3 || o.NextCommit != 4 || o.Reapable != 1 {
		t.Fatalf("unexpected overview: %+v", o)
	}
	if o.States[queue.StateFailed] != 1 || o.States[queue.StatePending] != 1 {
		t.Fatalf("unexpected state counts: %v", o.States)
	}
}

func TestOverviewHandler(t *testing.T) {
	src := &fakeRows{rows: []queue.Row{queue.NewRow(2, map[queue.Field]string{queue.FieldMediaURL: "https://cdn/a.mp4"})}}
	r := mux.NewRouter()
	NewOverviewHandler(src, "Sheet1").Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue/overview?sheetName=Backlog", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if src.sheet != "Backlog" {
		t.Fatalf("sheet override not used: %q", src.sheet)
	}
	var o QueueOverview
	if err := json.NewDecoder(rec.Body).Decode(&o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.NextStage != 2 || o.Sheet != "Backlog" {
		t.Fatalf("unexpected body: %+v", o)
	}

	src.err = errors.New("sheets down")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue/overview", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if src.sheet != "Sheet1" {
		t.Fatalf("default sheet not used: %q", src.sheet)
	}
}

func TestOperatorHandler(t *testing.T) {
	m, err := auth.NewJWTManager("0123456789abcdef0123", "reelqueue")
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	token, err := m.IssueToken("cron", "operator", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := mux.NewRouter()
	r.Use(middleware.Authenticate(m))
	NewOperatorHandler().Register(r)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["subject"] != "cron" || body["role"] != "operator" {
		t.Fatalf("unexpected body: %v", body)
	}

	// Without authentication middleware there are no claims.
	open := mux.NewRouter()
	NewOperatorHandler().Register(open)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
