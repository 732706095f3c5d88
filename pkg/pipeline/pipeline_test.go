package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/reelqueue/platform/pkg/caption"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/publisher"
	"github.com/reelqueue/platform/pkg/queue"
	"github.com/reelqueue/platform/pkg/queue/queuetest"
)

const (
	colMedia       = 3
	colTitle       = 4
	colCaption     = 8
	colPublishedAt = 9
	colCreationID  = 10
	colError       = 11
)

func init() {
	logger.Silence()
}

var header = []string{"timestamp", "source_url", "media_url", "title", "description", "thumbnail", "tags", "caption", "published_at", "creation_id", "error"}

func queueRow(media, title, captionText, publishedAt, creationID, errMsg string) []string {
	return []string{"2024-03-01T10:00:00.000Z", "https://www.youtube.com/shorts/x", media, title, "desc", "", "", captionText, publishedAt, creationID, errMsg}
}

type fakeCaptioner struct {
	text  string
	err   error
	calls int
}

func (f *fakeCaptioner) Generate(context.Context, string, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakePublisher struct {
	createID   string
	createErr  error
	publishID  string
	publishErr error

	onCreate  func(publisher.ContainerRequest)
	created   []publisher.ContainerRequest
	published []string
}

func (f *fakePublisher) CreateContainer(_ context.Context, req publisher.ContainerRequest) (string, error) {
	if f.onCreate != nil {
		f.onCreate(req)
	}
	f.created = append(f.created, req)
	return f.createID, f.createErr
}

func (f *fakePublisher) PublishContainer(_ context.Context, creationID string) (string, error) {
	f.published = append(f.published, creationID)
	return f.publishID, f.publishErr
}

type fakeAssets struct {
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeAssets) Delete(_ context.Context, publicID string) (string, error) {
	f.calls = append(f.calls, publicID)
	if err := f.errs[publicID]; err != nil {
		return "", err
	}
	return f.results[publicID], nil
}

type fixture struct {
	store     *queuetest.MemoryStore
	captioner *fakeCaptioner
	publisher *fakePublisher
	assets    *fakeAssets
	service   *Service
}

func newFixture(rows ...[]string) *fixture {
	schema := queue.MustSchema("canonical")
	store := queuetest.NewMemoryStore()
	store.Seed("Sheet1", append([][]string{header}, rows...))

	f := &fixture{
		store:     store,
		captioner: &fakeCaptioner{text: "Great clip! 🔥 #fun"},
		publisher: &fakePublisher{createID: "777", publishID: "17890000000000001"},
		assets:    &fakeAssets{results: map[string]string{}, errs: map[string]error{}},
	}
	f.service = NewService(Deps{
		Selector:  queue.NewSelector(store, schema, nil, 0),
		Updater:   queue.NewUpdater(store, schema),
		Captioner: f.captioner,
		Publisher: f.publisher,
		Assets:    f.assets,
		Now:       func() time.Time { return time.Date(2024, 3, 2, 15, 4, 5, 123000000, time.UTC) },
	})
	return f
}

func (f *fixture) serve(method, target, body string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	NewHandler(f.service).Register(r.PathPrefix("/api/v1").Subrouter())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestStageGeneratesCaptionBeforePublishing(t *testing.T) {
	f := newFixture(
		queueRow("", "no media yet", "", "", "", ""),
		queueRow("https://cdn/upload/v1/a/clip.mp4", "Cat jumps", "", "", "", ""),
	)
	var captionAtCreate string
	f.publisher.onCreate = func(publisher.ContainerRequest) {
		captionAtCreate = f.store.Cell("Sheet1", 3, colCaption)
	}

	rec := f.serve(http.MethodPost, "/api/v1/stage", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captionAtCreate != "Great clip! 🔥 #fun" {
		t.Fatalf("caption not persisted before container creation, saw %q", captionAtCreate)
	}

	body := decode(t, rec)
	if body["captionGenerated"] != true || body["creationId"] != "777" || body["row"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}
	if got := f.store.Cell("Sheet1", 3, colCreationID); got != "777" {
		t.Fatalf("creation id not stored, got %q", got)
	}

	req := f.publisher.created[0]
	if req.MediaType != "REELS" || req.CoverURL != "https://cdn/upload/v1/a/clip.jpg" || req.VideoURL != "https://cdn/upload/v1/a/clip.mp4" {
		t.Fatalf("unexpected container request %+v", req)
	}
}

func TestStageKeepsExistingCaption(t *testing.T) {
	f := newFixture(queueRow("https://cdn/upload/clip.mp4", "Cat", "hand written", "", "", ""))

	res, err := f.service.Stage(context.Background(), "")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if res.CaptionGenerated || res.Caption != "hand written" || f.captioner.calls != 0 {
		t.Fatalf("existing caption should be used as is: %+v", res)
	}
}

func TestStageValidationFailure(t *testing.T) {
	f := newFixture(queueRow("https://cdn/upload/clip.mp4", "", "", "", "", ""))

	rec := f.serve(http.MethodPost, "/api/v1/stage", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := f.store.Cell("Sheet1", 2, colError); !strings.Contains(got, "title") {
		t.Fatalf("expected validation error on row, got %q", got)
	}
	if len(f.publisher.created) != 0 || f.captioner.calls != 0 {
		t.Fatal("no collaborator may be called for an invalid row")
	}
}

func TestStageCaptionFailure(t *testing.T) {
	f := newFixture(queueRow("https://cdn/upload/clip.mp4", "Cat", "", "", "", ""))
	f.captioner.err = &caption.GenerationError{Reason: "empty completion"}

	rec := f.serve(http.MethodPost, "/api/v1/stage", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := f.store.Cell("Sheet1", 2, colError); !strings.HasPrefix(got, "Caption generation failed") {
		t.Fatalf("unexpected error cell %q", got)
	}
	if len(f.publisher.created) != 0 {
		t.Fatal("publisher must not be called after caption failure")
	}
}

func TestStageUpstreamFailureEchoesPayload(t *testing.T) {
	f := newFixture(queueRow("https://cdn/upload/clip.mp4", "Cat", "cap", "", "", ""))
	f.publisher.createErr = &publisher.UpstreamError{
		Status: 400, Message: "Invalid parameter", Code: 100,
		Payload: json.RawMessage(`{"error":{"message":"Invalid parameter","code":100}}`),
	}

	rec := f.serve(http.MethodPost, "/api/v1/stage", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := decode(t, rec)
	if _, ok := body["details"].(map[string]interface{}); !ok {
		t.Fatalf("expected upstream payload in details, got %v", body)
	}
	if got := f.store.Cell("Sheet1", 2, colError); got != "Container creation failed: Invalid parameter (code 100)" {
		t.Fatalf("unexpected error cell %q", got)
	}
	if got := f.store.Cell("Sheet1", 2, colCreationID); got != "" {
		t.Fatalf("creation id must stay empty, got %q", got)
	}
}

func TestStageNothingToDo(t *testing.T) {
	f := newFixture(
		queueRow("https://cdn/upload/clip.mp4", "Cat", "", "", "", "E1"),
		queueRow("https://cdn/upload/clip.mp4", "Cat", "", "", "555", ""),
	)
	rec := f.serve(http.MethodPost, "/api/v1/stage", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStageNotConfigured(t *testing.T) {
	f := newFixture(queueRow("https://cdn/upload/clip.mp4", "Cat", "", "", "", ""))
	f.service.publisher = nil

	rec := f.serve(http.MethodPost, "/api/v1/stage", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if calls := f.store.Calls(); len(calls) != 0 {
		t.Fatalf("configuration errors must not touch the queue, saw %v", calls)
	}
}

type recordingHistory struct {
	entries []history.Entry
}

func (r *recordingHistory) Record(_ context.Context, e history.Entry) {
	r.entries = append(r.entries, e)
}

func TestStageWithoutCaptionGeneratorLeavesRowUntouched(t *testing.T) {
	schema := queue.MustSchema("canonical")
	store := queuetest.NewMemoryStore()
	store.Seed("Sheet1", [][]string{header, queueRow("https://cdn/upload/clip.mp4", "Cat", "", "", "", "")})
	claimer, err := queue.NewFileClaimer(t.TempDir())
	if err != nil {
		t.Fatalf("claimer: %v", err)
	}
	rec := &recordingHistory{}
	pub := &fakePublisher{createID: "777"}
	svc := NewService(Deps{
		Selector:  queue.NewSelector(store, schema, claimer, 0),
		Updater:   queue.NewUpdater(store, schema),
		Publisher: pub,
		History:   rec,
	})
	ctx := context.Background()

	_, err = svc.Stage(ctx, "")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Component != "caption generator" {
		t.Fatalf("expected caption generator config error, got %v", err)
	}
	for _, c := range store.Calls() {
		if !strings.HasPrefix(c, "read") {
			t.Fatalf("row must not be written, saw %q", c)
		}
	}
	if len(pub.created) != 0 {
		t.Fatal("publisher must not be called")
	}
	lease, err := claimer.Claim(ctx, "stage:Sheet1:2", 0)
	if err != nil {
		t.Fatalf("claim was not released: %v", err)
	}
	lease.Release(ctx)
	if len(rec.entries) != 1 || rec.entries[0].Row != 0 || rec.entries[0].Outcome != history.OutcomeFailed {
		t.Fatalf("config failure must be recorded without a row, got %+v", rec.entries)
	}
}

func TestCommitStampsPublishedAt(t *testing.T) {
	f := newFixture(
		queueRow("https://cdn/upload/clip.mp4", "Cat", "cap", "", "", ""),
		queueRow("https://cdn/upload/clip.mp4", "Cat", "cap", "", "777", ""),
	)

	rec := f.serve(http.MethodPost, "/api/v1/commit", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["mediaId"] != "17890000000000001" || body["publishedAt"] != "2024-03-02T15:04:05.123Z" {
		t.Fatalf("unexpected body %v", body)
	}
	if got := f.store.Cell("Sheet1", 3, colPublishedAt); got != "2024-03-02T15:04:05.123Z" {
		t.Fatalf("published_at not stored, got %q", got)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0] != "777" {
		t.Fatalf("unexpected publish calls %v", f.publisher.published)
	}
}

func TestCommitFailureAppendsError(t *testing.T) {
	f := newFixture(queueRow("https://cdn/upload/clip.mp4", "Cat", "cap", "", "777", ""))
	f.store.Seed("Other", [][]string{header, queueRow("https://cdn/upload/clip.mp4", "Cat", "cap", "", "888", "")})
	f.publisher.publishErr = &publisher.UpstreamError{Message: "Media ID is not available", Code: 9007}

	rec := f.serve(http.MethodPost, "/api/v1/commit", `{"sheetName":"Other"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if f.publisher.published[0] != "888" {
		t.Fatalf("commit should target the requested sheet, published %v", f.publisher.published)
	}
	if got := f.store.Cell("Other", 2, colError); got != "Publish failed: Media ID is not available (code 9007)" {
		t.Fatalf("unexpected error cell %q", got)
	}
	if got := f.store.Cell("Other", 2, colPublishedAt); got != "" {
		t.Fatalf("published_at must stay empty, got %q", got)
	}

	// The errored row is excluded from the next selection.
	rec = f.serve(http.MethodPost, "/api/v1/commit", `{"sheetName":"Other"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after error, got %d", rec.Code)
	}
}

func TestReapIsolatesRowFailures(t *testing.T) {
	f := newFixture(
		queueRow("https://host/upload/v1/a/one.mp4", "t", "c", "2024-01-01T00:00:00.000Z", "1", ""),
		queueRow("https://host/upload/v1/a/two.mp4", "t", "c", "2024-01-01T00:00:00.000Z", "2", ""),
		queueRow("https://host/upload/v1/a/three.mp4", "t", "c", "2024-01-01T00:00:00.000Z", "3", ""),
		queueRow("https://host/files/four.mp4", "t", "c", "2024-01-01T00:00:00.000Z", "4", ""),
		queueRow("https://host/upload/v1/a/five.mp4", "t", "c", "", "5", ""),
	)
	f.assets.results["a/one"] = "ok"
	f.assets.results["a/two"] = "not found"
	f.assets.errs["a/three"] = errors.New("connection reset")

	rec := f.serve(http.MethodGet, "/api/v1/reap", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report ReapReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.TotalRowsProcessed != 4 || report.DeletedCount != 2 {
		t.Fatalf("unexpected totals %+v", report)
	}
	want := []string{ReapDeleted, ReapDeleted, ReapError, ReapSkipped}
	for i, status := range want {
		if report.Results[i].Status != status {
			t.Fatalf("result %d: expected %s, got %+v", i, status, report.Results[i])
		}
	}
	if len(f.assets.calls) != 3 {
		t.Fatalf("expected three delete calls, got %v", f.assets.calls)
	}
	for _, c := range f.store.Calls() {
		if strings.HasPrefix(c, "update") {
			t.Fatalf("reap must not write to the sheet, saw %s", c)
		}
	}
}

func TestReapUnexpectedResult(t *testing.T) {
	f := newFixture(queueRow("https://host/upload/clip.mp4", "t", "c", "2024-01-01T00:00:00.000Z", "1", ""))
	f.assets.results["clip"] = "error"

	report, err := f.service.Reap(context.Background(), "")
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if report.DeletedCount != 0 || report.Results[0].Status != ReapError || report.Results[0].Result != "error" {
		t.Fatalf("unexpected report %+v", report)
	}
}
