package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/reelqueue/platform/pkg/common/config"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/pipeline"
	"github.com/reelqueue/platform/pkg/queue"
)

func init() {
	logger.Silence()
}

func workbookConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		QueueBackend: BackendWorkbook,
		QueueSchema:  "simple",
		QueueSheet:   "Reels",
		WorkbookPath: filepath.Join(t.TempDir(), "queue.xlsx"),
		ClaimBackend: ClaimFile,
		ClaimLockDir: t.TempDir(),
	}
}

func TestNewQueueWorkbook(t *testing.T) {
	q, err := NewQueue(context.Background(), workbookConfig(t))
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if _, ok := q.Store.(*queue.WorkbookStore); !ok {
		t.Fatalf("expected workbook store, got %T", q.Store)
	}
	if q.Schema.Name != "simple" || q.Schema.Sheet != "Reels" {
		t.Fatalf("unexpected schema %s/%s", q.Schema.Name, q.Schema.Sheet)
	}
}

func TestNewQueueRejectsBadSettings(t *testing.T) {
	cfg := workbookConfig(t)
	cfg.QueueBackend = BackendSheets
	if _, err := NewQueue(context.Background(), cfg); !errors.Is(err, config.ErrMissing) {
		t.Fatalf("expected missing sheets config, got %v", err)
	}

	cfg = workbookConfig(t)
	cfg.ClaimBackend = "zookeeper"
	if _, err := NewQueue(context.Background(), cfg); err == nil {
		t.Fatal("expected unknown claim backend error")
	}

	cfg = workbookConfig(t)
	cfg.QueueSchema = "nonexistent"
	if _, err := NewQueue(context.Background(), cfg); !errors.Is(err, queue.ErrUnknownSchema) {
		t.Fatalf("expected unknown schema, got %v", err)
	}
}

func TestNewHistoryDisabled(t *testing.T) {
	rec, repo, err := NewHistory(&config.Config{})
	if err != nil || repo != nil {
		t.Fatalf("expected disabled history, got %v %v", repo, err)
	}
	if _, ok := rec.(history.Nop); !ok {
		t.Fatalf("expected Nop recorder, got %T", rec)
	}
}

func TestNewPipelineWithoutCredentials(t *testing.T) {
	cfg := workbookConfig(t)
	q, err := NewQueue(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	svc := NewPipeline(cfg, q, history.Nop{})

	var cfgErr *pipeline.ConfigError
	if _, err := svc.Stage(context.Background(), ""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if _, err := svc.Reap(context.Background(), ""); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
