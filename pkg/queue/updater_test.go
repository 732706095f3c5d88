package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/reelqueue/platform/pkg/queue"
	"github.com/reelqueue/platform/pkg/queue/queuetest"
)

func TestAppendErrorCanonical(t *testing.T) {
	store := queuetest.NewMemoryStore()
	store.Seed("Sheet1", [][]string{header, canonicalRow("m", "", "", "E1")})
	u := queue.NewUpdater(store, queue.MustSchema("canonical"))

	if err := u.AppendError(context.Background(), "", 2, "E2"); err != nil {
		t.Fatalf("append error: %v", err)
	}
	if got := store.Cell("Sheet1", 2, 11); got != "E1\nE2" {
		t.Fatalf("expected %q, got %q", "E1\nE2", got)
	}
}

func TestAppendErrorIntoEmptyCell(t *testing.T) {
	store := queuetest.NewMemoryStore()
	store.Seed("Sheet1", [][]string{header, canonicalRow("m", "", "", "")})
	u := queue.NewUpdater(store, queue.MustSchema("canonical"))

	if err := u.AppendError(context.Background(), "", 2, "E2"); err != nil {
		t.Fatalf("append error: %v", err)
	}
	if got := store.Cell("Sheet1", 2, 11); got != "E2" {
		t.Fatalf("expected E2, got %q", got)
	}
}

func TestAppendErrorSimpleOverwrites(t *testing.T) {
	store := queuetest.NewMemoryStore()
	store.Seed("Sheet1", [][]string{
		{"media", "title", "caption", "creation", "published", "error"},
		{"m", "t", "c", "", "", "E1"},
	})
	u := queue.NewUpdater(store, queue.MustSchema("simple"))

	if err := u.AppendError(context.Background(), "", 2, "E2"); err != nil {
		t.Fatalf("append error: %v", err)
	}
	if got := store.Cell("Sheet1", 2, 6); got != "E2" {
		t.Fatalf("expected overwrite to E2, got %q", got)
	}
	for _, call := range store.Calls() {
		if call == "read Sheet1 F2" {
			t.Fatal("overwrite mode should not read the error cell")
		}
	}
}

func TestApplyWritesOnlyPatchedFields(t *testing.T) {
	store := queuetest.NewMemoryStore()
	original := []string{"ts", "src", "m", "title", "desc", "thumb", "tags", "", "", "", ""}
	store.Seed("Sheet1", [][]string{header, original})
	u := queue.NewUpdater(store, queue.MustSchema("canonical"))

	err := u.Apply(context.Background(), "Sheet1", 2, queue.Patch{
		queue.FieldCaption:    "hello",
		queue.FieldCreationID: "999",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if store.Cell("Sheet1", 2, 8) != "hello" || store.Cell("Sheet1", 2, 10) != "999" {
		t.Fatal("patched fields were not written")
	}
	for col, want := range original {
		if col == 7 || col == 9 {
			continue
		}
		if got := store.Cell("Sheet1", 2, col+1); got != want {
			t.Fatalf("column %d changed: %q -> %q", col+1, want, got)
		}
	}
	updates := 0
	for _, call := range store.Calls() {
		if len(call) > 6 && call[:6] == "update" {
			updates++
		}
	}
	if updates != 2 {
		t.Fatalf("expected 2 cell writes, got %d", updates)
	}
}

func TestApplyUnknownField(t *testing.T) {
	store := queuetest.NewMemoryStore()
	u := queue.NewUpdater(store, queue.MustSchema("simple"))
	err := u.Apply(context.Background(), "", 2, queue.Patch{queue.FieldThumbnail: "x"})
	if !errors.Is(err, queue.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestAppendMessage(t *testing.T) {
	if got := queue.AppendMessage("", "a"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if got := queue.AppendMessage("  ", "a"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if got := queue.AppendMessage("a", "b"); got != "a\nb" {
		t.Fatalf("got %q", got)
	}
}
