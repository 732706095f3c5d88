package queue_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/reelqueue/platform/pkg/queue"
)

func TestWorkbookStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := queue.NewWorkbookStore(filepath.Join(t.TempDir(), "queue.xlsx"), nil)

	rows, err := store.ReadRows(ctx, "Reels")
	if err != nil {
		t.Fatalf("read missing sheet: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty sheet, got %d rows", len(rows))
	}

	if err := store.AppendRow(ctx, "Reels", []string{"media", "title"}); err != nil {
		t.Fatalf("append header: %v", err)
	}
	if err := store.AppendRow(ctx, "Reels", []string{"https://cdn/a.mp4", "A"}); err != nil {
		t.Fatalf("append row: %v", err)
	}
	if err := store.UpdateCells(ctx, "Reels", []queue.CellUpdate{{Row: 2, Column: 3, Value: "caption"}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	rows, err = store.ReadRows(ctx, "Reels")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "https://cdn/a.mp4" || rows[1][2] != "caption" {
		t.Fatalf("unexpected row: %#v", rows[1])
	}

	cell, err := store.ReadCell(ctx, "Reels", 2, 2)
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if cell != "A" {
		t.Fatalf("expected A, got %q", cell)
	}
}

func TestWorkbookStoreWithUpdater(t *testing.T) {
	ctx := context.Background()
	store := queue.NewWorkbookStore(filepath.Join(t.TempDir(), "queue.xlsx"), nil)
	schema := queue.MustSchema("canonical")

	if err := store.AppendRow(ctx, schema.Sheet, header); err != nil {
		t.Fatalf("append header: %v", err)
	}
	if err := store.AppendRow(ctx, schema.Sheet, canonicalRow("https://cdn/a.mp4", "", "", "E1")); err != nil {
		t.Fatalf("append row: %v", err)
	}

	u := queue.NewUpdater(store, schema)
	if err := u.AppendError(ctx, "", 2, "E2"); err != nil {
		t.Fatalf("append error: %v", err)
	}
	got, err := store.ReadCell(ctx, schema.Sheet, 2, 11)
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if got != "E1\nE2" {
		t.Fatalf("expected appended error, got %q", got)
	}
}

func TestWorkbookStoreWritesHeaderOnFirstAppend(t *testing.T) {
	ctx := context.Background()
	schema := queue.MustSchema("canonical")
	store := queue.NewWorkbookStore(filepath.Join(t.TempDir(), "queue.xlsx"), schema)

	values := schema.Encode(map[queue.Field]string{
		queue.FieldSourceURL: "https://www.youtube.com/shorts/abcdefghijk",
		queue.FieldTitle:     "First clip",
	})
	if err := store.AppendRow(ctx, schema.Sheet, values); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := store.ReadRows(ctx, schema.Sheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(raw) != 2 || raw[0][1] != string(queue.FieldSourceURL) {
		t.Fatalf("expected header plus one row, got %#v", raw)
	}

	rows, err := queue.NewSelector(store, schema, nil, 0).Rows(ctx, "")
	if err != nil {
		t.Fatalf("selector rows: %v", err)
	}
	if len(rows) != 1 || rows[0].Index != 2 || rows[0].Get(queue.FieldTitle) != "First clip" {
		t.Fatalf("appended row not visible as data: %+v", rows)
	}

	if err := store.AppendRow(ctx, schema.Sheet, values); err != nil {
		t.Fatalf("second append: %v", err)
	}
	raw, _ = store.ReadRows(ctx, schema.Sheet)
	if len(raw) != 3 {
		t.Fatalf("header must be written once, got %d rows", len(raw))
	}
}
