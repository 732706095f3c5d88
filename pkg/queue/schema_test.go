package queue_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reelqueue/platform/pkg/queue"
)

func TestLoadBuiltinSchemas(t *testing.T) {
	canonical, err := queue.LoadSchema("canonical")
	if err != nil {
		t.Fatalf("load canonical: %v", err)
	}
	if canonical.Width() != 11 {
		t.Fatalf("expected 11 columns, got %d", canonical.Width())
	}
	if canonical.ErrorMode != queue.ErrorAppend {
		t.Fatalf("expected append error mode, got %s", canonical.ErrorMode)
	}
	if col, _ := canonical.Column(queue.FieldError); col != 11 {
		t.Fatalf("expected error in column K, got %d", col)
	}

	simple, err := queue.LoadSchema("simple")
	if err != nil {
		t.Fatalf("load simple: %v", err)
	}
	if simple.Width() != 6 {
		t.Fatalf("expected 6 columns, got %d", simple.Width())
	}
	if simple.ErrorMode != queue.ErrorOverwrite {
		t.Fatalf("expected overwrite error mode, got %s", simple.ErrorMode)
	}
	if simple.Has(queue.FieldDescription) {
		t.Fatal("simple schema should not map description")
	}
}

func TestLoadSchemaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	doc := `name: custom
sheet: Reels
header_rows: 2
columns:
  media_url: B
  title: C
  caption: D
  creation_id: E
  published_at: F
  error: G
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	s, err := queue.LoadSchema(path)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	if s.Sheet != "Reels" || s.FirstDataRow() != 3 {
		t.Fatalf("unexpected sheet layout: %s row %d", s.Sheet, s.FirstDataRow())
	}
	if s.ErrorMode != queue.ErrorAppend {
		t.Fatalf("expected default append mode, got %s", s.ErrorMode)
	}
}

func TestParseSchemaRejectsMissingColumn(t *testing.T) {
	_, err := queue.ParseSchema([]byte(`name: broken
columns:
  media_url: A
  title: B
`))
	if err == nil {
		t.Fatal("expected validation error for missing required columns")
	}
	if !strings.Contains(err.Error(), "invalid schema descriptor") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseSchemaRejectsDuplicateColumn(t *testing.T) {
	_, err := queue.ParseSchema([]byte(`name: dup
columns:
  media_url: A
  title: A
  caption: C
  creation_id: D
  published_at: E
  error: F
`))
	if err == nil {
		t.Fatal("expected duplicate column error")
	}
}

func TestLoadSchemaUnknownName(t *testing.T) {
	_, err := queue.LoadSchema("fancy")
	if !errors.Is(err, queue.ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	s := queue.MustSchema("canonical")
	cells := s.Encode(map[queue.Field]string{
		queue.FieldTitle:    "Clip",
		queue.FieldMediaURL: "https://cdn/clip.mp4",
	})
	if len(cells) != 11 || cells[3] != "Clip" || cells[2] != "https://cdn/clip.mp4" {
		t.Fatalf("unexpected encoding: %#v", cells)
	}
	row := s.Decode(7, cells[:4])
	if row.Index != 7 || row.Get(queue.FieldTitle) != "Clip" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Get(queue.FieldError) != "" {
		t.Fatal("missing trailing cells should decode as empty")
	}
}
