package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// WorkbookStore keeps the queue in a local XLSX file. The file is created on first write.
type WorkbookStore struct {
	mu     sync.Mutex
	path   string
	schema *Schema
}

// NewWorkbookStore opens path lazily. With a schema, the first append to an
// empty sheet writes the header rows first so the appended row is a data row.
// A nil schema appends raw rows.
func NewWorkbookStore(path string, schema *Schema) *WorkbookStore {
	return &WorkbookStore{path: path, schema: schema}
}

func (s *WorkbookStore) Path() string {
	return s.path
}

func (s *WorkbookStore) ReadRows(_ context.Context, sheet string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read workbook rows: %w", err)
	}
	return rows, nil
}

func (s *WorkbookStore) ReadCell(_ context.Context, sheet string, row, column int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		return "", nil
	}
	return f.GetCellValue(sheet, CellName(column, row))
}

func (s *WorkbookStore) UpdateCells(_ context.Context, sheet string, updates []CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(sheet, func(f *excelize.File) error {
		for _, u := range updates {
			if err := f.SetCellStr(sheet, CellName(u.Column, u.Row), u.Value); err != nil {
				return fmt.Errorf("set %s: %w", CellName(u.Column, u.Row), err)
			}
		}
		return nil
	})
}

func (s *WorkbookStore) AppendRow(_ context.Context, sheet string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(sheet, func(f *excelize.File) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read workbook rows: %w", err)
		}
		next := len(rows) + 1
		if s.schema != nil && s.schema.HeaderRows > 0 {
			if len(rows) == 0 {
				if err := writeRow(f, sheet, 1, s.headerCells()); err != nil {
					return err
				}
			}
			// Blank header rows are trimmed by GetRows.
			if next <= s.schema.HeaderRows {
				next = s.schema.HeaderRows + 1
			}
		}
		return writeRow(f, sheet, next, values)
	})
}

func (s *WorkbookStore) headerCells() []string {
	names := make(map[Field]string, len(s.schema.Fields()))
	for _, f := range s.schema.Fields() {
		names[f] = string(f)
	}
	return s.schema.Encode(names)
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	for i, v := range values {
		if err := f.SetCellStr(sheet, CellName(i+1, row), v); err != nil {
			return fmt.Errorf("set %s: %w", CellName(i+1, row), err)
		}
	}
	return nil
}

func (s *WorkbookStore) mutate(sheet string, fn func(f *excelize.File) error) error {
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}
	if err := fn(f); err != nil {
		return err
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (s *WorkbookStore) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	return f, nil
}
