package queue

import (
	"context"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CellUpdate is a single cell write addressed by 1-based row and column.
type CellUpdate struct {
	Row    int
	Column int
	Value  string
}

// Store is the spreadsheet the queue lives in.
type Store interface {
	// ReadRows returns every row of the sheet, header rows included.
	ReadRows(ctx context.Context, sheet string) ([][]string, error)
	ReadCell(ctx context.Context, sheet string, row, column int) (string, error)
	// UpdateCells writes all updates in one call. Cells not listed are untouched.
	UpdateCells(ctx context.Context, sheet string, updates []CellUpdate) error
	AppendRow(ctx context.Context, sheet string, values []string) error
}

// CellName converts coordinates to A1 notation, e.g. (3, 2) -> "C2".
func CellName(column, row int) string {
	name, err := excelize.CoordinatesToCellName(column, row)
	if err != nil {
		return ""
	}
	return name
}

// A1Range qualifies a cell or range with a quoted sheet name.
func A1Range(sheet, cells string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}
