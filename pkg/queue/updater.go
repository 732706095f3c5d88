package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownField = errors.New("field not mapped by queue schema")

// Patch is a sparse set of field writes. Fields absent from the patch are left alone.
type Patch map[Field]string

// Updater writes partial row updates through a Store.
type Updater struct {
	store  Store
	schema *Schema
}

func NewUpdater(store Store, schema *Schema) *Updater {
	return &Updater{store: store, schema: schema}
}

// Apply writes the patch to sheet row in a single store call. In append mode the
// error field is read first and the new message is joined after a newline.
func (u *Updater) Apply(ctx context.Context, sheet string, row int, patch Patch) error {
	if len(patch) == 0 {
		return nil
	}
	if sheet == "" {
		sheet = u.schema.Sheet
	}

	fields := make([]Field, 0, len(patch))
	for f := range patch {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	updates := make([]CellUpdate, 0, len(patch))
	for _, f := range fields {
		col, ok := u.schema.Column(f)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		value := patch[f]
		if f == FieldError && u.schema.ErrorMode == ErrorAppend {
			current, err := u.store.ReadCell(ctx, sheet, row, col)
			if err != nil {
				return fmt.Errorf("read error cell %s: %w", CellName(col, row), err)
			}
			value = AppendMessage(current, value)
		}
		updates = append(updates, CellUpdate{Row: row, Column: col, Value: value})
	}

	if err := u.store.UpdateCells(ctx, sheet, updates); err != nil {
		return fmt.Errorf("update row %d: %w", row, err)
	}
	return nil
}

// AppendError records msg on the row according to the schema's error mode.
func (u *Updater) AppendError(ctx context.Context, sheet string, row int, msg string) error {
	return u.Apply(ctx, sheet, row, Patch{FieldError: msg})
}

// AppendMessage joins msg onto existing with a newline, or returns msg when existing is blank.
func AppendMessage(existing, msg string) string {
	if strings.TrimSpace(existing) == "" {
		return msg
	}
	return existing + "\n" + msg
}
