// Package queuetest provides an in-memory queue store for tests.
package queuetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/reelqueue/platform/pkg/queue"
)

// MemoryStore implements queue.Store over a map of sheets. Every call is recorded in
// order so tests can assert on write sequencing.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string][][]string
	calls  []string

	// FailUpdates, when set, is returned by UpdateCells and AppendRow.
	FailUpdates error
	// OnUpdate runs after each successful UpdateCells call.
	OnUpdate func(sheet string, updates []queue.CellUpdate)
}

var _ queue.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string][][]string)}
}

// Seed replaces the sheet contents. rows[0] is sheet row 1.
func (m *MemoryStore) Seed(sheet string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	m.sheets[sheet] = copied
}

// Cell returns the value at 1-based coordinates.
func (m *MemoryStore) Cell(sheet string, row, column int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[sheet]
	if row-1 >= len(rows) || column-1 >= len(rows[row-1]) {
		return ""
	}
	return rows[row-1][column-1]
}

func (m *MemoryStore) Len(sheet string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sheets[sheet])
}

// Calls lists the operations performed so far, e.g. "update Sheet1 H2".
func (m *MemoryStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MemoryStore) ReadRows(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "read "+sheet)
	rows := m.sheets[sheet]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *MemoryStore) ReadCell(_ context.Context, sheet string, row, column int) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, fmt.Sprintf("read %s %s", sheet, queue.CellName(column, row)))
	m.mu.Unlock()
	return m.Cell(sheet, row, column), nil
}

func (m *MemoryStore) UpdateCells(_ context.Context, sheet string, updates []queue.CellUpdate) error {
	m.mu.Lock()
	if m.FailUpdates != nil {
		m.mu.Unlock()
		return m.FailUpdates
	}
	for _, u := range updates {
		m.set(sheet, u.Row, u.Column, u.Value)
		m.calls = append(m.calls, fmt.Sprintf("update %s %s", sheet, queue.CellName(u.Column, u.Row)))
	}
	hook := m.OnUpdate
	m.mu.Unlock()

	if hook != nil {
		hook(sheet, updates)
	}
	return nil
}

func (m *MemoryStore) AppendRow(_ context.Context, sheet string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdates != nil {
		return m.FailUpdates
	}
	m.sheets[sheet] = append(m.sheets[sheet], append([]string(nil), values...))
	m.calls = append(m.calls, fmt.Sprintf("append %s %d", sheet, len(m.sheets[sheet])))
	return nil
}

func (m *MemoryStore) set(sheet string, row, column int, value string) {
	rows := m.sheets[sheet]
	for len(rows) < row {
		rows = append(rows, nil)
	}
	for len(rows[row-1]) < column {
		rows[row-1] = append(rows[row-1], "")
	}
	rows[row-1][column-1] = value
	m.sheets[sheet] = rows
}
