// Package memory is an in-process sheets.Mirror used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows [][]string
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Upsert(ctx context.Context, t core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.find(t.ID); i >= 0 {
		if sheets.IsStale(m.rows[i], t) {
			return nil
		}
		m.rows[i] = sheets.Row(t)
		return nil
	}
	m.rows = append(m.rows, sheets.Row(t))
	return nil
}

func (m *Mirror) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.find(id); i >= 0 {
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
	}
	return nil
}

// Rows returns a copy of the mirrored rows in sheet order.
func (m *Mirror) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (m *Mirror) find(id string) int {
	for i, r := range m.rows {
		if sheets.RowID(r) == id {
			return i
		}
	}
	return -1
}
