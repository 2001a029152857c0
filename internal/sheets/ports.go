// Package sheets mirrors transactions into a spreadsheet, one row per
// transaction keyed by id.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Mirror is the outbound port the worker writes through. Both methods are
// idempotent so redelivered events are harmless.
type Mirror interface {
	// Upsert writes t, replacing the existing row for t.ID. A snapshot
	// older than the stored row is ignored.
	Upsert(ctx context.Context, t core.Transaction) error
	// Remove deletes the row for id; a missing row is not an error.
	Remove(ctx context.Context, id string) error
}

// Columns of a mirrored row, A through I.
var Header = []string{"ID", "Date", "Title", "Type", "Category", "Amount", "Notes", "Created At", "Updated At"}

const (
	colID        = 0
	colUpdatedAt = 8
)

// Row renders t as spreadsheet cells in Header order. Dates are written in
// UTC so rows sort the same regardless of the worker's zone.
func Row(t core.Transaction) []string {
	return []string{
		t.ID,
		t.Date.UTC().Format("2006-01-02"),
		t.Title,
		t.Type.String(),
		t.Category.String(),
		t.Amount.StringFixed(2),
		t.Notes,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// RowID returns the id cell of a row, or "" for short rows.
func RowID(row []string) string {
	if len(row) <= colID {
		return ""
	}
	return row[colID]
}

// IsStale reports whether t is older than what the row already holds.
// Rows with an unreadable timestamp are never considered newer.
func IsStale(row []string, t core.Transaction) bool {
	if len(row) <= colUpdatedAt {
		return false
	}
	stored, err := time.Parse(time.RFC3339, row[colUpdatedAt])
	if err != nil {
		return false
	}
	return t.UpdatedAt.UTC().Truncate(time.Second).Before(stored)
}

// RowAmount parses the amount cell back into a decimal.
func RowAmount(row []string) (decimal.Decimal, error) {
	if len(row) <= 5 {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return core.ParseAmount(row[5])
}
