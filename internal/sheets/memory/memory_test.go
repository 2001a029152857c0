package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

func tx(id, amount string, updated time.Time) core.Transaction {
	return core.Transaction{
		ID:        id,
		Owner:     "u1",
		Title:     "Lunch",
		Amount:    decimal.RequireFromString(amount),
		Type:      core.TypeExpense,
		Category:  core.CategoryFoodDining,
		Date:      time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestMirrorKeepsOneRowPerID(t *testing.T) {
	ctx := context.Background()
	m := New()
	t0 := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	if err := m.Upsert(ctx, tx("a", "10", t0)); err != nil {
		t.Fatal(err)
	}
	if err := m.Upsert(ctx, tx("b", "5", t0)); err != nil {
		t.Fatal(err)
	}
	if err := m.Upsert(ctx, tx("a", "12.5", t0.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	rows := m.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	amount, err := sheets.RowAmount(rows[0])
	if err != nil || !amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("row a amount = %s, %v", amount, err)
	}
	if rows[0][5] != "12.50" {
		t.Errorf("amount cell = %q, want 12.50", rows[0][5])
	}
}

func TestMirrorIgnoresStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	m := New()
	t0 := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	m.Upsert(ctx, tx("a", "20", t0.Add(time.Hour)))
	m.Upsert(ctx, tx("a", "10", t0))

	if got := m.Rows()[0][5]; got != "20.00" {
		t.Fatalf("amount = %s, stale snapshot overwrote newer row", got)
	}
}

func TestMirrorRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.Upsert(ctx, tx("a", "1", time.Now()))

	for i := 0; i < 2; i++ {
		if err := m.Remove(ctx, "a"); err != nil {
			t.Fatalf("Remove #%d: %v", i+1, err)
		}
	}
	if len(m.Rows()) != 0 {
		t.Fatal("row not removed")
	}
}

func TestRowLayout(t *testing.T) {
	row := sheets.Row(tx("a", "3", time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)))
	if len(row) != len(sheets.Header) {
		t.Fatalf("row has %d cells, header %d", len(row), len(sheets.Header))
	}
	want := []string{"a", "2026-02-03", "Lunch", "expense", "Food & Dining", "3.00", "", "2026-02-03T10:00:00Z", "2026-02-03T10:00:00Z"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d (%s) = %q, want %q", i, sheets.Header[i], row[i], want[i])
		}
	}
}
