package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{" 100 ", "100", true},
		{"-5", "-5", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if c.ok {
			if err != nil {
				t.Errorf("ParseAmount(%q) unexpected error %v", c.in, err)
				continue
			}
			if !got.Equal(decimal.RequireFromString(c.out)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", c.in, got, c.out)
			}
		} else if err == nil {
			t.Errorf("ParseAmount(%q) expected error", c.in)
		}
	}
}

func TestCents(t *testing.T) {
	d := decimal.RequireFromString("12.345")
	if got := ToCents(d); got != 1235 {
		t.Errorf("ToCents(12.345) = %d, want 1235", got)
	}
	if got := FromCents(1234); got.String() != "12.34" {
		t.Errorf("FromCents(1234) = %s", got)
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		part, whole string
		want        float64
	}{
		{"60", "100", 60},
		{"1", "3", 33.3},
		{"2", "3", 66.7},
		{"5", "0", 0},
	}
	for _, c := range cases {
		got := Percent(decimal.RequireFromString(c.part), decimal.RequireFromString(c.whole))
		if got != c.want {
			t.Errorf("Percent(%s, %s) = %v, want %v", c.part, c.whole, got, c.want)
		}
	}
}

func TestNewTotals(t *testing.T) {
	got := NewTotals([]TypeTotal{
		{Type: TypeIncome, Total: decimal.NewFromInt(1000), Count: 1},
		{Type: TypeExpense, Total: decimal.NewFromInt(100), Count: 2},
	})
	if !got.Balance.Equal(decimal.NewFromInt(900)) || got.ExpenseCount != 2 || got.IncomeCount != 1 {
		t.Errorf("NewTotals = %+v", got)
	}

	empty := NewTotals(nil)
	if !empty.Income.IsZero() || !empty.Expense.IsZero() || !empty.Balance.IsZero() {
		t.Errorf("empty totals should be zero: %+v", empty)
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(2024, 3); got != "2024-03" {
		t.Errorf("MonthKey = %s", got)
	}
}
