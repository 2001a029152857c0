package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Raw aggregate rows returned by the stores.
type (
	TypeTotal struct {
		Type  Type
		Total decimal.Decimal
		Count int64
	}

	CategoryTotal struct {
		Category Category
		Total    decimal.Decimal
		Count    int64
	}

	MonthTypeTotal struct {
		Year  int
		Month time.Month
		Type  Type
		Total decimal.Decimal
	}
)

// Dashboard payload.
type (
	Totals struct {
		Income       decimal.Decimal `json:"income"`
		Expense      decimal.Decimal `json:"expense"`
		Balance      decimal.Decimal `json:"balance"`
		IncomeCount  int64           `json:"incomeCount"`
		ExpenseCount int64           `json:"expenseCount"`
	}

	CategoryShare struct {
		Category   Category        `json:"category"`
		Total      decimal.Decimal `json:"total"`
		Count      int64           `json:"count"`
		Percentage float64         `json:"percentage"`
	}

	MonthTrend struct {
		Month   string          `json:"month"` // YYYY-MM
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
	}

	Summary struct {
		Totals             Totals          `json:"totals"`
		CurrentMonth       Totals          `json:"currentMonth"`
		CategoryBreakdown  []CategoryShare `json:"categoryBreakdown"`
		RecentTransactions []Transaction   `json:"recentTransactions"`
		MonthlyTrend       []MonthTrend    `json:"monthlyTrend"`
	}
)

// NewTotals folds per-type rows into Totals. Missing types count as zero.
func NewTotals(rows []TypeTotal) Totals {
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, r := range rows {
		switch r.Type {
		case TypeIncome:
			t.Income = t.Income.Add(r.Total)
			t.IncomeCount += r.Count
		case TypeExpense:
			t.Expense = t.Expense.Add(r.Total)
			t.ExpenseCount += r.Count
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// MonthKey formats a year and month as YYYY-MM.
func MonthKey(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
