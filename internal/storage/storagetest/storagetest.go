// Package storagetest holds behavioural tests every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/query"
	"fintrack/internal/storage"
)

// Owners are valid hex object ids so document stores accept them too.
const (
	OwnerA = "64b000000000000000000001"
	OwnerB = "64b000000000000000000002"
)

// MissingID is well-formed for every backend but never assigned.
const MissingID = "000000000000000000000000"

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("InsertGet", func(t *testing.T) { testInsertGet(t, newStore(t)) })
	t.Run("Ownership", func(t *testing.T) { testOwnership(t, newStore(t)) })
	t.Run("FindFilterSort", func(t *testing.T) { testFindFilterSort(t, newStore(t)) })
	t.Run("PagesPartitionResult", func(t *testing.T) { testPagination(t, newStore(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Aggregates", func(t *testing.T) { testAggregates(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

var base = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func mk(owner, title string, amount string, typ core.Type, cat core.Category, date time.Time) core.Transaction {
	return core.Transaction{
		Owner:     owner,
		Title:     title,
		Amount:    decimal.RequireFromString(amount),
		Type:      typ,
		Category:  cat,
		Date:      date,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func insert(t *testing.T, s storage.Store, tx core.Transaction) core.Transaction {
	t.Helper()
	got, err := s.InsertTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	if got.ID == "" {
		t.Fatal("InsertTransaction returned empty id")
	}
	return got
}

func allSpec() query.Spec {
	return query.Spec{Sort: query.Sort{Field: query.SortDate, Descending: true}, Page: 1, Limit: 100}
}

func testInsertGet(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := mk(OwnerA, "Groceries", "42.50", core.TypeExpense, core.CategoryFoodDining, base)
	in.Notes = "weekly"
	created := insert(t, s, in)

	got, err := s.GetTransaction(ctx, OwnerA, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Title != "Groceries" || got.Notes != "weekly" || !got.Amount.Equal(decimal.RequireFromString("42.5")) {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Type != core.TypeExpense || got.Category != core.CategoryFoodDining || !got.Date.Equal(base) {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := s.GetTransaction(ctx, OwnerA, MissingID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}
}

func testOwnership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	mine := insert(t, s, mk(OwnerA, "Mine", "10", core.TypeExpense, core.CategoryOther, base))
	insert(t, s, mk(OwnerB, "Theirs", "20", core.TypeExpense, core.CategoryOther, base))

	if _, err := s.GetTransaction(ctx, OwnerB, mine.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign get: got %v, want ErrNotFound", err)
	}

	rows, err := s.FindTransactions(ctx, OwnerA, allSpec())
	if err != nil {
		t.Fatalf("FindTransactions: %v", err)
	}
	if len(rows) != 1 || rows[0].Owner != OwnerA {
		t.Errorf("owner A sees %d rows: %+v", len(rows), rows)
	}

	n, err := s.CountTransactions(ctx, OwnerB, query.Filter{})
	if err != nil || n != 1 {
		t.Errorf("CountTransactions(B) = %d, %v", n, err)
	}

	totals, err := s.TotalsByType(ctx, OwnerA, time.Time{})
	if err != nil {
		t.Fatalf("TotalsByType: %v", err)
	}
	if got := core.NewTotals(totals); !got.Expense.Equal(decimal.NewFromInt(10)) {
		t.Errorf("owner A expense = %s, want 10", got.Expense)
	}
}

func testFindFilterSort(t *testing.T, s storage.Store) {
	ctx := context.Background()
	coffee := mk(OwnerA, "Morning Coffee", "4.50", core.TypeExpense, core.CategoryFoodDining, base)
	bus := mk(OwnerA, "Bus ticket", "2", core.TypeExpense, core.CategoryTransportation, base.AddDate(0, 0, 1))
	bus.Notes = "to the coffee roaster"
	salary := mk(OwnerA, "Salary", "2500", core.TypeIncome, core.CategoryIncome, base.AddDate(0, 0, 2))
	latte := mk(OwnerA, "Café latte", "3.20", core.TypeExpense, core.CategoryFoodDining, base.AddDate(0, 0, 3))
	for _, tx := range []core.Transaction{coffee, bus, salary, latte} {
		insert(t, s, tx)
	}

	min := decimal.NewFromInt(3)
	cases := []struct {
		name   string
		filter query.Filter
		sort   query.Sort
		want   []string
	}{
		{"date desc", query.Filter{}, query.Sort{Field: query.SortDate, Descending: true}, []string{"Café latte", "Salary", "Bus ticket", "Morning Coffee"}},
		{"amount asc", query.Filter{}, query.Sort{Field: query.SortAmount}, []string{"Bus ticket", "Café latte", "Morning Coffee", "Salary"}},
		{"search title and notes", query.Filter{Search: "COFFEE"}, query.Sort{Field: query.SortDate}, []string{"Morning Coffee", "Bus ticket"}},
		{"search category", query.Filter{Search: "dining"}, query.Sort{Field: query.SortDate}, []string{"Morning Coffee", "Café latte"}},
		{"search folds non-ascii case", query.Filter{Search: "CAFÉ"}, query.Sort{Field: query.SortDate}, []string{"Café latte"}},
		{"type", query.Filter{Type: core.TypeIncome}, query.Sort{Field: query.SortDate}, []string{"Salary"}},
		{"category", query.Filter{Category: core.CategoryTransportation}, query.Sort{Field: query.SortDate}, []string{"Bus ticket"}},
		{"min amount", query.Filter{MinAmount: &min}, query.Sort{Field: query.SortAmount}, []string{"Café latte", "Morning Coffee", "Salary"}},
		{"date range", query.Filter{From: base.AddDate(0, 0, 1), To: base.AddDate(0, 0, 1)}, query.Sort{Field: query.SortDate}, []string{"Bus ticket"}},
		{"search with like wildcard", query.Filter{Search: "%"}, query.Sort{Field: query.SortDate}, nil},
		{"unknown category", query.NewBuilder(time.UTC).Build(query.Params{Category: "Groceries"}).Filter, query.Sort{Field: query.SortDate}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			spec := query.Spec{Filter: c.filter, Sort: c.sort, Page: 1, Limit: 50}
			rows, err := s.FindTransactions(ctx, OwnerA, spec)
			if err != nil {
				t.Fatalf("FindTransactions: %v", err)
			}
			if len(rows) != len(c.want) {
				t.Fatalf("got %d rows (%v), want %v", len(rows), titles(rows), c.want)
			}
			for i := range rows {
				if rows[i].Title != c.want[i] {
					t.Errorf("row %d = %s, want %s", i, rows[i].Title, c.want[i])
				}
			}
			n, err := s.CountTransactions(ctx, OwnerA, c.filter)
			if err != nil || n != int64(len(c.want)) {
				t.Errorf("CountTransactions = %d, %v; want %d", n, err, len(c.want))
			}
		})
	}
}

func titles(rows []core.Transaction) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Title
	}
	return out
}

func testPagination(t *testing.T, s storage.Store) {
	ctx := context.Background()
	// Shared dates force the id tiebreaker to keep pages disjoint.
	for i := 0; i < 23; i++ {
		insert(t, s, mk(OwnerA, fmt.Sprintf("tx-%02d", i), "1", core.TypeExpense, core.CategoryOther, base.Add(time.Duration(i%4)*time.Hour)))
	}

	for _, limit := range []int{1, 5, 10, 23, 50} {
		seen := map[string]bool{}
		total := 0
		for page := 1; ; page++ {
			spec := query.Spec{Sort: query.Sort{Field: query.SortDate, Descending: true}, Page: page, Limit: limit}
			rows, err := s.FindTransactions(ctx, OwnerA, spec)
			if err != nil {
				t.Fatalf("FindTransactions: %v", err)
			}
			if len(rows) == 0 {
				break
			}
			for _, r := range rows {
				if seen[r.ID] {
					t.Fatalf("limit %d: id %s appears on more than one page", limit, r.ID)
				}
				seen[r.ID] = true
			}
			total += len(rows)
		}
		if total != 23 {
			t.Errorf("limit %d: pages cover %d records, want 23", limit, total)
		}
	}
}

func testReplace(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tx := insert(t, s, mk(OwnerA, "Dinner", "40", core.TypeExpense, core.CategoryFoodDining, base))

	tx.Amount = decimal.NewFromInt(45)
	tx.Notes = ""
	tx.UpdatedAt = base.Add(time.Hour)
	if err := s.ReplaceTransaction(ctx, tx); err != nil {
		t.Fatalf("ReplaceTransaction: %v", err)
	}
	got, err := s.GetTransaction(ctx, OwnerA, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(45)) || !got.UpdatedAt.Equal(base.Add(time.Hour)) || !got.CreatedAt.Equal(base) {
		t.Errorf("after replace: %+v", got)
	}

	foreign := tx
	foreign.Owner = OwnerB
	if err := s.ReplaceTransaction(ctx, foreign); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign replace: got %v, want ErrNotFound", err)
	}
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tx := insert(t, s, mk(OwnerA, "Gym", "30", core.TypeExpense, core.CategoryHealthcare, base))

	if _, err := s.DeleteTransaction(ctx, OwnerB, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign delete: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetTransaction(ctx, OwnerA, tx.ID); err != nil {
		t.Fatalf("record should survive a foreign delete: %v", err)
	}

	deleted, err := s.DeleteTransaction(ctx, OwnerA, tx.ID)
	if err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if deleted.ID != tx.ID || deleted.Title != "Gym" {
		t.Errorf("deleted record = %+v", deleted)
	}
	if _, err := s.DeleteTransaction(ctx, OwnerA, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func testAggregates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	march := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)
	insert(t, s, mk(OwnerA, "Salary", "1000", core.TypeIncome, core.CategoryIncome, march))
	insert(t, s, mk(OwnerA, "Food", "60", core.TypeExpense, core.CategoryFoodDining, march))
	insert(t, s, mk(OwnerA, "Bus", "40", core.TypeExpense, core.CategoryTransportation, march))
	insert(t, s, mk(OwnerA, "Snack", "15", core.TypeExpense, core.CategoryFoodDining, feb))
	insert(t, s, mk(OwnerB, "Other user", "999", core.TypeExpense, core.CategoryShopping, march))

	all, err := s.TotalsByType(ctx, OwnerA, time.Time{})
	if err != nil {
		t.Fatalf("TotalsByType: %v", err)
	}
	totals := core.NewTotals(all)
	if !totals.Income.Equal(decimal.NewFromInt(1000)) || !totals.Expense.Equal(decimal.NewFromInt(115)) || totals.ExpenseCount != 3 {
		t.Errorf("lifetime totals = %+v", totals)
	}

	since, err := s.TotalsByType(ctx, OwnerA, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("TotalsByType since: %v", err)
	}
	if m := core.NewTotals(since); !m.Expense.Equal(decimal.NewFromInt(100)) || m.ExpenseCount != 2 {
		t.Errorf("month totals = %+v", m)
	}

	cats, err := s.CategoryTotals(ctx, OwnerA, core.TypeExpense, 10)
	if err != nil {
		t.Fatalf("CategoryTotals: %v", err)
	}
	if len(cats) != 2 || cats[0].Category != core.CategoryFoodDining || !cats[0].Total.Equal(decimal.NewFromInt(75)) || cats[0].Count != 2 {
		t.Errorf("category totals = %+v", cats)
	}
	if limited, _ := s.CategoryTotals(ctx, OwnerA, core.TypeExpense, 1); len(limited) != 1 {
		t.Errorf("limit not applied: %+v", limited)
	}

	months, err := s.MonthlyTotals(ctx, OwnerA, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("MonthlyTotals: %v", err)
	}
	got := map[string]decimal.Decimal{}
	for _, m := range months {
		got[core.MonthKey(m.Year, m.Month)+"/"+m.Type.String()] = m.Total
	}
	want := map[string]int64{"2024-03/income": 1000, "2024-03/expense": 100, "2024-02/expense": 15}
	if len(got) != len(want) {
		t.Fatalf("monthly totals = %v", got)
	}
	for k, v := range want {
		if !got[k].Equal(decimal.NewFromInt(v)) {
			t.Errorf("%s = %s, want %d", k, got[k], v)
		}
	}
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u, err := s.CreateUser(ctx, core.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash", CreatedAt: base})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatal("CreateUser returned empty id")
	}

	if _, err := s.CreateUser(ctx, core.User{Name: "Ada 2", Email: "ada@example.com", PasswordHash: "x", CreatedAt: base}); !errors.Is(err, core.ErrEmailTaken) {
		t.Errorf("duplicate email: got %v, want ErrEmailTaken", err)
	}

	byEmail, err := s.UserByEmail(ctx, "ada@example.com")
	if err != nil || byEmail.ID != u.ID || byEmail.PasswordHash != "hash" {
		t.Errorf("UserByEmail = %+v, %v", byEmail, err)
	}
	byID, err := s.UserByID(ctx, u.ID)
	if err != nil || byID.Email != "ada@example.com" {
		t.Errorf("UserByID = %+v, %v", byID, err)
	}
	if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}
