package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/query"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

const (
	alice = "alice"
	bob   = "bob"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var kinds []amqp.EventKind
	for _, ev := range p.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// failingStore fails every aggregate read while delegating the rest.
type failingStore struct {
	storage.TransactionStore
	err error
}

func (f failingStore) MonthlyTotals(context.Context, string, time.Time, *time.Location) ([]core.MonthTypeTotal, error) {
	return nil, f.err
}

func (f failingStore) CountTransactions(context.Context, string, query.Filter) (int64, error) {
	return 0, f.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTx(title, amount string, typ core.Type, cat core.Category, date time.Time) core.NewTransaction {
	return core.NewTransaction{Title: title, Amount: dec(amount), Type: typ, Category: cat, Date: date}
}

func mustCreate(t *testing.T, svc *TransactionService, owner string, in core.NewTransaction) core.Transaction {
	t.Helper()
	tx, err := svc.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Create(%q): %v", in.Title, err)
	}
	return tx
}

func TestTransactionServiceCreate(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewTransactionService(memory.New(), WithClock(func() time.Time { return testNow }), WithPublisher(pub))

	tx := mustCreate(t, svc, alice, core.NewTransaction{
		Title:    "  Coffee ",
		Amount:   dec("3.456"),
		Category: core.CategoryFoodDining,
	})

	if tx.ID == "" || tx.Owner != alice {
		t.Fatalf("id=%q owner=%q", tx.ID, tx.Owner)
	}
	if tx.Type != core.TypeExpense {
		t.Errorf("type = %s, want expense", tx.Type)
	}
	if !tx.Date.Equal(testNow) || !tx.CreatedAt.Equal(testNow) || !tx.UpdatedAt.Equal(testNow) {
		t.Errorf("timestamps not stamped with now: %+v", tx)
	}
	if tx.Title != "Coffee" || !tx.Amount.Equal(dec("3.46")) {
		t.Errorf("title=%q amount=%s", tx.Title, tx.Amount)
	}
	if got := pub.kinds(); len(got) != 1 || got[0] != amqp.EventCreated {
		t.Errorf("events = %v", got)
	}
}

func TestTransactionServiceCreateRejectsInvalidInput(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewTransactionService(store, WithPublisher(pub))

	tests := []struct {
		name string
		in   core.NewTransaction
	}{
		{"zero amount", newTx("Rent", "0", core.TypeExpense, core.CategoryUtilities, testNow)},
		{"negative amount", newTx("Rent", "-5", core.TypeExpense, core.CategoryUtilities, testNow)},
		{"blank title", newTx("  ", "5", core.TypeExpense, core.CategoryUtilities, testNow)},
		{"no category", core.NewTransaction{Title: "Rent", Amount: dec("5")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), alice, tt.in)
			if !core.IsValidation(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}

	n, err := store.CountTransactions(context.Background(), alice, query.Filter{})
	if err != nil || n != 0 {
		t.Fatalf("count = %d, %v; nothing should be stored", n, err)
	}
	if len(pub.kinds()) != 0 {
		t.Fatal("rejected input must not publish events")
	}
}

func TestTransactionServiceListPaginates(t *testing.T) {
	svc := NewTransactionService(memory.New())
	for i := 0; i < 20; i++ {
		mustCreate(t, svc, alice, newTx("Item", "1", core.TypeExpense, core.CategoryShopping, testNow.AddDate(0, 0, -i)))
	}
	mustCreate(t, svc, bob, newTx("Other", "1", core.TypeExpense, core.CategoryShopping, testNow))

	spec := query.NewBuilder(time.UTC).Build(query.Params{Page: "2"})
	res, err := svc.List(context.Background(), alice, spec)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(res.Records) != 5 {
		t.Fatalf("records = %d, want 5", len(res.Records))
	}
	want := query.Pagination{CurrentPage: 2, TotalPages: 2, TotalCount: 20, Limit: 15, HasNextPage: false, HasPrevPage: true}
	if res.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", res.Pagination, want)
	}
	for _, r := range res.Records {
		if r.Owner != alice {
			t.Fatalf("leaked record of %s", r.Owner)
		}
	}
}

func TestTransactionServiceListEmpty(t *testing.T) {
	svc := NewTransactionService(memory.New())

	res, err := svc.List(context.Background(), alice, query.NewBuilder(nil).Build(query.Params{}))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Errorf("records = %#v, want empty slice", res.Records)
	}
	if res.Pagination.TotalPages != 0 || res.Pagination.HasNextPage {
		t.Errorf("pagination = %+v", res.Pagination)
	}
}

func TestTransactionServiceListFailsWhenCountFails(t *testing.T) {
	boom := errors.New("boom")
	svc := NewTransactionService(failingStore{TransactionStore: memory.New(), err: boom})

	_, err := svc.List(context.Background(), alice, query.NewBuilder(nil).Build(query.Params{}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestTransactionServiceUpdate(t *testing.T) {
	clock := testNow
	pub := &recordingPublisher{}
	svc := NewTransactionService(memory.New(), WithClock(func() time.Time { return clock }), WithPublisher(pub))

	in := newTx("Dinner", "20", core.TypeExpense, core.CategoryFoodDining, testNow)
	in.Notes = "x"
	tx := mustCreate(t, svc, alice, in)

	clock = testNow.Add(time.Hour)
	title := "Late dinner"
	updated, err := svc.Update(context.Background(), alice, tx.ID, core.Patch{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != title || updated.Notes != "x" || !updated.Amount.Equal(dec("20")) {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(clock) || !updated.CreatedAt.Equal(testNow) {
		t.Errorf("createdAt=%v updatedAt=%v", updated.CreatedAt, updated.UpdatedAt)
	}

	empty := ""
	cleared, err := svc.Update(context.Background(), alice, tx.ID, core.Patch{Notes: &empty})
	if err != nil {
		t.Fatalf("Update notes: %v", err)
	}
	if cleared.Notes != "" {
		t.Errorf("notes = %q, want cleared", cleared.Notes)
	}

	got, err := svc.Get(context.Background(), alice, tx.ID)
	if err != nil || got.Notes != "" || got.Title != title {
		t.Fatalf("Get after update = %+v, %v", got, err)
	}

	if kinds := pub.kinds(); len(kinds) != 3 || kinds[1] != amqp.EventUpdated {
		t.Errorf("events = %v", kinds)
	}
}

func TestTransactionServiceUpdateValidatesBeforeLookup(t *testing.T) {
	svc := NewTransactionService(memory.New())
	bad := dec("0")

	_, err := svc.Update(context.Background(), alice, "does-not-exist", core.Patch{Amount: &bad})
	if !core.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestTransactionServiceOwnershipIsolation(t *testing.T) {
	svc := NewTransactionService(memory.New())
	tx := mustCreate(t, svc, bob, newTx("Salary", "1000", core.TypeIncome, core.CategoryIncome, testNow))
	title := "mine now"

	if _, err := svc.Get(context.Background(), alice, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if _, err := svc.Update(context.Background(), alice, tx.ID, core.Patch{Title: &title}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Update: %v", err)
	}
	if err := svc.Delete(context.Background(), alice, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Delete: %v", err)
	}

	got, err := svc.Get(context.Background(), bob, tx.ID)
	if err != nil || got.Title != "Salary" {
		t.Fatalf("bob's record changed: %+v, %v", got, err)
	}
}

func TestTransactionServiceDelete(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewTransactionService(memory.New(), WithPublisher(pub))
	tx := mustCreate(t, svc, alice, newTx("Taxi", "12", core.TypeExpense, core.CategoryTransportation, testNow))

	if err := svc.Delete(context.Background(), alice, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(context.Background(), alice, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second Delete: %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), alice, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}

	kinds := pub.kinds()
	if len(kinds) != 2 || kinds[1] != amqp.EventDeleted {
		t.Fatalf("events = %v", kinds)
	}
	if ev := pub.events[1]; ev.TransactionID != tx.ID || ev.Owner != alice {
		t.Errorf("delete event = %+v", ev)
	}
}

func TestTransactionServicePublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc := NewTransactionService(memory.New(), WithPublisher(pub))

	tx := mustCreate(t, svc, alice, newTx("Book", "9.99", core.TypeExpense, core.CategoryEducation, testNow))
	if _, err := svc.Get(context.Background(), alice, tx.ID); err != nil {
		t.Fatalf("record should be stored: %v", err)
	}
}

func TestTransactionServiceCategories(t *testing.T) {
	cats := NewTransactionService(memory.New()).Categories()
	if len(cats) != 13 {
		t.Fatalf("categories = %d, want 13", len(cats))
	}
	if cats[0] != core.CategoryFoodDining || cats[len(cats)-1] != core.CategoryOther {
		t.Errorf("unexpected order: %v", cats)
	}
}

func seedDashboard(t *testing.T, svc *TransactionService) {
	t.Helper()
	for _, in := range []core.NewTransaction{
		newTx("Groceries", "60", core.TypeExpense, core.CategoryFoodDining, testNow.AddDate(0, 0, -1)),
		newTx("Bus pass", "40", core.TypeExpense, core.CategoryTransportation, time.Date(2025, time.November, 20, 0, 0, 0, 0, time.UTC)),
		newTx("Salary", "100", core.TypeIncome, core.CategoryIncome, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)),
		newTx("Old bonus", "50", core.TypeIncome, core.CategoryIncome, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)),
	} {
		mustCreate(t, svc, alice, in)
	}
	mustCreate(t, svc, bob, newTx("Bob's rent", "900", core.TypeExpense, core.CategoryUtilities, testNow))
}

func TestDashboardSummarize(t *testing.T) {
	store := memory.New()
	seedDashboard(t, NewTransactionService(store))
	dash := NewDashboardService(store)

	s, err := dash.Summarize(context.Background(), alice, testNow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if !s.Totals.Income.Equal(dec("150")) || !s.Totals.Expense.Equal(dec("100")) || !s.Totals.Balance.Equal(dec("50")) {
		t.Errorf("totals = %+v", s.Totals)
	}
	if s.Totals.IncomeCount != 2 || s.Totals.ExpenseCount != 2 {
		t.Errorf("counts = %d/%d", s.Totals.IncomeCount, s.Totals.ExpenseCount)
	}
	if !s.CurrentMonth.Income.Equal(dec("100")) || !s.CurrentMonth.Expense.Equal(dec("60")) || !s.CurrentMonth.Balance.Equal(dec("40")) {
		t.Errorf("current month = %+v", s.CurrentMonth)
	}

	if len(s.CategoryBreakdown) != 2 {
		t.Fatalf("breakdown = %+v", s.CategoryBreakdown)
	}
	first, second := s.CategoryBreakdown[0], s.CategoryBreakdown[1]
	if first.Category != core.CategoryFoodDining || first.Percentage != 60.0 {
		t.Errorf("first share = %+v", first)
	}
	if second.Category != core.CategoryTransportation || second.Percentage != 40.0 {
		t.Errorf("second share = %+v", second)
	}

	if len(s.RecentTransactions) != 4 || s.RecentTransactions[0].Title != "Groceries" {
		t.Errorf("recent = %+v", s.RecentTransactions)
	}

	wantMonths := []string{"2025-10", "2025-11", "2025-12", "2026-01", "2026-02", "2026-03"}
	if len(s.MonthlyTrend) != len(wantMonths) {
		t.Fatalf("trend = %+v", s.MonthlyTrend)
	}
	for i, m := range wantMonths {
		if s.MonthlyTrend[i].Month != m {
			t.Errorf("trend[%d].Month = %s, want %s", i, s.MonthlyTrend[i].Month, m)
		}
	}
	if !s.MonthlyTrend[1].Expense.Equal(dec("40")) || !s.MonthlyTrend[1].Income.IsZero() {
		t.Errorf("november = %+v", s.MonthlyTrend[1])
	}
	if !s.MonthlyTrend[5].Income.Equal(dec("100")) || !s.MonthlyTrend[5].Expense.Equal(dec("60")) {
		t.Errorf("march = %+v", s.MonthlyTrend[5])
	}
	if !s.MonthlyTrend[2].Income.IsZero() || !s.MonthlyTrend[2].Expense.IsZero() {
		t.Errorf("december should be zero-filled: %+v", s.MonthlyTrend[2])
	}
}

func TestDashboardSummarizeEmpty(t *testing.T) {
	s, err := NewDashboardService(memory.New()).Summarize(context.Background(), alice, testNow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !s.Totals.Balance.IsZero() || s.Totals.IncomeCount != 0 {
		t.Errorf("totals = %+v", s.Totals)
	}
	if len(s.CategoryBreakdown) != 0 || s.RecentTransactions == nil {
		t.Errorf("breakdown=%v recent=%#v", s.CategoryBreakdown, s.RecentTransactions)
	}
	if len(s.MonthlyTrend) != 6 {
		t.Errorf("trend rows = %d, want 6", len(s.MonthlyTrend))
	}
}

func TestDashboardPercentagesRound(t *testing.T) {
	store := memory.New()
	svc := NewTransactionService(store)
	mustCreate(t, svc, alice, newTx("a", "1", core.TypeExpense, core.CategoryHealthcare, testNow))
	mustCreate(t, svc, alice, newTx("b", "2", core.TypeExpense, core.CategoryTravel, testNow))

	s, err := NewDashboardService(store).Summarize(context.Background(), alice, testNow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.CategoryBreakdown[0].Percentage != 66.7 || s.CategoryBreakdown[1].Percentage != 33.3 {
		t.Errorf("breakdown = %+v", s.CategoryBreakdown)
	}
}

func TestDashboardUsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	store := memory.New()
	svc := NewTransactionService(store)
	// 23:30 UTC on Feb 28 is already March 1st in loc.
	mustCreate(t, svc, alice, newTx("Late", "10", core.TypeExpense, core.CategoryOther, time.Date(2026, time.February, 28, 23, 30, 0, 0, time.UTC)))

	s, err := NewDashboardService(store).Summarize(context.Background(), alice, testNow.In(loc))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !s.CurrentMonth.Expense.Equal(dec("10")) {
		t.Errorf("current month expense = %s, want 10", s.CurrentMonth.Expense)
	}
	if !s.MonthlyTrend[5].Expense.Equal(dec("10")) {
		t.Errorf("march trend = %+v", s.MonthlyTrend[5])
	}
}

func TestDashboardFailsWhenAnyReadFails(t *testing.T) {
	boom := errors.New("boom")
	store := failingStore{TransactionStore: memory.New(), err: boom}

	_, err := NewDashboardService(store).Summarize(context.Background(), alice, testNow)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestDashboardCacheInvalidatedByMutations(t *testing.T) {
	store := memory.New()
	summaries := cache.NewLRUCache[core.Summary](16, time.Hour)
	shared := NewSummaryCache(summaries)
	svc := NewTransactionService(store, WithSummaryCache(shared))
	dash := NewDashboardService(store, WithSummaryCache(shared))

	mustCreate(t, svc, alice, newTx("One", "10", core.TypeExpense, core.CategoryOther, testNow))
	if _, err := dash.Summarize(context.Background(), alice, testNow); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summaries.Size() != 1 {
		t.Fatalf("cache size = %d, want 1", summaries.Size())
	}

	// A write that bypasses the service is not seen while cached.
	if _, err := store.InsertTransaction(context.Background(), core.Transaction{
		Owner: alice, Title: "direct", Amount: dec("5"), Type: core.TypeExpense,
		Category: core.CategoryOther, Date: testNow, CreatedAt: testNow, UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	s, _ := dash.Summarize(context.Background(), alice, testNow)
	if !s.Totals.Expense.Equal(dec("10")) {
		t.Fatalf("expected cached summary, got expense %s", s.Totals.Expense)
	}

	mustCreate(t, svc, alice, newTx("Two", "1", core.TypeExpense, core.CategoryOther, testNow))
	s, err := dash.Summarize(context.Background(), alice, testNow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !s.Totals.Expense.Equal(dec("16")) {
		t.Errorf("expense = %s, want 16 after invalidation", s.Totals.Expense)
	}
}

// gatedStore parks the first lifetime totals read until release is closed.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) TotalsByType(ctx context.Context, owner string, since time.Time) ([]core.TypeTotal, error) {
	if since.IsZero() {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.entered)
			<-g.release
		}
	}
	return g.Store.TotalsByType(ctx, owner, since)
}

func TestDashboardCacheDropsSummaryRacingAMutation(t *testing.T) {
	store := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	summaries := cache.NewLRUCache[core.Summary](16, time.Hour)
	shared := NewSummaryCache(summaries)
	svc := NewTransactionService(store, WithSummaryCache(shared))
	dash := NewDashboardService(store, WithSummaryCache(shared))

	done := make(chan error, 1)
	go func() {
		_, err := dash.Summarize(context.Background(), alice, testNow)
		done <- err
	}()

	<-store.entered
	mustCreate(t, svc, alice, newTx("Salary", "5000", core.TypeIncome, core.CategoryIncome, testNow))
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summaries.Size() != 0 {
		t.Fatalf("cache size = %d, want the in-flight summary discarded", summaries.Size())
	}

	s, err := dash.Summarize(context.Background(), alice, testNow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !s.Totals.Income.Equal(dec("5000")) || len(s.RecentTransactions) != 1 {
		t.Errorf("income = %s recent = %d, want 5000 and 1", s.Totals.Income, len(s.RecentTransactions))
	}
	if summaries.Size() != 1 {
		t.Errorf("cache size = %d, want 1", summaries.Size())
	}
}
