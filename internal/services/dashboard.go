package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/query"
	"fintrack/internal/storage"
)

const (
	breakdownLimit = 10
	recentLimit    = 5
	trendMonths    = 6
)

// DashboardReader is the slice of storage the dashboard reads from.
type DashboardReader interface {
	storage.TransactionAggregator
	FindTransactions(ctx context.Context, owner string, spec query.Spec) ([]core.Transaction, error)
}

type DashboardService struct {
	store DashboardReader
	opts  options
}

func NewDashboardService(store DashboardReader, opts ...Option) *DashboardService {
	return &DashboardService{
		store: store,
		opts:  buildOptions(log.ComponentDashboard, opts),
	}
}

// Now returns the service clock's current time in loc.
func (s *DashboardService) Now(loc *time.Location) time.Time {
	if loc == nil {
		return s.opts.now()
	}
	return s.opts.now().In(loc)
}

// Summarize builds the owner's dashboard as of now. Calendar months are those
// of now's location. The five underlying reads run concurrently and any
// failure fails the whole summary.
func (s *DashboardService) Summarize(ctx context.Context, owner string, now time.Time) (core.Summary, error) {
	var gen uint64
	if s.opts.summaries != nil {
		if cached, ok := s.opts.summaries.get(owner, now); ok {
			return cached, nil
		}
		gen = s.opts.summaries.generation(owner)
	}

	loc := now.Location()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	trendStart := monthStart.AddDate(0, -(trendMonths - 1), 0)

	var (
		lifetime   []core.TypeTotal
		thisMonth  []core.TypeTotal
		categories []core.CategoryTotal
		recent     []core.Transaction
		monthly    []core.MonthTypeTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lifetime, err = s.store.TotalsByType(gctx, owner, time.Time{})
		return wrap("lifetime totals", err)
	})
	g.Go(func() (err error) {
		thisMonth, err = s.store.TotalsByType(gctx, owner, monthStart)
		return wrap("current month totals", err)
	})
	g.Go(func() (err error) {
		categories, err = s.store.CategoryTotals(gctx, owner, core.TypeExpense, breakdownLimit)
		return wrap("category breakdown", err)
	})
	g.Go(func() (err error) {
		recent, err = s.store.FindTransactions(gctx, owner, query.Spec{
			Sort:  query.Sort{Field: query.SortDate, Descending: true},
			Page:  1,
			Limit: recentLimit,
		})
		return wrap("recent transactions", err)
	})
	g.Go(func() (err error) {
		monthly, err = s.store.MonthlyTotals(gctx, owner, trendStart, loc)
		return wrap("monthly trend", err)
	})

	if err := g.Wait(); err != nil {
		s.opts.logger.ErrorContext(ctx, "Dashboard summary failed",
			log.NewFields().WithOperation(log.OpSummarize).WithOwner(owner).WithError(err).ToSlice()...)
		return core.Summary{}, err
	}

	totals := core.NewTotals(lifetime)
	if recent == nil {
		recent = []core.Transaction{}
	}
	summary := core.Summary{
		Totals:             totals,
		CurrentMonth:       core.NewTotals(thisMonth),
		CategoryBreakdown:  categoryShares(categories, totals.Expense),
		RecentTransactions: recent,
		MonthlyTrend:       monthlyTrend(monthly, trendStart),
	}

	if s.opts.summaries != nil && !s.opts.summaries.put(owner, now, gen, summary) {
		s.opts.logger.DebugContext(ctx, "Discarded summary computed before a concurrent change",
			log.NewFields().WithOperation(log.OpSummarize).WithOwner(owner).ToSlice()...)
	}
	return summary, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func categoryShares(rows []core.CategoryTotal, expense decimal.Decimal) []core.CategoryShare {
	shares := make([]core.CategoryShare, 0, len(rows))
	for _, r := range rows {
		shares = append(shares, core.CategoryShare{
			Category:   r.Category,
			Total:      r.Total,
			Count:      r.Count,
			Percentage: core.Percent(r.Total, expense),
		})
	}
	return shares
}

// monthlyTrend reshapes (month, type) rows into one zero-filled entry per
// month, oldest first.
func monthlyTrend(rows []core.MonthTypeTotal, start time.Time) []core.MonthTrend {
	trend := make([]core.MonthTrend, trendMonths)
	index := make(map[string]int, trendMonths)
	for i := range trend {
		m := start.AddDate(0, i, 0)
		key := core.MonthKey(m.Year(), m.Month())
		trend[i] = core.MonthTrend{Month: key, Income: decimal.Zero, Expense: decimal.Zero}
		index[key] = i
	}

	for _, r := range rows {
		i, ok := index[core.MonthKey(r.Year, r.Month)]
		if !ok {
			continue
		}
		switch r.Type {
		case core.TypeIncome:
			trend[i].Income = trend[i].Income.Add(r.Total)
		case core.TypeExpense:
			trend[i].Expense = trend[i].Expense.Add(r.Total)
		}
	}
	return trend
}
