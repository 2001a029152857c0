// Package memory is a process-local Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/query"
)

type Store struct {
	mu    sync.RWMutex
	txs   map[string]core.Transaction
	users map[string]core.User
}

func New() *Store {
	return &Store{
		txs:   map[string]core.Transaction{},
		users: map[string]core.User{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// owned returns the owner's rows accepted by keep. Callers hold the lock.
func (s *Store) owned(owner string, keep func(core.Transaction) bool) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.txs {
		if t.Owner == owner && keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) FindTransactions(ctx context.Context, owner string, spec query.Spec) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rows := s.owned(owner, spec.Filter.Matches)
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return spec.Sort.Less(rows[i], rows[j]) })

	start := spec.Offset()
	if start >= len(rows) {
		return []core.Transaction{}, nil
	}
	end := start + spec.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return append([]core.Transaction(nil), rows[start:end]...), nil
}

func (s *Store) CountTransactions(ctx context.Context, owner string, filter query.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.owned(owner, filter.Matches))), nil
}

func (s *Store) GetTransaction(_ context.Context, owner, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[id]
	if !ok || t.Owner != owner {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	s.txs[t.ID] = t
	return t, nil
}

func (s *Store) ReplaceTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.txs[t.ID]
	if !ok || cur.Owner != t.Owner {
		return core.ErrNotFound
	}
	t.CreatedAt = cur.CreatedAt
	s.txs[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, owner, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok || t.Owner != owner {
		return core.Transaction{}, core.ErrNotFound
	}
	delete(s.txs, id)
	return t, nil
}

func (s *Store) TotalsByType(ctx context.Context, owner string, since time.Time) ([]core.TypeTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := map[core.Type]*core.TypeTotal{}
	for _, t := range s.owned(owner, func(t core.Transaction) bool { return since.IsZero() || !t.Date.Before(since) }) {
		tt, ok := byType[t.Type]
		if !ok {
			tt = &core.TypeTotal{Type: t.Type, Total: decimal.Zero}
			byType[t.Type] = tt
		}
		tt.Total = tt.Total.Add(t.Amount)
		tt.Count++
	}

	out := make([]core.TypeTotal, 0, len(byType))
	for _, tt := range byType {
		out = append(out, *tt)
	}
	return out, nil
}

func (s *Store) CategoryTotals(ctx context.Context, owner string, typ core.Type, limit int) ([]core.CategoryTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	byCat := map[core.Category]*core.CategoryTotal{}
	for _, t := range s.owned(owner, func(t core.Transaction) bool { return t.Type == typ }) {
		ct, ok := byCat[t.Category]
		if !ok {
			ct = &core.CategoryTotal{Category: t.Category, Total: decimal.Zero}
			byCat[t.Category] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
	}
	s.mu.RUnlock()

	out := make([]core.CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category.String() < out[j].Category.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MonthlyTotals(ctx context.Context, owner string, since time.Time, loc *time.Location) ([]core.MonthTypeTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	type key struct {
		year  int
		month time.Month
		typ   core.Type
	}

	s.mu.RLock()
	sums := map[key]decimal.Decimal{}
	for _, t := range s.owned(owner, func(t core.Transaction) bool { return !t.Date.Before(since) }) {
		d := t.Date.In(loc)
		k := key{d.Year(), d.Month(), t.Type}
		sums[k] = sums[k].Add(t.Amount)
	}
	s.mu.RUnlock()

	out := make([]core.MonthTypeTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, core.MonthTypeTotal{Year: k.year, Month: k.month, Type: k.typ, Total: total})
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.User{}, core.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}
