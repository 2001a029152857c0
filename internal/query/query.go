// Package query turns loosely typed list parameters into a normalized,
// store-agnostic description of which transactions to return and in what
// order.
package query

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	DefaultPage  = 1
	DefaultLimit = 15
	MaxLimit     = 100
)

// Params are the raw, optional list parameters as received from a client.
type Params struct {
	Search    string
	Category  string
	Type      string
	StartDate string
	EndDate   string
	MinAmount string
	MaxAmount string
	SortBy    string
	SortOrder string
	Page      string
	Limit     string
}

// Filter is a conjunction of optional conditions. Zero fields impose nothing.
// MatchNone is set when a category or type filter names no known value; such
// a filter selects no record at all.
type Filter struct {
	MatchNone bool
	Search    string
	Category  core.Category
	Type      core.Type
	From      time.Time
	To        time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

type SortField string

const (
	SortDate      SortField = "date"
	SortAmount    SortField = "amount"
	SortTitle     SortField = "title"
	SortCategory  SortField = "category"
	SortType      SortField = "type"
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
)

var sortFields = map[string]SortField{
	"date":      SortDate,
	"amount":    SortAmount,
	"title":     SortTitle,
	"category":  SortCategory,
	"type":      SortType,
	"createdat": SortCreatedAt,
	"updatedat": SortUpdatedAt,
}

type Sort struct {
	Field      SortField
	Descending bool
}

// Spec is the normalized query: what to match, how to order it and which
// window of the ordered result to return.
type Spec struct {
	Filter Filter
	Sort   Sort
	Page   int
	Limit  int
}

// Offset is the number of matching records to skip.
func (s Spec) Offset() int {
	return (s.Page - 1) * s.Limit
}

// Builder normalizes Params. Location decides which calendar day a bare date
// refers to.
type Builder struct {
	Location *time.Location
}

func NewBuilder(loc *time.Location) Builder {
	if loc == nil {
		loc = time.UTC
	}
	return Builder{Location: loc}
}

// Build never fails. Unparsable dates, amounts, sort keys and window values
// are dropped and the corresponding default applies. An unknown category or
// type is kept as a filter that matches nothing.
func (b Builder) Build(p Params) Spec {
	return Spec{
		Filter: b.filter(p),
		Sort:   parseSort(p.SortBy, p.SortOrder),
		Page:   parsePositive(p.Page, DefaultPage, 0),
		Limit:  parsePositive(p.Limit, DefaultLimit, MaxLimit),
	}
}

func (b Builder) filter(p Params) Filter {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}

	f := Filter{Search: strings.TrimSpace(p.Search)}

	if v := strings.TrimSpace(p.Category); v != "" && v != "all" {
		if c, err := core.ParseCategory(v); err == nil {
			f.Category = c
		} else {
			f.MatchNone = true
		}
	}
	if v := strings.TrimSpace(p.Type); v != "" && v != "all" {
		if t, err := core.ParseType(v); err == nil {
			f.Type = t
		} else {
			f.MatchNone = true
		}
	}

	if p.StartDate != "" {
		if d, err := core.ParseDate(p.StartDate, loc); err == nil {
			f.From = startOfDay(d.In(loc))
		}
	}
	if p.EndDate != "" {
		if d, err := core.ParseDate(p.EndDate, loc); err == nil {
			f.To = endOfDay(d.In(loc))
		}
	}

	if p.MinAmount != "" {
		if d, err := core.ParseAmount(p.MinAmount); err == nil {
			f.MinAmount = &d
		}
	}
	if p.MaxAmount != "" {
		if d, err := core.ParseAmount(p.MaxAmount); err == nil {
			f.MaxAmount = &d
		}
	}
	return f
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func parseSort(by, order string) Sort {
	field, ok := sortFields[strings.ToLower(strings.TrimSpace(by))]
	if !ok {
		field = SortDate
	}
	return Sort{
		Field:      field,
		Descending: !strings.EqualFold(strings.TrimSpace(order), "asc"),
	}
}

func parsePositive(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Matches evaluates the filter against a single transaction.
func (f Filter) Matches(t core.Transaction) bool {
	if f.MatchNone {
		return false
	}
	if f.Category.Valid() && t.Category != f.Category {
		return false
	}
	if f.Type.Valid() && t.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	if f.MinAmount != nil && t.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && t.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Notes), needle) &&
			!strings.Contains(strings.ToLower(t.Category.String()), needle) {
			return false
		}
	}
	return true
}

// Less orders a before b according to s, breaking ties by id in the same
// direction so that the order is total.
func (s Sort) Less(a, b core.Transaction) bool {
	c := compare(s.Field, a, b)
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if s.Descending {
		return c > 0
	}
	return c < 0
}

func compare(field SortField, a, b core.Transaction) int {
	switch field {
	case SortAmount:
		return a.Amount.Cmp(b.Amount)
	case SortTitle:
		return strings.Compare(a.Title, b.Title)
	case SortCategory:
		return strings.Compare(a.Category.String(), b.Category.String())
	case SortType:
		return strings.Compare(a.Type.String(), b.Type.String())
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.Date.Compare(b.Date)
	}
}

// Pagination is the metadata returned alongside a page of records.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalCount:  total,
		Limit:       limit,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}
