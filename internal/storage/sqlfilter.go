package storage

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"

	"fintrack/internal/query"
)

// lowerFunc is strings.ToLower exposed to SQL, so search folds case the same
// way on every backend.
const lowerFunc = "fintrack_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(lowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

var sortColumns = map[query.SortField]string{
	query.SortDate:      "date",
	query.SortAmount:    "amount_cents",
	query.SortTitle:     "title",
	query.SortCategory:  "category",
	query.SortType:      "type",
	query.SortCreatedAt: "created_at",
	query.SortUpdatedAt: "updated_at",
}

// whereClause renders the owner scope plus the filter as a SQL condition
// with positional arguments.
func whereClause(owner string, f query.Filter) (string, []any) {
	conds := []string{"owner_id = ?"}
	args := []any{owner}

	if f.MatchNone {
		return "owner_id = ? AND 0", args
	}

	// Substring match on Unicode-lowered text; LIKE only folds ASCII.
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		conds = append(conds, "(instr("+lowerFunc+"(title), ?) > 0 OR instr("+lowerFunc+"(notes), ?) > 0 OR instr("+lowerFunc+"(category), ?) > 0)")
		args = append(args, needle, needle, needle)
	}
	if f.Category.Valid() {
		conds = append(conds, "category = ?")
		args = append(args, f.Category.String())
	}
	if f.Type.Valid() {
		conds = append(conds, "type = ?")
		args = append(args, f.Type.String())
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.UnixMilli())
	}
	// Bounds are compared in cents but may carry sub-cent precision.
	if f.MinAmount != nil {
		conds = append(conds, "amount_cents >= ?")
		args = append(args, f.MinAmount.Shift(2).InexactFloat64())
	}
	if f.MaxAmount != nil {
		conds = append(conds, "amount_cents <= ?")
		args = append(args, f.MaxAmount.Shift(2).InexactFloat64())
	}

	return strings.Join(conds, " AND "), args
}

func orderClause(s query.Sort) string {
	col, ok := sortColumns[s.Field]
	if !ok {
		col = "date"
	}
	dir := "ASC"
	if s.Descending {
		dir = "DESC"
	}
	return col + " " + dir + ", id " + dir
}
