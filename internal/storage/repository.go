package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/query"

	_ "modernc.org/sqlite"
)

const transactionColumns = "id, owner_id, title, amount_cents, type, category, date, notes, created_at, updated_at"

// SQLiteRepository stores users and transactions in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FindTransactions(ctx context.Context, owner string, spec query.Spec) ([]core.Transaction, error) {
	where, args := whereClause(owner, spec.Filter)
	q := "SELECT " + transactionColumns + " FROM transactions WHERE " + where +
		" ORDER BY " + orderClause(spec.Sort) + " LIMIT ? OFFSET ?"
	args = append(args, spec.Limit, spec.Offset())

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0, spec.Limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context, owner string, filter query.Filter) (int64, error) {
	where, args := whereClause(owner, filter)
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND owner_id = ?", id, owner)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, err
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Owner, t.Title, core.ToCents(t.Amount), t.Type.String(), t.Category.String(),
		t.Date.UnixMilli(), t.Notes, t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", t.ID, "owner", t.Owner)
	return normalizeTimes(t), nil
}

func (r *SQLiteRepository) ReplaceTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET title = ?, amount_cents = ?, type = ?, category = ?, date = ?, notes = ?, updated_at = ?
		  WHERE id = ? AND owner_id = ?`,
		t.Title, core.ToCents(t.Amount), t.Type.String(), t.Category.String(),
		t.Date.UnixMilli(), t.Notes, t.UpdatedAt.UnixMilli(), t.ID, t.Owner)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND owner_id = ? RETURNING "+transactionColumns, id, owner)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, err
	}

	slog.DebugContext(ctx, "Transaction deleted from SQLite", "id", id, "owner", owner)
	return t, nil
}

func (r *SQLiteRepository) TotalsByType(ctx context.Context, owner string, since time.Time) ([]core.TypeTotal, error) {
	q := "SELECT type, COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions WHERE owner_id = ?"
	args := []any{owner}
	if !since.IsZero() {
		q += " AND date >= ?"
		args = append(args, since.UnixMilli())
	}
	q += " GROUP BY type"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("totals by type: %w", err)
	}
	defer rows.Close()

	var out []core.TypeTotal
	for rows.Next() {
		var (
			typ          string
			cents, count int64
		)
		if err := rows.Scan(&typ, &cents, &count); err != nil {
			return nil, fmt.Errorf("scan type total: %w", err)
		}
		t, err := core.ParseType(typ)
		if err != nil {
			return nil, fmt.Errorf("scan type total: %w", err)
		}
		out = append(out, core.TypeTotal{Type: t, Total: core.FromCents(cents), Count: count})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CategoryTotals(ctx context.Context, owner string, typ core.Type, limit int) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) AS total, COUNT(*)
		   FROM transactions
		  WHERE owner_id = ? AND type = ?
		  GROUP BY category
		  ORDER BY total DESC, category ASC
		  LIMIT ?`,
		owner, typ.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var (
			label        string
			cents, count int64
		)
		if err := rows.Scan(&label, &cents, &count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		c, err := core.ParseCategory(label)
		if err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, core.CategoryTotal{Category: c, Total: core.FromCents(cents), Count: count})
	}
	return out, rows.Err()
}

type monthTypeKey struct {
	year  int
	month time.Month
	typ   core.Type
}

// MonthlyTotals buckets in Go: month boundaries depend on loc, which SQLite
// date functions cannot evaluate.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, owner string, since time.Time, loc *time.Location) ([]core.MonthTypeTotal, error) {
	if loc == nil {
		loc = time.UTC
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT date, type, amount_cents FROM transactions WHERE owner_id = ? AND date >= ?",
		owner, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	sums := map[monthTypeKey]int64{}
	var order []monthTypeKey
	for rows.Next() {
		var (
			ms, cents int64
			typ       string
		)
		if err := rows.Scan(&ms, &typ, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		t, err := core.ParseType(typ)
		if err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		d := time.UnixMilli(ms).In(loc)
		k := monthTypeKey{year: d.Year(), month: d.Month(), typ: t}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += cents
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly totals: %w", err)
	}

	out := make([]core.MonthTypeTotal, 0, len(order))
	for _, k := range order {
		out = append(out, core.MonthTypeTotal{Year: k.year, Month: k.month, Type: k.typ, Total: core.FromCents(sums[k])})
	}
	return out, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, core.ErrEmailTaken
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(u.CreatedAt.UnixMilli()).UTC()
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?", email))
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?", id))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                         core.Transaction
		cents, date, created, upd int64
		typ, category             string
	)
	if err := s.Scan(&t.ID, &t.Owner, &t.Title, &cents, &typ, &category, &date, &t.Notes, &created, &upd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	var err error
	if t.Type, err = core.ParseType(typ); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction %s: %w", t.ID, err)
	}
	if t.Category, err = core.ParseCategory(category); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction %s: %w", t.ID, err)
	}
	t.Amount = core.FromCents(cents)
	t.Date = time.UnixMilli(date).UTC()
	t.CreatedAt = time.UnixMilli(created).UTC()
	t.UpdatedAt = time.UnixMilli(upd).UTC()
	return t, nil
}

// normalizeTimes truncates to the millisecond precision the table keeps.
func normalizeTimes(t core.Transaction) core.Transaction {
	t.Date = time.UnixMilli(t.Date.UnixMilli()).UTC()
	t.CreatedAt = time.UnixMilli(t.CreatedAt.UnixMilli()).UTC()
	t.UpdatedAt = time.UnixMilli(t.UpdatedAt.UnixMilli()).UTC()
	t.Amount = core.FromCents(core.ToCents(t.Amount))
	return t
}
