// Package storage defines the persistence ports used by the services and
// ships the SQLite implementation. Every transaction method takes the owner
// explicitly; implementations must never read or write another owner's rows.
package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/query"
)

type (
	TransactionReader interface {
		// FindTransactions returns one ordered page of the owner's matching rows.
		FindTransactions(ctx context.Context, owner string, spec query.Spec) ([]core.Transaction, error)
		CountTransactions(ctx context.Context, owner string, filter query.Filter) (int64, error)
		// GetTransaction returns core.ErrNotFound for missing and foreign ids alike.
		GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
	}

	TransactionWriter interface {
		// InsertTransaction assigns the id and returns the stored record.
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// ReplaceTransaction overwrites the mutable fields of the row matching
		// t.ID and t.Owner.
		ReplaceTransaction(ctx context.Context, t core.Transaction) error
		// DeleteTransaction removes the row in one step and returns it.
		DeleteTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
	}

	TransactionAggregator interface {
		// TotalsByType sums amounts per type for rows dated at or after since.
		// A zero since means all time.
		TotalsByType(ctx context.Context, owner string, since time.Time) ([]core.TypeTotal, error)
		// CategoryTotals groups rows of one type by category, largest sum
		// first, ties broken by label.
		CategoryTotals(ctx context.Context, owner string, typ core.Type, limit int) ([]core.CategoryTotal, error)
		// MonthlyTotals groups rows dated at or after since by calendar month
		// (in loc) and type.
		MonthlyTotals(ctx context.Context, owner string, since time.Time, loc *time.Location) ([]core.MonthTypeTotal, error)
	}

	UserStore interface {
		// CreateUser returns core.ErrEmailTaken when the email exists.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UserByID(ctx context.Context, id string) (core.User, error)
	}

	TransactionStore interface {
		TransactionReader
		TransactionWriter
		TransactionAggregator
	}

	// Store is everything a backend provides.
	Store interface {
		TransactionStore
		UserStore
		Ping(ctx context.Context) error
	}
)
