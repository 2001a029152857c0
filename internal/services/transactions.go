package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/query"
	"fintrack/internal/storage"
)

type ListResult struct {
	Records    []core.Transaction
	Pagination query.Pagination
}

type TransactionService struct {
	store storage.TransactionStore
	opts  options
}

func NewTransactionService(store storage.TransactionStore, opts ...Option) *TransactionService {
	return &TransactionService{
		store: store,
		opts:  buildOptions(log.ComponentTransaction, opts),
	}
}

// List returns one page of the owner's transactions together with the total
// count for the same filter. The two reads run concurrently and are not a
// snapshot.
func (s *TransactionService) List(ctx context.Context, owner string, spec query.Spec) (ListResult, error) {
	var (
		records []core.Transaction
		total   int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.store.FindTransactions(gctx, owner, spec)
		if err != nil {
			return fmt.Errorf("find transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountTransactions(gctx, owner, spec.Filter)
		if err != nil {
			return fmt.Errorf("count transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}

	if records == nil {
		records = []core.Transaction{}
	}
	return ListResult{
		Records:    records,
		Pagination: query.NewPagination(spec.Page, spec.Limit, total),
	}, nil
}

func (s *TransactionService) Get(ctx context.Context, owner, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, owner, id)
}

func (s *TransactionService) Create(ctx context.Context, owner string, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t, err := s.store.InsertTransaction(ctx, in.Build(owner, s.opts.now()))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	s.opts.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithOwner(owner).
			WithTransaction(t.ID, t.Type.String(), t.Category.String(), t.Amount.StringFixed(2)).
			ToSlice()...)
	s.committed(ctx, amqp.EventCreated, t)
	return t, nil
}

// Update applies the supplied fields of p. Concurrent updates of the same
// record are last write wins.
func (s *TransactionService) Update(ctx context.Context, owner, id string, p core.Patch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}

	current, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, err
	}

	updated := p.Apply(current, s.opts.now())
	if err := s.store.ReplaceTransaction(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("replace transaction: %w", err)
	}

	s.opts.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithOperation(log.OpUpdate).WithOwner(owner).
			WithTransaction(updated.ID, updated.Type.String(), updated.Category.String(), updated.Amount.StringFixed(2)).
			ToSlice()...)
	s.committed(ctx, amqp.EventUpdated, updated)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, owner, id string) error {
	removed, err := s.store.DeleteTransaction(ctx, owner, id)
	if err != nil {
		return err
	}

	s.opts.logger.InfoContext(ctx, "Transaction deleted",
		log.NewFields().WithOperation(log.OpDelete).WithOwner(owner).
			WithTransaction(removed.ID, removed.Type.String(), removed.Category.String(), removed.Amount.StringFixed(2)).
			ToSlice()...)
	s.committed(ctx, amqp.EventDeleted, removed)
	return nil
}

// Categories lists every category label in display order.
func (s *TransactionService) Categories() []core.Category {
	return core.Categories()
}

// committed runs the side effects of a successful mutation. Neither can fail
// the request.
func (s *TransactionService) committed(ctx context.Context, kind amqp.EventKind, t core.Transaction) {
	if s.opts.summaries != nil {
		s.opts.summaries.invalidate(t.Owner)
	}
	if s.opts.publisher == nil {
		return
	}

	ev := amqp.NewTransactionEvent(kind, t)
	if err := s.opts.publisher.PublishTransactionEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.opts.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.NewFields().
				WithOperation(log.OpPublish).
				WithOwner(t.Owner).
				WithError(err).
				With(log.FieldEventKind, string(kind)).
				With(log.FieldTransactionID, t.ID).
				ToSlice()...)
	}
}
