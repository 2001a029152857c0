// Package worker applies transaction events to the spreadsheet mirror.
package worker

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
)

// SyncWorker keeps a sheets.Mirror in step with committed changes.
type SyncWorker struct {
	mirror sheets.Mirror
	logger *log.Logger
}

func NewSyncWorker(mirror sheets.Mirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{mirror: mirror, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent applies one event. A returned error makes the consumer requeue
// the message.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	fields := log.NewFields().
		WithOperation(log.OpSync).
		WithOwner(ev.Owner).
		With(log.FieldEventKind, string(ev.Kind)).
		With(log.FieldTransactionID, ev.TransactionID)

	var err error
	switch ev.Kind {
	case amqp.EventCreated, amqp.EventUpdated:
		if ev.Transaction == nil {
			return fmt.Errorf("%s event %s has no transaction", ev.Kind, ev.TransactionID)
		}
		err = w.mirror.Upsert(ctx, *ev.Transaction)
	case amqp.EventDeleted:
		err = w.mirror.Remove(ctx, ev.TransactionID)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event kind", fields.ToSlice()...)
		return nil
	}

	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror transaction", fields.WithError(err).ToSlice()...)
		return fmt.Errorf("mirror %s event: %w", ev.Kind, err)
	}
	w.logger.InfoContext(ctx, "Mirrored transaction", fields.ToSlice()...)
	return nil
}
