// Package services holds the transaction and dashboard use cases. Both take
// the owner explicitly on every call and talk to storage only through the
// ports in internal/storage.
package services

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
)

// EventPublisher announces committed transaction changes.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

type options struct {
	publisher EventPublisher
	summaries *SummaryCache
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*options)

// WithPublisher enables change events. Without it mutations are silent.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithSummaryCache shares a dashboard cache between the services so that
// mutations can drop stale summaries.
func WithSummaryCache(c *SummaryCache) Option {
	return func(o *options) { o.summaries = c }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(component string, opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Discard()
	}
	o.logger = o.logger.WithComponent(component)
	return o
}
