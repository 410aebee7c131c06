package worker

import (
	"context"

	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/usecase"
)

var _ usecase.StatusPublisher = (*Dispatcher)(nil)

// Notifier delivers a status change to whatever the surrounding system uses
// (push, email, SSE). The payment core does not own delivery.
type Notifier interface {
	Notify(ctx context.Context, change model.StatusChange) error
}

// LogNotifier is the default sink: it just records the change.
type LogNotifier struct {
	Log *zerolog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, c model.StatusChange) error {
	n.Log.Info().
		Str("payment_id", c.PaymentID).
		Str("booking_id", c.BookingID).
		Str("from", string(c.From)).
		Str("to", string(c.To)).
		Msg("payment status change")
	return nil
}

// Dispatcher fans status changes out to the notifier on the worker pool so
// reconciliation never blocks on delivery.
type Dispatcher struct {
	pool     *Pool
	notifier Notifier
	log      *zerolog.Logger
}

func NewDispatcher(pool *Pool, notifier Notifier, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{pool: pool, notifier: notifier, log: logger}
}

func (d *Dispatcher) Publish(change model.StatusChange) {
	err := d.pool.Submit(func(ctx context.Context) error {
		return d.notifier.Notify(ctx, change)
	})
	if err != nil {
		// Dropped notifications are acceptable; ledger state is the truth.
		d.log.Warn().Err(err).Str("payment_id", change.PaymentID).Msg("status change dropped")
	}
}
