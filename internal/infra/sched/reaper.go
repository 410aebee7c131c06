package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain/ports/repository"
	"ecotrail-payments/internal/infra/metrics"
)

// PaymentReaper periodically expires orphaned pending payments: rows whose
// creation request timed out or crashed before the client ever reached the
// gateway UI. Expiring them to failed (a terminal state) frees the booking
// for a fresh attempt. This is the out-of-band collaborator; nothing inline
// in the request path does this.
type PaymentReaper struct {
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to expire
	log        *zerolog.Logger
}

func NewPaymentReaper(payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &PaymentReaper{payments: payments, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *PaymentReaper) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReaper) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	n, err := w.payments.ExpirePendingOlderThan(ctx, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reaper: expire pending failed")
		return
	}
	if n > 0 {
		metrics.AddReapedPayments(n)
		w.log.Info().Int("expired", n).Msg("payment-reaper: expired orphaned pending payments")
	}
}
