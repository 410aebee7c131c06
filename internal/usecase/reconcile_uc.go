package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/repository"
	"ecotrail-payments/internal/infra/logging"
	"ecotrail-payments/internal/infra/metrics"
)

// ApplyOutcome classifies what a webhook event did to the ledger.
type ApplyOutcome string

const (
	OutcomeApplied         ApplyOutcome = "applied"
	OutcomeUnmatched       ApplyOutcome = "unmatched"        // no ledger row for the provider reference
	OutcomeAlreadyTerminal ApplyOutcome = "already_terminal" // replay or stale event; no mutation
)

// StatusPublisher receives status changes for out-of-band delivery
// (notifications, SSE, whatever the surrounding system chooses). Publishing
// must not block reconciliation.
type StatusPublisher interface {
	Publish(change model.StatusChange)
}

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type ReconcileUseCase interface {
	// Apply applies a canonical gateway event to the ledger, idempotently.
	// Webhook delivery is at-least-once and unordered; replays and stale
	// events come back as OutcomeAlreadyTerminal with no mutation.
	Apply(ctx context.Context, ev *model.GatewayEvent) (ApplyOutcome, error)
}

type reconcileUC struct {
	payments  repository.PaymentRepository
	publisher StatusPublisher
	log       *zerolog.Logger
}

func NewReconcileUseCase(payments repository.PaymentRepository, publisher StatusPublisher, logger *zerolog.Logger) *reconcileUC {
	return &reconcileUC{payments: payments, publisher: publisher, log: logger}
}

func (u *reconcileUC) Apply(ctx context.Context, ev *model.GatewayEvent) (ApplyOutcome, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Apply")()
	audit := u.log.With().
		Str("gateway", ev.Gateway).
		Str("event_kind", string(ev.Kind)).
		Str("gateway_ref", ev.Ref()).
		Logger()

	p, err := u.payments.FindByGatewayRef(ctx, ev.Gateway, ev.Ref())
	if err == domain.ErrNotFound {
		// Possibly a duplicate for a long-gone attempt, or an event for a
		// payment created outside this system. Acknowledge so the provider
		// stops retrying.
		audit.Warn().Msg("webhook event matched no payment")
		metrics.IncWebhookEvent(ev.Gateway, string(ev.Kind), string(OutcomeUnmatched))
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	if p.Status.Terminal() && !(p.Status == model.PaymentStatusSucceeded && ev.Kind == model.EventRefunded) {
		// Duplicate delivery is expected; log it so replays stay
		// distinguishable from bugs in the audit trail.
		audit.Info().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("event ignored, payment already terminal")
		metrics.IncWebhookEvent(ev.Gateway, string(ev.Kind), string(OutcomeAlreadyTerminal))
		return OutcomeAlreadyTerminal, nil
	}

	next, ok := model.NextStatus(p.Status, ev.Kind)
	if !ok {
		audit.Info().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("no transition for event, ignored")
		metrics.IncWebhookEvent(ev.Gateway, string(ev.Kind), string(OutcomeAlreadyTerminal))
		return OutcomeAlreadyTerminal, nil
	}

	updated, err := u.payments.UpdateStatus(ctx, p.ID, p.Status, next)
	if err != nil {
		return "", err
	}
	if !updated {
		// Another delivery of the same event won the race; same idempotent
		// answer as if we had seen the terminal row up front.
		audit.Info().Str("payment_id", p.ID).Msg("lost status race, treating as replay")
		metrics.IncWebhookEvent(ev.Gateway, string(ev.Kind), string(OutcomeAlreadyTerminal))
		return OutcomeAlreadyTerminal, nil
	}

	// Record the provider payment id the first time an event reveals it.
	if ev.GatewayPaymentID != "" && p.GatewayPaymentID == nil {
		pid := ev.GatewayPaymentID
		if err := u.payments.SetGatewayRefs(ctx, p.ID, nil, &pid); err != nil {
			audit.Error().Err(err).Str("payment_id", p.ID).Msg("store gateway payment id")
		}
	}
	if ev.MethodLabel != "" {
		if err := u.payments.MergeMeta(ctx, p.ID, map[string]interface{}{"payment_method": ev.MethodLabel}); err != nil {
			audit.Error().Err(err).Str("payment_id", p.ID).Msg("store payment method label")
		}
	}

	metrics.IncPayment(string(next))
	metrics.IncWebhookEvent(ev.Gateway, string(ev.Kind), string(OutcomeApplied))
	if next == model.PaymentStatusSucceeded {
		metrics.AddPaymentRevenue(p.Currency, p.AmountPaise)
	}
	audit.Info().
		Str("payment_id", p.ID).
		Str("from", string(p.Status)).
		Str("to", string(next)).
		Msg("payment status transitioned")

	if u.publisher != nil {
		u.publisher.Publish(model.StatusChange{
			PaymentID: p.ID,
			BookingID: p.BookingID,
			From:      p.Status,
			To:        next,
			Gateway:   p.Gateway,
			At:        time.Now(),
		})
	}
	return OutcomeApplied, nil
}
