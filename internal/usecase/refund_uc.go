package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
	"ecotrail-payments/internal/domain/ports/repository"
	"ecotrail-payments/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

type RefundUseCase interface {
	// Refund refunds a succeeded payment exactly once. Anything not in
	// succeeded comes back as domain.ErrNotRefundable.
	Refund(ctx context.Context, paymentID, reason string) (*model.Payment, error)
}

type refundUC struct {
	payments  repository.PaymentRepository
	gateways  map[string]adapter.PaymentGateway
	publisher StatusPublisher
	log       *zerolog.Logger
}

// NewRefundUseCase takes all configured gateways keyed by name; the refund is
// routed to whichever provider handled the original payment.
func NewRefundUseCase(payments repository.PaymentRepository, gateways map[string]adapter.PaymentGateway, publisher StatusPublisher, logger *zerolog.Logger) *refundUC {
	return &refundUC{payments: payments, gateways: gateways, publisher: publisher, log: logger}
}

func (u *refundUC) Refund(ctx context.Context, paymentID, reason string) (*model.Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id: %w", domain.ErrInvalidArgument)
	}
	p, err := u.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusSucceeded {
		return nil, domain.ErrNotRefundable
	}
	gw, ok := u.gateways[p.Gateway]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for %q: %w", p.Gateway, domain.ErrOperationFailed)
	}

	res, err := gw.Refund(ctx, p, reason)
	if err != nil {
		u.log.Warn().Err(err).Str("payment_id", p.ID).Str("gateway", p.Gateway).Msg("gateway refund failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	updated, err := u.payments.UpdateStatus(ctx, p.ID, model.PaymentStatusSucceeded, model.PaymentStatusRefunded)
	if err != nil {
		return nil, err
	}
	if !updated {
		// A concurrent refund (or a refund webhook) got there first.
		return nil, domain.ErrNotRefundable
	}
	if err := u.payments.MergeMeta(ctx, p.ID, map[string]interface{}{
		"refund_reason": reason,
		"refund_id":     res.RefundID,
	}); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("store refund audit metadata")
	}

	metrics.IncPayment(string(model.PaymentStatusRefunded))
	u.log.Info().
		Str("payment_id", p.ID).
		Str("gateway", p.Gateway).
		Str("refund_id", res.RefundID).
		Str("reason", reason).
		Msg("payment refunded")

	if u.publisher != nil {
		u.publisher.Publish(model.StatusChange{
			PaymentID: p.ID,
			BookingID: p.BookingID,
			From:      model.PaymentStatusSucceeded,
			To:        model.PaymentStatusRefunded,
			Gateway:   p.Gateway,
			At:        time.Now(),
		})
	}
	p.Status = model.PaymentStatusRefunded
	return p, nil
}
