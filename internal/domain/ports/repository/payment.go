package repository

import (
	"context"
	"time"

	"ecotrail-payments/internal/domain/model"
)

// PaymentRepository is the payment ledger port. One row per attempt; rows are
// never deleted. Status updates are compare-and-set on the current status so
// a terminal row can never be overwritten at the storage level.
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	// FindByGatewayRef matches either the provider payment id or the provider
	// order id for the given gateway.
	FindByGatewayRef(ctx context.Context, gateway, ref string) (*model.Payment, error)
	ListByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error)
	// SetGatewayRefs records the provider order/payment ids after the remote
	// order is created or once a webhook reveals the payment id.
	SetGatewayRefs(ctx context.Context, id string, orderID, paymentID *string) error
	// UpdateStatus transitions id from `from` to `to` and reports whether a
	// row was actually updated. A false return means the row was no longer in
	// `from` (lost race or replayed event) and nothing changed.
	UpdateStatus(ctx context.Context, id string, from, to model.PaymentStatus) (bool, error)
	// MergeMeta shallow-merges kv into the row's metadata (refund audit trail).
	MergeMeta(ctx context.Context, id string, kv map[string]interface{}) error
	// ExpirePendingOlderThan fails pending rows created before cutoff and
	// returns how many were swept. Used by the orphan reaper only.
	ExpirePendingOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error)
	// SumSucceededByPeriod sums captured revenue since the start of the given
	// period ("week"|"month"|"year").
	SumSucceededByPeriod(ctx context.Context, period string) (int64, error)
}
