package adapter

import (
	"context"

	"ecotrail-payments/internal/domain/model"
)

// PricingCalculator is the external price oracle: booking in, quote out.
// Pure from the payment core's perspective; the quoted amount is captured on
// the Payment row at creation and never re-derived.
type PricingCalculator interface {
	Quote(ctx context.Context, b *model.Booking) (*model.Quote, error)
}
