package pricing

import (
	"context"
	"math"
	"time"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
)

var _ adapter.PricingCalculator = (*StaticCalculator)(nil)

// StaticCalculator is a deterministic stand-in for the platform's
// ecological-capacity pricing service: per-person nightly rate plus an eco
// fee proportional to the booking's travel footprint. The real calculator
// lives in another subsystem; anything satisfying the port can replace this.
type StaticCalculator struct {
	ratesPaise       map[string]int64 // destination id -> per person per night
	defaultRatePaise int64
	ecoFeePaisePerKg int64
	currency         string
}

func NewStaticCalculator(rates map[string]int64, defaultRatePaise, ecoFeePaisePerKg int64) *StaticCalculator {
	if defaultRatePaise <= 0 {
		defaultRatePaise = 50_000 // ₹500
	}
	if ecoFeePaisePerKg < 0 {
		ecoFeePaisePerKg = 0
	}
	return &StaticCalculator{
		ratesPaise:       rates,
		defaultRatePaise: defaultRatePaise,
		ecoFeePaisePerKg: ecoFeePaisePerKg,
		currency:         "INR",
	}
}

func (c *StaticCalculator) Quote(_ context.Context, b *model.Booking) (*model.Quote, error) {
	if b.GroupSize <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	nights := int64(b.CheckOut.Sub(b.CheckIn) / (24 * time.Hour))
	if nights < 1 {
		nights = 1
	}
	rate := c.defaultRatePaise
	if r, ok := c.ratesPaise[b.DestinationID]; ok {
		rate = r
	}

	stay := rate * int64(b.GroupSize) * nights
	ecoFee := int64(math.Round(b.CarbonKg * float64(c.ecoFeePaisePerKg)))

	q := &model.Quote{
		AmountPaise: stay + ecoFee,
		Currency:    c.currency,
		Breakdown: []model.PriceLine{
			{Label: "stay", AmountPaise: stay},
		},
	}
	if ecoFee > 0 {
		q.Breakdown = append(q.Breakdown, model.PriceLine{Label: "eco_fee", AmountPaise: ecoFee})
	}
	return q, nil
}
