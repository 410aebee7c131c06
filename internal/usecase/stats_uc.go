package usecase

import (
	"context"

	"ecotrail-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	// Revenue returns captured revenue (paise) for the running week, month and year.
	Revenue(ctx context.Context) (week, month, year int64, err error)
}

type statsUC struct {
	payments repository.PaymentRepository
}

func NewStatsUseCase(payments repository.PaymentRepository) *statsUC {
	return &statsUC{payments: payments}
}

func (u *statsUC) Revenue(ctx context.Context) (int64, int64, int64, error) {
	week, err := u.payments.SumSucceededByPeriod(ctx, "week")
	if err != nil {
		return 0, 0, 0, err
	}
	month, err := u.payments.SumSucceededByPeriod(ctx, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	year, err := u.payments.SumSucceededByPeriod(ctx, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	return week, month, year, nil
}
