package repository

import (
	"context"

	"ecotrail-payments/internal/domain/model"
)

// BookingRepository reads bookings owned by the booking subsystem. The
// payment core only ever needs the ownership and cancellation guards.
type BookingRepository interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
}
