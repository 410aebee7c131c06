package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/repository"
)

var _ repository.BookingRepository = (*bookingRepo)(nil)

// bookingRepo reads rows owned by the booking subsystem. No writes here.
type bookingRepo struct{ pool *pgxpool.Pool }

func NewBookingRepo(pool *pgxpool.Pool) *bookingRepo {
	return &bookingRepo{pool: pool}
}

func (r *bookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	const q = `SELECT id, user_id, status, destination_id, destination_name, check_in, check_out, group_size, carbon_kg
FROM bookings WHERE id=$1;`
	b := &model.Booking{}
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.UserID, &b.Status, &b.DestinationID,
		&b.DestinationName, &b.CheckIn, &b.CheckOut, &b.GroupSize, &b.CarbonKg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return b, nil
}
