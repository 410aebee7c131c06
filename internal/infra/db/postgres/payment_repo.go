package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, booking_id, user_id, amount_paise, currency, gateway, gateway_order_id, gateway_payment_id, status, meta, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.BookingID, &p.UserID, &p.AmountPaise, &p.Currency,
		&p.Gateway, &p.GatewayOrderID, &p.GatewayPaymentID, &p.Status, &p.Meta,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := r.pool.Exec(ctx, q, p.ID, p.BookingID, p.UserID, p.AmountPaise, p.Currency,
		p.Gateway, p.GatewayOrderID, p.GatewayPaymentID, p.Status, p.Meta,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		// The partial unique index on non-terminal rows per booking is the
		// storage-level backstop for "at most one active attempt".
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrActivePaymentExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	return scanPayment(r.pool.QueryRow(ctx, q, id))
}

func (r *paymentRepo) FindByGatewayRef(ctx context.Context, gateway, ref string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
WHERE gateway=$1 AND (gateway_payment_id=$2 OR gateway_order_id=$2) LIMIT 1;`
	return scanPayment(r.pool.QueryRow(ctx, q, gateway, ref))
}

func (r *paymentRepo) ListByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id=$1 ORDER BY created_at DESC;`
	rows, err := r.pool.Query(ctx, q, bookingID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) SetGatewayRefs(ctx context.Context, id string, orderID, paymentID *string) error {
	const q = `UPDATE payments
SET gateway_order_id=COALESCE($2, gateway_order_id),
    gateway_payment_id=COALESCE($3, gateway_payment_id),
    updated_at=NOW()
WHERE id=$1;`
	if _, err := r.pool.Exec(ctx, q, id, orderID, paymentID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// UpdateStatus is a compare-and-set: only amount-neutral columns move, and
// only when the row is still in the expected source status.
func (r *paymentRepo) UpdateStatus(ctx context.Context, id string, from, to model.PaymentStatus) (bool, error) {
	const q = `UPDATE payments SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2;`
	cmd, err := r.pool.Exec(ctx, q, id, from, to)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MergeMeta(ctx context.Context, id string, kv map[string]interface{}) error {
	const q = `UPDATE payments SET meta = COALESCE(meta, '{}'::jsonb) || $2::jsonb, updated_at=NOW() WHERE id=$1;`
	if _, err := r.pool.Exec(ctx, q, id, kv); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `UPDATE payments SET status='failed', updated_at=NOW()
WHERE id IN (
  SELECT id FROM payments WHERE status='pending' AND created_at < $1
  ORDER BY created_at ASC LIMIT $2
);`
	cmd, err := r.pool.Exec(ctx, q, cutoff, limit)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *paymentRepo) SumSucceededByPeriod(ctx context.Context, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_paise),0) FROM payments
WHERE status IN ('succeeded','refunded') AND updated_at >= DATE_TRUNC($1, NOW());`
	var sum int64
	if err := r.pool.QueryRow(ctx, q, period).Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
