package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
	"ecotrail-payments/internal/domain/ports/lock"
	"ecotrail-payments/internal/domain/ports/repository"
	"ecotrail-payments/internal/infra/logging"
	"ecotrail-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentIntentUseCase = (*intentUC)(nil)

// IntentResult is what a successful creation hands back to the client.
type IntentResult struct {
	Payment *model.Payment
	Order   *adapter.OrderDetails
	Quote   *model.Quote
}

type PaymentIntentUseCase interface {
	// Create decides whether a new payment attempt may start for the booking
	// and, if so, creates the ledger row and the remote gateway order.
	Create(ctx context.Context, bookingID, userID, methodHint string) (*IntentResult, error)
	// ListByBooking returns every attempt for the booking, newest first, for
	// client-side recovery after a refresh.
	ListByBooking(ctx context.Context, bookingID, userID string) ([]*model.Payment, error)
}

type intentUC struct {
	bookings repository.BookingRepository
	payments repository.PaymentRepository
	pricing  adapter.PricingCalculator
	gateway  adapter.PaymentGateway
	locker   lock.Locker
	lockTTL  time.Duration
	gwTimeout time.Duration
	log      *zerolog.Logger
}

func NewPaymentIntentUseCase(
	bookings repository.BookingRepository,
	payments repository.PaymentRepository,
	pricing adapter.PricingCalculator,
	gateway adapter.PaymentGateway,
	locker lock.Locker,
	lockTTL, gatewayTimeout time.Duration,
	logger *zerolog.Logger,
) *intentUC {
	if lockTTL <= 0 {
		lockTTL = 15 * time.Second
	}
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &intentUC{
		bookings:  bookings,
		payments:  payments,
		pricing:   pricing,
		gateway:   gateway,
		locker:    locker,
		lockTTL:   lockTTL,
		gwTimeout: gatewayTimeout,
		log:       logger,
	}
}

func lockKey(bookingID string) string { return "payment_intent_lock:" + bookingID }

func (u *intentUC) Create(ctx context.Context, bookingID, userID, methodHint string) (*IntentResult, error) {
	defer logging.TraceDuration(u.log, "IntentUC.Create")()
	if bookingID == "" {
		return nil, fmt.Errorf("booking id: %w", domain.ErrInvalidArgument)
	}

	booking, err := u.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if booking.Cancelled() {
		return nil, domain.ErrBookingCancelled
	}

	p, quote, err := u.createRowUnderLock(ctx, booking, methodHint)
	if err != nil {
		return nil, err
	}

	// The lock is released; the slow external call happens outside the
	// critical section. The pending row itself now guards the booking: a
	// concurrent Create sees it and rejects with ErrActivePaymentExists.
	gwCtx, cancel := context.WithTimeout(ctx, u.gwTimeout)
	defer cancel()
	order, err := u.gateway.CreateOrder(gwCtx, p)
	if err != nil {
		// Failed is terminal, so the booking is immediately retryable.
		if _, uerr := u.payments.UpdateStatus(ctx, p.ID, model.PaymentStatusPending, model.PaymentStatusFailed); uerr != nil {
			u.log.Error().Err(uerr).Str("payment_id", p.ID).Msg("mark payment failed after gateway error")
		}
		metrics.IncPayment(string(model.PaymentStatusFailed))
		u.log.Warn().Err(err).Str("booking_id", bookingID).Str("gateway", u.gateway.Name()).Msg("gateway order creation failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	orderID := order.OrderID
	if err := u.payments.SetGatewayRefs(ctx, p.ID, &orderID, nil); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("store gateway order id")
	}
	p.GatewayOrderID = &orderID

	u.log.Info().
		Str("booking_id", bookingID).
		Str("payment_id", p.ID).
		Str("gateway", u.gateway.Name()).
		Int64("amount_paise", p.AmountPaise).
		Msg("payment intent created")
	return &IntentResult{Payment: p, Order: order, Quote: quote}, nil
}

// createRowUnderLock runs the check-then-create sequence under the
// booking-scoped lock. The lock is released on every exit path.
func (u *intentUC) createRowUnderLock(ctx context.Context, booking *model.Booking, methodHint string) (*model.Payment, *model.Quote, error) {
	token, err := u.locker.TryLock(ctx, lockKey(booking.ID), u.lockTTL)
	if err != nil {
		metrics.IncLockAcquisition("contended")
		u.log.Info().Str("booking_id", booking.ID).Msg("intent creation lock contended")
		return nil, nil, domain.ErrLockContention
	}
	metrics.IncLockAcquisition("acquired")
	defer func() {
		if uerr := u.locker.Unlock(ctx, lockKey(booking.ID), token); uerr != nil {
			u.log.Error().Err(uerr).Str("booking_id", booking.ID).Msg("unlock booking")
		}
	}()

	existing, err := u.payments.ListByBooking(ctx, booking.ID)
	if err != nil && err != domain.ErrNotFound {
		return nil, nil, err
	}
	for _, e := range existing {
		if e.Status == model.PaymentStatusSucceeded {
			return nil, nil, domain.ErrAlreadyPaid
		}
	}
	for _, e := range existing {
		if !e.Status.Terminal() {
			return nil, nil, domain.ErrActivePaymentExists
		}
	}

	quote, err := u.pricing.Quote(ctx, booking)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	meta := map[string]interface{}{
		"destination_id":   booking.DestinationID,
		"destination_name": booking.DestinationName,
		"group_size":       booking.GroupSize,
		"check_in":         booking.CheckIn.Format(time.RFC3339),
	}
	if methodHint != "" {
		meta["payment_method_hint"] = methodHint
	}
	p := &model.Payment{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		AmountPaise: quote.AmountPaise,
		Currency:    quote.Currency,
		Gateway:     u.gateway.Name(),
		Status:      model.PaymentStatusPending,
		Meta:        meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.payments.Create(ctx, p); err != nil {
		return nil, nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	return p, quote, nil
}

func (u *intentUC) ListByBooking(ctx context.Context, bookingID, userID string) ([]*model.Payment, error) {
	booking, err := u.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.ErrForbidden
	}
	rows, err := u.payments.ListByBooking(ctx, bookingID)
	if err == domain.ErrNotFound {
		return []*model.Payment{}, nil
	}
	return rows, err
}
