package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOperationFailed = errors.New("operation failed")
	ErrForbidden       = errors.New("forbidden")
	ErrReadDatabaseRow = errors.New("failed to read database row")

	// Intent-creation rejections
	ErrBookingCancelled    = errors.New("booking is cancelled")
	ErrAlreadyPaid         = errors.New("booking is already paid")
	ErrActivePaymentExists = errors.New("an active payment already exists for this booking")
	ErrLockContention      = errors.New("another payment attempt is in flight for this booking")

	// Gateway / webhook errors
	ErrSignatureInvalid   = errors.New("webhook signature verification failed")
	ErrEventIgnored       = errors.New("webhook event not relevant")
	ErrGatewayUnavailable = errors.New("payment gateway call failed")
	ErrNotRefundable      = errors.New("payment is not refundable")
)
