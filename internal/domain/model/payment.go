package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"         // row created; gateway order may not exist yet
	PaymentStatusProcessing     PaymentStatus = "processing"      // provider is moving money; awaiting final event
	PaymentStatusRequiresAction PaymentStatus = "requires_action" // 3DS / OTP challenge pending on provider UI
	PaymentStatusSucceeded      PaymentStatus = "succeeded"       // captured at provider; the booking is paid
	PaymentStatusFailed         PaymentStatus = "failed"          // provider declined or gateway call failed
	PaymentStatusCancelled      PaymentStatus = "cancelled"       // abandoned or cancelled before capture
	PaymentStatusRefunded       PaymentStatus = "refunded"        // money returned after a successful capture
)

// Terminal reports whether no further transition is permitted from s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment records one attempt to pay for a booking. A booking may accumulate
// several rows over its lifetime (failed and retried attempts are never
// deleted) but at most one of them is non-terminal at any instant, and at
// most one ever reaches succeeded.
type Payment struct {
	ID               string // ULID
	BookingID        string
	UserID           string // must match the booking owner
	AmountPaise      int64  // minor units (paise), fixed at creation
	Currency         string // ISO code, e.g. "INR"
	Gateway          string // provider that handles this attempt, fixed at creation
	GatewayOrderID   *string
	GatewayPaymentID *string
	Status           PaymentStatus
	Meta             map[string]interface{} // audit snapshot (destination, customer), serialized as JSONB
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NextStatus returns the status a payment in `from` moves to when `kind`
// arrives, and whether the transition is allowed at all. Events that do not
// appear here for the given source status are no-ops; that is what makes
// reconciliation safe under duplicated and out-of-order webhook delivery.
func NextStatus(from PaymentStatus, kind EventKind) (PaymentStatus, bool) {
	switch kind {
	case EventAuthorized, EventCaptured:
		if from == PaymentStatusPending || from == PaymentStatusRequiresAction {
			return PaymentStatusSucceeded, true
		}
	case EventRequiresAction:
		if from == PaymentStatusPending {
			return PaymentStatusRequiresAction, true
		}
	case EventFailed:
		if from == PaymentStatusPending || from == PaymentStatusRequiresAction {
			return PaymentStatusFailed, true
		}
	case EventCancelled:
		if from == PaymentStatusPending || from == PaymentStatusRequiresAction || from == PaymentStatusProcessing {
			return PaymentStatusCancelled, true
		}
	case EventRefunded:
		if from == PaymentStatusSucceeded {
			return PaymentStatusRefunded, true
		}
	}
	return from, false
}
