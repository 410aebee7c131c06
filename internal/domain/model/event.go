package model

import "time"

// EventKind is the canonical, provider-agnostic webhook event taxonomy.
// Gateway adapters map each provider's own event names onto these kinds;
// nothing provider-specific leaks past the adapter layer.
type EventKind string

const (
	EventAuthorized     EventKind = "authorized"
	EventCaptured       EventKind = "captured"
	EventFailed         EventKind = "failed"
	EventCancelled      EventKind = "cancelled"
	EventRequiresAction EventKind = "requires_action"
	EventRefunded       EventKind = "refunded"
)

// GatewayEvent is a normalized webhook event as produced by a gateway
// adapter after signature verification.
type GatewayEvent struct {
	Kind             EventKind
	Gateway          string // adapter name, e.g. "razorpay"
	GatewayPaymentID string // provider payment id; may be empty pre-capture
	GatewayOrderID   string // provider order/intent id
	MethodLabel      string // optional display label, e.g. "upi", "card"
	ReceivedAt       time.Time
}

// Ref returns the provider reference to look a payment up by. The order id
// is preferred: it is the one reference the ledger holds from creation,
// before any event has revealed the provider's payment id. Refund events
// carry only a payment id and fall through to it.
func (e *GatewayEvent) Ref() string {
	if e.GatewayOrderID != "" {
		return e.GatewayOrderID
	}
	return e.GatewayPaymentID
}

// StatusChange is published whenever reconciliation (or the refund flow)
// moves a payment to a new status. Delivery to clients is someone else's
// concern; this core only emits the fact.
type StatusChange struct {
	PaymentID string
	BookingID string
	From      PaymentStatus
	To        PaymentStatus
	Gateway   string
	At        time.Time
}
