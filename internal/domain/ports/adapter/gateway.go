package adapter

import (
	"context"

	"ecotrail-payments/internal/domain/model"
)

// OrderDetails is the opaque per-provider payload a client needs to complete
// payment on the gateway UI.
type OrderDetails struct {
	Gateway     string            `json:"gateway"`
	OrderID     string            `json:"order_id"`
	ClientToken string            `json:"client_token"` // client secret / checkout key, provider-specific
	AmountPaise int64             `json:"amount_paise"`
	Currency    string            `json:"currency"`
	Display     map[string]string `json:"display,omitempty"`
}

// RefundResult captures a minimal, provider-agnostic result of a refund call.
type RefundResult struct {
	RefundID string // provider-issued refund id
	Status   string // provider status, e.g. "processed"
}

// PaymentGateway is the hex port for payment providers. Two concrete
// adapters exist (Razorpay, Stripe); the active one for new intents is
// chosen by configuration, while webhooks and refunds are dispatched to the
// adapter named on the payment row.
type PaymentGateway interface {
	Name() string

	// CreateOrder registers the payment with the provider and returns what
	// the client needs to pay. Blocking external call; honor ctx deadlines.
	CreateOrder(ctx context.Context, p *model.Payment) (*OrderDetails, error)

	// ParseWebhook verifies the signature over the raw body and normalizes
	// the provider payload into a canonical event. Returns
	// domain.ErrSignatureInvalid on a bad signature and domain.ErrEventIgnored
	// for provider events outside the canonical taxonomy.
	ParseWebhook(body []byte, signatureHeader string) (*model.GatewayEvent, error)

	// Refund refunds a captured payment. Idempotent per gateway refund id: a
	// second attempt on an already-refunded payment must be rejected by the
	// provider, not silently retried.
	Refund(ctx context.Context, p *model.Payment, reason string) (RefundResult, error)
}
