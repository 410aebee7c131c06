package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway implements the gateway port using Stripe PaymentIntents.
// The intent id doubles as our gateway order id; charge-level events carry a
// payment_intent back-reference so reconciliation can always find the row.
type StripeGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	tolerance     time.Duration
	client        *http.Client
	now           func() time.Time // injectable for signature-tolerance tests
}

func NewStripeGateway(secretKey, webhookSecret, baseURL string, tolerance time.Duration) *StripeGateway {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &StripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		tolerance:     tolerance,
		client:        &http.Client{Timeout: 15 * time.Second},
		now:           time.Now,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

type stripeIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// postForm sends a form-encoded request the way the Stripe API expects.
func (g *StripeGateway) postForm(ctx context.Context, path string, form url.Values, idempotencyKey string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (g *StripeGateway) CreateOrder(ctx context.Context, p *model.Payment) (*adapter.OrderDetails, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountPaise, 10))
	form.Set("currency", strings.ToLower(p.Currency))
	form.Set("metadata[payment_ref]", p.ID)
	form.Set("metadata[booking_id]", p.BookingID)

	body, status, err := g.postForm(ctx, "/v1/payment_intents", form, "intent-"+p.ID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var apiErr stripeErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe error: %s (%s)", apiErr.Error.Message, apiErr.Error.Code)
		}
		return nil, fmt.Errorf("stripe error: status %d, body: %s", status, string(body))
	}

	var intent stripeIntentResponse
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	return &adapter.OrderDetails{
		Gateway:     g.Name(),
		OrderID:     intent.ID,
		ClientToken: intent.ClientSecret,
		AmountPaise: intent.Amount,
		Currency:    strings.ToUpper(intent.Currency),
		Display: map[string]string{
			"checkout": "stripe-elements",
		},
	}, nil
}

// stripeEventKinds maps Stripe webhook event types onto the canonical
// taxonomy. payment_intent.processing and the charge.succeeded duplicate are
// deliberately absent: they change nothing the ledger cares about.
var stripeEventKinds = map[string]model.EventKind{
	"payment_intent.amount_capturable_updated": model.EventAuthorized,
	"payment_intent.succeeded":                 model.EventCaptured,
	"payment_intent.payment_failed":            model.EventFailed,
	"payment_intent.canceled":                  model.EventCancelled,
	"payment_intent.requires_action":           model.EventRequiresAction,
	"charge.refunded":                          model.EventRefunded,
}

type stripeWebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
			PaymentMethodTypes []string `json:"payment_method_types"`
		} `json:"object"`
	} `json:"data"`
}

// parseSigHeader extracts the timestamp and v1 signatures from a
// Stripe-Signature header: "t=<unix>,v1=<hex>[,v1=<hex>...]".
func parseSigHeader(header string) (ts int64, sigs []string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err = strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("bad timestamp: %w", err)
			}
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("missing t or v1 component")
	}
	return ts, sigs, nil
}

func (g *StripeGateway) ParseWebhook(body []byte, signatureHeader string) (*model.GatewayEvent, error) {
	ts, sigs, err := parseSigHeader(signatureHeader)
	if err != nil {
		return nil, domain.ErrSignatureInvalid
	}
	if d := g.now().Sub(time.Unix(ts, 0)); d > g.tolerance || d < -g.tolerance {
		// Stale timestamp: possible replay of a captured delivery.
		return nil, domain.ErrSignatureInvalid
	}

	signed := append([]byte(strconv.FormatInt(ts, 10)+"."), body...)
	valid := false
	for _, sig := range sigs {
		if verifySignature(g.webhookSecret, signed, sig) {
			valid = true
		}
	}
	if !valid {
		return nil, domain.ErrSignatureInvalid
	}

	var payload stripeWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook payload: %w", err)
	}

	kind, ok := stripeEventKinds[payload.Type]
	if !ok {
		return nil, domain.ErrEventIgnored
	}

	ev := &model.GatewayEvent{
		Kind:       kind,
		Gateway:    g.Name(),
		ReceivedAt: time.Now(),
	}
	if strings.HasPrefix(payload.Data.Object.ID, "pi_") {
		ev.GatewayOrderID = payload.Data.Object.ID
	} else {
		// charge.* events carry the intent as a back-reference
		ev.GatewayPaymentID = payload.Data.Object.ID
		ev.GatewayOrderID = payload.Data.Object.PaymentIntent
	}
	if len(payload.Data.Object.PaymentMethodTypes) > 0 {
		ev.MethodLabel = payload.Data.Object.PaymentMethodTypes[0]
	}
	return ev, nil
}

func (g *StripeGateway) Refund(ctx context.Context, p *model.Payment, reason string) (adapter.RefundResult, error) {
	if p.GatewayOrderID == nil || *p.GatewayOrderID == "" {
		return adapter.RefundResult{}, fmt.Errorf("payment %s has no gateway intent id", p.ID)
	}

	form := url.Values{}
	form.Set("payment_intent", *p.GatewayOrderID)
	form.Set("metadata[reason]", reason)

	// Idempotency-Key pins retries of this refund to a single provider-side
	// refund object; a second refund of the same payment is rejected.
	body, status, err := g.postForm(ctx, "/v1/refunds", form, "refund-"+p.ID)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	if status != http.StatusOK {
		var apiErr stripeErrorResponse
		if json.Unmarshal(body, &apiErr) == nil {
			if apiErr.Error.Code == "charge_already_refunded" {
				return adapter.RefundResult{}, domain.ErrNotRefundable
			}
			return adapter.RefundResult{}, fmt.Errorf("stripe refund error: %s (%s)", apiErr.Error.Message, apiErr.Error.Code)
		}
		return adapter.RefundResult{}, fmt.Errorf("stripe refund error: status %d", status)
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &refund); err != nil {
		return adapter.RefundResult{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return adapter.RefundResult{RefundID: refund.ID, Status: refund.Status}, nil
}
