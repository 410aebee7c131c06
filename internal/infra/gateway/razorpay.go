package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements the gateway port using Razorpay's Orders API.
type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func NewRazorpayGateway(keyID, keySecret, webhookSecret, baseURL string) *RazorpayGateway {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &RazorpayGateway{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, p *model.Payment) (*adapter.OrderDetails, error) {
	requestData := map[string]interface{}{
		"amount":   p.AmountPaise, // Razorpay expects paise
		"currency": p.Currency,
		"receipt":  p.ID,
		"notes": map[string]string{
			"booking_id": p.BookingID,
		},
	}
	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/v1/orders", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr razorpayErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != "" {
			return nil, fmt.Errorf("razorpay error: code %s, message: %s", apiErr.Error.Code, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var order razorpayOrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	return &adapter.OrderDetails{
		Gateway:     g.Name(),
		OrderID:     order.ID,
		ClientToken: g.keyID, // checkout.js needs the public key id
		AmountPaise: order.Amount,
		Currency:    order.Currency,
		Display: map[string]string{
			"checkout": "razorpay",
		},
	}, nil
}

// razorpayEventKinds maps Razorpay webhook event names onto the canonical
// taxonomy. Events absent from this table are acknowledged but ignored
// (order.paid duplicates payment.captured, settlement events are irrelevant).
var razorpayEventKinds = map[string]model.EventKind{
	"payment.authorized": model.EventAuthorized,
	"payment.captured":   model.EventCaptured,
	"payment.failed":     model.EventFailed,
	"refund.processed":   model.EventRefunded,
}

type razorpayWebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Method  string `json:"method"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

func (g *RazorpayGateway) ParseWebhook(body []byte, signatureHeader string) (*model.GatewayEvent, error) {
	if !verifySignature(g.webhookSecret, body, signatureHeader) {
		return nil, domain.ErrSignatureInvalid
	}

	var payload razorpayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook payload: %w", err)
	}

	kind, ok := razorpayEventKinds[payload.Event]
	if !ok {
		return nil, domain.ErrEventIgnored
	}

	ev := &model.GatewayEvent{
		Kind:       kind,
		Gateway:    g.Name(),
		ReceivedAt: time.Now(),
	}
	if kind == model.EventRefunded {
		ev.GatewayPaymentID = payload.Payload.Refund.Entity.PaymentID
	} else {
		ev.GatewayPaymentID = payload.Payload.Payment.Entity.ID
		ev.GatewayOrderID = payload.Payload.Payment.Entity.OrderID
		ev.MethodLabel = payload.Payload.Payment.Entity.Method
	}
	return ev, nil
}

func (g *RazorpayGateway) Refund(ctx context.Context, p *model.Payment, reason string) (adapter.RefundResult, error) {
	if p.GatewayPaymentID == nil || *p.GatewayPaymentID == "" {
		return adapter.RefundResult{}, fmt.Errorf("payment %s has no gateway payment id", p.ID)
	}

	requestData := map[string]interface{}{
		"amount":  p.AmountPaise,
		"receipt": "rf-" + p.ID, // provider-side idempotency handle
		"notes": map[string]string{
			"reason": reason,
		},
	}
	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return adapter.RefundResult{}, fmt.Errorf("failed to marshal request data: %w", err)
	}

	url := fmt.Sprintf("%s/v1/payments/%s/refund", g.baseURL, *p.GatewayPaymentID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return adapter.RefundResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.RefundResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.RefundResult{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr razorpayErrorResponse
		if json.Unmarshal(body, &apiErr) == nil {
			if strings.Contains(apiErr.Error.Description, "fully refunded") {
				return adapter.RefundResult{}, domain.ErrNotRefundable
			}
			return adapter.RefundResult{}, fmt.Errorf("razorpay refund error: %s", apiErr.Error.Description)
		}
		return adapter.RefundResult{}, fmt.Errorf("razorpay refund error: status %d", resp.StatusCode)
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
