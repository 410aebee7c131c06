package web

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
	"ecotrail-payments/internal/infra/gateway"
	"ecotrail-payments/internal/usecase"
)

const testWebhookSecret = "whsec_test"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type stubIntentUC struct {
	createFn func(ctx context.Context, bookingID, userID, hint string) (*usecase.IntentResult, error)
	listFn   func(ctx context.Context, bookingID, userID string) ([]*model.Payment, error)
}

func (s *stubIntentUC) Create(ctx context.Context, bookingID, userID, hint string) (*usecase.IntentResult, error) {
	return s.createFn(ctx, bookingID, userID, hint)
}

func (s *stubIntentUC) ListByBooking(ctx context.Context, bookingID, userID string) ([]*model.Payment, error) {
	return s.listFn(ctx, bookingID, userID)
}

type stubReconcileUC struct {
	applied []*model.GatewayEvent
	outcome usecase.ApplyOutcome
}

func (s *stubReconcileUC) Apply(_ context.Context, ev *model.GatewayEvent) (usecase.ApplyOutcome, error) {
	s.applied = append(s.applied, ev)
	if s.outcome == "" {
		return usecase.OutcomeApplied, nil
	}
	return s.outcome, nil
}

type stubRefundUC struct {
	refundFn func(ctx context.Context, paymentID, reason string) (*model.Payment, error)
}

func (s *stubRefundUC) Refund(ctx context.Context, paymentID, reason string) (*model.Payment, error) {
	return s.refundFn(ctx, paymentID, reason)
}

type stubStatsUC struct{}

func (s *stubStatsUC) Revenue(context.Context) (int64, int64, int64, error) {
	return 100, 200, 300, nil
}

type serverFixture struct {
	srv       *httptest.Server
	auth      *AuthManager
	intent    *stubIntentUC
	reconcile *stubReconcileUC
	refund    *stubRefundUC
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := zerolog.Nop()
	auth := NewAuthManager("test-secret", time.Hour)

	f := &serverFixture{
		auth:      auth,
		intent:    &stubIntentUC{},
		reconcile: &stubReconcileUC{},
		refund:    &stubRefundUC{},
	}
	f.intent.createFn = func(_ context.Context, bookingID, userID, _ string) (*usecase.IntentResult, error) {
		return &usecase.IntentResult{
			Payment: &model.Payment{ID: "P-1", BookingID: bookingID, UserID: userID, Status: model.PaymentStatusPending},
			Order:   &adapter.OrderDetails{Gateway: "razorpay", OrderID: "order_1"},
			Quote:   &model.Quote{AmountPaise: 180_000, Currency: "INR"},
		}, nil
	}
	f.intent.listFn = func(context.Context, string, string) ([]*model.Payment, error) {
		return []*model.Payment{}, nil
	}
	f.refund.refundFn = func(_ context.Context, paymentID, _ string) (*model.Payment, error) {
		return &model.Payment{ID: paymentID, Status: model.PaymentStatusRefunded, Currency: "INR"}, nil
	}

	gateways := map[string]adapter.PaymentGateway{
		"razorpay": gateway.NewRazorpayGateway("key", "secret", testWebhookSecret, ""),
	}
	server := NewServer(f.intent, f.reconcile, f.refund, &stubStatsUC{}, gateways, auth, nil, 0, &logger)
	f.srv = httptest.NewServer(server.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *serverFixture) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := f.auth.Mint(userID, role)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateIntentEndpoint(t *testing.T) {
	t.Run("creates an intent for an authenticated user", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, "POST", "/api/v1/payments/intent", f.token(t, "user-1", "user"),
			map[string]string{"booking_id": "BK-1"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want 201", resp.StatusCode)
		}
		var out map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&out)
		if out["payment_id"] != "P-1" {
			t.Errorf("payment_id = %v", out["payment_id"])
		}
	})

	t.Run("rejects missing bearer token", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, "POST", "/api/v1/payments/intent", "", map[string]string{"booking_id": "BK-1"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("rejects missing booking_id", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, "POST", "/api/v1/payments/intent", f.token(t, "user-1", "user"), map[string]string{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("maps domain rejections onto statuses", func(t *testing.T) {
		tests := []struct {
			err  error
			want int
		}{
			{domain.ErrNotFound, http.StatusNotFound},
			{domain.ErrForbidden, http.StatusForbidden},
			{domain.ErrBookingCancelled, http.StatusBadRequest},
			{domain.ErrAlreadyPaid, http.StatusBadRequest},
			{domain.ErrActivePaymentExists, http.StatusBadRequest},
			{domain.ErrLockContention, http.StatusConflict},
			{domain.ErrGatewayUnavailable, http.StatusBadGateway},
		}
		for _, tc := range tests {
			f := newFixture(t)
			tcErr := tc.err
			f.intent.createFn = func(context.Context, string, string, string) (*usecase.IntentResult, error) {
				return nil, tcErr
			}
			resp := f.do(t, "POST", "/api/v1/payments/intent", f.token(t, "user-1", "user"),
				map[string]string{"booking_id": "BK-1"})
			if resp.StatusCode != tc.want {
				t.Errorf("%v: status = %d, want %d", tc.err, resp.StatusCode, tc.want)
			}
		}
	})
}

func TestWebhookEndpoint(t *testing.T) {
	webhookBody := func() []byte {
		b, _ := json.Marshal(map[string]interface{}{
			"event": "payment.captured",
			"payload": map[string]interface{}{
				"payment": map[string]interface{}{
					"entity": map[string]interface{}{"id": "pay_1", "order_id": "order_1", "method": "upi"},
				},
			},
		})
		return b
	}

	post := func(t *testing.T, f *serverFixture, path string, body []byte, sig string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest("POST", f.srv.URL+path, bytes.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Razorpay-Signature", sig)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post webhook: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("valid signature applies the event", func(t *testing.T) {
		f := newFixture(t)
		body := webhookBody()
		resp := post(t, f, "/api/v1/payments/webhook/razorpay", body, signBody(testWebhookSecret, body))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if len(f.reconcile.applied) != 1 {
			t.Fatalf("applied events = %d, want 1", len(f.reconcile.applied))
		}
		if f.reconcile.applied[0].Kind != model.EventCaptured {
			t.Errorf("kind = %s", f.reconcile.applied[0].Kind)
		}
	})

	t.Run("forged signature is 401 and never reaches reconciliation", func(t *testing.T) {
		f := newFixture(t)
		body := webhookBody()
		resp := post(t, f, "/api/v1/payments/webhook/razorpay", body, signBody("wrong", body))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		if len(f.reconcile.applied) != 0 {
			t.Error("forged webhook must not reach reconciliation")
		}
	})

	t.Run("unknown provider is 404", func(t *testing.T) {
		f := newFixture(t)
		body := webhookBody()
		resp := post(t, f, "/api/v1/payments/webhook/paypal", body, signBody(testWebhookSecret, body))
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("irrelevant event types are acknowledged as ignored", func(t *testing.T) {
		f := newFixture(t)
		body, _ := json.Marshal(map[string]interface{}{"event": "settlement.processed"})
		resp := post(t, f, "/api/v1/payments/webhook/razorpay", body, signBody(testWebhookSecret, body))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var out map[string]string
		json.NewDecoder(resp.Body).Decode(&out)
		if out["status"] != "ignored" {
			t.Errorf("status body = %q, want ignored", out["status"])
		}
		if len(f.reconcile.applied) != 0 {
			t.Error("ignored event must not reach reconciliation")
		}
	})
}

func TestRefundEndpoint(t *testing.T) {
	t.Run("admin can refund", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, "POST", "/api/v1/payments/refund", f.token(t, "admin-1", "admin"),
			map[string]string{"payment_id": "P-1", "reason": "trip cancelled"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var out paymentView
		json.NewDecoder(resp.Body).Decode(&out)
		if out.Status != "refunded" {
			t.Errorf("status = %s, want refunded", out.Status)
		}
	})

	t.Run("plain users cannot refund", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, "POST", "/api/v1/payments/refund", f.token(t, "user-1", "user"),
			map[string]string{"payment_id": "P-1"})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("non-refundable payment is 400", func(t *testing.T) {
		f := newFixture(t)
		f.refund.refundFn = func(context.Context, string, string) (*model.Payment, error) {
			return nil, domain.ErrNotRefundable
		}
		resp := f.do(t, "POST", "/api/v1/payments/refund", f.token(t, "admin-1", "admin"),
			map[string]string{"payment_id": "P-1"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, "GET", "/api/v1/payments/stats", f.token(t, "admin-1", "admin"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Revenue map[string]int64 `json:"revenue_paise"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Revenue["week"] != 100 || out.Revenue["year"] != 300 {
		t.Errorf("unexpected revenue: %v", out.Revenue)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, "GET", "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
