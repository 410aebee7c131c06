package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
)

const rzpWebhookSecret = "whsec_rzp"

func razorpayBody(event, paymentID, orderID, method string) []byte {
	body := map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": orderID,
					"method":   method,
				},
			},
		},
	}
	b, _ := json.Marshal(body)
	return b
}

func TestRazorpayParseWebhook(t *testing.T) {
	g := NewRazorpayGateway("rzp_test_key", "secret", rzpWebhookSecret, "")

	t.Run("maps provider events onto the canonical taxonomy", func(t *testing.T) {
		tests := []struct {
			event string
			want  model.EventKind
		}{
			{"payment.authorized", model.EventAuthorized},
			{"payment.captured", model.EventCaptured},
			{"payment.failed", model.EventFailed},
		}
		for _, tc := range tests {
			body := razorpayBody(tc.event, "pay_123", "order_456", "upi")
			ev, err := g.ParseWebhook(body, hmacSHA256Hex(rzpWebhookSecret, body))
			if err != nil {
				t.Fatalf("%s: %v", tc.event, err)
			}
			if ev.Kind != tc.want {
				t.Errorf("%s: kind = %s, want %s", tc.event, ev.Kind, tc.want)
			}
			if ev.GatewayPaymentID != "pay_123" || ev.GatewayOrderID != "order_456" {
				t.Errorf("%s: refs = %q/%q", tc.event, ev.GatewayPaymentID, ev.GatewayOrderID)
			}
			if ev.MethodLabel != "upi" {
				t.Errorf("%s: method = %q", tc.event, ev.MethodLabel)
			}
		}
	})

	t.Run("refund event carries the refunded payment id", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"event": "refund.processed",
			"payload": map[string]interface{}{
				"refund": map[string]interface{}{
					"entity": map[string]interface{}{
						"id":         "rfnd_789",
						"payment_id": "pay_123",
					},
				},
			},
		})
		ev, err := g.ParseWebhook(body, hmacSHA256Hex(rzpWebhookSecret, body))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if ev.Kind != model.EventRefunded || ev.GatewayPaymentID != "pay_123" {
			t.Errorf("unexpected event: %+v", ev)
		}
	})

	t.Run("rejects a forged signature", func(t *testing.T) {
		body := razorpayBody("payment.captured", "pay_123", "order_456", "card")
		_, err := g.ParseWebhook(body, hmacSHA256Hex("wrong_secret", body))
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("ignores events outside the taxonomy", func(t *testing.T) {
		body := razorpayBody("order.paid", "pay_123", "order_456", "card")
		_, err := g.ParseWebhook(body, hmacSHA256Hex(rzpWebhookSecret, body))
		if !errors.Is(err, domain.ErrEventIgnored) {
			t.Fatalf("err = %v, want ErrEventIgnored", err)
		}
	})
}

func TestRazorpayCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, _ := r.BasicAuth()
		if user != "rzp_test_key" || pass != "secret" {
			t.Error("missing basic auth credentials")
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["amount"].(float64) != 180000 || req["currency"] != "INR" {
			t.Errorf("unexpected order request: %v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_xyz",
			"amount":   180000,
			"currency": "INR",
			"status":   "created",
		})
	}))
	defer srv.Close()

	g := NewRazorpayGateway("rzp_test_key", "secret", rzpWebhookSecret, srv.URL)
	order, err := g.CreateOrder(context.Background(), &model.Payment{
		ID: "P-1", BookingID: "BK-1", AmountPaise: 180_000, Currency: "INR",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.OrderID != "order_xyz" || order.AmountPaise != 180_000 {
		t.Errorf("unexpected order: %+v", order)
	}
	if order.ClientToken != "rzp_test_key" {
		t.Error("client token should be the public key id")
	}
}

func TestRazorpayCreateOrderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "BAD_REQUEST_ERROR", "description": "amount too small"},
		})
	}))
	defer srv.Close()

	g := NewRazorpayGateway("k", "s", rzpWebhookSecret, srv.URL)
	_, err := g.CreateOrder(context.Background(), &model.Payment{ID: "P-1", AmountPaise: 50, Currency: "INR"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestRazorpayRefund(t *testing.T) {
	t.Run("posts to the payment's refund endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/payments/pay_123/refund" {
				t.Errorf("path = %s", r.URL.Path)
			}
			var req map[string]interface{}
			json.NewDecoder(r.Body).Decode(&req)
			if req["receipt"] != "rf-P-1" {
				t.Errorf("receipt = %v, want rf-P-1", req["receipt"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "rfnd_1", "status": "processed"})
		}))
		defer srv.Close()

		g := NewRazorpayGateway("k", "s", rzpWebhookSecret, srv.URL)
		pid := "pay_123"
		res, err := g.Refund(context.Background(), &model.Payment{ID: "P-1", AmountPaise: 180_000, GatewayPaymentID: &pid}, "operator cancelled")
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
		if res.RefundID != "rfnd_1" || res.Status != "processed" {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("already fully refunded maps to ErrNotRefundable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": "BAD_REQUEST_ERROR", "description": "The payment is already fully refunded"},
			})
		}))
		defer srv.Close()

		g := NewRazorpayGateway("k", "s", rzpWebhookSecret, srv.URL)
		pid := "pay_123"
		_, err := g.Refund(context.Background(), &model.Payment{ID: "P-1", GatewayPaymentID: &pid}, "x")
		if !errors.Is(err, domain.ErrNotRefundable) {
			t.Fatalf("err = %v, want ErrNotRefundable", err)
		}
	})

	t.Run("refund without a captured payment id is rejected", func(t *testing.T) {
		g := NewRazorpayGateway("k", "s", rzpWebhookSecret, "")
		if _, err := g.Refund(context.Background(), &model.Payment{ID: "P-1"}, "x"); err == nil {
			t.Fatal("expected an error")
		}
	})
}
