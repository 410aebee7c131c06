package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/infra/logging"
	"ecotrail-payments/internal/infra/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// rejectionStatus maps domain rejections onto HTTP statuses. Lock contention
// is 409 and retryable; business-rule rejections are 400 and are not.
func rejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "not your booking"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrBookingCancelled):
		return http.StatusBadRequest, "booking is cancelled"
	case errors.Is(err, domain.ErrAlreadyPaid):
		return http.StatusBadRequest, "booking is already paid"
	case errors.Is(err, domain.ErrActivePaymentExists):
		return http.StatusBadRequest, "a payment is already in progress; poll its status"
	case errors.Is(err, domain.ErrLockContention):
		return http.StatusConflict, "another payment attempt is in flight; retry shortly"
	case errors.Is(err, domain.ErrNotRefundable):
		return http.StatusBadRequest, "payment is not refundable"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, "payment gateway unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}

type intentRequest struct {
	BookingID     string `json:"booking_id"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type paymentView struct {
	ID               string                 `json:"id"`
	BookingID        string                 `json:"booking_id"`
	AmountPaise      int64                  `json:"amount_paise"`
	Currency         string                 `json:"currency"`
	Gateway          string                 `json:"gateway"`
	GatewayOrderID   *string                `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string                `json:"gateway_payment_id,omitempty"`
	Status           string                 `json:"status"`
	Meta             map[string]interface{} `json:"meta,omitempty"`
	CreatedAt        string                 `json:"created_at"`
	UpdatedAt        string                 `json:"updated_at"`
}

func toView(p *model.Payment) paymentView {
	return paymentView{
		ID:               p.ID,
		BookingID:        p.BookingID,
		AmountPaise:      p.AmountPaise,
		Currency:         p.Currency,
		Gateway:          p.Gateway,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		Status:           string(p.Status),
		Meta:             p.Meta,
		CreatedAt:        p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "booking_id is required")
		return
	}

	ctx := logging.WithBookingID(r.Context(), req.BookingID)
	res, err := s.intentUC.Create(ctx, req.BookingID, userIDFrom(ctx), req.PaymentMethod)
	if err != nil {
		status, msg := rejectionStatus(err)
		if status == http.StatusInternalServerError {
			logging.With(ctx, s.log).Error().Err(err).Msg("create intent failed")
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment_id":    res.Payment.ID,
		"gateway_order": res.Order,
		"pricing":       res.Quote,
	})
}

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	bookingID := r.URL.Query().Get("booking_id")
	if bookingID == "" {
		writeError(w, http.StatusBadRequest, "booking_id is required")
		return
	}

	rows, err := s.intentUC.ListByBooking(r.Context(), bookingID, userIDFrom(r.Context()))
	if err != nil {
		status, msg := rejectionStatus(err)
		writeError(w, status, msg)
		return
	}

	views := make([]paymentView, 0, len(rows))
	for _, p := range rows {
		views = append(views, toView(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": views})
}

// signatureHeaders names each provider's signature header. The provider is
// chosen by the URL path, never by which header happens to be present.
var signatureHeaders = map[string]string{
	"razorpay": "X-Razorpay-Signature",
	"stripe":   "Stripe-Signature",
}

// handleWebhook authenticates by signature only. The raw body is read before
// any parsing; decoding first would destroy the bytes the signature covers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	gw, ok := s.gateways[provider]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := gw.ParseWebhook(body, r.Header.Get(signatureHeaders[provider]))
	if errors.Is(err, domain.ErrSignatureInvalid) {
		metrics.IncSignatureFailure(provider)
		s.log.Warn().Str("gateway", provider).Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	if errors.Is(err, domain.ErrEventIgnored) {
		// Irrelevant event type; acknowledge so the provider stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("gateway", provider).Msg("webhook parse failed")
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	outcome, err := s.reconcile.Apply(r.Context(), ev)
	if err != nil {
		s.log.Error().Err(err).Str("gateway", provider).Msg("webhook apply failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Unmatched and already-terminal both get a 200: only genuine failures
	// should trigger provider retries.
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

type refundRequest struct {
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "payment_id is required")
		return
	}

	ctx := logging.WithPaymentID(r.Context(), req.PaymentID)
	p, err := s.refundUC.Refund(ctx, req.PaymentID, req.Reason)
	if err != nil {
		status, msg := rejectionStatus(err)
		if errors.Is(err, domain.ErrNotFound) {
			msg = "payment not found"
		}
		if status == http.StatusInternalServerError {
			logging.With(ctx, s.log).Error().Err(err).Msg("refund failed")
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, toView(p))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	week, month, year, err := s.statsUC.Revenue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get revenue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"revenue_paise": map[string]int64{
			"week":  week,
			"month": month,
			"year":  year,
		},
	})
}
