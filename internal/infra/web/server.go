package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain/ports/adapter"
	"ecotrail-payments/internal/infra/logging"
	"ecotrail-payments/internal/infra/redis"
	"ecotrail-payments/internal/usecase"
)

// Server exposes the payment-intent HTTP surface: intent creation/listing
// for clients, signature-verified webhooks for the gateways, refunds and
// revenue stats for admins.
type Server struct {
	intentUC  usecase.PaymentIntentUseCase
	reconcile usecase.ReconcileUseCase
	refundUC  usecase.RefundUseCase
	statsUC   usecase.StatsUseCase
	gateways  map[string]adapter.PaymentGateway
	auth      *AuthManager
	limiter   *redis.RateLimiter
	rateLimit int // intent creations per user per minute; 0 disables
	log       *zerolog.Logger

	srv *http.Server
}

func NewServer(
	intentUC usecase.PaymentIntentUseCase,
	reconcile usecase.ReconcileUseCase,
	refundUC usecase.RefundUseCase,
	statsUC usecase.StatsUseCase,
	gateways map[string]adapter.PaymentGateway,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	rateLimit int,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		intentUC:  intentUC,
		reconcile: reconcile,
		refundUC:  refundUC,
		statsUC:   statsUC,
		gateways:  gateways,
		auth:      auth,
		limiter:   limiter,
		rateLimit: rateLimit,
		log:       logger,
	}
}

// Router builds the chi routing tree. Split from Start so tests can mount it
// on httptest servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(traceContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/payments", func(r chi.Router) {
		// Webhooks are unauthenticated; the signature is the authentication.
		r.Post("/webhook/{provider}", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.With(s.intentRateLimit).Post("/intent", s.handleCreateIntent)
			r.Get("/intent", s.handleListIntents)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Post("/refund", s.handleRefund)
			r.Get("/stats", s.handleStats)
		})
	})
	return r
}

func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// traceContext carries the chi request id into the logging context so every
// log line for a request shares a trace_id.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

// intentRateLimit applies the per-user fixed window to intent creation. With
// no redis (single-instance dev runs) it is a no-op.
func (s *Server) intentRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.rateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		userID := userIDFrom(r.Context())
		ok, err := s.limiter.Allow(r.Context(), redis.IntentRateKey(userID), s.rateLimit, time.Minute)
		if err != nil {
			// Limiter outage should not take payments down.
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeError(w, http.StatusTooManyRequests, "too many payment attempts, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
