// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ecotrail-payments/internal/config"
	"ecotrail-payments/internal/domain/ports/adapter"
	"ecotrail-payments/internal/domain/ports/lock"
	pg "ecotrail-payments/internal/infra/db/postgres"
	"ecotrail-payments/internal/infra/gateway"
	"ecotrail-payments/internal/infra/logging"
	"ecotrail-payments/internal/infra/memlock"
	"ecotrail-payments/internal/infra/metrics"
	"ecotrail-payments/internal/infra/pricing"
	red "ecotrail-payments/internal/infra/redis"
	"ecotrail-payments/internal/infra/sched"
	"ecotrail-payments/internal/infra/web"
	"ecotrail-payments/internal/infra/worker"
	"ecotrail-payments/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	paymentRepo := pg.NewPaymentRepo(pool)
	bookingRepo := pg.NewBookingRepo(pool)

	// ---- Locking & rate limiting ----
	// Redis when configured (multi-instance), in-process lock table otherwise.
	var locker lock.Locker
	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		logger.Info().Msg("booking lock: redis")
	} else {
		locker = memlock.New()
		logger.Info().Msg("booking lock: in-process")
	}

	// ---- Gateways ----
	gateways := map[string]adapter.PaymentGateway{}
	if cfg.Payment.Razorpay.KeyID != "" {
		rzp := gateway.NewRazorpayGateway(cfg.Payment.Razorpay.KeyID, cfg.Payment.Razorpay.KeySecret,
			cfg.Payment.Razorpay.WebhookSecret, cfg.Payment.Razorpay.BaseURL)
		gateways[rzp.Name()] = rzp
	}
	if cfg.Payment.Stripe.SecretKey != "" {
		stp := gateway.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret,
			cfg.Payment.Stripe.BaseURL, cfg.Payment.Stripe.Tolerance)
		gateways[stp.Name()] = stp
	}
	if cfg.Runtime.Dev {
		noop := gateway.NewNoopGateway()
		gateways[noop.Name()] = noop
	}
	active, ok := gateways[cfg.Payment.Provider]
	if !ok {
		logger.Fatal().Str("provider", cfg.Payment.Provider).Msg("configured provider has no credentials")
	}
	logger.Info().Str("provider", active.Name()).Msg("active payment gateway")

	// ---- Pricing ----
	calc := pricing.NewStaticCalculator(cfg.Pricing.RatesPaise, cfg.Pricing.DefaultRatePaise, cfg.Pricing.EcoFeePaisePerKg)

	// ---- Workers & use cases ----
	pool2 := worker.NewPool(4, logger)
	pool2.Start(ctx)
	defer pool2.Stop()
	dispatcher := worker.NewDispatcher(pool2, &worker.LogNotifier{Log: logger}, logger)

	intentUC := usecase.NewPaymentIntentUseCase(bookingRepo, paymentRepo, calc, active,
		locker, cfg.Payment.LockTTL, cfg.Payment.GatewayTimeout, logger)
	reconcileUC := usecase.NewReconcileUseCase(paymentRepo, dispatcher, logger)
	refundUC := usecase.NewRefundUseCase(paymentRepo, gateways, dispatcher, logger)
	statsUC := usecase.NewStatsUseCase(paymentRepo)

	// ---- Reaper ----
	reaper := sched.NewPaymentReaper(paymentRepo, cfg.Reaper.Interval, cfg.Reaper.PendingMaxAge, logger)
	go reaper.Start(ctx)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	server := web.NewServer(intentUC, reconcileUC, refundUC, statsUC, gateways, auth,
		limiter, cfg.RateLimit.IntentPerMinute, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.HTTP.Port) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
