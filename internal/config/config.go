// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty = use the in-process lock table
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RazorpayConfig struct {
	KeyID         string `yaml:"key_id"`
	KeySecret     string `yaml:"key_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

type StripeConfig struct {
	SecretKey     string        `yaml:"secret_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	BaseURL       string        `yaml:"base_url"`
	Tolerance     time.Duration `yaml:"tolerance"` // webhook timestamp tolerance
}

type PaymentConfig struct {
	Provider       string         `yaml:"provider"` // razorpay | stripe | noop (dev only)
	LockTTL        time.Duration  `yaml:"lock_ttl"`
	GatewayTimeout time.Duration  `yaml:"gateway_timeout"`
	Razorpay       RazorpayConfig `yaml:"razorpay"`
	Stripe         StripeConfig   `yaml:"stripe"`
}

type PricingConfig struct {
	DefaultRatePaise int64            `yaml:"default_rate_paise"`
	EcoFeePaisePerKg int64            `yaml:"eco_fee_paise_per_kg"`
	RatesPaise       map[string]int64 `yaml:"rates_paise"` // destination id -> per person per night
}

type ReaperConfig struct {
	Interval      time.Duration `yaml:"interval"`
	PendingMaxAge time.Duration `yaml:"pending_max_age"`
}

type RateLimitConfig struct {
	IntentPerMinute int `yaml:"intent_per_minute"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Reaper    ReaperConfig    `yaml:"reaper"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "razorpay"
	}
	if cfg.Payment.LockTTL <= 0 {
		cfg.Payment.LockTTL = 15 * time.Second
	}
	if cfg.Payment.GatewayTimeout <= 0 {
		cfg.Payment.GatewayTimeout = 10 * time.Second
	}
	if cfg.Reaper.Interval <= 0 {
		cfg.Reaper.Interval = time.Minute
	}
	if cfg.Reaper.PendingMaxAge <= 0 {
		cfg.Reaper.PendingMaxAge = 30 * time.Minute
	}
	if cfg.RateLimit.IntentPerMinute <= 0 {
		cfg.RateLimit.IntentPerMinute = 10
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	switch cfg.Payment.Provider {
	case "razorpay":
		if cfg.Payment.Razorpay.KeyID == "" || cfg.Payment.Razorpay.KeySecret == "" {
			return nil, errors.New("payment.razorpay.key_id and key_secret are required")
		}
	case "stripe":
		if cfg.Payment.Stripe.SecretKey == "" {
			return nil, errors.New("payment.stripe.secret_key is required")
		}
	case "noop":
		if !dev {
			return nil, errors.New("payment.provider noop is only allowed with -dev")
		}
	default:
		return nil, fmt.Errorf("unknown payment.provider %q", cfg.Payment.Provider)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
