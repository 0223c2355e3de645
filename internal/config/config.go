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

type ServerConfig struct {
	Port int `yaml:"port"`
	// ClientURL is the SPA origin used for provider success/cancel redirects.
	ClientURL string `yaml:"client_url"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	// JWTSecret verifies bearer tokens minted by the auth service.
	// Token issuance is out of scope here.
	JWTSecret string `yaml:"jwt_secret"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"` // override for tests; defaults to the live API
}

type PayPalConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sandbox      bool   `yaml:"sandbox"`
	BaseURL      string `yaml:"base_url"`
}

type VietQRConfig struct {
	BankCode      string        `yaml:"bank_code"`
	BankName      string        `yaml:"bank_name"`
	AccountNumber string        `yaml:"account_number"`
	AccountName   string        `yaml:"account_name"`
	WebhookSecret string        `yaml:"webhook_secret"`
	// SkipSignature bypasses webhook verification. Honored only in dev mode.
	SkipSignature bool          `yaml:"skip_signature"`
	QRExpiry      time.Duration `yaml:"qr_expiry"`     // bare QR window
	EnrollExpiry  time.Duration `yaml:"enroll_expiry"` // quick-enroll window
}

type SMTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	AdminEmail string `yaml:"admin_email"` // anomaly alert recipient
}

type InvoiceConfig struct {
	Dir string `yaml:"dir"` // where rendered PDFs are persisted
}

// AmountMismatchPolicy decides what a success notification with a wrong
// amount does: "flag" completes the payment and raises an alert, "block"
// fails it instead.
type PaymentPolicyConfig struct {
	AmountMismatchPolicy string `yaml:"amount_mismatch_policy"` // flag|block
	// CheckoutRatePerMinute caps checkout initiations per user.
	CheckoutRatePerMinute int `yaml:"checkout_rate_per_minute"`
}

type SchedConfig struct {
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
	ExpirySweepBatch    int           `yaml:"expiry_sweep_batch"`
}

type Config struct {
	Server   ServerConfig        `yaml:"server"`
	Log      LogConfig           `yaml:"log"`
	Database DatabaseConfig      `yaml:"database"`
	Redis    RedisConfig         `yaml:"redis"`
	Auth     AuthConfig          `yaml:"auth"`
	Stripe   StripeConfig        `yaml:"stripe"`
	PayPal   PayPalConfig        `yaml:"paypal"`
	VietQR   VietQRConfig        `yaml:"vietqr"`
	SMTP     SMTPConfig          `yaml:"smtp"`
	Invoice  InvoiceConfig       `yaml:"invoice"`
	Payment  PaymentPolicyConfig `yaml:"payment"`
	Sched    SchedConfig         `yaml:"sched"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	MismatchPolicyFlag  = "flag"
	MismatchPolicyBlock = "block"
)

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
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.VietQR.QRExpiry <= 0 {
		cfg.VietQR.QRExpiry = 15 * time.Minute
	}
	if cfg.VietQR.EnrollExpiry <= 0 {
		cfg.VietQR.EnrollExpiry = 30 * time.Minute
	}
	if cfg.Invoice.Dir == "" {
		cfg.Invoice.Dir = "invoices"
	}
	if cfg.Payment.AmountMismatchPolicy == "" {
		cfg.Payment.AmountMismatchPolicy = MismatchPolicyFlag
	}
	if cfg.Payment.CheckoutRatePerMinute <= 0 {
		cfg.Payment.CheckoutRatePerMinute = 10
	}
	if cfg.Sched.ExpirySweepInterval <= 0 {
		cfg.Sched.ExpirySweepInterval = 5 * time.Minute
	}
	if cfg.Sched.ExpirySweepBatch <= 0 {
		cfg.Sched.ExpirySweepBatch = 200
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Payment.AmountMismatchPolicy != MismatchPolicyFlag && cfg.Payment.AmountMismatchPolicy != MismatchPolicyBlock {
		return nil, fmt.Errorf("payment.amount_mismatch_policy must be %q or %q", MismatchPolicyFlag, MismatchPolicyBlock)
	}
	if cfg.VietQR.SkipSignature && !dev {
		return nil, errors.New("vietqr.skip_signature is only allowed with -dev")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
