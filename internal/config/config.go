package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	DatabasePath string
	RedisAddr    string // empty disables the response cache
	CacheTTL     time.Duration
	MemoCapacity int

	JWTSecret string

	StripeSecret        string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	CheckoutRateLimit   int
	CheckoutRateWindow  time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	SentryDSN     string
	SentryEnv     string
	AllowedOrigin []string
}

// Load reads an optional .env file and then builds the Config from the
// environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return New()
}

// New builds the Config from the environment. Every missing or malformed
// variable is reported, not only the first.
func New() (*Config, error) {
	var result *multierror.Error

	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			result = multierror.Append(result, fmt.Errorf("%s environment variable is required", key))
		}
		return v
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		DatabasePath:        getEnv("DATABASE_PATH", "dashboard.db"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		JWTSecret:           required("JWT_SECRET"),
		StripeSecret:        required("STRIPE_SECRET"),
		StripeWebhookSecret: required("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:8080/dashboard"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:8080/dashboard"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            os.Getenv("SMTP_PORT"),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		EmailFrom:           getEnv("EMAIL_FROM", "certificates@coursedash.app"),
		SentryDSN:           os.Getenv("SENTRY_DSN"),
		SentryEnv:           getEnv("SENTRY_ENVIRONMENT", "production"),
		AllowedOrigin:       []string{getEnv("ALLOWED_ORIGIN", "*")},
	}

	var err error
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		result = multierror.Append(result, err)
	}
	if cfg.CheckoutRateWindow, err = getDuration("CHECKOUT_RATE_WINDOW", time.Minute); err != nil {
		result = multierror.Append(result, err)
	}
	if cfg.MemoCapacity, err = getInt("MEMO_CAPACITY", 1024); err != nil {
		result = multierror.Append(result, err)
	}
	if cfg.CheckoutRateLimit, err = getInt("CHECKOUT_RATE_LIMIT", 5); err != nil {
		result = multierror.Append(result, err)
	}

	smtp := []string{cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword}
	if set := countSet(smtp); set > 0 && set < len(smtp) {
		result = multierror.Append(result, errors.New("SMTP_HOST, SMTP_PORT, SMTP_USERNAME, and SMTP_PASSWORD must be set together"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid non-negative integer %q", key, v)
	}
	return n, nil
}

func countSet(values []string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}
