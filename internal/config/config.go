// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the
// application and selects the rate-limit backend and identity mode once,
// at load time.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSessionSecretLength is the minimum accepted SESSION_SECRET size.
const MinSessionSecretLength = 32

// RateLimitBackend selects where rate-limit counters live.
type RateLimitBackend string

const (
	RateLimitMemory RateLimitBackend = "memory"
	RateLimitValkey RateLimitBackend = "valkey"
)

// IdentityMode selects the account source.
type IdentityMode string

const (
	IdentityLive IdentityMode = "live"
	IdentityDemo IdentityMode = "demo"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host      string
	Port      string
	Env       string // "development", "production", "testing"
	LogFormat string // "text" or "json"

	// MetricsAddr is the internal listener for the Prometheus endpoint.
	MetricsAddr string

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible store)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Sessions and accounts
	SessionSecret []byte
	DemoMode      bool
	DemoPassword  string
	SeedPassword  string

	// Pipeline
	UpstreamURL          string
	AccessRulesFile      string
	IntrusionScanBody    bool
	TrustProxyHeaders    bool
	RateLimitTimeout     time.Duration
	IdentityTimeout      time.Duration
	FeatureTimeout       time.Duration
	LockoutPurgeSchedule string

	// Derived once by Load.
	RateLimitBackend RateLimitBackend
	IdentityMode     IdentityMode

	// GeneratedSecret is set when SESSION_SECRET was absent in development
	// and a random key was generated.
	GeneratedSecret bool
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing or inconsistent.
func Load() (*Config, error) {
	cfg := &Config{
		Host:      envOrDefault("APP_HOST", "0.0.0.0"),
		Port:      envOrDefault("APP_PORT", "8080"),
		Env:       envOrDefault("APP_ENV", "development"),
		LogFormat: os.Getenv("LOG_FORMAT"),

		MetricsAddr: envOrDefault("METRICS_ADDR", "127.0.0.1:9090"),

		DBHost:     os.Getenv("POSTGRES_HOST"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "clinigate"),
		DBPassword: os.Getenv("POSTGRES_PASSWORD"),
		DBName:     envOrDefault("POSTGRES_DB", "clinigate"),

		ValkeyHost:     os.Getenv("VALKEY_HOST"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		DemoPassword: os.Getenv("DEMO_PASSWORD"),
		SeedPassword: os.Getenv("SEED_PASSWORD"),

		UpstreamURL:          os.Getenv("UPSTREAM_URL"),
		AccessRulesFile:      os.Getenv("ACCESS_RULES_FILE"),
		LockoutPurgeSchedule: envOrDefault("LOCKOUT_PURGE_SCHEDULE", "@every 1h"),
	}

	var errs []error
	cfg.DemoMode = envBool("DEMO_MODE", false, &errs)
	cfg.IntrusionScanBody = envBool("INTRUSION_SCAN_BODY", false, &errs)
	cfg.TrustProxyHeaders = envBool("TRUST_PROXY_HEADERS", false, &errs)
	cfg.RateLimitTimeout = envDuration("RATE_LIMIT_TIMEOUT", 300*time.Millisecond, &errs)
	cfg.IdentityTimeout = envDuration("IDENTITY_TIMEOUT", 500*time.Millisecond, &errs)
	cfg.FeatureTimeout = envDuration("FEATURE_TIMEOUT", 500*time.Millisecond, &errs)

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	// Counters are shared only when a Valkey host and credential are both set.
	cfg.RateLimitBackend = RateLimitMemory
	if cfg.ValkeyHost != "" && cfg.ValkeyPassword != "" {
		cfg.RateLimitBackend = RateLimitValkey
	}

	switch {
	case cfg.DBHost != "" && cfg.DBPassword != "":
		cfg.IdentityMode = IdentityLive
		if cfg.DemoMode {
			errs = append(errs, errors.New("DEMO_MODE cannot be enabled while a PostgreSQL identity backend is configured"))
		}
	case cfg.DemoMode && cfg.IsProduction():
		errs = append(errs, errors.New("DEMO_MODE is not allowed in production"))
	case cfg.DemoMode:
		cfg.IdentityMode = IdentityDemo
	default:
		errs = append(errs, errors.New("no identity backend: set POSTGRES_HOST and POSTGRES_PASSWORD, or DEMO_MODE=true outside production"))
	}

	secret := os.Getenv("SESSION_SECRET")
	switch {
	case len(secret) >= MinSessionSecretLength:
		cfg.SessionSecret = []byte(secret)
	case secret != "":
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength))
	case cfg.IsProduction():
		errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
	default:
		cfg.SessionSecret = make([]byte, MinSessionSecretLength)
		if _, err := rand.Read(cfg.SessionSecret); err != nil {
			errs = append(errs, fmt.Errorf("generate session secret: %w", err))
		}
		cfg.GeneratedSecret = true
	}

	if cfg.MetricsAddr == cfg.Addr() {
		errs = append(errs, fmt.Errorf("METRICS_ADDR must differ from the public listener %s", cfg.Addr()))
	}

	if cfg.UpstreamURL != "" {
		u, err := url.Parse(cfg.UpstreamURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("UPSTREAM_URL must be an absolute URL, got %q", cfg.UpstreamURL))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}
