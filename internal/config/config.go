package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CatalogBaseURL     string
	OrderAPIBaseURL    string
	OrderAPIKey        string
	CurrencyCode       string
	CORSAllowedOrigins []string
	CatalogCacheTTL    time.Duration
	CartSessionTTL     time.Duration
	IdempotencyTTL     time.Duration
	UpstreamTimeout    time.Duration
	UpstreamRetries    int
	BreakerMinRequests int
	BreakerRatio       float64
	BreakerOpenFor     time.Duration

	TracingEnabled  bool
	TracingEndpoint string
	TracingSampling float64

	SecurityHeadersEnabled bool
	HSTSEnabled            bool
	BodyLimitBytes         int64
	RateLimitWindow        time.Duration
	RateLimitMax           int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		CatalogBaseURL:     strings.TrimRight(k.String("CATALOG_BASE_URL"), "/"),
		OrderAPIBaseURL:    strings.TrimRight(k.String("ORDER_API_BASE_URL"), "/"),
		OrderAPIKey:        k.String("ORDER_API_KEY"),
		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "INR"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CartSessionTTL:     parseDuration(k.String("CART_SESSION_TTL"), "8h"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		UpstreamTimeout:    parseDuration(k.String("UPSTREAM_TIMEOUT"), "5s"),
		UpstreamRetries:    intOrDefault(k.Int("UPSTREAM_RETRIES"), 3),
		BreakerMinRequests: intOrDefault(k.Int("BREAKER_MIN_REQUESTS"), 10),
		BreakerRatio:       floatOrDefault(k.Float64("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:     parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		TracingEnabled:  k.Bool("TRACING_ENABLED"),
		TracingEndpoint: k.String("TRACING_ENDPOINT"),
		TracingSampling: floatOrDefault(k.Float64("TRACING_SAMPLING_RATIO"), 1),

		SecurityHeadersEnabled: boolOrDefault(k, "SECURITY_HEADERS_ENABLED", true),
		HSTSEnabled:            k.Bool("HSTS_ENABLED"),
		BodyLimitBytes:         int64(intOrDefault(k.Int("BODY_LIMIT_BYTES"), 1<<20)),
		RateLimitWindow:        parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:           intOrDefault(k.Int("RATE_LIMIT_MAX"), 120),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.CatalogBaseURL == "" {
		return nil, errors.New("CATALOG_BASE_URL is required")
	}
	if cfg.OrderAPIBaseURL == "" {
		return nil, errors.New("ORDER_API_BASE_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func floatOrDefault(value, fallback float64) float64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func boolOrDefault(k *koanf.Koanf, key string, fallback bool) bool {
	if !k.Exists(key) {
		return fallback
	}
	return k.Bool(key)
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
