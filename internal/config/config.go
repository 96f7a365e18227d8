package config

import (
	"errors"
	"fmt"
	"strconv"
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
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	CORSAllowedOrigins []string

	PaymentTTL      time.Duration
	OrderMaxPending int

	CurrencyBase        string
	CurrencyMultipliers map[string]int64
	RatesURL            string
	RatesTTL            time.Duration

	GatewayBaseURL    string
	GatewaySecretKey  string
	GatewaySuccessURL string
	GatewayCancelURL  string

	ReapInterval time.Duration

	LogFormat string
	LogLevel  string

	TracingEnabled  bool
	TracingEndpoint string
	TracingRatio    float64

	MetricsNamespace string
	MetricsBuckets   string

	RateLimitWindow time.Duration
	RateLimitMax    int

	IdempotencyTTL time.Duration
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
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "backend-kiosko"),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PaymentTTL:      parseDuration(k.String("PAYMENT_TTL"), "30m"),
		OrderMaxPending: parseInt(k.String("ORDER_MAX_PENDING"), 3),

		CurrencyBase:        strings.ToUpper(valueOrDefault(k.String("CURRENCY_BASE"), "USD")),
		CurrencyMultipliers: parseMultipliers(k.String("CURRENCY_MULTIPLIERS")),
		RatesURL:            k.String("RATES_URL"),
		RatesTTL:            parseDuration(k.String("RATES_TTL"), "24h"),

		GatewayBaseURL:    k.String("GATEWAY_BASE_URL"),
		GatewaySecretKey:  k.String("GATEWAY_SECRET_KEY"),
		GatewaySuccessURL: k.String("GATEWAY_SUCCESS_URL"),
		GatewayCancelURL:  k.String("GATEWAY_CANCEL_URL"),

		ReapInterval: parseDuration(k.String("REAP_INTERVAL"), "1m"),

		LogFormat: valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:  valueOrDefault(k.String("LOG_LEVEL"), "info"),

		TracingEnabled:  parseBool(k.String("TRACING_ENABLED")),
		TracingEndpoint: k.String("TRACING_ENDPOINT"),
		TracingRatio:    parseFloat(k.String("TRACING_RATIO"), 1),

		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "kiosko"),
		MetricsBuckets:   k.String("METRICS_BUCKETS"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 120),

		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
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

// parseMultipliers reads "USD:100,JPY:1" style minor-unit overrides.
func parseMultipliers(value string) map[string]int64 {
	out := map[string]int64{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(parts[0]))
		mult, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil || code == "" || mult <= 0 {
			continue
		}
		out[code] = mult
	}
	return out
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
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

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
