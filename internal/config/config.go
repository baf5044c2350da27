// Package config reads uvconsensus settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/uv"
)

// Config holds process-wide configuration shared by the API and the worker.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	Telemetry TelemetryConfig
	Providers ProvidersConfig
	Cache     CacheConfig
	HTTP      HTTPConfig
	Worker    WorkerConfig
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// ProvidersConfig lists the UV adapters and their credentials.
type ProvidersConfig struct {
	// Kinds is the invocation order (UV_PROVIDERS).
	Kinds []uv.ProviderKind

	OpenUVAPIKey         string
	WeatherbitAPIKey     string
	VisualCrossingAPIKey string
	OpenWeatherMapAPIKey string

	Timeout time.Duration
}

// CacheConfig configures the forecast cache. A non-empty ValkeyAddr selects
// the shared Valkey cache over the in-process one.
type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
	ValkeyAddr string
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	CORSAllowedOrigins []string
	RequireTLS         bool
	RateLimitPerMinute int
}

// WorkerConfig holds refresh worker settings.
type WorkerConfig struct {
	RefreshInterval    time.Duration
	TargetsFile        string
	PubSubProjectID    string
	PubSubSubscription string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		Port: getEnvOrDefault("APP_PORT", "8080"),
		Env:  getEnvOrDefault("APP_ENV", "development"),
		Telemetry: TelemetryConfig{
			Enabled:      getBool("OTEL_ENABLED", &errs),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Providers: ProvidersConfig{
			OpenUVAPIKey:         os.Getenv("OPENUV_API_KEY"),
			WeatherbitAPIKey:     os.Getenv("WEATHERBIT_API_KEY"),
			VisualCrossingAPIKey: os.Getenv("VISUALCROSSING_API_KEY"),
			OpenWeatherMapAPIKey: os.Getenv("OPENWEATHERMAP_API_KEY"),
			Timeout:              getDuration("PROVIDER_TIMEOUT", "20s", &errs),
		},
		Cache: CacheConfig{
			TTL:        getDuration("CACHE_TTL", "10m", &errs),
			MaxEntries: getInt("CACHE_MAX_ENTRIES", "1024", &errs),
			ValkeyAddr: os.Getenv("VALKEY_ADDR"),
		},
		HTTP: HTTPConfig{
			CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
			RequireTLS:         getBool("REQUIRE_TLS", &errs),
			RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", "60", &errs),
		},
		Worker: WorkerConfig{
			RefreshInterval:    getDuration("REFRESH_INTERVAL", "15m", &errs),
			TargetsFile:        os.Getenv("REFRESH_TARGETS_FILE"),
			PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		},
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	kinds, err := parseKinds(os.Getenv("UV_PROVIDERS"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid UV_PROVIDERS: %w", err))
	}
	cfg.Providers.Kinds = kinds

	if cfg.Cache.MaxEntries <= 0 && len(errs) == 0 {
		errs = append(errs, errors.New("CACHE_MAX_ENTRIES must be positive"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func parseKinds(raw string) ([]uv.ProviderKind, error) {
	names := splitList(raw)
	if len(names) == 0 {
		return uv.AllKinds(), nil
	}

	kinds := make([]uv.ProviderKind, 0, len(names))
	for _, name := range names {
		kind, err := uv.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key, defaultValue string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return d
}

func getInt(key, defaultValue string, errs *[]error) int {
	n, err := strconv.Atoi(getEnvOrDefault(key, defaultValue))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return n
}

func getBool(key string, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return b
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
