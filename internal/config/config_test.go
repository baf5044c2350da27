package config_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvconsensus/uvconsensus/internal/config"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

var allKeys = []string{
	"APP_PORT", "APP_ENV", "LOG_LEVEL", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"UV_PROVIDERS", "OPENUV_API_KEY", "WEATHERBIT_API_KEY", "VISUALCROSSING_API_KEY",
	"OPENWEATHERMAP_API_KEY", "PROVIDER_TIMEOUT", "CACHE_TTL", "CACHE_MAX_ENTRIES",
	"VALKEY_ADDR", "CORS_ALLOWED_ORIGINS", "REQUIRE_TLS", "RATE_LIMIT_PER_MINUTE",
	"REFRESH_INTERVAL", "REFRESH_TARGETS_FILE", "PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, uv.AllKinds(), cfg.Providers.Kinds)
	assert.Equal(t, 20*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)
	assert.Empty(t, cfg.Cache.ValkeyAddr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, 60, cfg.HTTP.RateLimitPerMinute)
	assert.Equal(t, 15*time.Minute, cfg.Worker.RefreshInterval)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("UV_PROVIDERS", "weatherbit, open_meteo")
	t.Setenv("WEATHERBIT_API_KEY", "wb")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("VALKEY_ADDR", "localhost:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []uv.ProviderKind{uv.KindWeatherbit, uv.KindOpenMeteo}, cfg.Providers.Kinds)
	assert.Equal(t, "wb", cfg.Providers.WeatherbitAPIKey)
	assert.Equal(t, 5*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.ValkeyAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowedOrigins)
	assert.True(t, cfg.HTTP.RequireTLS)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown provider", key: "UV_PROVIDERS", val: "open_meteo,darksky"},
		{name: "bad duration", key: "CACHE_TTL", val: "ten minutes"},
		{name: "bad int", key: "CACHE_MAX_ENTRIES", val: "lots"},
		{name: "non-positive max entries", key: "CACHE_MAX_ENTRIES", val: "0"},
		{name: "bad bool", key: "REQUIRE_TLS", val: "sometimes"},
		{name: "bad log level", key: "LOG_LEVEL", val: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := config.FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
