// Package providers builds the configured UV provider adapters.
package providers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/uv"
	"github.com/uvconsensus/uvconsensus/internal/uv/openmeteo"
	"github.com/uvconsensus/uvconsensus/internal/uv/openuv"
	"github.com/uvconsensus/uvconsensus/internal/uv/openweathermap"
	"github.com/uvconsensus/uvconsensus/internal/uv/visualcrossing"
	"github.com/uvconsensus/uvconsensus/internal/uv/weatherbit"
)

// Config holds credentials and transport settings for the adapters.
type Config struct {
	// Kinds lists the adapters to build, in invocation order.
	// Empty means uv.AllKinds().
	Kinds []uv.ProviderKind

	OpenUVAPIKey         string
	WeatherbitAPIKey     string
	VisualCrossingAPIKey string
	OpenWeatherMapAPIKey string

	// BaseURLs overrides the API base URL per provider (optional).
	BaseURLs map[uv.ProviderKind]string

	// Timeout bounds each provider HTTP call (default: 20s).
	Timeout time.Duration

	// UserAgent is sent with every provider request.
	UserAgent string

	// Registry receives one resilient client per adapter (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Build creates one adapter per configured kind. Each adapter gets its own
// resilient HTTP client with retries disabled.
func Build(cfg Config) ([]uv.Provider, error) {
	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = uv.AllKinds()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	seen := make(map[uv.ProviderKind]bool, len(kinds))
	out := make([]uv.Provider, 0, len(kinds))

	for _, kind := range kinds {
		if seen[kind] {
			return nil, fmt.Errorf("provider %q configured twice", kind)
		}
		seen[kind] = true

		p, err := cfg.build(kind, cfg.httpClient(kind, timeout))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, nil
}

func (cfg Config) httpClient(kind uv.ProviderKind, timeout time.Duration) *resilience.Client {
	name := string(kind)

	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.OnStateChange = resilience.LogStateChanges(cfg.Logger)

	clientCfg := resilience.DefaultClientConfig(name)
	clientCfg.Timeout = timeout
	clientCfg.MaxRetries = 0
	clientCfg.CircuitBreaker = &cb
	clientCfg.Registry = cfg.Registry
	clientCfg.UserAgent = cfg.UserAgent

	return resilience.NewClient(clientCfg)
}

func (cfg Config) build(kind uv.ProviderKind, httpClient *resilience.Client) (uv.Provider, error) {
	baseURL := cfg.BaseURLs[kind]
	logger := cfg.Logger.With().Str("provider", string(kind)).Logger()

	switch kind {
	case uv.KindOpenMeteo:
		return openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:    baseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	case uv.KindOpenUV:
		return openuv.NewClient(openuv.ClientConfig{
			APIKey:     cfg.OpenUVAPIKey,
			BaseURL:    baseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	case uv.KindWeatherbit:
		return weatherbit.NewClient(weatherbit.ClientConfig{
			APIKey:     cfg.WeatherbitAPIKey,
			BaseURL:    baseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	case uv.KindVisualCrossing:
		return visualcrossing.NewClient(visualcrossing.ClientConfig{
			APIKey:     cfg.VisualCrossingAPIKey,
			BaseURL:    baseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	case uv.KindOpenWeatherMap:
		return openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     cfg.OpenWeatherMapAPIKey,
			BaseURL:    baseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
}
