// Package app wires the UV service from configuration. The API server and
// the refresh worker share it so both see the same providers and cache.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/config"
	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/timezone"
	"github.com/uvconsensus/uvconsensus/internal/uv"
	"github.com/uvconsensus/uvconsensus/internal/uv/providers"
	"github.com/uvconsensus/uvconsensus/internal/uv/valkeycache"
)

// Components are the long-lived pieces built from Config.
type Components struct {
	Service  *uv.Service
	Registry *resilience.Registry

	// Valkey is set when VALKEY_ADDR selected the shared cache.
	Valkey *valkeycache.Cache
}

// Close releases the Valkey connection, if any.
func (c *Components) Close() {
	if c.Valkey != nil {
		c.Valkey.Close()
	}
}

// Build creates the provider adapters, the forecast cache and the service.
// metrics may be nil.
func Build(ctx context.Context, cfg config.Config, userAgent string, metrics uv.MetricsRecorder, logger zerolog.Logger) (*Components, error) {
	registry := resilience.NewRegistry()

	adapters, err := providers.Build(providers.Config{
		Kinds:                cfg.Providers.Kinds,
		OpenUVAPIKey:         cfg.Providers.OpenUVAPIKey,
		WeatherbitAPIKey:     cfg.Providers.WeatherbitAPIKey,
		VisualCrossingAPIKey: cfg.Providers.VisualCrossingAPIKey,
		OpenWeatherMapAPIKey: cfg.Providers.OpenWeatherMapAPIKey,
		Timeout:              cfg.Providers.Timeout,
		UserAgent:            userAgent,
		Registry:             registry,
		Logger:               logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building providers: %w", err)
	}

	resolver, err := timezone.NewDefaultResolver()
	if err != nil {
		return nil, err
	}

	components := &Components{Registry: registry}

	var cache uv.Cache
	if cfg.Cache.ValkeyAddr != "" {
		client, err := valkeycache.Dial(ctx, cfg.Cache.ValkeyAddr)
		if err != nil {
			return nil, err
		}
		components.Valkey = valkeycache.New(client, valkeycache.Config{
			TTL:    cfg.Cache.TTL,
			Logger: logger,
		})
		cache = components.Valkey
		logger.Info().Str("addr", cfg.Cache.ValkeyAddr).Msg("valkey forecast cache connected")
	} else {
		cache = uv.NewMemoryCache(uv.MemoryCacheConfig{
			TTL:        cfg.Cache.TTL,
			MaxEntries: cfg.Cache.MaxEntries,
		})
	}

	components.Service = uv.NewService(uv.ServiceConfig{
		Providers: adapters,
		Resolver:  resolver,
		Cache:     cache,
		Health:    registry,
		Metrics:   metrics,
		Logger:    logger,
	})

	enabled := 0
	for _, available := range components.Service.ProviderAvailability() {
		if available {
			enabled++
		}
	}
	logger.Info().
		Strs("providers", components.Service.ProviderNames()).
		Int("enabled", enabled).
		Msg("uv service initialized")

	return components, nil
}
