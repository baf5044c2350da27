package uv

import (
	"context"
	"fmt"
	"strings"
)

// Provider fetches hourly UV samples for one location and day.
// Implementations clamp values with Clamp before returning them.
type Provider interface {
	// Fetch returns the provider's samples for q. A disabled provider
	// returns an error wrapping ErrProviderDisabled.
	Fetch(ctx context.Context, q Query) ([]Sample, error)

	// Name returns the provider identifier used in responses.
	Name() string
}

// ProviderKind enumerates the supported upstream UV sources.
type ProviderKind string

const (
	KindOpenMeteo      ProviderKind = "open_meteo"
	KindOpenUV         ProviderKind = "openuv"
	KindWeatherbit     ProviderKind = "weatherbit"
	KindVisualCrossing ProviderKind = "visualcrossing"
	KindOpenWeatherMap ProviderKind = "openweathermap"
)

// AllKinds lists every provider kind in default invocation order.
func AllKinds() []ProviderKind {
	return []ProviderKind{
		KindOpenMeteo,
		KindOpenUV,
		KindWeatherbit,
		KindVisualCrossing,
		KindOpenWeatherMap,
	}
}

// ParseKind maps a provider name to its kind.
func ParseKind(name string) (ProviderKind, error) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range AllKinds() {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

// DisabledError reports a provider that has no credential configured.
func DisabledError(envName string) error {
	return fmt.Errorf("%w (no %s)", ErrProviderDisabled, envName)
}
