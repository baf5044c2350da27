package resilience_test

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

var _ uv.HealthRecorder = (*resilience.Registry)(nil)

func registerClients(registry *resilience.Registry, names ...string) {
	for _, name := range names {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}
}

func TestRegistry_RegisterAndHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	registerClients(registry, "open_meteo")

	assert.Equal(t, 1, registry.Len())

	health := registry.Health("open_meteo")
	require.NotNil(t, health)
	assert.Equal(t, "open_meteo", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	registerClients(registry, "openuv")

	registry.Unregister("openuv")

	assert.Equal(t, 0, registry.Len())
	assert.Nil(t, registry.Health("openuv"))
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	registerClients(registry, "weatherbit")

	health := registry.Health("weatherbit")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
	assert.Empty(t, health.LastError)

	registry.RecordSuccess("weatherbit")
	registry.RecordFailure("weatherbit", assert.AnError)

	health = registry.Health("weatherbit")
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.WithinDuration(t, time.Now(), *health.LastFailureAt, time.Second)
	assert.Equal(t, assert.AnError.Error(), health.LastError)
}

func TestRegistry_AllSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	registerClients(registry, "weatherbit", "open_meteo", "openuv")

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "open_meteo", all[0].Name)
	assert.Equal(t, "openuv", all[1].Name)
	assert.Equal(t, "weatherbit", all[2].Name)

	assert.Equal(t, []string{"open_meteo", "openuv", "weatherbit"}, registry.Names())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := resilience.NewRegistry()

	assert.Empty(t, registry.Names())
	assert.Nil(t, registry.Health("nonexistent"))

	// Should not panic
	registry.RecordSuccess("nonexistent")
	registry.RecordFailure("nonexistent", assert.AnError)
}

func TestProviderHealth_States(t *testing.T) {
	tests := []struct {
		state      gobreaker.State
		isHealthy  bool
		isDegraded bool
		isUnhealth bool
		status     string
	}{
		{gobreaker.StateClosed, true, false, false, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, false, true, false, resilience.StatusDegraded},
		{gobreaker.StateOpen, false, false, true, resilience.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.isHealthy, h.IsHealthy())
			assert.Equal(t, tt.isDegraded, h.IsDegraded())
			assert.Equal(t, tt.isUnhealth, h.IsUnhealthy())
			assert.Equal(t, tt.status, h.Status())
		})
	}
}
