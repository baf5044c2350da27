package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/uvconsensus/uvconsensus/internal/api/models"
	"github.com/uvconsensus/uvconsensus/internal/api/response"
	"github.com/uvconsensus/uvconsensus/internal/provider/resilience"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

// HealthSource lists provider health. *resilience.Registry implements it.
type HealthSource interface {
	All() []*resilience.ProviderHealth
}

// OpsService is the part of uv.Service the ops endpoints inspect.
type OpsService interface {
	ProviderAvailability() map[string]bool
	CacheStats() (uv.CacheStats, bool)
}

// Pinger checks a backing store. The Valkey cache implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies of OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Service   OpsService
	Health    HealthSource
	Cache     Pinger // optional
	Now       func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{cfg: cfg}
}

// Health handles GET /health, the minimal liveness probe.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready when at
// least one provider is enabled and the shared cache, if any, answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	details := map[string]any{}

	enabled := 0
	for _, on := range h.cfg.Service.ProviderAvailability() {
		if on {
			enabled++
		}
	}
	details["enabledProviders"] = enabled
	if enabled == 0 {
		status = models.HealthStatusFail
		details["providers"] = "no provider is enabled"
	}

	if h.cfg.Cache != nil {
		if err := h.pingCache(r.Context()); err != nil {
			status = models.HealthStatusFail
			details["cache"] = err.Error()
		}
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(h.cfg.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - provider circuits and cache.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	availability := h.cfg.Service.ProviderAvailability()

	providers := make([]models.ProviderStatus, 0)
	overall := models.HealthStatusOK
	enabledCount, failedCount := 0, 0

	if h.cfg.Health != nil {
		for _, ph := range h.cfg.Health.All() {
			ps := providerStatus(ph, availability[ph.Name])
			providers = append(providers, ps)
			if !ps.Enabled {
				continue
			}
			enabledCount++
			if ps.Status == models.HealthStatusFail {
				failedCount++
			}
			overall = overall.Worst(ps.Status)
		}
	}
	if enabledCount > 0 && failedCount == enabledCount {
		overall = models.HealthStatusFail
	} else if overall == models.HealthStatusFail {
		overall = models.HealthStatusDegraded
	}

	subsystems := []models.SubsystemStatus{h.cacheStatus(r.Context())}
	for _, s := range subsystems {
		overall = overall.Worst(degradeOnly(s.Status))
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(h.cfg.Now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) cacheStatus(ctx context.Context) models.SubsystemStatus {
	status := models.SubsystemStatus{Name: "forecast-cache", Status: models.HealthStatusOK}

	if stats, ok := h.cfg.Service.CacheStats(); ok {
		status.Metrics = map[string]any{
			"backend":      stats.Backend,
			"entries":      stats.Entries,
			"freshEntries": stats.FreshEntries,
			"maxEntries":   stats.MaxEntries,
			"ttlSeconds":   int(stats.TTL.Seconds()),
		}
	}

	if h.cfg.Cache != nil {
		if err := h.pingCache(ctx); err != nil {
			detail := err.Error()
			status.Status = models.HealthStatusFail
			status.Detail = &detail
		}
	}
	return status
}

func (h *OpsHandler) pingCache(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.cfg.Cache.Ping(ctx)
}

func providerStatus(ph *resilience.ProviderHealth, enabled bool) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              models.HealthStatusOK,
		Enabled:             enabled,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
		LastSuccessAt:       models.NewTimestamp(ph.LastSuccessAt),
		LastFailureAt:       models.NewTimestamp(ph.LastFailureAt),
	}

	switch {
	case !enabled:
		msg := "disabled"
		ps.Message = &msg
		return ps
	case ph.CircuitState == gobreaker.StateOpen:
		ps.Status = models.HealthStatusFail
	case ph.CircuitState == gobreaker.StateHalfOpen:
		ps.Status = models.HealthStatusDegraded
	case ph.LastFailureAt != nil && (ph.LastSuccessAt == nil || ph.LastFailureAt.After(*ph.LastSuccessAt)):
		ps.Status = models.HealthStatusDegraded
	}

	if ph.LastError != "" && ps.Status != models.HealthStatusOK {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

// degradeOnly caps a subsystem failure at DEGRADED: the API still answers
// from providers when the cache is down.
func degradeOnly(s models.HealthStatus) models.HealthStatus {
	if s == models.HealthStatusFail {
		return models.HealthStatusDegraded
	}
	return s
}
