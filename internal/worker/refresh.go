package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/uvconsensus/uvconsensus/internal/uv"
)

// Forecaster is the part of uv.Service the worker drives.
type Forecaster interface {
	GetUV(ctx context.Context, req uv.Request) (*uv.Response, error)
	InvalidateCache()
}

// RefreshJob warms the forecast cache for the configured targets.
type RefreshJob struct {
	config  RefreshConfig
	service Forecaster
	logger  zerolog.Logger
	now     func() time.Time

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns           int64
	SuccessfulPoints    int64
	FailedPoints        int64
	ProviderErrors      int64
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Service Forecaster
	Logger  zerolog.Logger
	Now     func() time.Time
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultRefreshTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RefreshJob{
		config:  config,
		service: cfg.Service,
		logger:  cfg.Logger,
		now:     now,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult summarizes one run.
type RefreshResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalPoints    int
	Successful     int
	Failed         int
	ProviderErrors int
	Errors         []RefreshError
}

// RefreshError records a provider or point failure during a run.
type RefreshError struct {
	Target   string
	Provider string
	Point    Point
	Error    string
}

// PointResult is the outcome of warming one location.
type PointResult struct {
	Point Point
	// Success is true when at least one hour reached consensus.
	Success bool
	Errors  []RefreshError
}

// Run refreshes every configured point, at most Concurrency at a time.
// A cancelled ctx stops scheduling further points.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	start := j.now()
	points := j.config.points()
	result := &RefreshResult{StartTime: start, TotalPoints: len(points)}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache refresh job")

	results := make([]PointResult, len(points))
	attempted := make([]bool, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for i, sp := range points {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = j.refresh(gctx, sp)
			attempted[i] = true
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // refresh never returns errors

	for i, pr := range results {
		if !attempted[i] {
			continue
		}
		if pr.Success {
			result.Successful++
		} else {
			result.Failed++
		}
		for _, e := range pr.Errors {
			if e.Provider != "" {
				result.ProviderErrors++
			}
		}
		result.Errors = append(result.Errors, pr.Errors...)
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(start)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("provider_errors", result.ProviderErrors).
		Msg("cache refresh job completed")

	return result
}

// RefreshPoint warms a single location with auto-detected timezone.
func (j *RefreshJob) RefreshPoint(ctx context.Context, p Point) PointResult {
	return j.refresh(ctx, scheduledPoint{Point: p, Target: "adhoc"})
}

func (j *RefreshJob) refresh(ctx context.Context, sp scheduledPoint) PointResult {
	result := PointResult{Point: sp.Point}

	resp, err := j.service.GetUV(ctx, uv.Request{Lat: sp.Lat, Lon: sp.Lon, Timezone: sp.Timezone})
	if err != nil {
		result.Errors = append(result.Errors, RefreshError{Target: sp.Target, Point: sp.Point, Error: err.Error()})
		return result
	}

	for _, ps := range resp.Providers {
		if ps.Error == nil || strings.HasPrefix(*ps.Error, uv.ErrProviderDisabled.Error()) {
			continue
		}
		result.Errors = append(result.Errors, RefreshError{
			Target:   sp.Target,
			Provider: ps.Name,
			Point:    sp.Point,
			Error:    *ps.Error,
		})
	}

	for i := range resp.Hourly {
		if resp.Hourly[i].HasConsensus() {
			result.Success = true
			break
		}
	}

	if !result.Success {
		j.logger.Warn().
			Str("target", sp.Target).
			Float64("lat", sp.Lat).
			Float64("lon", sp.Lon).
			Int("provider_errors", len(result.Errors)).
			Msg("no consensus for refresh point")
	}
	return result
}

// InvalidateCache drops every cached forecast.
func (j *RefreshJob) InvalidateCache() {
	j.service.InvalidateCache()
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulPoints += int64(result.Successful)
	j.metrics.FailedPoints += int64(result.Failed)
	j.metrics.ProviderErrors += int64(result.ProviderErrors)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// MetricsSnapshot returns the current metrics as a JSON-friendly map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return map[string]any{
		"total_runs":            j.metrics.TotalRuns,
		"successful_points":     j.metrics.SuccessfulPoints,
		"failed_points":         j.metrics.FailedPoints,
		"provider_errors":       j.metrics.ProviderErrors,
		"last_refresh_at":       j.metrics.LastRefreshAt,
		"last_refresh_duration": j.metrics.LastRefreshDuration.String(),
		"total_duration":        j.metrics.TotalDuration.String(),
	}
}
