package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvconsensus/uvconsensus/internal/uv"
	"github.com/uvconsensus/uvconsensus/internal/worker"
)

// fakeForecaster answers with a consensus hour unless the latitude is in
// noConsensus. Provider errors listed in providerErrors are attached to
// every response.
type fakeForecaster struct {
	mu          sync.Mutex
	requests    []uv.Request
	noConsensus map[float64]bool
	failing     map[float64]bool

	providerErrors map[string]string
	invalidations  atomic.Int32
	inFlight       atomic.Int32
	maxInFlight    atomic.Int32
	delay          time.Duration
}

func (f *fakeForecaster) GetUV(ctx context.Context, req uv.Request) (*uv.Response, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.failing[req.Lat] {
		return nil, uv.ErrInvalidCoordinates
	}

	resp := &uv.Response{
		Lat:    req.Lat,
		Lon:    req.Lon,
		Hourly: []uv.HourBucket{{Time: "2024-06-01T12:00"}},
	}
	if !f.noConsensus[req.Lat] {
		resp.Hourly[0].Consensus = uv.Float(6)
	}
	for name, msg := range f.providerErrors {
		resp.Providers = append(resp.Providers, uv.ProviderStatus{Name: name, Error: &msg})
	}
	resp.Providers = append(resp.Providers, uv.ProviderStatus{Name: "open_meteo"})
	return resp, nil
}

func (f *fakeForecaster) InvalidateCache() {
	f.invalidations.Add(1)
}

func (f *fakeForecaster) lats() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Lat
	}
	return out
}

func testTargets() []worker.RefreshTarget {
	return []worker.RefreshTarget{
		{Name: "Low", Priority: 2, Points: []worker.Point{{Lat: 3, Lon: 3}}},
		{Name: "High", Priority: 1, Timezone: "Europe/Madrid", Points: []worker.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
	}
}

func newJob(service worker.Forecaster, cfg worker.RefreshConfig) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  cfg,
		Service: service,
		Logger:  zerolog.Nop(),
	})
}

func TestRefreshJob_Run(t *testing.T) {
	service := &fakeForecaster{
		noConsensus:    map[float64]bool{2: true},
		providerErrors: map[string]string{"weatherbit": "HTTP 500", "openuv": "disabled (no OPENUV_API_KEY)"},
	}
	job := newJob(service, worker.RefreshConfig{Targets: testTargets(), Concurrency: 1})

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.TotalPoints)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.ProviderErrors, "disabled providers are not errors")
	for _, e := range result.Errors {
		assert.Equal(t, "weatherbit", e.Provider)
	}
	assert.Equal(t, []float64{1, 2, 3}, service.lats(), "points run in priority order")
}

func TestRefreshJob_PassesTargetTimezone(t *testing.T) {
	service := &fakeForecaster{}
	job := newJob(service, worker.RefreshConfig{Targets: testTargets(), Concurrency: 1})

	job.Run(context.Background())

	require.Len(t, service.requests, 3)
	assert.Equal(t, "Europe/Madrid", service.requests[0].Timezone)
	assert.Empty(t, service.requests[2].Timezone)
}

func TestRefreshJob_ServiceError(t *testing.T) {
	service := &fakeForecaster{failing: map[float64]bool{3: true}}
	job := newJob(service, worker.RefreshConfig{Targets: testTargets()})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.ProviderErrors)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Low", result.Errors[0].Target)
	assert.Empty(t, result.Errors[0].Provider)
	assert.Contains(t, result.Errors[0].Error, uv.ErrInvalidCoordinates.Error())
}

func TestRefreshJob_Concurrency(t *testing.T) {
	targets := []worker.RefreshTarget{{Name: "Many", Points: make([]worker.Point, 8)}}
	for i := range targets[0].Points {
		targets[0].Points[i] = worker.Point{Lat: float64(i), Lon: float64(i)}
	}
	service := &fakeForecaster{delay: 20 * time.Millisecond}
	job := newJob(service, worker.RefreshConfig{Targets: targets, Concurrency: 2})

	result := job.Run(context.Background())

	assert.Equal(t, 8, result.Successful)
	assert.LessOrEqual(t, service.maxInFlight.Load(), int32(2))
}

func TestRefreshJob_CancelledContext(t *testing.T) {
	service := &fakeForecaster{}
	job := newJob(service, worker.RefreshConfig{Targets: testTargets()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	assert.Equal(t, 3, result.TotalPoints)
	assert.Zero(t, result.Successful+result.Failed)
	assert.Empty(t, service.lats())
}

func TestRefreshJob_DefaultTargets(t *testing.T) {
	service := &fakeForecaster{}
	job := newJob(service, worker.RefreshConfig{})

	result := job.Run(context.Background())

	assert.Equal(t, worker.DefaultRefreshConfig().TotalPoints(), result.TotalPoints)
	assert.Equal(t, result.TotalPoints, result.Successful)
}

func TestRefreshJob_RefreshPoint(t *testing.T) {
	service := &fakeForecaster{noConsensus: map[float64]bool{5: true}}
	job := newJob(service, worker.RefreshConfig{})

	ok := job.RefreshPoint(context.Background(), worker.Point{Lat: 4, Lon: 4})
	assert.True(t, ok.Success)

	none := job.RefreshPoint(context.Background(), worker.Point{Lat: 5, Lon: 5})
	assert.False(t, none.Success)
	assert.Empty(t, none.Errors)
}

func TestRefreshJob_MetricsSnapshot(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	service := &fakeForecaster{noConsensus: map[float64]bool{3: true}}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  worker.RefreshConfig{Targets: testTargets()},
		Service: service,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return now },
	})

	job.Run(context.Background())
	job.Run(context.Background())

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_runs"])
	assert.Equal(t, int64(4), snapshot["successful_points"])
	assert.Equal(t, int64(2), snapshot["failed_points"])
	assert.Equal(t, now, snapshot["last_refresh_at"])
}

func TestRefreshJob_InvalidateCache(t *testing.T) {
	service := &fakeForecaster{}
	job := newJob(service, worker.RefreshConfig{})

	job.InvalidateCache()

	assert.Equal(t, int32(1), service.invalidations.Load())
}

