package uv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	tracerName = "github.com/uvconsensus/uvconsensus/internal/uv"

	// DefaultTimezone is used whenever a timezone cannot be resolved.
	DefaultTimezone = "UTC"

	dateLayout     = "2006-01-02"
	nowLocalLayout = "2006-01-02T15:04:05-07:00"
	fetchOperation = "hourly_uv"
)

// TimezoneResolver finds the IANA timezone for a coordinate.
type TimezoneResolver interface {
	Timezone(lat, lon float64) (string, error)
}

// HealthRecorder tracks per-provider success and failure.
type HealthRecorder interface {
	RecordSuccess(name string)
	RecordFailure(name string, err error)
}

// MetricsRecorder records provider call and cache metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// Availability is implemented by providers that configuration can switch off.
type Availability interface {
	Enabled() bool
}

// ServiceConfig holds configuration for the UV service.
type ServiceConfig struct {
	// Providers are invoked concurrently, listed in invocation order.
	Providers []Provider

	// Resolver detects the timezone when none is requested (optional).
	Resolver TimezoneResolver

	// Cache stores aggregated forecasts (optional, defaults to a MemoryCache).
	Cache Cache

	// Health records provider outcomes (optional).
	Health HealthRecorder

	// Metrics records provider and cache metrics (optional).
	Metrics MetricsRecorder

	// Logger for service operations.
	Logger zerolog.Logger

	// Now returns the current time (optional, defaults to time.Now).
	Now func() time.Time
}

// Service orchestrates provider fan-out and the reconciliation pipeline.
type Service struct {
	providers []Provider
	resolver  TimezoneResolver
	cache     Cache
	health    HealthRecorder
	metrics   MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

// NewService creates a new UV service.
func NewService(cfg ServiceConfig) *Service {
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(MemoryCacheConfig{})
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		providers: cfg.Providers,
		resolver:  cfg.Resolver,
		cache:     cache,
		health:    cfg.Health,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       now,
		tracer:    otel.Tracer(tracerName),
	}
}

// GetUV returns the consensus UV forecast for a request. The only error is
// ErrInvalidCoordinates; provider failures are reported inside the response.
func (s *Service) GetUV(ctx context.Context, req Request) (*Response, error) {
	if err := validateCoordinates(req.Lat, req.Lon); err != nil {
		return nil, err
	}

	// Provider fetches run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	ctx, span := s.tracer.Start(ctx, "uv.GetUV", trace.WithAttributes(
		attribute.Float64("uv.lat", req.Lat),
		attribute.Float64("uv.lon", req.Lon),
	))
	defer span.End()

	tz, loc := s.resolveTimezone(req)
	now := s.now().In(loc)
	date := s.resolveDate(req.Date, now)
	span.SetAttributes(attribute.String("uv.tz", tz), attribute.String("uv.date", date))

	forecast := s.forecast(ctx, Query{Lat: req.Lat, Lon: req.Lon, Date: date, Timezone: tz})

	return &Response{
		Lat:           req.Lat,
		Lon:           req.Lon,
		Date:          date,
		Timezone:      tz,
		NowLocalISO:   now.Format(nowLocalLayout),
		NowBucketTime: NearestBucket(forecast.Hourly, now),
		Providers:     forecast.Providers,
		Hourly:        forecast.Hourly,
		Summary:       forecast.Summary,
	}, nil
}

// forecast returns the cached forecast for q or aggregates a fresh one.
func (s *Service) forecast(ctx context.Context, q Query) *Forecast {
	key := CacheKey(q.Lat, q.Lon, q.Date, q.Timezone)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("cache lookup failed")
	}
	if ok {
		s.recordCache(true)
		return cached
	}
	s.recordCache(false)

	forecast := s.Aggregate(ctx, q)

	if err := s.cache.Set(ctx, key, forecast); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("cache store failed")
	}

	return forecast
}

// Aggregate invokes every provider for q and reconciles the results,
// bypassing the cache.
func (s *Service) Aggregate(ctx context.Context, q Query) *Forecast {
	results := s.fetchAll(ctx, q)
	hourly, summary := Reconcile(results)

	s.logger.Debug().
		Float64("lat", q.Lat).
		Float64("lon", q.Lon).
		Str("date", q.Date).
		Str("tz", q.Timezone).
		Int("hours", len(hourly)).
		Msg("aggregated uv forecast")

	return &Forecast{
		Lat:       q.Lat,
		Lon:       q.Lon,
		Date:      q.Date,
		Timezone:  q.Timezone,
		Providers: Statuses(results),
		Hourly:    hourly,
		Summary:   summary,
	}
}

// fetchAll runs every provider concurrently and waits for all of them.
func (s *Service) fetchAll(ctx context.Context, q Query) []ProviderResult {
	results := make([]ProviderResult, len(s.providers))

	var g errgroup.Group
	for i, p := range s.providers {
		g.Go(func() error {
			results[i] = s.fetchOne(ctx, p, q)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return results
}

func (s *Service) fetchOne(ctx context.Context, p Provider, q Query) (result ProviderResult) {
	name := p.Name()
	result = ProviderResult{Name: name, Samples: []Sample{}}

	ctx, span := s.tracer.Start(ctx, "uv.provider.fetch", trace.WithAttributes(
		attribute.String("provider.name", name),
	))
	defer span.End()

	start := time.Now()
	var err error

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider panic: %v", rec)
			result = ProviderResult{Name: name, Samples: []Sample{}, Error: err.Error()}
		}

		s.recordFetch(name, time.Since(start), err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("provider.samples", len(result.Samples)))
	}()

	samples, err := p.Fetch(ctx, q)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if samples != nil {
		result.Samples = samples
	}
	return result
}

func (s *Service) recordFetch(name string, d time.Duration, err error) {
	if errors.Is(err, ErrProviderDisabled) {
		s.logger.Debug().Str("provider", name).Msg("provider disabled")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRequest(name, fetchOperation, d, err)
	}

	if err != nil {
		s.logger.Warn().
			Str("provider", name).
			Dur("duration", d).
			Err(err).
			Msg("provider fetch failed")
		if s.health != nil {
			s.health.RecordFailure(name, err)
		}
		return
	}

	s.logger.Debug().
		Str("provider", name).
		Dur("duration", d).
		Msg("provider fetch succeeded")
	if s.health != nil {
		s.health.RecordSuccess(name)
	}
}

func (s *Service) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit("uv", fetchOperation)
	} else {
		s.metrics.RecordCacheMiss("uv", fetchOperation)
	}
}

// resolveTimezone returns the effective timezone name and location.
// "" and "auto" trigger detection; anything unresolvable falls back to UTC.
func (s *Service) resolveTimezone(req Request) (string, *time.Location) {
	name := strings.TrimSpace(req.Timezone)
	if name == "" || strings.EqualFold(name, "auto") {
		name = s.detectTimezone(req.Lat, req.Lon)
	}

	if strings.EqualFold(name, "local") {
		return DefaultTimezone, time.UTC
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Warn().Err(err).Str("tz", name).Msg("unknown timezone, using UTC")
		return DefaultTimezone, time.UTC
	}
	return name, loc
}

func (s *Service) detectTimezone(lat, lon float64) string {
	if s.resolver == nil {
		return DefaultTimezone
	}

	name, err := s.resolver.Timezone(lat, lon)
	if err != nil || name == "" {
		s.logger.Debug().
			Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("timezone detection failed, using UTC")
		return DefaultTimezone
	}
	return name
}

// resolveDate returns date when it is a valid calendar day, otherwise the
// current day of now.
func (s *Service) resolveDate(date string, now time.Time) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		s.logger.Warn().Str("date", date).Msg("invalid date, using today")
		return now.Format(dateLayout)
	}
	return date
}

// ProviderNames returns the configured provider names in invocation order.
func (s *Service) ProviderNames() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// ProviderAvailability reports which configured providers are enabled.
func (s *Service) ProviderAvailability() map[string]bool {
	enabled := make(map[string]bool, len(s.providers))
	for _, p := range s.providers {
		if a, ok := p.(Availability); ok {
			enabled[p.Name()] = a.Enabled()
			continue
		}
		enabled[p.Name()] = true
	}
	return enabled
}

// CacheStats returns statistics for caches that expose them.
func (s *Service) CacheStats() (CacheStats, bool) {
	if sc, ok := s.cache.(interface{ Stats() CacheStats }); ok {
		return sc.Stats(), true
	}
	return CacheStats{}, false
}

// InvalidateCache clears the cache when the backend supports it.
func (s *Service) InvalidateCache() {
	if ic, ok := s.cache.(interface{ Invalidate() }); ok {
		ic.Invalidate()
	}
}

// validateCoordinates checks if coordinates are valid.
func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
