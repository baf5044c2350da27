// Package resilience wraps outbound UV provider calls with timeouts, bounded
// retries and per-provider circuit breakers.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for a provider circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker, normally the provider name.
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval clears the counts while closed, so a provider that failed
	// an hour ago starts clean.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// ReadyToTrip decides when the breaker opens (default DefaultReadyToTrip).
	ReadyToTrip func(counts gobreaker.Counts) bool

	// IsSuccessful classifies call errors (default DefaultIsSuccessful).
	IsSuccessful func(err error) bool

	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for UV
// providers. Each provider sees roughly one call per uncached lookup, so the
// breaker reacts to short failure streaks and forgets them after a while.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     5 * time.Minute,
		Timeout:      60 * time.Second,
		ReadyToTrip:  DefaultReadyToTrip,
		IsSuccessful: DefaultIsSuccessful,
	}
}

// DefaultReadyToTrip opens the breaker after 3 consecutive failures, or once
// 5 or more requests have been seen and at least half of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= 3 {
		return true
	}
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// DefaultIsSuccessful treats a call abandoned by its caller as neutral. Only
// provider-side failures count against the breaker.
func DefaultIsSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker creates a circuit breaker from cfg.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = DefaultReadyToTrip
	}
	isSuccessful := cfg.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = DefaultIsSuccessful
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   readyToTrip,
		IsSuccessful:  isSuccessful,
		OnStateChange: cfg.OnStateChange,
	})
}

// breakerError maps a provider response to the error the breaker counts:
// ServerError for 5xx, QuotaError for 429, nil otherwise.
func breakerError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &QuotaError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return nil
	}
}

// ServerError represents an HTTP 5xx response seen by the circuit breaker.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// QuotaError is a 429 from a key-gated provider whose plan quota is spent.
// It counts as a breaker failure and is never retried.
type QuotaError struct {
	// RetryAfter is the provider's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return "provider quota exhausted, retry after " + e.RetryAfter.String()
	}
	return "provider quota exhausted"
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// LogStateChanges returns an OnStateChange hook that logs transitions.
func LogStateChanges(logger zerolog.Logger) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := logger.Info()
		if to == gobreaker.StateOpen {
			event = logger.Warn()
		}
		event.
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("provider circuit breaker state changed")
	}
}
