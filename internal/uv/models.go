// Package uv aggregates hourly UV-index forecasts from several providers into
// a consensus timeline with a daily exposure summary.
package uv

import (
	"errors"
)

// UV errors.
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrProviderDisabled   = errors.New("disabled")
	ErrNoProviders        = errors.New("no providers configured")
)

// Query identifies the location and day a provider should forecast.
type Query struct {
	Lat      float64
	Lon      float64
	Date     string // YYYY-MM-DD
	Timezone string // IANA name, already resolved
}

// Sample is one hourly UV reading emitted by a provider.
type Sample struct {
	// Time is the hour label in the requested timezone (YYYY-MM-DDTHH:MM).
	Time string

	// Value is the UV index clamped to [0, 15], nil when the provider has no value.
	Value *float64
}

// ProviderResult is the outcome of one provider invocation.
type ProviderResult struct {
	Name    string
	Samples []Sample
	Error   string
}

// ProviderStatus is the request metadata entry for one provider.
type ProviderStatus struct {
	Name  string  `json:"name"`
	Error *string `json:"error"`
}

// HourBucket is one hour of the aligned timeline.
type HourBucket struct {
	Time       string              `json:"time"`
	Consensus  *float64            `json:"consensus"`
	Low        *float64            `json:"low"`
	High       *float64            `json:"high"`
	Confidence *float64            `json:"confidence"`
	Providers  map[string]*float64 `json:"providers"`
	Outliers   []string            `json:"outliers"`
}

// HasConsensus reports whether at least one provider reported a value for the hour.
func (b *HourBucket) HasConsensus() bool {
	return b.Consensus != nil
}

// Window is a half-open [Start, End) interval of hour labels.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Windows groups exposure windows by category.
type Windows struct {
	Best     []Window `json:"best"`
	Moderate []Window `json:"moderate"`
	Avoid    []Window `json:"avoid"`
}

// Summary is the daily digest of the consensus series.
type Summary struct {
	UVMax     *float64 `json:"uv_max"`
	UVMaxTime *string  `json:"uv_max_time"`
	Advice    []string `json:"advice"`
	Windows   Windows  `json:"windows"`
}

// Forecast is the cacheable, time-independent part of a response.
type Forecast struct {
	Lat       float64          `json:"lat"`
	Lon       float64          `json:"lon"`
	Date      string           `json:"date"`
	Timezone  string           `json:"tz"`
	Providers []ProviderStatus `json:"providers"`
	Hourly    []HourBucket     `json:"hourly"`
	Summary   Summary          `json:"summary"`
}

// Request holds the caller-supplied parameters of a UV lookup.
type Request struct {
	Lat      float64
	Lon      float64
	Date     string // optional, defaults to today in the resolved timezone
	Timezone string // optional, "" or "auto" triggers detection
}

// Response is the full answer to a UV lookup.
type Response struct {
	Lat           float64          `json:"lat"`
	Lon           float64          `json:"lon"`
	Date          string           `json:"date"`
	Timezone      string           `json:"tz"`
	NowLocalISO   string           `json:"now_local_iso"`
	NowBucketTime *string          `json:"now_bucket_time"`
	Providers     []ProviderStatus `json:"providers"`
	Hourly        []HourBucket     `json:"hourly"`
	Summary       Summary          `json:"summary"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func emptyWindows() Windows {
	return Windows{
		Best:     []Window{},
		Moderate: []Window{},
		Avoid:    []Window{},
	}
}
