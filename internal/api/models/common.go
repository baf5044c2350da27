// Package models holds the JSON bodies of the uvconsensus HTTP API that are
// not UV forecasts themselves: problems and operational status.
package models

import "time"

// HealthStatus represents the health status of the service or a dependency.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Worst returns the more severe of s and other.
func (s HealthStatus) Worst(other HealthStatus) HealthStatus {
	if severity(other) > severity(s) {
		return other
	}
	return s
}

func severity(s HealthStatus) int {
	switch s {
	case HealthStatusFail:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// Timestamp is time.Time rendered as RFC3339 in JSON.
type Timestamp time.Time

// NewTimestamp returns a pointer to t as a Timestamp, or nil for a nil t.
func NewTimestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	parsed, err := time.Parse(`"`+time.RFC3339+`"`, string(data))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
