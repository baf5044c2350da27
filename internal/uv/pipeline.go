package uv

import (
	"math"
	"time"
)

// Reconcile runs the alignment, consensus and summary stages over one set of
// provider results. The output depends only on results.
func Reconcile(results []ProviderResult) ([]HourBucket, Summary) {
	order := make([]string, len(results))
	for i, r := range results {
		order[i] = r.Name
	}

	buckets := Align(results)
	ComputeConsensus(buckets, order)
	return buckets, Summarize(buckets)
}

// Statuses converts provider results into response metadata, keeping their order.
func Statuses(results []ProviderResult) []ProviderStatus {
	statuses := make([]ProviderStatus, len(results))
	for i, r := range results {
		statuses[i] = ProviderStatus{Name: r.Name}
		if r.Error != "" {
			msg := r.Error
			statuses[i].Error = &msg
		}
	}
	return statuses
}

// NearestBucket picks the bucket label for the current hour of now. An exact
// label match wins; otherwise the label closest in wall-clock minutes is
// returned, the earliest one on ties. Nil when there are no buckets.
func NearestBucket(buckets []HourBucket, now time.Time) *string {
	if len(buckets) == 0 {
		return nil
	}

	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	label := hour.Format(LabelLayout)
	for i := range buckets {
		if buckets[i].Time == label {
			match := buckets[i].Time
			return &match
		}
	}

	target := wallClock(hour)
	best := -1
	bestDist := int64(math.MaxInt64)
	for i := range buckets {
		dist := int64(math.MaxInt64)
		if t, _, ok := parseLabel(buckets[i].Time); ok {
			d := wallClock(t).Sub(target)
			if d < 0 {
				d = -d
			}
			dist = int64(d / time.Minute)
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}

	nearest := buckets[best].Time
	return &nearest
}
