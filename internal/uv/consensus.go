package uv

import (
	"math"
	"sort"
)

const (
	// outlierFactor scales the MAD into the outlier threshold.
	outlierFactor = 1.5

	// confidenceSpan is the MAD at which confidence reaches zero.
	confidenceSpan = 3.0
)

// ComputeConsensus fills the derived fields of every bucket in place.
// order is the provider invocation order and decides the order of outliers.
func ComputeConsensus(buckets []HourBucket, order []string) {
	for i := range buckets {
		applyConsensus(&buckets[i], order)
	}
}

func applyConsensus(b *HourBucket, order []string) {
	b.Outliers = []string{}

	names := make([]string, 0, len(b.Providers))
	vals := make([]float64, 0, len(b.Providers))
	for _, name := range providerOrder(b.Providers, order) {
		if v := b.Providers[name]; v != nil {
			names = append(names, name)
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		b.Consensus, b.Low, b.High, b.Confidence = nil, nil, nil, nil
		return
	}

	med := median(vals)
	deviations := make([]float64, len(vals))
	for i, v := range vals {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)

	b.Consensus = Float(round2(med))
	b.Low = Float(round2(math.Max(0, med-mad)))
	b.High = Float(round2(math.Min(MaxIndex, med+mad)))
	b.Confidence = Float(round2(math.Max(0, math.Min(1, 1-mad/confidenceSpan))))

	if mad > 0 {
		threshold := outlierFactor * mad
		for i, dev := range deviations {
			if dev > threshold {
				b.Outliers = append(b.Outliers, names[i])
			}
		}
	}
}

// providerOrder lists the bucket's providers following order, then any
// remaining names alphabetically.
func providerOrder(providers map[string]*float64, order []string) []string {
	names := make([]string, 0, len(providers))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if _, ok := providers[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range providers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// median returns the middle value of vals, averaging the two middle values
// for even lengths. vals must not be empty.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
