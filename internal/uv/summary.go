package uv

// Advice strings, ordered by tier.
const (
	AdviceLow      = "Low: SPF optional; sunglasses if bright."
	AdviceModerate = "Moderate: SPF 30+, sunglasses, hat; seek shade around midday."
	AdviceHigh     = "High: SPF 50, reapply every 2h; cover up; limit 11:00–17:00."
	AdviceVeryHigh = "Very High: SPF 50+, reapply 2h; cover up; avoid 11:00–17:00."
	AdviceExtreme  = "Extreme: SPF 50+, minimize time outdoors; full cover; avoid 10:00–18:00."
	AdviceReapply  = "Reapply sunscreen every ~2 hours, and after swimming/sweating."
)

// Window predicates over a consensus value.
var (
	isBest     = func(v float64) bool { return v < 3 }
	isModerate = func(v float64) bool { return v >= 3 && v < 6 }
	isAvoid    = func(v float64) bool { return v >= 8 }
)

// Summarize reduces the consensus timeline to the daily summary.
func Summarize(buckets []HourBucket) Summary {
	summary := Summary{
		Advice:  []string{},
		Windows: emptyWindows(),
	}

	var peak *HourBucket
	for i := range buckets {
		b := &buckets[i]
		if !b.HasConsensus() {
			continue
		}
		if peak == nil || *b.Consensus > *peak.Consensus {
			peak = b
		}
	}
	if peak == nil {
		return summary
	}

	summary.UVMax = Float(*peak.Consensus)
	t := peak.Time
	summary.UVMaxTime = &t
	summary.Advice = []string{AdviceFor(*peak.Consensus), AdviceReapply}
	summary.Windows = Windows{
		Best:     compressWindows(buckets, isBest),
		Moderate: compressWindows(buckets, isModerate),
		Avoid:    compressWindows(buckets, isAvoid),
	}

	return summary
}

// AdviceFor returns the tier advice for a peak UV value. Values between the
// integer tiers fall into the lower tier.
func AdviceFor(peak float64) string {
	switch {
	case peak < 3:
		return AdviceLow
	case peak < 6:
		return AdviceModerate
	case peak < 8:
		return AdviceHigh
	case peak <= 10:
		return AdviceVeryHigh
	default:
		return AdviceExtreme
	}
}

// compressWindows collapses consecutive hours satisfying pred into intervals
// closed at the last satisfying hour plus one hour. A bucket without a
// consensus ends any open run.
func compressWindows(buckets []HourBucket, pred func(float64) bool) []Window {
	windows := []Window{}
	start, last := "", ""
	open := false

	for i := range buckets {
		b := &buckets[i]
		ok := b.HasConsensus() && pred(*b.Consensus)
		switch {
		case ok && !open:
			start, last, open = b.Time, b.Time, true
		case ok:
			last = b.Time
		case open:
			windows = append(windows, Window{Start: start, End: nextHourLabel(last)})
			open = false
		}
	}
	if open {
		windows = append(windows, Window{Start: start, End: nextHourLabel(last)})
	}

	return windows
}
