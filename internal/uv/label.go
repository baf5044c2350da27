package uv

import (
	"fmt"
	"strings"
	"time"
)

// LabelLayout is the hour-label layout adapters emit.
const LabelLayout = "2006-01-02T15:04"

const labelOffsetLayout = "2006-01-02T15:04-07:00"

var (
	offsetLayouts = []string{
		"2006-01-02T15:04:05-07:00",
		labelOffsetLayout,
	}
	wallLayouts = []string{
		"2006-01-02T15:04:05",
		LabelLayout,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// parseLabel reads an hour label as a wall-clock time. A trailing "Z" is
// ignored; a numeric offset is kept and reported.
func parseLabel(label string) (t time.Time, hasOffset bool, ok bool) {
	s := strings.TrimSuffix(strings.TrimSpace(label), "Z")
	for _, layout := range offsetLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true, true
		}
	}
	for _, layout := range wallLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, false, true
		}
	}
	return time.Time{}, false, false
}

// nextHourLabel returns the label one hour after label, with minute precision.
func nextHourLabel(label string) string {
	t, hasOffset, ok := parseLabel(label)
	if !ok {
		return label
	}
	next := t.Add(time.Hour)
	if hasOffset {
		return next.Format(labelOffsetLayout)
	}
	return next.Format(LabelLayout)
}

// wallClock drops the zone of t, keeping its calendar fields.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// HourLabel returns the label for hour h (0-23) of date.
func HourLabel(date string, h int) string {
	return fmt.Sprintf("%sT%02d:00", date, h)
}

// NoonLabel returns the label adapters use for a single daily reading.
func NoonLabel(date string) string {
	return HourLabel(date, 12)
}
