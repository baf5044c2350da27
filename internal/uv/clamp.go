package uv

import "math"

// MaxIndex is the upper bound of the UV scale accepted from providers.
const MaxIndex = 15.0

// Clamp limits a provider value to [0, MaxIndex]. A nil value stays nil.
func Clamp(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(ClampValue(*v))
}

// ClampValue limits v to [0, MaxIndex].
func ClampValue(v float64) float64 {
	return math.Max(0, math.Min(v, MaxIndex))
}

// round2 rounds to two decimals and never returns negative zero.
func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}
