// Package worker keeps the shared forecast cache warm for popular locations.
package worker

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// RefreshTarget is a named group of locations warmed together.
type RefreshTarget struct {
	Name string `yaml:"name"`

	// Points are the lat/lon coordinates to refresh.
	Points []Point `yaml:"points"`

	// Priority determines refresh order (lower = higher priority).
	Priority int `yaml:"priority"`

	// Timezone is passed as the tz parameter; empty means auto-detect.
	Timezone string `yaml:"tz,omitempty"`
}

// Point represents a geographic coordinate.
type Point struct {
	Lat   float64 `yaml:"lat"`
	Lon   float64 `yaml:"lon"`
	Label string  `yaml:"label,omitempty"`
}

// RefreshConfig holds configuration for the cache refresh job.
type RefreshConfig struct {
	// Targets are the locations to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of points refreshed at once.
	// Each point fans out to every provider. Default: 3
	Concurrency int
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:     DefaultRefreshTargets(),
		Concurrency: 3,
	}
}

// DefaultRefreshTargets returns a spread of high-traffic cities across
// hemispheres and UTC offsets, so some target is always near solar noon.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{
			Name:     "Madrid",
			Priority: 1,
			Timezone: "Europe/Madrid",
			Points: []Point{
				{Lat: 40.4168, Lon: -3.7038, Label: "Puerta del Sol"},
			},
		},
		{
			Name:     "Sydney",
			Priority: 1,
			Timezone: "Australia/Sydney",
			Points: []Point{
				{Lat: -33.8688, Lon: 151.2093, Label: "CBD"},
				{Lat: -33.8915, Lon: 151.2767, Label: "Bondi Beach"},
			},
		},
		{
			Name:     "Phoenix",
			Priority: 1,
			Timezone: "America/Phoenix",
			Points: []Point{
				{Lat: 33.4484, Lon: -112.0740},
			},
		},
		{
			Name:     "Mexico City",
			Priority: 2,
			Timezone: "America/Mexico_City",
			Points: []Point{
				{Lat: 19.4326, Lon: -99.1332, Label: "Zócalo"},
			},
		},
		{
			Name:     "Singapore",
			Priority: 2,
			Timezone: "Asia/Singapore",
			Points: []Point{
				{Lat: 1.3521, Lon: 103.8198},
			},
		},
		{
			Name:     "Nairobi",
			Priority: 3,
			Points: []Point{
				{Lat: -1.2921, Lon: 36.8219},
			},
		},
		{
			Name:     "Denver",
			Priority: 3,
			Points: []Point{
				{Lat: 39.7392, Lon: -104.9903},
			},
		},
	}
}

// targetsFile is the YAML layout read by LoadTargets.
type targetsFile struct {
	Targets []RefreshTarget `yaml:"targets"`
}

// LoadTargets reads refresh targets from a YAML file of the form
//
//	targets:
//	  - name: Madrid
//	    priority: 1
//	    tz: Europe/Madrid
//	    points:
//	      - {lat: 40.4168, lon: -3.7038}
func LoadTargets(path string) ([]RefreshTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}
	return ParseTargets(data)
}

// ParseTargets decodes and validates YAML refresh targets.
func ParseTargets(data []byte) ([]RefreshTarget, error) {
	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing targets: %w", err)
	}

	if len(file.Targets) == 0 {
		return nil, errors.New("targets file lists no targets")
	}

	var errs []error
	for i, t := range file.Targets {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("target %d: name is required", i))
		}
		if len(t.Points) == 0 {
			errs = append(errs, fmt.Errorf("target %q: no points", t.Name))
		}
		for j, p := range t.Points {
			if !validPoint(p) {
				errs = append(errs, fmt.Errorf("target %q point %d: invalid coordinates %v,%v", t.Name, j, p.Lat, p.Lon))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return file.Targets, nil
}

func validPoint(p Point) bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// scheduledPoint is a point with the timezone of its target.
type scheduledPoint struct {
	Point
	Target   string
	Timezone string
}

// points returns every point ordered by target priority, stable within a priority.
func (c RefreshConfig) points() []scheduledPoint {
	targets := append([]RefreshTarget(nil), c.Targets...)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })

	var out []scheduledPoint
	for _, t := range targets {
		for _, p := range t.Points {
			out = append(out, scheduledPoint{Point: p, Target: t.Name, Timezone: t.Timezone})
		}
	}
	return out
}

// AllPoints returns all points from all targets, ordered by priority.
func (c RefreshConfig) AllPoints() []Point {
	scheduled := c.points()
	points := make([]Point, len(scheduled))
	for i, sp := range scheduled {
		points[i] = sp.Point
	}
	return points
}

// TotalPoints returns the total number of points to refresh.
func (c RefreshConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
