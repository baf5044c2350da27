// Package timezone resolves coordinates to IANA timezone names offline.
package timezone

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ringsaturn/tzf"
)

// ErrNotFound is returned when no timezone covers a coordinate.
var ErrNotFound = errors.New("timezone not found")

// Finder looks up a timezone by longitude and latitude. tzf.F satisfies it.
type Finder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Resolver implements uv.TimezoneResolver on top of a Finder.
type Resolver struct {
	finder Finder
}

// NewResolver wraps finder.
func NewResolver(finder Finder) *Resolver {
	return &Resolver{finder: finder}
}

var (
	defaultOnce   sync.Once
	defaultFinder tzf.F
	defaultErr    error
)

// NewDefaultResolver returns a resolver over tzf's embedded polygon data.
// The data is loaded once per process.
func NewDefaultResolver() (*Resolver, error) {
	defaultOnce.Do(func() {
		defaultFinder, defaultErr = tzf.NewDefaultFinder()
	})
	if defaultErr != nil {
		return nil, fmt.Errorf("loading timezone data: %w", defaultErr)
	}
	return NewResolver(defaultFinder), nil
}

// Timezone returns the IANA timezone name for lat/lon.
func (r *Resolver) Timezone(lat, lon float64) (string, error) {
	name := r.finder.GetTimezoneName(lon, lat)
	if name == "" {
		return "", fmt.Errorf("%w at %.4f,%.4f", ErrNotFound, lat, lon)
	}
	return name, nil
}
