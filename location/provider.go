// Package location supplies the device's current position. The original
// client asked the browser's geolocation API with high accuracy, a 10 second
// timeout, and no cached reading; providers here keep that contract.
package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bumisarana/absensi-client/config"
	"github.com/bumisarana/absensi-client/models"
)

// ErrUnavailable is returned when no location can be obtained: platform
// unsupported, permission denied, or the query timed out.
var ErrUnavailable = errors.New("location unavailable")

// QueryTimeout bounds a single location query.
const QueryTimeout = 10 * time.Second

// Provider yields a fresh device location on demand. Implementations must
// not serve stale readings: each Current call reflects the device now.
type Provider interface {
	Current(ctx context.Context) (models.Location, error)
}

// FromConfig builds the provider selected by configuration.
func FromConfig(cfg config.AppConfig) (Provider, error) {
	switch cfg.LocationProvider {
	case "static":
		loc := models.Location{Latitude: cfg.StaticLatitude, Longitude: cfg.StaticLongitude}
		if !loc.IsValid() {
			return nil, fmt.Errorf("static location %v out of range", loc)
		}
		return &Static{Loc: loc}, nil
	case "command":
		return &Command{Cmd: cfg.LocationCommand}, nil
	case "manual":
		return NewManual(), nil
	default:
		return nil, fmt.Errorf("unknown location provider %q", cfg.LocationProvider)
	}
}

// Static always reports a fixed position. Useful for desk machines that do
// not move and for tests.
type Static struct {
	Loc models.Location
}

func (s *Static) Current(ctx context.Context) (models.Location, error) {
	return s.Loc, nil
}

// Manual holds the most recent reading pushed from outside, typically the
// browser posting its geolocation result to the gateway. Current fails until
// the first reading arrives.
type Manual struct {
	mu  sync.Mutex
	loc models.Location
	set bool
}

// NewManual creates a provider with no reading yet.
func NewManual() *Manual {
	return &Manual{}
}

// Set stores a reading. Invalid coordinates are rejected.
func (m *Manual) Set(loc models.Location) error {
	if !loc.IsValid() {
		return fmt.Errorf("%w: coordinates out of range", ErrUnavailable)
	}
	m.mu.Lock()
	m.loc = loc
	m.set = true
	m.mu.Unlock()
	return nil
}

func (m *Manual) Current(ctx context.Context) (models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return models.Location{}, fmt.Errorf("%w: no reading submitted yet", ErrUnavailable)
	}
	return m.loc, nil
}
