// Package geo evaluates great-circle distances for the attendance geofence.
package geo

import (
	"fmt"
	"math"

	"github.com/bumisarana/absensi-client/models"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the geofence radius around a unit's registered
// location within which attendance actions are permitted.
const DefaultRadiusMeters = 500.0

// InvalidCoordinateError reports a coordinate outside the valid decimal degree
// ranges, or a non-finite value. Out-of-range input fails explicitly instead
// of producing a degenerate distance.
type InvalidCoordinateError struct {
	Loc models.Location
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%v lng=%v", e.Loc.Latitude, e.Loc.Longitude)
}

// Distance computes the haversine great-circle distance between two points in
// meters. Pure and deterministic; identical points return 0.
func Distance(a, b models.Location) (float64, error) {
	if !a.IsValid() {
		return 0, &InvalidCoordinateError{Loc: a}
	}
	if !b.IsValid() {
		return 0, &InvalidCoordinateError{Loc: b}
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c, nil
}

// WithinRange reports whether a distance falls inside the threshold.
// The boundary is inclusive: exactly threshold meters is in range.
func WithinRange(distanceMeters, thresholdMeters float64) bool {
	return distanceMeters <= thresholdMeters
}
