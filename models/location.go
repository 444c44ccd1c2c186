package models

import "math"

// Location is a latitude/longitude pair in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsValid reports whether both coordinates are finite and inside
// [-90,90] latitude / [-180,180] longitude.
func (l Location) IsValid() bool {
	if math.IsNaN(l.Latitude) || math.IsInf(l.Latitude, 0) {
		return false
	}
	if math.IsNaN(l.Longitude) || math.IsInf(l.Longitude, 0) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}
