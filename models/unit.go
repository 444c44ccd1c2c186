package models

// Unit is an office location record with fixed coordinates, fetched by unit code.
// Read-only reference data.
type Unit struct {
	KdUnit    string  `json:"kd_unit"`
	NmUnit    string  `json:"nm_unit"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location returns the unit's registered coordinates.
func (u Unit) Location() Location {
	return Location{Latitude: u.Latitude, Longitude: u.Longitude}
}
