package domain

import "math"

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// IsNullIsland reports whether c is exactly (0,0). Geocoding oracles return it
// as a "no result" marker, so it is never accepted as a real position.
func (c Coordinates) IsNullIsland() bool { return c.Lat == 0 && c.Lon == 0 }

// InRange reports whether c is a finite point on the globe.
func (c Coordinates) InRange() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// ParsePosition validates a raw driver position. Both components are required,
// must be in range, and (0,0) is rejected.
func ParsePosition(lat, lng *float64) (Coordinates, error) {
	if lat == nil || lng == nil {
		return Coordinates{}, &ValidationError{Message: "Valid coordinates required"}
	}

	c := Coordinates{Lat: *lat, Lon: *lng}
	if !c.InRange() || c.IsNullIsland() {
		return Coordinates{}, &ValidationError{Message: "Valid coordinates required"}
	}

	return c, nil
}
