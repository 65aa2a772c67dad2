// Package model defines the store records shared by the resolver, the geofence
// diff engine, and the catalog/snapshot adapters.
package model

// Store is a single retail store location. Coordinates are zero until the
// resolver fills them in.
type Store struct {
	Brand     string  `json:"brand" yaml:"brand"`
	Address   string  `json:"address" yaml:"address"`
	City      string  `json:"city" yaml:"city"`
	Latitude  float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
}

// Coordinates is a resolved (lat, lon) pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsSentinel reports whether c is the (0,0) placeholder used for failed
// resolutions.
func (c Coordinates) IsSentinel() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// Coordinates returns the store's current coordinates.
func (s Store) Coordinates() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// WithCoordinates returns a copy of s carrying c.
func (s Store) WithCoordinates(c Coordinates) Store {
	s.Latitude = c.Latitude
	s.Longitude = c.Longitude
	return s
}

// HasSentinel reports whether the store carries the (0,0) placeholder, which
// is also what an unresolved store looks like.
func (s Store) HasSentinel() bool {
	return s.Coordinates().IsSentinel()
}
