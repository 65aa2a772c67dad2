package geofence

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/pkg/radar"
)

// SRIDWGS84 is the reference system of store coordinates.
const SRIDWGS84 = 4326

// Center returns the store location as a WGS84 XY point (x = lon, y = lat).
func Center(s model.Store) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{s.Longitude, s.Latitude}).SetSRID(SRIDWGS84)
}

// Description returns "{brand} - {address}, {city}".
func Description(s model.Store) string {
	return fmt.Sprintf("%s - %s, %s", s.Brand, s.Address, s.City)
}

// Payload builds the create request for s. Coordinates and externalId both
// come from the same center point.
func Payload(s model.Store, tag string, radius int) radar.Geofence {
	center := Center(s).Coords()
	return radar.Geofence{
		Description: Description(s),
		Type:        radar.ShapeCircle,
		Coordinates: center,
		Radius:      radius,
		Tag:         tag,
		ExternalID:  string(centerKey(center)),
	}
}
