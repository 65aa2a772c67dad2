// Package geofence keys resolved stores by coordinates, diffs two store
// snapshots, and applies the difference to the geofencing provider.
package geofence

import (
	"strconv"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/storesync/internal/model"
)

// Key identifies a geofence by its center. Stores that share exact
// coordinates share one key, and so one geofence.
type Key string

// KeyOf returns "{lat}_{lon}" using the shortest decimal form that round-trips.
func KeyOf(c model.Coordinates) Key {
	return centerKey(geom.Coord{c.Longitude, c.Latitude})
}

// StoreKey returns the key of a resolved store.
func StoreKey(s model.Store) Key {
	return centerKey(Center(s).Coords())
}

// centerKey keys an XY center; the key lists y (lat) before x (lon).
func centerKey(c geom.Coord) Key {
	return Key(formatCoord(c.Y()) + "_" + formatCoord(c.X()))
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
