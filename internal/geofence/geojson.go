package geofence

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/storesync/internal/model"
)

// Features renders d as a GeoJSON FeatureCollection of geofence centers.
// Each feature's id is its Key; properties carry the sync op, description,
// and radius. The collection bbox covers every center.
func Features(d DiffResult, radius int) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{}
	bounds := geom.NewBounds(geom.XY)

	add := func(stores []model.Store, op Op) {
		for _, s := range stores {
			center := Center(s)
			bounds.Extend(center)
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:       string(centerKey(center.Coords())),
				Geometry: center,
				Properties: map[string]any{
					"op":          string(op),
					"description": Description(s),
					"radius":      radius,
				},
			})
		}
	}
	add(d.New, OpCreate)
	add(d.Removed, OpDelete)

	if len(fc.Features) > 0 {
		fc.BBox = bounds
	}
	return fc
}
