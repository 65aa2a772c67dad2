package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/pkg/radar"
)

func TestPayload(t *testing.T) {
	s := model.Store{Brand: "RamiLevi", Address: "Herzl 1", City: "Haifa", Latitude: 32.8, Longitude: 34.99}

	p := Payload(s, "supermarkets", 1000)
	assert.Equal(t, radar.Geofence{
		Description: "RamiLevi - Herzl 1, Haifa",
		Type:        "circle",
		Coordinates: []float64{34.99, 32.8},
		Radius:      1000,
		Tag:         "supermarkets",
		ExternalID:  "32.8_34.99",
	}, p)
}

func TestCenter_LonLatOrder(t *testing.T) {
	c := Center(model.Store{Latitude: 1, Longitude: 2})
	assert.Equal(t, 2.0, c.X())
	assert.Equal(t, 1.0, c.Y())
	assert.Equal(t, SRIDWGS84, c.SRID())
}

func TestPayload_ExternalIDMatchesDiffKey(t *testing.T) {
	s := model.Store{Brand: "a", Address: "b", City: "c", Latitude: 0.1 + 0.2, Longitude: -73.5}

	p := Payload(s, "t", 10)
	assert.Equal(t, string(StoreKey(s)), p.ExternalID)
	assert.Equal(t, string(KeyOf(s.Coordinates())), p.ExternalID)
	assert.Equal(t, []float64{-73.5, 0.1 + 0.2}, p.Coordinates)
}
