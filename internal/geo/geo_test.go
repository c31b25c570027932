package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/pipeline/internal/domain"
)

func TestMeters(t *testing.T) {
	venice := domain.GeoPoint{Lat: 45.4408, Lon: 12.3155}
	rome := domain.GeoPoint{Lat: 41.9028, Lon: 12.4964}

	d := Meters(venice, rome)

	// Roughly 394 km.
	assert.InDelta(t, 394000, d, 2000)
	assert.Zero(t, Meters(venice, venice))
}

func TestCentroid(t *testing.T) {
	coords := [][]float64{
		{12.0, 45.0},
		{13.0, 45.0},
		{13.0, 46.0},
		{12.0, 46.0},
	}

	center, ok := Centroid(coords)

	require.True(t, ok)
	assert.InDelta(t, 45.5, center.Lat, 1e-9)
	assert.InDelta(t, 12.5, center.Lon, 1e-9)

	_, ok = Centroid(nil)
	assert.False(t, ok)
}

func TestCellBounds(t *testing.T) {
	box := CellBounds("sr2y")

	assert.Greater(t, box.TopLeft.Lat, box.BottomRight.Lat)
	assert.Less(t, box.TopLeft.Lon, box.BottomRight.Lon)
	assert.False(t, box.Degenerate())
}

func TestBoundingBoxPad(t *testing.T) {
	point := domain.BoundingBox{
		TopLeft:     domain.GeoPoint{Lat: 45.0, Lon: 12.0},
		BottomRight: domain.GeoPoint{Lat: 45.0, Lon: 12.0},
	}

	padded := point.Pad(0.001)

	assert.False(t, padded.Degenerate())
	assert.InDelta(t, 45.001, padded.TopLeft.Lat, 1e-9)
	assert.InDelta(t, 44.999, padded.BottomRight.Lat, 1e-9)
	assert.InDelta(t, 11.999, padded.TopLeft.Lon, 1e-9)
	assert.InDelta(t, 12.001, padded.BottomRight.Lon, 1e-9)
}

const bordersFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Squareland"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[10, 40], [15, 40], [15, 48], [10, 48], [10, 40]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"NAME": "Holeland"},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [
            [[20, 40], [30, 40], [30, 50], [20, 50], [20, 40]],
            [[24, 44], [26, 44], [26, 46], [24, 46], [24, 44]]
          ]
        ]
      }
    }
  ]
}`

func TestBordersCountryForPoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "borders.geojson")
	require.NoError(t, os.WriteFile(path, []byte(bordersFixture), 0o644))

	borders, err := LoadBorders(path)
	require.NoError(t, err)

	name, ok := borders.CountryForPoint(domain.GeoPoint{Lat: 45.4, Lon: 12.3})
	require.True(t, ok)
	assert.Equal(t, "Squareland", name)

	name, ok = borders.CountryForPoint(domain.GeoPoint{Lat: 42.0, Lon: 25.0})
	require.True(t, ok)
	assert.Equal(t, "Holeland", name)

	// Inside Holeland's hole.
	_, ok = borders.CountryForPoint(domain.GeoPoint{Lat: 45.0, Lon: 25.0})
	assert.False(t, ok)

	// Open sea.
	_, ok = borders.CountryForPoint(domain.GeoPoint{Lat: 0.0, Lon: -30.0})
	assert.False(t, ok)
}
