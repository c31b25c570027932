// Package geo provides great-circle distance, centroid computation,
// geohash cell bounds and point-in-polygon country lookup.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/floodwatch/pipeline/internal/domain"
)

const earthRadiusM = 6371008.8

// Meters returns the great-circle distance between two points in meters.
func Meters(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// Centroid averages a list of [lon, lat] coordinate pairs.
func Centroid(coords [][]float64) (domain.GeoPoint, bool) {
	if len(coords) == 0 {
		return domain.GeoPoint{}, false
	}
	var lat, lon float64
	for _, c := range coords {
		if len(c) < 2 {
			return domain.GeoPoint{}, false
		}
		lon += c[0]
		lat += c[1]
	}
	n := float64(len(coords))
	return domain.GeoPoint{Lat: lat / n, Lon: lon / n}, true
}

// CellBounds returns the bounding box of a geohash grid cell.
func CellBounds(hash string) domain.BoundingBox {
	box := geohash.BoundingBox(hash)
	return domain.BoundingBox{
		TopLeft:     domain.GeoPoint{Lat: box.MaxLat, Lon: box.MinLng},
		BottomRight: domain.GeoPoint{Lat: box.MinLat, Lon: box.MaxLng},
	}
}
