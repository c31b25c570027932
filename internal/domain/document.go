// Package domain defines the core types shared across the floodwatch
// pipeline: canonical document fields, cluster segments, and the error
// taxonomy for normalization failures.
package domain

import "fmt"

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapValue returns the point in the {"lat": ..., "lon": ...} shape the
// search index stores geo_point fields in.
func (p GeoPoint) MapValue() map[string]any {
	return map[string]any{"lat": p.Lat, "lon": p.Lon}
}

// String renders the point as "lat,lon".
func (p GeoPoint) String() string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lon)
}

// BoundingBox is a geographic box defined by its top-left and bottom-right
// corners.
type BoundingBox struct {
	TopLeft     GeoPoint `json:"top_left"`
	BottomRight GeoPoint `json:"bottom_right"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() GeoPoint {
	return GeoPoint{
		Lat: (b.TopLeft.Lat + b.BottomRight.Lat) / 2,
		Lon: (b.TopLeft.Lon + b.BottomRight.Lon) / 2,
	}
}

// Degenerate reports whether the box collapses to a point or a line on
// either axis.
func (b BoundingBox) Degenerate() bool {
	return b.TopLeft.Lat == b.BottomRight.Lat || b.TopLeft.Lon == b.BottomRight.Lon
}

// Pad expands a degenerate box by eps degrees on each collapsed axis so it
// encloses a non-zero area. Non-degenerate axes are left untouched.
func (b BoundingBox) Pad(eps float64) BoundingBox {
	out := b
	if out.TopLeft.Lat == out.BottomRight.Lat {
		out.TopLeft.Lat += eps
		out.BottomRight.Lat -= eps
	}
	if out.TopLeft.Lon == out.BottomRight.Lon {
		out.TopLeft.Lon -= eps
		out.BottomRight.Lon += eps
	}
	return out
}

// Canonical document field names used across query building and
// normalization.
const (
	FieldCreatedAt        = "created_at"
	FieldLang             = "lang"
	FieldText             = "text"
	FieldLocation         = "location"
	FieldPlace            = "place"
	FieldCountry          = "country"
	FieldFloodProbability = "flood_probability"
	FieldRepresentative   = "representative"
	FieldTweetID          = "tweetid"
)
