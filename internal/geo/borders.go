package geo

import (
	"fmt"
	"os"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"github.com/floodwatch/pipeline/internal/domain"
)

// Borders resolves a point to a country name via point-in-polygon lookup
// against a world borders reference dataset.
type Borders struct {
	countries []country
}

type country struct {
	name  string
	polys []*geom.Polygon
}

// LoadBorders reads a GeoJSON feature collection of country polygons. The
// country name is taken from the first of the "name", "NAME" or "ADMIN"
// feature properties.
func LoadBorders(path string) (*Borders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read borders file %s: %w", path, err)
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parse borders file %s: %w", path, err)
	}

	b := &Borders{}
	for _, f := range fc.Features {
		name := featureName(f.Properties)
		if name == "" {
			continue
		}
		c := country{name: name}
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			c.polys = append(c.polys, g)
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				c.polys = append(c.polys, g.Polygon(i))
			}
		default:
			continue
		}
		b.countries = append(b.countries, c)
	}
	return b, nil
}

// CountryForPoint returns the name of the country containing the point.
func (b *Borders) CountryForPoint(p domain.GeoPoint) (string, bool) {
	coord := geom.Coord{p.Lon, p.Lat}
	for _, c := range b.countries {
		for _, poly := range c.polys {
			if polygonContains(poly, coord) {
				return c.name, true
			}
		}
	}
	return "", false
}

func polygonContains(poly *geom.Polygon, c geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(poly.Layout(), c, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	// Holes exclude.
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(poly.Layout(), c, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

func featureName(props map[string]any) string {
	for _, key := range []string{"name", "NAME", "ADMIN"} {
		if v, ok := props[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
