// Package vector reads, writes, reprojects, validates and buffers feature
// collections.
package vector

import (
	"github.com/twpayne/go-geom"
)

// Canonical CRS identifiers.
const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

// Feature is a single geometry with its attributes. Geometry is nil when
// the source record had none or could not be decoded.
type Feature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

// FeatureCollection is an ordered set of features sharing one CRS. An
// empty CRS means the source did not declare one.
type FeatureCollection struct {
	CRS      string
	Features []Feature
}

// Len returns the number of features.
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// Polygons flattens every polygonal geometry in the collection into its
// member polygons. Non-polygonal geometries are ignored.
func (fc *FeatureCollection) Polygons() []*geom.Polygon {
	var out []*geom.Polygon
	for _, f := range fc.Features {
		out = appendPolygons(out, f.Geometry)
	}
	return out
}

func appendPolygons(out []*geom.Polygon, g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() > 0 {
			out = append(out, t)
		}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			out = appendPolygons(out, t.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			out = appendPolygons(out, child)
		}
	}
	return out
}

// Bounds returns the combined extent of all geometries, or nil when the
// collection has no coordinates.
func (fc *FeatureCollection) Bounds() *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, f := range fc.Features {
		if f.Geometry == nil || len(f.Geometry.FlatCoords()) == 0 {
			continue
		}
		b.Extend(f.Geometry)
	}
	if b.IsEmpty() {
		return nil
	}
	return b
}

// isEmpty reports whether g carries no coordinates.
func isEmpty(g geom.T) bool {
	if g == nil {
		return true
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for _, child := range gc.Geoms() {
			if !isEmpty(child) {
				return false
			}
		}
		return true
	}
	return len(g.FlatCoords()) == 0
}
