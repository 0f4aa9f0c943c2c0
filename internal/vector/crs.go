package vector

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

var crsAliases = map[string]string{
	"epsg:4326":                     CRSWGS84,
	"urn:ogc:def:crs:epsg::4326":    CRSWGS84,
	"urn:ogc:def:crs:ogc:1.3:crs84": CRSWGS84,
	"crs84":                         CRSWGS84,
	"wgs84":                         CRSWGS84,
	"epsg:3857":                     CRSWebMercator,
	"epsg:900913":                   CRSWebMercator,
	"epsg:3785":                     CRSWebMercator,
	"urn:ogc:def:crs:epsg::3857":    CRSWebMercator,
}

// NormalizeCRS maps common spellings of the supported CRSs onto their
// canonical identifiers. Unknown values are returned unchanged.
func NormalizeCRS(crs string) string {
	if canon, ok := crsAliases[strings.ToLower(strings.TrimSpace(crs))]; ok {
		return canon
	}
	return crs
}

// Reproject returns a copy of fc in the target CRS. A collection without a
// declared CRS is assumed to be WGS84. Any pair of CRSs GDAL can resolve is
// supported; coordinates are always x/y (lon/lat) ordered.
func Reproject(fc *FeatureCollection, target string) (*FeatureCollection, error) {
	from := NormalizeCRS(fc.CRS)
	if from == "" {
		from = CRSWGS84
	}
	to := NormalizeCRS(target)

	var fn CoordFunc
	if from != to {
		trn, err := newTransformer(from, to)
		if err != nil {
			return nil, err
		}
		defer trn.Close()
		fn = trn.Transform
	}

	out := &FeatureCollection{CRS: to, Features: make([]Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		g := f.Geometry
		if fn != nil && g != nil {
			var err error
			g, err = TransformGeometry(g, fn)
			if err != nil {
				return nil, eris.Wrapf(err, "vector: reproject %s -> %s", from, to)
			}
		}
		out.Features = append(out.Features, Feature{ID: f.ID, Geometry: g, Properties: f.Properties})
	}
	return out, nil
}

// CoordFunc rewrites parallel x and y slices in place.
type CoordFunc func(xs, ys []float64) error

// TransformGeometry returns a copy of g with fn applied to all of its XY
// pairs in one call.
func TransformGeometry(g geom.T, fn CoordFunc) (geom.T, error) {
	var out geom.T
	switch t := g.(type) {
	case *geom.Point:
		out = t.Clone()
	case *geom.LineString:
		out = t.Clone()
	case *geom.LinearRing:
		out = t.Clone()
	case *geom.Polygon:
		out = t.Clone()
	case *geom.MultiPoint:
		out = t.Clone()
	case *geom.MultiLineString:
		out = t.Clone()
	case *geom.MultiPolygon:
		out = t.Clone()
	case *geom.GeometryCollection:
		gc := geom.NewGeometryCollection()
		for _, child := range t.Geoms() {
			c, err := TransformGeometry(child, fn)
			if err != nil {
				return nil, err
			}
			if err := gc.Push(c); err != nil {
				return nil, eris.Wrap(err, "vector: rebuild geometry collection")
			}
		}
		return gc, nil
	default:
		return nil, eris.Errorf("vector: unsupported geometry type %T", g)
	}

	flat := out.FlatCoords()
	stride := out.Stride()
	n := len(flat) / stride
	if n == 0 {
		return out, nil
	}
	xs, ys := make([]float64, n), make([]float64, n)
	for i := range n {
		xs[i], ys[i] = flat[i*stride], flat[i*stride+1]
	}
	if err := fn(xs, ys); err != nil {
		return nil, err
	}
	for i := range n {
		flat[i*stride], flat[i*stride+1] = xs[i], ys[i]
	}
	return out, nil
}
