package vector

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// bufferQuadSegs is the number of segments used per quarter circle.
const bufferQuadSegs = 8

func toGEOS(g geom.T) (*geos.Geom, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "vector: encode wkb")
	}
	gg, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrap(err, "vector: load geometry into geos")
	}
	return gg, nil
}

func fromGEOS(gg *geos.Geom) (geom.T, error) {
	g, err := wkb.Unmarshal(gg.ToWKB())
	if err != nil {
		return nil, eris.Wrap(err, "vector: decode geos result")
	}
	return g, nil
}

// IsValid reports whether g is non-empty and passes GEOS validity checks.
func IsValid(g geom.T) bool {
	if isEmpty(g) {
		return false
	}
	gg, err := toGEOS(g)
	if err != nil {
		return false
	}
	defer gg.Destroy()
	return !gg.IsEmpty() && gg.IsValid()
}

// Validate returns a collection holding only the features with valid,
// non-empty geometries, and the number of features dropped.
func Validate(fc *FeatureCollection) (*FeatureCollection, int) {
	out := &FeatureCollection{CRS: fc.CRS, Features: make([]Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if IsValid(f.Geometry) {
			out.Features = append(out.Features, f)
		}
	}
	return out, len(fc.Features) - len(out.Features)
}

// BufferGeometry returns g grown by distance in the units of its CRS.
func BufferGeometry(g geom.T, distance float64) (geom.T, error) {
	gg, err := toGEOS(g)
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()

	buffered := gg.Buffer(distance, bufferQuadSegs)
	if buffered == nil {
		return nil, eris.New("vector: buffer failed")
	}
	defer buffered.Destroy()
	return fromGEOS(buffered)
}

// Buffer buffers every feature's geometry by distance, keeping properties.
func Buffer(fc *FeatureCollection, distance float64) (*FeatureCollection, error) {
	out := &FeatureCollection{CRS: fc.CRS, Features: make([]Feature, 0, len(fc.Features))}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		g, err := BufferGeometry(f.Geometry, distance)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: buffer feature %d", i)
		}
		out.Features = append(out.Features, Feature{ID: f.ID, Geometry: g, Properties: f.Properties})
	}
	return out, nil
}

// Area returns the planar area of g in squared CRS units.
func Area(g geom.T) (float64, error) {
	gg, err := toGEOS(g)
	if err != nil {
		return 0, err
	}
	defer gg.Destroy()
	return gg.Area(), nil
}
