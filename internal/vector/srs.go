package vector

import (
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
)

// IdentifyCRS maps a WKT or PROJ definition to an "EPSG:<code>" identifier
// when GDAL can recognise it. Definitions that cannot be identified are
// returned trimmed and unchanged.
func IdentifyCRS(def string) string {
	def = strings.TrimSpace(def)
	if def == "" {
		return ""
	}
	if canon := NormalizeCRS(def); canon != def {
		return canon
	}

	sr, err := godal.NewSpatialRefFromWKT(def)
	if err != nil {
		return def
	}
	defer sr.Close()

	// Identification fails for many valid definitions; fall back to what
	// the definition already declares.
	_ = sr.AutoIdentifyEPSG()
	if strings.EqualFold(sr.AuthorityName(""), "EPSG") {
		if code := sr.AuthorityCode(""); code != "" {
			return NormalizeCRS("EPSG:" + code)
		}
	}
	return def
}

// CRSToWKT returns the WKT definition for an "EPSG:<code>" identifier.
// Anything else is assumed to already be WKT.
func CRSToWKT(crs string) (string, error) {
	crs = NormalizeCRS(crs)
	if _, ok := epsgCode(crs); !ok {
		return crs, nil
	}
	sr, err := spatialRef(crs)
	if err != nil {
		return "", err
	}
	defer sr.Close()

	wkt, err := sr.WKT()
	if err != nil {
		return "", eris.Wrapf(err, "vector: export crs %q", crs)
	}
	return wkt, nil
}

func epsgCode(crs string) (int, bool) {
	if !strings.HasPrefix(strings.ToUpper(crs), "EPSG:") {
		return 0, false
	}
	code, err := strconv.Atoi(crs[len("EPSG:"):])
	return code, err == nil
}

// spatialRef builds a GDAL spatial reference from an "EPSG:<code>"
// identifier or a WKT definition. godal creates references with the
// traditional GIS axis order, so lon/lat input stays x/y.
func spatialRef(crs string) (*godal.SpatialRef, error) {
	if strings.HasPrefix(strings.ToUpper(crs), "EPSG:") {
		code, ok := epsgCode(crs)
		if !ok {
			return nil, eris.Errorf("vector: parse crs %q", crs)
		}
		sr, err := godal.NewSpatialRefFromEPSG(code)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: lookup crs %q", crs)
		}
		return sr, nil
	}
	sr, err := godal.NewSpatialRefFromWKT(crs)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: parse crs %q", crs)
	}
	return sr, nil
}

// transformer reprojects coordinate batches between two CRSs through OSR.
type transformer struct {
	src, dst *godal.SpatialRef
	trn      *godal.Transform
}

func newTransformer(from, to string) (*transformer, error) {
	src, err := spatialRef(from)
	if err != nil {
		return nil, err
	}
	dst, err := spatialRef(to)
	if err != nil {
		src.Close()
		return nil, err
	}
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		src.Close()
		dst.Close()
		return nil, eris.Wrapf(err, "vector: unsupported reprojection %s -> %s", from, to)
	}
	return &transformer{src: src, dst: dst, trn: trn}, nil
}

// Transform reprojects xs and ys in place.
func (t *transformer) Transform(xs, ys []float64) error {
	if err := t.trn.TransformEx(xs, ys, nil, nil); err != nil {
		return eris.Wrap(err, "vector: transform coordinates")
	}
	return nil
}

func (t *transformer) Close() {
	t.trn.Close()
	t.dst.Close()
	t.src.Close()
}
