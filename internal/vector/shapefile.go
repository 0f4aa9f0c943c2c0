package vector

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ReadShapefile reads every record of an ESRI shapefile. Attributes become
// string properties and the CRS is taken from the sibling .prj file when
// present.
func ReadShapefile(shpPath string) (*FeatureCollection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	fc := &FeatureCollection{}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
		}
		fc.Features = append(fc.Features, Feature{Geometry: g, Properties: props})
	}

	if skipped > 0 {
		zap.L().Debug("vector: shapefile records without usable geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	crs, err := readPrj(shpPath)
	if err != nil {
		return nil, err
	}
	fc.CRS = crs
	return fc, nil
}

func readPrj(shpPath string) (string, error) {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "vector: read %s", prjPath)
	}
	return IdentifyCRS(string(data)), nil
}

func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToGeom(s)
	case *shp.Polygon:
		return polygonToGeom(s)
	default:
		return nil
	}
}

// partCoords splits shapefile points into their parts as flat XY slices.
func partCoords(parts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		out = append(out, flat)
	}
	return out
}

func polyLineToGeom(pl *shp.PolyLine) geom.T {
	if pl == nil {
		return nil
	}
	mls := geom.NewMultiLineString(geom.XY)
	for _, flat := range partCoords(pl.Parts, pl.Points) {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToGeom groups shapefile rings into polygons. Outer rings are
// clockwise and holes counter-clockwise; each hole joins the first outer
// ring that contains it.
func polygonToGeom(p *shp.Polygon) geom.T {
	if p == nil {
		return nil
	}

	var shells []*geom.Polygon
	var holes [][]float64
	for _, flat := range partCoords(p.Parts, p.Points) {
		if len(flat) < 8 {
			continue
		}
		if signedArea(flat) < 0 {
			shells = append(shells, geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}))
		} else {
			holes = append(holes, flat)
		}
	}

	for _, hole := range holes {
		placed := false
		for _, shell := range shells {
			if ringContains(shell.LinearRing(0).FlatCoords(), hole[0], hole[1]) {
				if err := shell.Push(geom.NewLinearRingFlat(geom.XY, hole)); err == nil {
					placed = true
				}
				break
			}
		}
		if !placed {
			// A lone counter-clockwise ring is a shell written with the
			// wrong winding.
			shells = append(shells, geom.NewPolygonFlat(geom.XY, hole, []int{len(hole)}))
		}
	}

	switch len(shells) {
	case 0:
		return nil
	case 1:
		return shells[0]
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for _, s := range shells {
		if err := mp.Push(s); err != nil {
			continue
		}
	}
	return mp
}

// signedArea is the shoelace area of a flat XY ring; positive when
// counter-clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// ringContains is an even-odd point in ring test.
func ringContains(flat []float64, x, y float64) bool {
	n := len(flat) / 2
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[2*i], flat[2*i+1]
		xj, yj := flat[2*j], flat[2*j+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
