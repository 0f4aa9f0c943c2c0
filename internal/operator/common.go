package operator

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/raster"
	"github.com/sells-group/geoquery/internal/vector"
)

// Deps are the collaborators shared by all operators.
type Deps struct {
	Rasters raster.Store
	Layout  artifact.Layout
}

// regionPolygons loads the valid polygons of a region boundary expressed
// in the given raster CRS.
func regionPolygons(path, gridCRS string) ([]*geom.Polygon, error) {
	fc, err := vector.ReadFile(path)
	if err != nil {
		return nil, err
	}
	valid, _ := vector.Validate(fc)
	if valid.CRS == "" {
		valid.CRS = vector.CRSWGS84
	}
	if gridCRS != "" && vector.NormalizeCRS(gridCRS) != vector.NormalizeCRS(valid.CRS) {
		if valid, err = vector.Reproject(valid, gridCRS); err != nil {
			return nil, err
		}
	}
	polys := valid.Polygons()
	if len(polys) == 0 {
		return nil, eris.Errorf("operator: region boundary %s has no valid polygon", path)
	}
	return polys, nil
}

// polygonCollection wraps polygons as features in the CRS of their grid.
func polygonCollection(polys []*geom.Polygon, gridCRS string, props func(i int) map[string]any) *vector.FeatureCollection {
	fc := &vector.FeatureCollection{CRS: outputCRS(gridCRS), Features: make([]vector.Feature, len(polys))}
	for i, p := range polys {
		fc.Features[i] = vector.Feature{Geometry: p, Properties: props(i)}
	}
	return fc
}

func outputCRS(gridCRS string) string {
	if gridCRS == "" {
		return vector.CRSWGS84
	}
	return gridCRS
}
