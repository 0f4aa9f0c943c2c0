package operator

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/raster"
	"github.com/sells-group/geoquery/internal/vector"
)

// DisasterRequest asks for the safe zones of a binary hazard raster.
type DisasterRequest struct {
	Region     string
	HazardPath string
}

// DisasterSafe polygonizes the safe (0) cells of a hazard mask.
type DisasterSafe struct {
	Deps
}

// NewDisasterSafe returns a DisasterSafe operator.
func NewDisasterSafe(d Deps) *DisasterSafe {
	return &DisasterSafe{Deps: d}
}

// Run executes the extraction.
func (o *DisasterSafe) Run(req DisasterRequest, tr Tracer) Result {
	if req.HazardPath == "" {
		return fail(tr, NameDisaster, eris.New("operator: no hazard raster given"))
	}
	grid, err := o.Rasters.Read(req.HazardPath)
	if err != nil {
		return fail(tr, NameDisaster, err)
	}
	for i, v := range grid.Values {
		if grid.Valid(i) && v != 0 && v != 1 {
			r, c := grid.RowCol(i)
			return fail(tr, NameDisaster, eris.Errorf("operator: hazard raster is not binary: %g at row %d col %d", v, r, c))
		}
	}

	polys := raster.Polygonize(grid, 0)
	if len(polys) == 0 {
		msg := fmt.Sprintf("no safe cells in %s", req.HazardPath)
		tr.Tracef("Disaster-safety analysis found nothing: %s", msg)
		return Empty(NameDisaster, msg)
	}

	out := o.Layout.Path(req.Region, artifact.SuffixSafeZones, artifact.ExtGeoJSON)
	fc := polygonCollection(polys, grid.CRS, func(i int) map[string]any {
		return map[string]any{"id": i + 1, "safe": true}
	})
	if err := vector.WriteGeoJSON(out, fc); err != nil {
		return fail(tr, NameDisaster, err)
	}

	tr.Tracef("Extracted %d safe zones and saved to %s", len(polys), out)
	return Success(NameDisaster, map[string]string{OutputSafeZones: out},
		fmt.Sprintf("%d safe zones", len(polys))).
		WithStat("zones", float64(len(polys)))
}
