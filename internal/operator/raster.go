package operator

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/raster"
	"github.com/sells-group/geoquery/internal/vector"
)

// RasterRequest asks for the areas of a raster on one side of a threshold
// inside a region.
type RasterRequest struct {
	Region     string
	RegionPath string
	RasterPath string
	Threshold  float64
	Comparison raster.Comparison
}

// RasterAnalysis clips a raster to a region, thresholds it into a mask and
// polygonizes the matching cells.
type RasterAnalysis struct {
	Deps
}

// NewRasterAnalysis returns a RasterAnalysis.
func NewRasterAnalysis(d Deps) *RasterAnalysis {
	return &RasterAnalysis{Deps: d}
}

// Run executes the analysis.
func (o *RasterAnalysis) Run(req RasterRequest, tr Tracer) Result {
	cmp, err := raster.ParseComparison(string(req.Comparison))
	if err != nil {
		return fail(tr, NameRaster, err)
	}

	grid, err := o.Rasters.Read(req.RasterPath)
	if err != nil {
		return fail(tr, NameRaster, err)
	}
	polys, err := regionPolygons(req.RegionPath, grid.CRS)
	if err != nil {
		return fail(tr, NameRaster, err)
	}

	clipped, ok, err := raster.Clip(grid, polys)
	if err != nil {
		return fail(tr, NameRaster, err)
	}
	if !ok {
		msg := fmt.Sprintf("%s does not overlap the raster %s", req.Region, req.RasterPath)
		tr.Tracef("Raster analysis found nothing: %s", msg)
		return Empty(NameRaster, msg)
	}
	valid := clipped.ValidCount()
	tr.Tracef("Clipped raster to %s: %d of %d cells hold data", req.Region, valid, clipped.Len())
	if valid == 0 {
		msg := fmt.Sprintf("no data within %s", req.Region)
		tr.Tracef("Raster analysis found nothing: %s", msg)
		return Empty(NameRaster, msg)
	}

	mask, matched := raster.Threshold(clipped, req.Threshold, cmp)
	polys = raster.Polygonize(mask, raster.MaskTrue)
	if len(polys) == 0 {
		msg := fmt.Sprintf("no cells %s %g within %s", cmp, req.Threshold, req.Region)
		tr.Tracef("Raster analysis found nothing: %s", msg)
		return Empty(NameRaster, msg)
	}

	maskSuffix, areasSuffix := artifact.SuffixLowElevationMask, artifact.SuffixLowElevationAreas
	if cmp == raster.Above {
		maskSuffix, areasSuffix = artifact.SuffixHighElevationMask, artifact.SuffixHighElevationAreas
	}
	maskPath := o.Layout.Path(req.Region, maskSuffix, artifact.ExtTIFF)
	areasPath := o.Layout.Path(req.Region, areasSuffix, artifact.ExtGeoJSON)

	// Polygons first: their reprojection is the step that can fail, and a
	// failed run must not leave a mask behind.
	fc := polygonCollection(polys, mask.CRS, func(i int) map[string]any {
		return map[string]any{"id": i + 1, "threshold": req.Threshold, "comparison": string(cmp)}
	})
	if err := vector.WriteGeoJSON(areasPath, fc); err != nil {
		return fail(tr, NameRaster, eris.Wrap(err, "operator: save polygons"))
	}
	if err := o.Rasters.Write(maskPath, mask); err != nil {
		_ = os.Remove(areasPath)
		return fail(tr, NameRaster, err)
	}

	tr.Tracef("Found %d areas (%d cells) %s %g in %s; mask saved to %s, polygons saved to %s",
		len(polys), matched, cmp, req.Threshold, req.Region, maskPath, areasPath)
	return Success(NameRaster, map[string]string{
		OutputRaster:     maskPath,
		OutputVectorized: areasPath,
	}, fmt.Sprintf("%d areas %s %g", len(polys), cmp, req.Threshold)).
		WithStat("matched_cells", float64(matched)).
		WithStat("polygons", float64(len(polys)))
}
