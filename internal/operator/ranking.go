package operator

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geoquery/internal/raster"
	"github.com/sells-group/geoquery/internal/vector"
)

// RankingRequest asks for the best cells of a suitability raster.
type RankingRequest struct {
	Region          string
	SuitabilityPath string
	TopN            int
}

// Ranking emits the top-N cells of a raster as points.
type Ranking struct {
	Deps
}

// NewRanking returns a Ranking operator.
func NewRanking(d Deps) *Ranking {
	return &Ranking{Deps: d}
}

// Run executes the ranking.
func (o *Ranking) Run(req RankingRequest, tr Tracer) Result {
	if req.TopN <= 0 {
		return fail(tr, NameRanking, eris.Errorf("operator: top_n must be > 0, got %d", req.TopN))
	}

	grid, err := o.Rasters.Read(req.SuitabilityPath)
	if err != nil {
		return fail(tr, NameRanking, err)
	}

	cells := raster.TopK(grid, req.TopN)
	if len(cells) == 0 {
		msg := fmt.Sprintf("no valid cells in %s", req.SuitabilityPath)
		tr.Tracef("Ranking found nothing: %s", msg)
		return Empty(NameRanking, msg)
	}

	fc := &vector.FeatureCollection{CRS: outputCRS(grid.CRS), Features: make([]vector.Feature, len(cells))}
	for i, c := range cells {
		x, y := grid.CellCenter(c.Row, c.Col)
		fc.Features[i] = vector.Feature{
			ID:       fmt.Sprintf("rank-%d", i+1),
			Geometry: geom.NewPointFlat(geom.XY, []float64{x, y}),
			Properties: map[string]any{
				"rank":  i + 1,
				"value": c.Value,
				"row":   c.Row,
				"col":   c.Col,
			},
		}
	}

	out := o.Layout.TopLocations(req.Region, req.TopN)
	if err := vector.WriteGeoJSON(out, fc); err != nil {
		return fail(tr, NameRanking, err)
	}

	tr.Tracef("Selected top %d locations (best value %g) and saved to %s", len(cells), cells[0].Value, out)
	return Success(NameRanking, map[string]string{OutputRanking: out},
		fmt.Sprintf("top %d locations", len(cells))).
		WithStat("locations", float64(len(cells)))
}
