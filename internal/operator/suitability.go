package operator

import (
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geoquery/internal/raster"
)

// Criterion is one weighted input layer.
type Criterion struct {
	Path   string  `json:"path" yaml:"path"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// SuitabilityRequest asks for a weighted overlay of co-registered layers.
type SuitabilityRequest struct {
	Region   string
	Criteria []Criterion
}

// Suitability combines criteria layers by weighted sum and normalizes the
// result to [0, 1].
type Suitability struct {
	Deps
}

// NewSuitability returns a Suitability operator.
func NewSuitability(d Deps) *Suitability {
	return &Suitability{Deps: d}
}

// Run executes the overlay.
func (o *Suitability) Run(req SuitabilityRequest, tr Tracer) Result {
	if len(req.Criteria) == 0 {
		return fail(tr, NameSuitability, eris.New("operator: no suitability criteria"))
	}

	layers := make([]*raster.Grid, len(req.Criteria))
	weights := make([]float64, len(req.Criteria))
	var eg errgroup.Group
	for i, c := range req.Criteria {
		weights[i] = c.Weight
		eg.Go(func() error {
			g, err := o.Rasters.Read(c.Path)
			if err != nil {
				return err
			}
			layers[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fail(tr, NameSuitability, err)
	}

	sum, err := raster.WeightedSum(layers, weights)
	if err != nil {
		return fail(tr, NameSuitability, err)
	}
	if raster.Normalize(sum) {
		tr.Tracef("Weighted sum is constant across %s; suitability set to 0", req.Region)
	}

	valid := sum.ValidCount()

	out := o.Layout.Suitability(req.Region)
	if err := o.Rasters.Write(out, sum.WithNoData(raster.OverlayNoData)); err != nil {
		return fail(tr, NameSuitability, err)
	}

	tr.Tracef("Combined %d criteria into suitability raster %s", len(layers), out)
	return Success(NameSuitability, map[string]string{OutputSuitability: out},
		fmt.Sprintf("weighted overlay of %d layers", len(layers))).
		WithStat("layers", float64(len(layers))).
		WithStat("valid_cells", float64(valid))
}
