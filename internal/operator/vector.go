package operator

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/vector"
)

// VectorRequest asks for a feature collection to be buffered.
type VectorRequest struct {
	Region     string
	VectorPath string
	// Distance is in metres.
	Distance float64
}

// VectorAnalysis validates, reprojects and buffers features.
type VectorAnalysis struct {
	Deps
}

// NewVectorAnalysis returns a VectorAnalysis.
func NewVectorAnalysis(d Deps) *VectorAnalysis {
	return &VectorAnalysis{Deps: d}
}

// Run executes the analysis.
func (o *VectorAnalysis) Run(req VectorRequest, tr Tracer) Result {
	if req.Distance <= 0 {
		return fail(tr, NameVector, eris.Errorf("operator: buffer distance must be > 0, got %g", req.Distance))
	}

	fc, err := vector.ReadFile(req.VectorPath)
	if err != nil {
		return fail(tr, NameVector, err)
	}
	if fc.Len() == 0 {
		return fail(tr, NameVector, eris.Errorf("operator: no features in %s", req.VectorPath))
	}

	valid, dropped := vector.Validate(fc)
	if dropped > 0 {
		tr.Tracef("Dropped %d invalid or empty features", dropped)
	}
	if valid.Len() == 0 {
		return fail(tr, NameVector, eris.Errorf("operator: no valid features in %s", req.VectorPath))
	}
	if valid.CRS == "" {
		valid.CRS = vector.CRSWGS84
	}

	projected, err := vector.Reproject(valid, vector.CRSWebMercator)
	if err != nil {
		return fail(tr, NameVector, err)
	}
	buffered, err := vector.Buffer(projected, req.Distance)
	if err != nil {
		return fail(tr, NameVector, err)
	}

	out := o.Layout.Path(req.Region, artifact.SuffixBuffered, artifact.ExtGeoJSON)
	if err := vector.WriteGeoJSON(out, buffered); err != nil {
		return fail(tr, NameVector, err)
	}

	tr.Tracef("Buffered %d valid features by %gm and saved to %s", buffered.Len(), req.Distance, out)
	return Success(NameVector, map[string]string{OutputBuffered: out},
		fmt.Sprintf("buffered %d features by %gm", buffered.Len(), req.Distance)).
		WithStat("features", float64(buffered.Len())).
		WithStat("dropped", float64(dropped))
}
