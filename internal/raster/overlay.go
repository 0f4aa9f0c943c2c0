package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// OverlayNoData marks no-data cells in persisted overlay output.
const OverlayNoData = -9999

// WeightedSum combines same-shaped layers cell by cell as Σ wᵢ·layerᵢ. A
// cell that is no-data in any layer is NaN in the result, so every finite
// sum, -9999 included, stays a valid cell. The output takes its
// georeferencing from the first layer and declares no sentinel; see
// WithNoData.
func WeightedSum(layers []*Grid, weights []float64) (*Grid, error) {
	if len(layers) == 0 {
		return nil, eris.New("raster: no layers to combine")
	}
	if len(layers) != len(weights) {
		return nil, eris.Errorf("raster: %d layers but %d weights", len(layers), len(weights))
	}

	first := layers[0]
	for i, l := range layers[1:] {
		if !first.SameShape(l) {
			return nil, eris.Errorf("raster: layer %d is %dx%d, expected %dx%d",
				i+1, l.Rows, l.Cols, first.Rows, first.Cols)
		}
	}

	out := &Grid{
		Rows:      first.Rows,
		Cols:      first.Cols,
		Values:    make([]float64, first.Len()),
		Transform: first.Transform,
		CRS:       first.CRS,
		DataType:  Float32,
	}
	for i := range out.Values {
		sum := 0.0
		for n, l := range layers {
			v := l.Values[i]
			if l.IsNoData(v) {
				sum = math.NaN()
				break
			}
			sum += weights[n] * v
		}
		out.Values[i] = sum
	}
	return out, nil
}

// WithNoData returns a copy of g with every no-data cell set to v and v
// declared as the sentinel. Used right before persisting, once the valid
// range can no longer contain v.
func (g *Grid) WithNoData(v float64) *Grid {
	out := g.Clone()
	for i := range out.Values {
		if !g.Valid(i) {
			out.Values[i] = v
		}
	}
	out.NoData, out.HasNoData = v, true
	return out
}

// Normalize rescales the valid cells of g to [0, 1] in place. When every
// valid cell holds the same value they are all set to 0 and constant is
// true.
func Normalize(g *Grid) (constant bool) {
	lo, hi := 0.0, 0.0
	seen := false
	for i, v := range g.Values {
		if !g.Valid(i) {
			continue
		}
		if !seen {
			lo, hi, seen = v, v, true
			continue
		}
		lo, hi = min(lo, v), max(hi, v)
	}
	if !seen {
		return false
	}

	span := hi - lo
	for i, v := range g.Values {
		if !g.Valid(i) {
			continue
		}
		if span == 0 {
			g.Values[i] = 0
		} else {
			g.Values[i] = (v - lo) / span
		}
	}
	return span == 0
}
