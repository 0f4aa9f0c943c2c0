package raster

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Clip crops g to the pixel extent of polys and marks every cell whose
// centre lies outside all of them as no-data. Polygons are unioned; holes
// are honoured. ok is false when the polygons do not overlap the grid.
func Clip(g *Grid, polys []*geom.Polygon) (clipped *Grid, ok bool, err error) {
	if len(polys) == 0 {
		return nil, false, eris.New("raster: clip region has no polygons")
	}

	// Rings in fractional pixel space of g.
	pixelPolys := make([][][]float64, 0, len(polys))
	minC, minR := math.Inf(1), math.Inf(1)
	maxC, maxR := math.Inf(-1), math.Inf(-1)
	for _, p := range polys {
		var rings [][]float64
		for i := 0; i < p.NumLinearRings(); i++ {
			flat := p.LinearRing(i).FlatCoords()
			stride := p.Stride()
			ring := make([]float64, 0, 2*len(flat)/stride)
			for j := 0; j+1 < len(flat); j += stride {
				c, r, err := g.Transform.ToPixel(flat[j], flat[j+1])
				if err != nil {
					return nil, false, err
				}
				ring = append(ring, c, r)
				minC, maxC = math.Min(minC, c), math.Max(maxC, c)
				minR, maxR = math.Min(minR, r), math.Max(maxR, r)
			}
			rings = append(rings, ring)
		}
		pixelPolys = append(pixelPolys, rings)
	}
	if math.IsInf(minC, 1) {
		return nil, false, eris.New("raster: clip region has no coordinates")
	}

	col0 := max(0, int(math.Floor(minC)))
	row0 := max(0, int(math.Floor(minR)))
	col1 := min(g.Cols, int(math.Ceil(maxC)))
	row1 := min(g.Rows, int(math.Ceil(maxR)))
	if col0 >= col1 || row0 >= row1 {
		return nil, false, nil
	}

	inside := make([]bool, (row1-row0)*(col1-col0))
	for _, rings := range pixelPolys {
		fillPolygon(inside, rings, row0, row1, col0, col1)
	}

	out := &Grid{
		Rows:      row1 - row0,
		Cols:      col1 - col0,
		Transform: g.Transform.Offset(row0, col0),
		CRS:       g.CRS,
		NoData:    g.NoData,
		HasNoData: g.HasNoData,
		DataType:  g.DataType,
	}
	if !out.HasNoData {
		out.NoData, out.HasNoData = math.NaN(), true
	}
	out.Values = make([]float64, out.Rows*out.Cols)
	covered := false
	for r := 0; r < out.Rows; r++ {
		for c := 0; c < out.Cols; c++ {
			i := out.Index(r, c)
			if !inside[i] {
				out.Values[i] = out.NoData
				continue
			}
			covered = true
			out.Values[i] = g.Values[g.Index(r+row0, c+col0)]
		}
	}
	if !covered {
		return nil, false, nil
	}
	return out, true, nil
}

// fillPolygon marks window cells whose centres fall inside rings under
// the even-odd rule, one scanline per row.
func fillPolygon(inside []bool, rings [][]float64, row0, row1, col0, col1 int) {
	width := col1 - col0
	var xs []float64
	for r := row0; r < row1; r++ {
		y := float64(r) + 0.5
		xs = xs[:0]
		for _, ring := range rings {
			n := len(ring) / 2
			for i, j := 0, n-1; i < n; j, i = i, i+1 {
				xi, yi := ring[2*i], ring[2*i+1]
				xj, yj := ring[2*j], ring[2*j+1]
				if (yi > y) != (yj > y) {
					xs = append(xs, xi+(y-yi)*(xj-xi)/(yj-yi))
				}
			}
		}
		slices.Sort(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			// Cell c is inside when xs[k] <= c+0.5 < xs[k+1].
			start := max(col0, int(math.Ceil(xs[k]-0.5)))
			end := min(col1, int(math.Ceil(xs[k+1]-0.5)))
			for c := start; c < end; c++ {
				inside[(r-row0)*width+(c-col0)] = true
			}
		}
	}
}
