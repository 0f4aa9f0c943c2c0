// Package raster holds single-band grids in memory and implements the
// cell-level analysis used by the operators: clipping to polygons,
// thresholding, polygonizing, top-k selection and weighted overlay.
package raster

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
)

// DataType is the on-disk sample type of a grid.
type DataType int

// Supported sample types.
const (
	Float64 DataType = iota
	Float32
	Byte
)

func (d DataType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Byte:
		return "byte"
	default:
		return "float64"
	}
}

// Transform is an affine pixel-to-world mapping in GDAL coefficient order:
//
//	x = t[0] + col*t[1] + row*t[2]
//	y = t[3] + col*t[4] + row*t[5]
type Transform [6]float64

// Apply maps fractional pixel coordinates to world coordinates.
func (t Transform) Apply(col, row float64) (x, y float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}

// ToPixel maps world coordinates to fractional pixel coordinates.
func (t Transform) ToPixel(x, y float64) (col, row float64, err error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return 0, 0, eris.New("raster: transform is not invertible")
	}
	dx, dy := x-t[0], y-t[3]
	return (t[5]*dx - t[2]*dy) / det, (t[1]*dy - t[4]*dx) / det, nil
}

// Offset returns the transform of a window whose top-left cell is
// (row, col) of t.
func (t Transform) Offset(row, col int) Transform {
	x, y := t.Apply(float64(col), float64(row))
	return Transform{x, t[1], t[2], y, t[4], t[5]}
}

// Grid is a single-band raster held in row-major order. NaN is always
// treated as no-data, in addition to NoData when HasNoData is set.
type Grid struct {
	Rows      int
	Cols      int
	Values    []float64
	Transform Transform
	CRS       string
	NoData    float64
	HasNoData bool
	DataType  DataType
}

// New returns a zero-filled float64 grid.
func New(rows, cols int, t Transform) *Grid {
	return &Grid{
		Rows:      rows,
		Cols:      cols,
		Values:    make([]float64, rows*cols),
		Transform: t,
	}
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Values = slices.Clone(g.Values)
	return &out
}

// Len returns the number of cells.
func (g *Grid) Len() int { return g.Rows * g.Cols }

// Index returns the flat index of (row, col).
func (g *Grid) Index(row, col int) int { return row*g.Cols + col }

// RowCol returns the (row, col) of a flat index.
func (g *Grid) RowCol(i int) (row, col int) { return i / g.Cols, i % g.Cols }

// IsNoData reports whether v is a no-data sample for this grid.
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || (g.HasNoData && v == g.NoData)
}

// Valid reports whether the cell at flat index i holds data.
func (g *Grid) Valid(i int) bool { return !g.IsNoData(g.Values[i]) }

// ValidCount returns the number of cells holding data.
func (g *Grid) ValidCount() int {
	n := 0
	for i := range g.Values {
		if g.Valid(i) {
			n++
		}
	}
	return n
}

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols
}

// CellCenter returns the world coordinate of the centre of (row, col).
func (g *Grid) CellCenter(row, col int) (x, y float64) {
	return g.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
}

func (g *Grid) check() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return eris.Errorf("raster: invalid dimensions %dx%d", g.Rows, g.Cols)
	}
	if len(g.Values) != g.Rows*g.Cols {
		return eris.Errorf("raster: %d values for %dx%d grid", len(g.Values), g.Rows, g.Cols)
	}
	return nil
}
