package raster

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Mask cell values.
const (
	MaskTrue   = 1
	MaskFalse  = 0
	MaskNoData = 255
)

// Comparison selects which side of a threshold matches.
type Comparison string

// Supported comparisons. Both are strict.
const (
	Below Comparison = "below"
	Above Comparison = "above"
)

// ParseComparison accepts "below" or "above" in any case. Empty means
// Below.
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Below):
		return Below, nil
	case string(Above):
		return Above, nil
	default:
		return "", eris.Errorf("raster: unknown comparison %q", s)
	}
}

// Match reports whether v satisfies the comparison against t.
func (c Comparison) Match(v, t float64) bool {
	if c == Above {
		return v > t
	}
	return v < t
}

// MaskWhere builds a byte mask with 1 where pred holds, 0 where it does
// not and 255 on no-data cells. It also returns the number of 1 cells.
func MaskWhere(g *Grid, pred func(v float64) bool) (*Grid, int) {
	out := &Grid{
		Rows:      g.Rows,
		Cols:      g.Cols,
		Values:    make([]float64, len(g.Values)),
		Transform: g.Transform,
		CRS:       g.CRS,
		NoData:    MaskNoData,
		HasNoData: true,
		DataType:  Byte,
	}
	n := 0
	for i, v := range g.Values {
		switch {
		case g.IsNoData(v):
			out.Values[i] = MaskNoData
		case pred(v):
			out.Values[i] = MaskTrue
			n++
		default:
			out.Values[i] = MaskFalse
		}
	}
	return out, n
}

// Threshold masks the cells of g that are strictly below or above t.
func Threshold(g *Grid, t float64, cmp Comparison) (*Grid, int) {
	return MaskWhere(g, func(v float64) bool { return cmp.Match(v, t) })
}
