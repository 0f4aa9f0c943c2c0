package raster

import "slices"

// Cell is a selected raster cell.
type Cell struct {
	Index int
	Row   int
	Col   int
	Value float64
}

// TopK returns the k highest valid cells of g, best first. Equal values
// are ordered by ascending flat index, so the result is deterministic.
// When fewer than k cells are valid, all of them are returned.
func TopK(g *Grid, k int) []Cell {
	if k <= 0 {
		return nil
	}

	idx := make([]int, 0, len(g.Values))
	for i := range g.Values {
		if g.Valid(i) {
			idx = append(idx, i)
		}
	}

	better := func(a, b int) bool {
		va, vb := g.Values[a], g.Values[b]
		if va != vb {
			return va > vb
		}
		return a < b
	}

	if k < len(idx) {
		selectFirst(idx, k, better)
		idx = idx[:k]
	}
	slices.SortFunc(idx, func(a, b int) int {
		switch {
		case a == b:
			return 0
		case better(a, b):
			return -1
		default:
			return 1
		}
	})

	out := make([]Cell, len(idx))
	for n, i := range idx {
		r, c := g.RowCol(i)
		out[n] = Cell{Index: i, Row: r, Col: c, Value: g.Values[i]}
	}
	return out
}

// selectFirst partially orders idx so that its first k entries are the k
// best under better, in no particular order.
func selectFirst(idx []int, k int, better func(a, b int) bool) {
	lo, hi := 0, len(idx)-1
	for lo < hi {
		p := partition(idx, lo, hi, better)
		switch {
		case p == k-1:
			return
		case p < k-1:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

// partition is a Lomuto partition around the middle element.
func partition(idx []int, lo, hi int, better func(a, b int) bool) int {
	mid := lo + (hi-lo)/2
	idx[mid], idx[hi] = idx[hi], idx[mid]
	pivot := idx[hi]
	store := lo
	for i := lo; i < hi; i++ {
		if better(idx[i], pivot) {
			idx[i], idx[store] = idx[store], idx[i]
			store++
		}
	}
	idx[store], idx[hi] = idx[hi], idx[store]
	return store
}
