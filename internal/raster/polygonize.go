package raster

import (
	"slices"

	"github.com/twpayne/go-geom"
)

// edge is a directed cell side on the vertex lattice. Edges run clockwise
// around their cell as drawn with row 0 at the top.
type edge struct {
	from, to int
	cell     int
	used     bool
}

// Polygonize returns one polygon per 4-connected group of cells equal to
// value. No-data cells never belong to a group. Polygons are in world
// coordinates, ordered by the first cell of each group in row-major
// order, with counter-clockwise shells and clockwise holes.
func Polygonize(g *Grid, value float64) []*geom.Polygon {
	member := func(i int) bool {
		v := g.Values[i]
		return !g.IsNoData(v) && v == value
	}

	labels := make([]int, g.Len())
	for i := range labels {
		labels[i] = -1
	}

	var polys []*geom.Polygon
	var queue []int
	next := 0
	for start := range g.Values {
		if labels[start] >= 0 || !member(start) {
			continue
		}

		label := next
		next++
		labels[start] = label
		cells := []int{}
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			cells = append(cells, i)
			r, c := g.RowCol(i)
			for _, n := range [4][2]int{{r - 1, c}, {r + 1, c}, {r, c - 1}, {r, c + 1}} {
				if n[0] < 0 || n[0] >= g.Rows || n[1] < 0 || n[1] >= g.Cols {
					continue
				}
				j := g.Index(n[0], n[1])
				if labels[j] < 0 && member(j) {
					labels[j] = label
					queue = append(queue, j)
				}
			}
		}

		if p := traceComponent(g, labels, label, cells); p != nil {
			polys = append(polys, p)
		}
	}
	return polys
}

// traceComponent walks the boundary edges of one labelled group into
// rings. The group has exactly one outer ring; every other ring is a hole.
func traceComponent(g *Grid, labels []int, label int, cells []int) *geom.Polygon {
	stride := g.Cols + 1
	in := func(r, c int) bool {
		return r >= 0 && r < g.Rows && c >= 0 && c < g.Cols && labels[g.Index(r, c)] == label
	}

	var edges []edge
	out := make(map[int][]int)
	add := func(fromR, fromC, toR, toC, cell int) {
		e := edge{from: fromR*stride + fromC, to: toR*stride + toC, cell: cell}
		out[e.from] = append(out[e.from], len(edges))
		edges = append(edges, e)
	}
	slices.Sort(cells)
	for _, i := range cells {
		r, c := g.RowCol(i)
		if !in(r-1, c) {
			add(r, c, r, c+1, i)
		}
		if !in(r, c+1) {
			add(r, c+1, r+1, c+1, i)
		}
		if !in(r+1, c) {
			add(r+1, c+1, r+1, c, i)
		}
		if !in(r, c-1) {
			add(r+1, c, r, c, i)
		}
	}

	var shell []float64
	var holes [][]float64
	for s := range edges {
		if edges[s].used {
			continue
		}
		var ring []int
		cur := s
		for {
			edges[cur].used = true
			ring = append(ring, edges[cur].from)
			nxt := pickNext(edges, out[edges[cur].to], edges[cur].cell)
			if nxt == s || nxt < 0 || edges[nxt].used {
				break
			}
			cur = nxt
		}

		pixel := simplifyRing(ring, stride)
		if ringArea(pixel) > 0 {
			shell = pixel
		} else {
			holes = append(holes, pixel)
		}
	}
	if shell == nil {
		return nil
	}

	flat := toWorld(g.Transform, shell, true)
	ends := []int{len(flat)}
	for _, h := range holes {
		flat = append(flat, toWorld(g.Transform, h, false)...)
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

// pickNext chooses the outgoing edge at a vertex. At a pinch vertex, where
// two diagonal cells of the group meet, the edge of the other cell is
// taken so that each ring passes the vertex once.
func pickNext(edges []edge, candidates []int, cell int) int {
	switch len(candidates) {
	case 0:
		return -1
	case 1:
		return candidates[0]
	}
	for _, k := range candidates {
		if edges[k].cell != cell {
			return k
		}
	}
	return candidates[0]
}

// simplifyRing drops collinear lattice vertices and returns a closed ring
// of (col, row) pairs.
func simplifyRing(ring []int, stride int) []float64 {
	n := len(ring)
	xy := func(k int) (int, int) {
		v := ring[(k+n)%n]
		return v % stride, v / stride
	}
	out := make([]float64, 0, 2*n+2)
	for k := 0; k < n; k++ {
		px, py := xy(k - 1)
		x, y := xy(k)
		nx, ny := xy(k + 1)
		if (x-px)*(ny-y) == (y-py)*(nx-x) {
			continue
		}
		out = append(out, float64(x), float64(y))
	}
	return append(out, out[0], out[1])
}

// ringArea is the shoelace area of a closed flat ring.
func ringArea(flat []float64) float64 {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return sum / 2
}

// toWorld maps a pixel ring to world coordinates, orienting shells
// counter-clockwise and holes clockwise.
func toWorld(t Transform, pixel []float64, shell bool) []float64 {
	out := make([]float64, len(pixel))
	for i := 0; i+1 < len(pixel); i += 2 {
		out[i], out[i+1] = t.Apply(pixel[i], pixel[i+1])
	}
	if (ringArea(out) > 0) != shell {
		for i, j := 0, len(out)-2; i < j; i, j = i+2, j-2 {
			out[i], out[j] = out[j], out[i]
			out[i+1], out[j+1] = out[j+1], out[i+1]
		}
	}
	return out
}
