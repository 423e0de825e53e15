package adjacency

import (
	"context"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/geo"
)

// Options configure graph construction.
type Options struct {
	// MinSharedLength is the shortest boundary overlap that still counts as
	// adjacency. Defaults to 1e-9 in the input's coordinate units.
	MinSharedLength float64

	// Tolerance bounds the perpendicular distance under which two boundary
	// segments are treated as collinear. Defaults to MinSharedLength.
	Tolerance float64

	// AllowDisconnected skips the whole-set connectivity check. Partitioning
	// requires a connected input, so this is only for diagnostics.
	AllowDisconnected bool
}

func (o *Options) setDefaults() {
	if o.MinSharedLength <= 0 {
		o.MinSharedLength = 1e-9
	}
	if o.Tolerance <= 0 {
		o.Tolerance = o.MinSharedLength
	}
}

const ctxCheckStride = 4096

// Build constructs the adjacency graph for tbl. Candidate neighbor pairs
// come from a uniform grid bucketing of unit bounding boxes; each candidate
// pair is then measured exactly with a collinear segment-overlap test.
// Unless AllowDisconnected is set, Build fails with a DisconnectedError when
// the table does not form one contiguous region.
func Build(ctx context.Context, tbl *census.Table, opts Options) (*Graph, error) {
	opts.setDefaults()
	n := tbl.Len()

	g := &Graph{
		ids:      tbl.GEOIDs(),
		index:    make(map[string]int, n),
		neighbor: make([][]int, n),
		border:   make([][]float64, n),
		area:     make([]float64, n),
		boundary: make([]float64, n),
		centroid: make([]orb.Point, n),
		bound:    make([]orb.Bound, n),
	}
	for i, id := range g.ids {
		g.index[id] = i
	}

	for i := 0; i < n; i++ {
		if i%ctxCheckStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		geom := tbl.At(i).Geometry
		g.area[i] = geo.Area(geom)
		g.boundary[i] = geo.Perimeter(geom)
		g.centroid[i] = geo.Centroid(geom)
		g.bound[i] = geom.Bound()
	}

	pairs, err := candidatePairs(ctx, g.bound, opts.Tolerance)
	if err != nil {
		return nil, err
	}

	for k, p := range pairs {
		if k%ctxCheckStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i, j := p[0], p[1]
		shared := geo.SharedBoundary(tbl.At(i).Geometry, tbl.At(j).Geometry, opts.Tolerance)
		if shared >= opts.MinSharedLength {
			g.addEdge(i, j, shared)
		}
	}
	g.sortNeighbors()

	if !opts.AllowDisconnected {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		if comps := g.Components(all); len(comps) > 1 {
			return nil, disconnectedError(g, comps)
		}
	}
	return g, nil
}

// candidatePairs buckets unit bounding boxes into a uniform grid and emits
// every pair sharing a cell, sorted for deterministic edge construction.
// The cell size is the median bounding-box extent so typical units land in
// only a handful of cells.
func candidatePairs(ctx context.Context, bounds []orb.Bound, tol float64) ([][2]int, error) {
	n := len(bounds)
	extents := make([]float64, n)
	for i, b := range bounds {
		extents[i] = math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	}
	sorted := append([]float64(nil), extents...)
	sort.Float64s(sorted)
	cell := sorted[n/2]
	if cell <= 0 {
		cell = 1
	}

	type cellKey struct{ x, y int }
	buckets := make(map[cellKey][]int, n)
	for i, b := range bounds {
		x0 := int(math.Floor((b.Min[0] - tol) / cell))
		x1 := int(math.Floor((b.Max[0] + tol) / cell))
		y0 := int(math.Floor((b.Min[1] - tol) / cell))
		y1 := int(math.Floor((b.Max[1] + tol) / cell))
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				key := cellKey{x, y}
				buckets[key] = append(buckets[key], i)
			}
		}
	}

	seen := make(map[[2]int]struct{})
	checked := 0
	for _, members := range buckets {
		if checked%ctxCheckStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				checked++
				i, j := members[a], members[b]
				if i > j {
					i, j = j, i
				}
				if !boundsTouch(bounds[i], bounds[j], tol) {
					continue
				}
				seen[[2]int{i, j}] = struct{}{}
			}
		}
	}

	pairs := make([][2]int, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a][0] != pairs[b][0] {
			return pairs[a][0] < pairs[b][0]
		}
		return pairs[a][1] < pairs[b][1]
	})
	return pairs, nil
}

func boundsTouch(a, b orb.Bound, tol float64) bool {
	return a.Min[0] <= b.Max[0]+tol && b.Min[0] <= a.Max[0]+tol &&
		a.Min[1] <= b.Max[1]+tol && b.Min[1] <= a.Max[1]+tol
}

func disconnectedError(g *Graph, comps [][]int) *DisconnectedError {
	sizes := make([]int, len(comps))
	smallest := comps[0]
	for i, c := range comps {
		sizes[i] = len(c)
		if len(c) < len(smallest) {
			smallest = c
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))

	sample := make([]string, 0, 3)
	for _, i := range smallest {
		sample = append(sample, g.ids[i])
		if len(sample) == 3 {
			break
		}
	}
	return &DisconnectedError{Sizes: sizes, Sample: sample}
}
