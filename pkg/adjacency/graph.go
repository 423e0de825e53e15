// Package adjacency builds and queries the rook-contiguity graph over a
// census table. Two units are adjacent when their boundaries share a segment
// of positive length; touching at a point does not count. The graph also
// carries per-unit areas, boundary lengths, centroids, and per-edge shared
// border lengths, which lets group compactness be computed without unioning
// polygons: a group's perimeter is the sum of its units' boundaries minus
// twice the shared length of its internal edges.
package adjacency

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// ErrDisconnected indicates the full unit set does not form a single
// connected region.
var ErrDisconnected = errors.New("adjacency: unit set is not connected")

// DisconnectedError reports the connected components found when a region
// that must be contiguous is not.
type DisconnectedError struct {
	// Sizes holds the unit count of every component, largest first.
	Sizes []int
	// Sample names a few units from the smallest component, the ones most
	// likely to be stray islands or data defects.
	Sample []string
}

func (e *DisconnectedError) Error() string {
	return fmt.Sprintf("adjacency: unit set splits into %d components (sizes %v, e.g. %v)",
		len(e.Sizes), e.Sizes, e.Sample)
}

func (e *DisconnectedError) Unwrap() error { return ErrDisconnected }

// Graph is the immutable adjacency index over a unit set. Unit indices align
// with the census table's sorted GEOID order.
type Graph struct {
	ids      []string
	index    map[string]int
	neighbor [][]int     // sorted neighbor indices per unit
	border   [][]float64 // shared border length, aligned with neighbor
	area     []float64
	boundary []float64
	centroid []orb.Point
	bound    []orb.Bound
}

// Len returns the number of units.
func (g *Graph) Len() int { return len(g.ids) }

// ID returns the GEOID at index i.
func (g *Graph) ID(i int) string { return g.ids[i] }

// IDs returns all GEOIDs in index order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Index returns the index of geoid.
func (g *Graph) Index(geoid string) (int, bool) {
	i, ok := g.index[geoid]
	return i, ok
}

// Neighbors returns the sorted neighbor indices of unit i. The slice is
// shared; callers must not mutate it.
func (g *Graph) Neighbors(i int) []int { return g.neighbor[i] }

// Borders returns the shared border lengths aligned with Neighbors(i). The
// slice is shared; callers must not mutate it.
func (g *Graph) Borders(i int) []float64 { return g.border[i] }

// SharedBorder returns the boundary length units i and j have in common,
// zero when they are not adjacent.
func (g *Graph) SharedBorder(i, j int) float64 {
	nb := g.neighbor[i]
	k := sort.SearchInts(nb, j)
	if k < len(nb) && nb[k] == j {
		return g.border[i][k]
	}
	return 0
}

// Area returns the planar area of unit i.
func (g *Graph) Area(i int) float64 { return g.area[i] }

// Boundary returns the total boundary length of unit i.
func (g *Graph) Boundary(i int) float64 { return g.boundary[i] }

// Centroid returns the area centroid of unit i.
func (g *Graph) Centroid(i int) orb.Point { return g.centroid[i] }

// Bound returns the bounding box of unit i.
func (g *Graph) Bound(i int) orb.Bound { return g.bound[i] }

// RegionBound returns the union bounding box of the given units.
func (g *Graph) RegionBound(members []int) orb.Bound {
	if len(members) == 0 {
		return orb.Bound{}
	}
	b := g.bound[members[0]]
	for _, m := range members[1:] {
		u := g.bound[m]
		if u.Min[0] < b.Min[0] {
			b.Min[0] = u.Min[0]
		}
		if u.Min[1] < b.Min[1] {
			b.Min[1] = u.Min[1]
		}
		if u.Max[0] > b.Max[0] {
			b.Max[0] = u.Max[0]
		}
		if u.Max[1] > b.Max[1] {
			b.Max[1] = u.Max[1]
		}
	}
	return b
}

// EdgeCount returns the number of undirected adjacency edges.
func (g *Graph) EdgeCount() int {
	var deg int
	for _, nb := range g.neighbor {
		deg += len(nb)
	}
	return deg / 2
}

// Connected reports whether the units in members form a single connected
// region under the induced subgraph. Empty and single-unit sets count as
// connected.
func (g *Graph) Connected(members []int) bool {
	if len(members) <= 1 {
		return true
	}
	in := make([]bool, len(g.ids))
	for _, m := range members {
		in[m] = true
	}
	seen := make([]bool, len(g.ids))
	queue := []int{members[0]}
	seen[members[0]] = true
	count := 1
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.neighbor[u] {
			if in[v] && !seen[v] {
				seen[v] = true
				count++
				queue = append(queue, v)
			}
		}
	}
	return count == len(members)
}

// Components splits members into connected components. Each component is
// sorted ascending and components are ordered by their smallest index.
func (g *Graph) Components(members []int) [][]int {
	in := make([]bool, len(g.ids))
	for _, m := range members {
		in[m] = true
	}
	seen := make([]bool, len(g.ids))
	sorted := append([]int(nil), members...)
	sort.Ints(sorted)

	var comps [][]int
	for _, start := range sorted {
		if seen[start] {
			continue
		}
		var comp []int
		queue := []int{start}
		seen[start] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			comp = append(comp, u)
			for _, v := range g.neighbor[u] {
				if in[v] && !seen[v] {
					seen[v] = true
					queue = append(queue, v)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// GroupShape returns the area and perimeter of the unit group, using the
// shared-border bookkeeping instead of a polygon union.
func (g *Graph) GroupShape(members []int) (area, perimeter float64) {
	in := make(map[int]bool, len(members))
	for _, m := range members {
		in[m] = true
	}
	for _, m := range members {
		area += g.area[m]
		perimeter += g.boundary[m]
		for k, v := range g.neighbor[m] {
			if in[v] {
				// Each internal edge is visited from both sides.
				perimeter -= g.border[m][k]
			}
		}
	}
	return area, perimeter
}

// graphJSON is the serialized form used for stage caching.
type graphJSON struct {
	IDs        []string     `json:"ids"`
	Areas      []float64    `json:"areas"`
	Boundaries []float64    `json:"boundaries"`
	Centroids  [][2]float64 `json:"centroids"`
	Bounds     [][4]float64 `json:"bounds"`
	Edges      []edgeJSON   `json:"edges"`
}

type edgeJSON struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Border float64 `json:"len"`
}

// MarshalJSON serializes the graph for caching.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{
		IDs:        g.ids,
		Areas:      g.area,
		Boundaries: g.boundary,
		Centroids:  make([][2]float64, len(g.centroid)),
		Bounds:     make([][4]float64, len(g.bound)),
	}
	for i, c := range g.centroid {
		out.Centroids[i] = [2]float64{c[0], c[1]}
	}
	for i, b := range g.bound {
		out.Bounds[i] = [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	}
	for i, nb := range g.neighbor {
		for k, j := range nb {
			if i < j {
				out.Edges = append(out.Edges, edgeJSON{A: i, B: j, Border: g.border[i][k]})
			}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a cached graph.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	n := len(in.IDs)
	if len(in.Areas) != n || len(in.Boundaries) != n || len(in.Centroids) != n || len(in.Bounds) != n {
		return errors.New("adjacency: cached graph arrays disagree on length")
	}
	g.ids = in.IDs
	g.area = in.Areas
	g.boundary = in.Boundaries
	g.centroid = make([]orb.Point, n)
	for i, c := range in.Centroids {
		g.centroid[i] = orb.Point{c[0], c[1]}
	}
	g.bound = make([]orb.Bound, n)
	for i, b := range in.Bounds {
		g.bound[i] = orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	}
	g.index = make(map[string]int, n)
	for i, id := range in.IDs {
		g.index[id] = i
	}
	g.neighbor = make([][]int, n)
	g.border = make([][]float64, n)
	for _, e := range in.Edges {
		if e.A < 0 || e.A >= n || e.B < 0 || e.B >= n {
			return fmt.Errorf("adjacency: cached edge %d-%d out of range", e.A, e.B)
		}
		g.addEdge(e.A, e.B, e.Border)
	}
	g.sortNeighbors()
	return nil
}

func (g *Graph) addEdge(i, j int, border float64) {
	g.neighbor[i] = append(g.neighbor[i], j)
	g.border[i] = append(g.border[i], border)
	g.neighbor[j] = append(g.neighbor[j], i)
	g.border[j] = append(g.border[j], border)
}

func (g *Graph) sortNeighbors() {
	for i := range g.neighbor {
		nb, bd := g.neighbor[i], g.border[i]
		idx := make([]int, len(nb))
		for k := range idx {
			idx[k] = k
		}
		sort.Slice(idx, func(a, b int) bool { return nb[idx[a]] < nb[idx[b]] })
		sortedNb := make([]int, len(nb))
		sortedBd := make([]float64, len(bd))
		for k, o := range idx {
			sortedNb[k] = nb[o]
			sortedBd[k] = bd[o]
		}
		g.neighbor[i] = sortedNb
		g.border[i] = sortedBd
	}
}
