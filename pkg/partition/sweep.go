package partition

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/geo"
)

// sweepRun carries the per-bisection state shared by all sweep directions.
type sweepRun struct {
	s        *splitter
	units    []int  // region members, sorted
	inRegion []bool // full-graph membership bitmap
	region   *regionStats
	target   float64
	k1, k2   int

	// clusterOf maps a unit to its protected cluster id, -1 when the unit
	// belongs to none. vra reports whether the guard is live for the region.
	clusterOf []int
	vra       bool
}

func (s *splitter) newSweepRun(units []int, k1, k2 int) *sweepRun {
	r := &sweepRun{
		s:        s,
		units:    units,
		inRegion: make([]bool, s.graph.Len()),
		k1:       k1,
		k2:       k2,
	}
	for _, u := range units {
		r.inRegion[u] = true
	}

	reg := &regionStats{units: len(units), coiPop: map[string]int64{}}
	for _, u := range units {
		reg.pop += s.pop[u]
		reg.minority += s.minority[u]
		reg.leanPop += s.leanPop[u]
		reg.area += s.graph.Area(u)
		reg.boundary += s.graph.Boundary(u)
		if tag := s.coi[u]; tag != "" {
			reg.coiPop[tag] += s.pop[u]
		}
		for k, v := range s.graph.Neighbors(u) {
			if v > u && r.inRegion[v] {
				reg.sharedTotal += s.graph.Borders(u)[k]
			}
		}
	}
	reg.coiTags = sortedTags(reg.coiPop)
	r.region = reg
	r.target = float64(k1) / float64(k1+k2) * float64(reg.pop)
	if s.opts.VRA {
		r.findClusters()
	}
	r.vra = s.opts.VRA && len(reg.clusterMin) > 0
	return r
}

// findClusters locates the region's minority-opportunity clusters: maximal
// connected runs of units whose own minority share is at or above the
// threshold. A run of such units always aggregates to at least the threshold,
// so each cluster could anchor an opportunity district. Single units cannot
// be cracked and are skipped.
func (r *sweepRun) findClusters() {
	s := r.s
	r.clusterOf = make([]int, s.graph.Len())
	for i := range r.clusterOf {
		r.clusterOf[i] = -1
	}
	protected := func(u int) bool {
		return s.pop[u] > 0 && float64(s.minority[u]) >= s.opts.VRAThreshold*float64(s.pop[u])
	}

	seen := make([]bool, s.graph.Len())
	for _, start := range r.units {
		if seen[start] || !protected(start) {
			continue
		}
		comp := []int{start}
		seen[start] = true
		for q := 0; q < len(comp); q++ {
			for _, v := range s.graph.Neighbors(comp[q]) {
				if r.inRegion[v] && !seen[v] && protected(v) {
					seen[v] = true
					comp = append(comp, v)
				}
			}
		}
		if len(comp) < 2 {
			continue
		}
		id := len(r.region.clusterMin)
		var minPop int64
		for _, u := range comp {
			r.clusterOf[u] = id
			minPop += s.minority[u]
		}
		r.region.clusterMin = append(r.region.clusterMin, minPop)
	}
}

// axes returns the sweep directions for the region: the base axis rotated by
// 0°, 90°, 45° and 135°, each in both orientations, capped at MaxSweeps.
func (r *sweepRun) axes() []geo.Axis {
	base := r.baseAxis()
	offsets := []float64{0, math.Pi / 2, math.Pi / 4, 3 * math.Pi / 4}
	axes := make([]geo.Axis, 0, len(offsets)*2)
	for _, off := range offsets {
		ax := base.Rotate(off)
		axes = append(axes, ax, ax.Flip())
	}
	if len(axes) > r.s.opts.MaxSweeps {
		axes = axes[:r.s.opts.MaxSweeps]
	}
	return axes
}

func (r *sweepRun) baseAxis() geo.Axis {
	if r.s.opts.AxisMode == AxisPCA {
		pts := make([]orb.Point, len(r.units))
		ws := make([]float64, len(r.units))
		for i, u := range r.units {
			pts[i] = r.s.graph.Centroid(u)
			ws[i] = float64(r.s.pop[u])
		}
		return geo.PrincipalAxis(pts, ws)
	}
	return geo.LongAxis(r.s.graph.RegionBound(r.units))
}

// guardFail reports whether c violates an active hard guard.
func (r *sweepRun) guardFail(c *cut) bool {
	if r.vra && c.vraCrack > 0 {
		return true
	}
	if r.s.opts.COIStrict && c.coiSplit > 0 {
		return true
	}
	return false
}

// violation orders guard-failing cuts for the least-violating fallback. The
// precedence option decides which guard dominates.
func (r *sweepRun) violation(c *cut) [2]float64 {
	coi := 0.0
	if r.s.opts.COIStrict {
		coi = c.coiSplit
	}
	vra := 0.0
	if r.vra {
		vra = c.vraCrack
	}
	if r.s.opts.Precedence == COIFirst {
		return [2]float64{coi, vra}
	}
	return [2]float64{vra, coi}
}

func (r *sweepRun) lessViolating(x, y *cut) bool {
	xv, yv := r.violation(x), r.violation(y)
	if xv[0] != yv[0] {
		return xv[0] < yv[0]
	}
	if xv[1] != yv[1] {
		return xv[1] < yv[1]
	}
	return betterCut(x, y)
}

// runSweep walks one direction and returns the sweep's best guard-passing
// cut and its least-violating guard-failing cut, either possibly nil. The
// frontier always grows by the lowest projection key among units adjacent to
// side A, so A stays connected at every step; a snapshot becomes a candidate
// when its population enters the tolerance window, both sides have enough
// units left, and the complement is still connected.
func (r *sweepRun) runSweep(ctx context.Context, axis geo.Axis, sweepIdx int, tol float64) (pass, fail *cut, err error) {
	lower := r.target * (1 - tol)
	upper := r.target * (1 + tol)

	g := r.s.graph
	inA := make([]bool, g.Len())
	pushed := make([]bool, g.Len())
	members := make([]int, 0, len(r.units))
	a := sideStats{coiPop: map[string]int64{}}
	if r.vra {
		a.vraPop = map[int]int64{}
	}
	var across float64

	fr := newFrontier(r, axis)
	seed := r.seed(axis)
	pushed[seed] = true
	fr.push(seed)

	steps := 0
	for fr.Len() > 0 {
		steps++
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		u := fr.pop()
		if inA[u] {
			continue
		}
		inA[u] = true
		members = append(members, u)

		a.units++
		a.pop += r.s.pop[u]
		a.minority += r.s.minority[u]
		a.leanPop += r.s.leanPop[u]
		a.area += g.Area(u)
		a.boundary += g.Boundary(u)
		if tag := r.s.coi[u]; tag != "" {
			a.coiPop[tag] += r.s.pop[u]
		}
		if r.vra {
			if id := r.clusterOf[u]; id >= 0 {
				a.vraPop[id] += r.s.minority[u]
			}
		}
		for k, v := range g.Neighbors(u) {
			if !r.inRegion[v] {
				continue
			}
			w := g.Borders(u)[k]
			if inA[v] {
				a.sharedIn += w
				across -= w
			} else {
				across += w
				if !pushed[v] {
					pushed[v] = true
					fr.push(v)
				}
			}
		}

		bUnits := len(r.units) - a.units
		if bUnits < r.k2 {
			break
		}
		if float64(a.pop) > upper {
			// Population only grows; no later snapshot can re-enter the window.
			break
		}
		if float64(a.pop) < lower || a.units < r.k1 {
			continue
		}
		if !r.restConnected(inA, bUnits) {
			continue
		}

		c := newCut(r.region, a, across, r.target, sweepIdx, r.vra)
		// Snapshot the running totals; the sweep keeps mutating the maps.
		c.a.coiPop = copyTally(a.coiPop)
		c.a.vraPop = copyTally(a.vraPop)
		c.evaluate(r.s.scorers)
		r.s.candidates.Add(1)

		if r.guardFail(c) {
			if fail == nil || r.lessViolating(c, fail) {
				c.attachMembers(g, members)
				fail = c
			}
		} else if pass == nil || betterCut(c, pass) {
			c.attachMembers(g, members)
			pass = c
		}
	}
	return pass, fail, nil
}

// nearestCut reruns the base-axis sweep without a tolerance window and
// returns the snapshot closest to the target, for infeasibility reporting.
// The walk runs twice: once to find the best step, once to materialize it.
func (r *sweepRun) nearestCut(ctx context.Context) (best [2][]string, dev float64, ok bool) {
	axis := r.baseAxis()
	bestStep, bestDev := 0, math.Inf(1)

	walk := func(visit func(step, unit int) bool) error {
		inA := make([]bool, r.s.graph.Len())
		pushed := make([]bool, r.s.graph.Len())
		fr := newFrontier(r, axis)
		seed := r.seed(axis)
		pushed[seed] = true
		fr.push(seed)
		step := 0
		for fr.Len() > 0 {
			if step%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			u := fr.pop()
			if inA[u] {
				continue
			}
			inA[u] = true
			step++
			if !visit(step, u) {
				return nil
			}
			for _, v := range r.s.graph.Neighbors(u) {
				if r.inRegion[v] && !inA[v] && !pushed[v] {
					pushed[v] = true
					fr.push(v)
				}
			}
		}
		return nil
	}

	var popA int64
	if err := walk(func(step, u int) bool {
		popA += r.s.pop[u]
		if step >= len(r.units) {
			return false
		}
		if r.target > 0 {
			if d := math.Abs(float64(popA)-r.target) / r.target; d < bestDev {
				bestDev, bestStep = d, step
			}
		}
		return true
	}); err != nil || bestStep == 0 {
		return best, 0, false
	}

	var aIDs []string
	inA := make([]bool, r.s.graph.Len())
	if err := walk(func(step, u int) bool {
		aIDs = append(aIDs, r.s.graph.ID(u))
		inA[u] = true
		return step < bestStep
	}); err != nil {
		return best, 0, false
	}
	var bIDs []string
	for _, u := range r.units {
		if !inA[u] {
			bIDs = append(bIDs, r.s.graph.ID(u))
		}
	}
	sort.Strings(aIDs)
	sort.Strings(bIDs)
	return [2][]string{aIDs, bIDs}, bestDev, true
}

// seed returns the region unit with the lowest projection key.
func (r *sweepRun) seed(axis geo.Axis) int {
	best := r.units[0]
	bestKey := axis.Project(r.s.graph.Centroid(best))
	for _, u := range r.units[1:] {
		key := axis.Project(r.s.graph.Centroid(u))
		if key < bestKey || (key == bestKey && r.s.graph.ID(u) < r.s.graph.ID(best)) {
			best, bestKey = u, key
		}
	}
	return best
}

// restConnected reports whether the region units outside A form one
// connected component.
func (r *sweepRun) restConnected(inA []bool, bUnits int) bool {
	if bUnits <= 1 {
		return true
	}
	start := -1
	for _, u := range r.units {
		if !inA[u] {
			start = u
			break
		}
	}
	if start == -1 {
		return false
	}
	g := r.s.graph
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.Neighbors(u) {
			if r.inRegion[v] && !inA[v] && !seen[v] {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}
	return len(seen) == bUnits
}

func (c *cut) attachMembers(g *adjacency.Graph, members []int) {
	c.members = append([]int(nil), members...)
	sort.Ints(c.members)
	c.firstID = g.ID(c.members[0])
}

func copyTally[K comparable](m map[K]int64) map[K]int64 {
	if m == nil {
		return nil
	}
	out := make(map[K]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// frontier is a priority queue ordered by (projection key, GEOID) so the
// growth order is deterministic even when centroids share a projection.
type frontier struct {
	r    *sweepRun
	axis geo.Axis
	h    frontierHeap
}

func newFrontier(r *sweepRun, axis geo.Axis) *frontier {
	return &frontier{r: r, axis: axis}
}

func (f *frontier) push(u int) {
	heap.Push(&f.h, frontierItem{
		unit: u,
		key:  f.axis.Project(f.r.s.graph.Centroid(u)),
		id:   f.r.s.graph.ID(u),
	})
}

func (f *frontier) pop() int {
	return heap.Pop(&f.h).(frontierItem).unit
}

func (f *frontier) Len() int { return f.h.Len() }

type frontierItem struct {
	unit int
	key  float64
	id   string
}

type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].id < h[j].id
}

func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) { *h = append(*h, x.(frontierItem)) }

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
