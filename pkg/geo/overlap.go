package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// SharedBoundary returns the total length of boundary that a and b have in
// common: the summed one-dimensional overlap between collinear segment pairs
// of their rings. Boundaries that meet only at points contribute zero, which
// is what distinguishes rook from queen contiguity. tol bounds the
// perpendicular distance under which two segments count as collinear.
func SharedBoundary(a, b orb.MultiPolygon, tol float64) float64 {
	segA := boundarySegments(a)
	segB := boundarySegments(b)
	var total float64
	for _, sa := range segA {
		for _, sb := range segB {
			total += segmentOverlap(sa, sb, tol)
		}
	}
	return total
}

type segment struct {
	a, b orb.Point
}

func boundarySegments(g orb.MultiPolygon) []segment {
	var segs []segment
	for _, poly := range g {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				segs = append(segs, segment{a: ring[i-1], b: ring[i]})
			}
			if n := len(ring); n > 1 && !ring[0].Equal(ring[n-1]) {
				segs = append(segs, segment{a: ring[n-1], b: ring[0]})
			}
		}
	}
	return segs
}

// segmentOverlap returns the length of the collinear overlap of p and q, or
// zero when they are not collinear within tol.
func segmentOverlap(p, q segment, tol float64) float64 {
	// Cheap bounding rejection before any arithmetic.
	if math.Min(p.a[0], p.b[0]) > math.Max(q.a[0], q.b[0])+tol ||
		math.Min(q.a[0], q.b[0]) > math.Max(p.a[0], p.b[0])+tol ||
		math.Min(p.a[1], p.b[1]) > math.Max(q.a[1], q.b[1])+tol ||
		math.Min(q.a[1], q.b[1]) > math.Max(p.a[1], p.b[1])+tol {
		return 0
	}

	dx, dy := p.b[0]-p.a[0], p.b[1]-p.a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return 0
	}

	// Both endpoints of q must lie on p's carrier line.
	if perpDistance(p.a, dx, dy, length, q.a) > tol ||
		perpDistance(p.a, dx, dy, length, q.b) > tol {
		return 0
	}

	// Project q onto p and intersect the parameter intervals.
	t0 := ((q.a[0]-p.a[0])*dx + (q.a[1]-p.a[1])*dy) / (length * length)
	t1 := ((q.b[0]-p.a[0])*dx + (q.b[1]-p.a[1])*dy) / (length * length)
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	lo := math.Max(t0, 0)
	hi := math.Min(t1, 1)
	if hi <= lo {
		return 0
	}
	return (hi - lo) * length
}

func perpDistance(origin orb.Point, dx, dy, length float64, p orb.Point) float64 {
	cross := dx*(p[1]-origin[1]) - dy*(p[0]-origin[0])
	return math.Abs(cross) / length
}
