// Package geo provides planar measurements over unit geometries: areas,
// perimeters, centroids, compactness ratios, sweep axes, and shared-boundary
// lengths. All functions work in the coordinate plane of the input; no
// reprojection happens here.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Area returns the absolute planar area of g with holes subtracted.
func Area(g orb.MultiPolygon) float64 {
	return math.Abs(planar.Area(g))
}

// Perimeter returns the total boundary length of g. Every ring of every
// polygon contributes, hole rings included.
func Perimeter(g orb.MultiPolygon) float64 {
	var total float64
	for _, poly := range g {
		for _, ring := range poly {
			total += ringLength(ring)
		}
	}
	return total
}

func ringLength(r orb.Ring) float64 {
	if len(r) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(r); i++ {
		sum += planar.Distance(r[i-1], r[i])
	}
	// Rings are closed by convention; tolerate unclosed input.
	if !r[0].Equal(r[len(r)-1]) {
		sum += planar.Distance(r[len(r)-1], r[0])
	}
	return sum
}

// Centroid returns the area-weighted centroid of g.
func Centroid(g orb.MultiPolygon) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}

// PolsbyPopper computes 4πA/P², the isoperimetric quotient in (0, 1] where 1
// is a perfect circle. Degenerate shapes score zero.
func PolsbyPopper(area, perimeter float64) float64 {
	if area <= 0 || perimeter <= 0 {
		return 0
	}
	pp := 4 * math.Pi * area / (perimeter * perimeter)
	if pp > 1 {
		// Numeric noise on near-circular shapes.
		pp = 1
	}
	return pp
}
