package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Axis is a unit direction in the plane. Units are ordered during a sweep by
// their centroid projection onto the axis.
type Axis struct {
	X, Y float64
}

// AxisFromAngle returns the unit axis at the given angle in radians,
// measured counter-clockwise from the positive X direction.
func AxisFromAngle(rad float64) Axis {
	return Axis{X: math.Cos(rad), Y: math.Sin(rad)}
}

// Project returns the signed scalar projection of p onto a.
func (a Axis) Project(p orb.Point) float64 {
	return p[0]*a.X + p[1]*a.Y
}

// Rotate returns a rotated counter-clockwise by rad radians.
func (a Axis) Rotate(rad float64) Axis {
	sin, cos := math.Sin(rad), math.Cos(rad)
	return Axis{X: a.X*cos - a.Y*sin, Y: a.X*sin + a.Y*cos}
}

// Flip returns the axis pointing the opposite way.
func (a Axis) Flip() Axis {
	return Axis{X: -a.X, Y: -a.Y}
}

// LongAxis returns the axis along the longer side of b, the X axis when the
// bound is square.
func LongAxis(b orb.Bound) Axis {
	if b.Max[0]-b.Min[0] >= b.Max[1]-b.Min[1] {
		return Axis{X: 1}
	}
	return Axis{Y: 1}
}

// PrincipalAxis returns the weighted principal component direction of pts:
// the eigenvector of the weighted covariance matrix with the larger
// eigenvalue. Non-positive weights are clamped to zero; if all weights
// vanish, points are weighted uniformly. The result is normalized to a
// deterministic half-plane (positive X, or positive Y when vertical) so the
// same cloud always yields the same axis.
func PrincipalAxis(pts []orb.Point, weights []float64) Axis {
	if len(pts) == 0 {
		return Axis{X: 1}
	}
	w := make([]float64, len(pts))
	var wsum float64
	for i := range pts {
		if i < len(weights) && weights[i] > 0 {
			w[i] = weights[i]
		}
		wsum += w[i]
	}
	if wsum == 0 {
		for i := range w {
			w[i] = 1
		}
		wsum = float64(len(w))
	}

	var mx, my float64
	for i, p := range pts {
		mx += w[i] * p[0]
		my += w[i] * p[1]
	}
	mx /= wsum
	my /= wsum

	var sxx, sxy, syy float64
	for i, p := range pts {
		dx, dy := p[0]-mx, p[1]-my
		sxx += w[i] * dx * dx
		sxy += w[i] * dx * dy
		syy += w[i] * dy * dy
	}

	if sxy == 0 {
		if sxx >= syy {
			return Axis{X: 1}
		}
		return Axis{Y: 1}
	}

	// Leading eigenvector of [[sxx, sxy], [sxy, syy]].
	lambda := (sxx+syy)/2 + math.Hypot((sxx-syy)/2, sxy)
	ax := Axis{X: sxy, Y: lambda - sxx}
	norm := math.Hypot(ax.X, ax.Y)
	if norm == 0 {
		return Axis{X: 1}
	}
	ax.X /= norm
	ax.Y /= norm
	if ax.X < 0 || (ax.X == 0 && ax.Y < 0) {
		ax = ax.Flip()
	}
	return ax
}
