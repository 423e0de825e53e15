package partition

import (
	"errors"
	"fmt"
)

// DecisionKind tags a recorded policy decision.
type DecisionKind string

const (
	// DecisionRelaxed records a widened population tolerance.
	DecisionRelaxed DecisionKind = "tolerance-relaxed"
	// DecisionVRAFallback records that every candidate cracked a protected
	// cluster and the least-violating cut was kept.
	DecisionVRAFallback DecisionKind = "vra-fallback"
	// DecisionCOIFallback records that every candidate split a community and
	// the least-splitting cut was kept.
	DecisionCOIFallback DecisionKind = "coi-fallback"
)

// Decision is a policy record emitted while partitioning. Decisions describe
// recoveries and overrides; they are never errors.
type Decision struct {
	Kind DecisionKind `json:"kind"`

	// Depth and Region identify the bisection that made the decision:
	// recursion depth, smallest GEOID in the region, and region size.
	Depth  int    `json:"depth"`
	Region string `json:"region"`
	Units  int    `json:"units"`

	Detail string `json:"detail"`
}

// Stats count the work a partition run did.
type Stats struct {
	Splits     int `json:"splits"`
	Sweeps     int `json:"sweeps"`
	Candidates int `json:"candidates"`
	Relaxed    int `json:"relaxed"`
}

// Result is a completed partition.
type Result struct {
	// Groups holds one sorted GEOID list per district, in recursion order.
	Groups [][]string `json:"groups"`

	// Decisions lists every relaxation and guard fallback, in the order the
	// splits completed.
	Decisions []Decision `json:"decisions,omitempty"`

	Stats Stats `json:"stats"`
}

// Warnings returns the guard-fallback decisions, the ones a reviewer should
// look at.
func (r *Result) Warnings() []Decision {
	var out []Decision
	for _, d := range r.Decisions {
		if d.Kind == DecisionVRAFallback || d.Kind == DecisionCOIFallback {
			out = append(out, d)
		}
	}
	return out
}

// ErrInfeasible indicates a bisection that found no balanced contiguous cut
// even at the widest relaxed tolerance.
var ErrInfeasible = errors.New("partition: no balanced contiguous cut found")

// ErrTooManyDistricts indicates more districts requested than units exist.
var ErrTooManyDistricts = errors.New("partition: more districts than units")

// InfeasibleError carries the near-miss details of a failed bisection.
type InfeasibleError struct {
	// Depth is the recursion depth of the failing bisection.
	Depth int
	// Units is the region size in units.
	Units int
	// Tolerance is the final, fully relaxed tolerance that still failed.
	Tolerance float64
	// BestDeviation is the relative population deviation of the nearest
	// contiguity-preserving cut that was seen.
	BestDeviation float64
	// Best holds that nearest cut's two unit groups, when one exists.
	Best [2][]string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf(
		"partition: no contiguous cut within tolerance %.4g for %d units at depth %d (best deviation %.4g)",
		e.Tolerance, e.Units, e.Depth, e.BestDeviation)
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }
