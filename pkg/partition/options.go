// Package partition splits a contiguous region of census units into k
// population-balanced, contiguous districts by recursive bisection. Candidate
// cuts come from deterministic axis sweeps, are filtered by voting-rights and
// community guards, and are ranked by a weighted scoring pipeline. Identical
// inputs and options always produce identical output.
package partition

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// ErrInvalidOptions wraps every option validation failure.
var ErrInvalidOptions = errors.New("partition: invalid options")

// AxisMode selects how the base sweep axis of a region is chosen.
type AxisMode string

const (
	// AxisBBox sweeps along the long axis of the region's bounding box.
	AxisBBox AxisMode = "bbox"
	// AxisPCA sweeps along the population-weighted principal axis of the
	// region's unit centroids.
	AxisPCA AxisMode = "pca"
)

// Algorithm selects the objective variant.
type Algorithm string

const (
	// AlgorithmFair balances population and compactness.
	AlgorithmFair Algorithm = "fair"
	// AlgorithmPartisan additionally packs districts away from competitive
	// partisan shares, the deliberate-gerrymander variant.
	AlgorithmPartisan Algorithm = "partisan"
)

// Precedence orders the hard guards when both are active.
type Precedence string

const (
	// VRAFirst applies the voting-rights guard before the community guard.
	VRAFirst Precedence = "vra-first"
	// COIFirst applies the community guard before the voting-rights guard.
	COIFirst Precedence = "coi-first"
)

// Weights are the scoring pipeline term weights. Lower total score wins.
type Weights struct {
	Population  float64 `json:"population"`
	Compactness float64 `json:"compactness"`
	VRA         float64 `json:"vra"`
	COI         float64 `json:"coi"`
	Partisan    float64 `json:"partisan"`
}

// Options configure a partition run. The zero value is not usable; call
// ValidateAndSetDefaults first.
type Options struct {
	// Districts is the number of districts to produce.
	Districts int `json:"districts"`

	// Tolerance is the relative population window each bisection targets,
	// e.g. 0.01 accepts sides within ±1% of their share. Default 0.01.
	Tolerance float64 `json:"tolerance"`

	// MaxRelaxations bounds how often a bisection may widen its tolerance by
	// ×1.5 before giving up. Default 5.
	MaxRelaxations int `json:"max_relaxations"`

	// MaxSweeps bounds the sweep directions tried per bisection. Default 8.
	MaxSweeps int `json:"max_sweeps"`

	// AxisMode picks the base sweep axis. Default AxisBBox.
	AxisMode AxisMode `json:"axis_mode"`

	// Algorithm picks the objective variant. Default AlgorithmFair.
	Algorithm Algorithm `json:"algorithm"`

	// Weights are the scoring term weights. Unset weights default to
	// population 1.0, compactness 0.5, vra 0.5 (when VRA is set), coi 0.5,
	// partisan 0.0 (1.0 under AlgorithmPartisan).
	Weights Weights `json:"weights"`

	// VRA enables the voting-rights guard: contiguous clusters of units
	// whose minority share reaches VRAThreshold must not be split across a
	// cut.
	VRA bool `json:"vra"`

	// VRAThreshold is the minority population share at or above which a
	// unit counts toward a protected cluster. Default 0.5.
	VRAThreshold float64 `json:"vra_threshold"`

	// MinorityGroups names the demographic groups summed into the minority
	// share. Default ["minority"].
	MinorityGroups []string `json:"minority_groups"`

	// COIStrict upgrades community splits from a soft penalty to a hard
	// reject.
	COIStrict bool `json:"coi_strict"`

	// Precedence orders the two guards. Default VRAFirst.
	Precedence Precedence `json:"precedence"`

	// Parallel runs the two recursion branches of every split concurrently.
	// Output is identical either way.
	Parallel bool `json:"parallel"`

	// Progress, when set, is called after every completed split with the
	// number of done splits and the total (districts − 1). It may be called
	// from multiple goroutines when Parallel is set.
	Progress func(done, total int) `json:"-"`

	// Logger receives debug output. Defaults to a discard logger.
	Logger *log.Logger `json:"-"`
}

// ValidateAndSetDefaults checks ranges and fills unset fields.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Districts < 1 {
		return fmt.Errorf("%w: districts must be at least 1, got %d", ErrInvalidOptions, o.Districts)
	}
	if o.Tolerance == 0 {
		o.Tolerance = 0.01
	}
	if o.Tolerance < 0 || o.Tolerance >= 1 {
		return fmt.Errorf("%w: tolerance must be in (0, 1), got %g", ErrInvalidOptions, o.Tolerance)
	}
	if o.MaxRelaxations == 0 {
		o.MaxRelaxations = 5
	}
	if o.MaxRelaxations < 0 {
		return fmt.Errorf("%w: max relaxations must not be negative", ErrInvalidOptions)
	}
	if o.MaxSweeps == 0 {
		o.MaxSweeps = 8
	}
	if o.MaxSweeps < 1 {
		return fmt.Errorf("%w: max sweeps must be at least 1", ErrInvalidOptions)
	}
	switch o.AxisMode {
	case "":
		o.AxisMode = AxisBBox
	case AxisBBox, AxisPCA:
	default:
		return fmt.Errorf("%w: unknown axis mode %q", ErrInvalidOptions, o.AxisMode)
	}
	switch o.Algorithm {
	case "":
		o.Algorithm = AlgorithmFair
	case AlgorithmFair, AlgorithmPartisan:
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidOptions, o.Algorithm)
	}
	switch o.Precedence {
	case "":
		o.Precedence = VRAFirst
	case VRAFirst, COIFirst:
	default:
		return fmt.Errorf("%w: unknown precedence %q", ErrInvalidOptions, o.Precedence)
	}
	if o.Weights.Population < 0 || o.Weights.Compactness < 0 || o.Weights.VRA < 0 || o.Weights.COI < 0 || o.Weights.Partisan < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidOptions)
	}
	if o.Weights.Population == 0 {
		o.Weights.Population = 1.0
	}
	if o.Weights.Compactness == 0 {
		o.Weights.Compactness = 0.5
	}
	if o.VRA && o.Weights.VRA == 0 {
		o.Weights.VRA = 0.5
	}
	if o.Weights.COI == 0 {
		o.Weights.COI = 0.5
	}
	if o.Algorithm == AlgorithmPartisan && o.Weights.Partisan == 0 {
		o.Weights.Partisan = 1.0
	}
	if o.VRAThreshold == 0 {
		o.VRAThreshold = 0.5
	}
	if o.VRAThreshold < 0 || o.VRAThreshold > 1 {
		return fmt.Errorf("%w: vra threshold must be in [0, 1], got %g", ErrInvalidOptions, o.VRAThreshold)
	}
	if len(o.MinorityGroups) == 0 {
		o.MinorityGroups = []string{"minority"}
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return nil
}
