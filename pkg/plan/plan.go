// Package plan ties a finished districting run together: run identity, the
// configuration echo, the assembled districts, and the partitioner's
// decision log, with JSON serialization for files, stores, and the API.
package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/temotskipa/autoredistrict/pkg/district"
	"github.com/temotskipa/autoredistrict/pkg/partition"
)

// Params echoes the configuration that produced a plan.
type Params struct {
	Districts      int               `json:"districts"`
	Tolerance      float64           `json:"tolerance"`
	Algorithm      string            `json:"algorithm"`
	AxisMode       string            `json:"axis_mode,omitempty"`
	VRA            bool              `json:"vra,omitempty"`
	VRAThreshold   float64           `json:"vra_threshold,omitempty"`
	MinorityGroups []string          `json:"minority_groups,omitempty"`
	COIStrict      bool              `json:"coi_strict,omitempty"`
	Precedence     string            `json:"precedence,omitempty"`
	Weights        partition.Weights `json:"weights"`
}

// FromOptions copies the fields a plan records out of partition options.
func FromOptions(o partition.Options) Params {
	return Params{
		Districts:      o.Districts,
		Tolerance:      o.Tolerance,
		Algorithm:      string(o.Algorithm),
		AxisMode:       string(o.AxisMode),
		VRA:            o.VRA,
		VRAThreshold:   o.VRAThreshold,
		MinorityGroups: o.MinorityGroups,
		COIStrict:      o.COIStrict,
		Precedence:     string(o.Precedence),
		Weights:        o.Weights,
	}
}

// Plan is one finished districting run.
type Plan struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Fingerprint identifies the unit table the plan was computed from.
	Fingerprint string `json:"fingerprint,omitempty"`

	Params    Params               `json:"params"`
	Districts []district.District  `json:"districts"`
	Summary   district.Summary     `json:"summary"`
	Decisions []partition.Decision `json:"decisions,omitempty"`
	Stats     partition.Stats      `json:"stats"`
}

// New stamps a fresh plan with a random run ID and the current time. Both
// fields are plain data; callers needing reproducible output overwrite them.
func New(params Params, districts []district.District, summary district.Summary, res *partition.Result) *Plan {
	p := &Plan{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Params:    params,
		Districts: districts,
		Summary:   summary,
	}
	if res != nil {
		p.Decisions = res.Decisions
		p.Stats = res.Stats
	}
	return p
}

// Warnings returns the recorded decisions that signal guard fallbacks.
func (p *Plan) Warnings() []partition.Decision {
	var out []partition.Decision
	for _, d := range p.Decisions {
		if d.Kind == partition.DecisionVRAFallback || d.Kind == partition.DecisionCOIFallback {
			out = append(out, d)
		}
	}
	return out
}

// Write encodes the plan as indented JSON to w.
func (p *Plan) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return nil
}

// WriteFile writes the plan JSON to a file at path.
func (p *Plan) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return p.Write(f)
}

// Read decodes a plan from r.
func Read(r io.Reader) (*Plan, error) {
	var p Plan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// ReadFile reads a plan JSON file at path.
func ReadFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
