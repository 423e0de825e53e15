// Package district materializes partition output into district records with
// the metrics a plan reports: population, merged demographics, weighted
// partisan lean, compactness, and deviation from the ideal population.
package district

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/geo"
)

// ErrEmptyDistrict is returned when a unit group holds no units.
var ErrEmptyDistrict = errors.New("district: empty district")

// EmptyDistrictError reports which district came out empty.
type EmptyDistrictError struct {
	ID int // 1-based district number
}

func (e *EmptyDistrictError) Error() string {
	return fmt.Sprintf("district %d has no units", e.ID)
}

func (e *EmptyDistrictError) Unwrap() error { return ErrEmptyDistrict }

// District is one assembled district.
type District struct {
	ID           int              `json:"id"` // 1-based
	Units        []string         `json:"units"`
	Population   int64            `json:"population"`
	Demographics map[string]int64 `json:"demographics,omitempty"`

	// Lean is the population-weighted partisan lean, 0.5 where unknown.
	Lean float64 `json:"lean"`

	// Compactness is the district's Polsby-Popper score.
	Compactness float64 `json:"compactness"`

	// Deviation is the signed population deviation from the ideal,
	// (population − ideal) / ideal.
	Deviation float64 `json:"deviation"`
}

// Share returns the district's summed population share of the named
// demographic groups.
func (d *District) Share(groups []string) float64 {
	if d.Population == 0 {
		return 0
	}
	var n int64
	for _, g := range groups {
		n += d.Demographics[g]
	}
	return float64(n) / float64(d.Population)
}

// Summary aggregates plan-level metrics over the assembled districts.
type Summary struct {
	Districts       int     `json:"districts"`
	TotalPopulation int64   `json:"total_population"`
	IdealPopulation float64 `json:"ideal_population"`
	MaxDeviation    float64 `json:"max_deviation"`
	MeanCompactness float64 `json:"mean_compactness"`

	// MajorityMinority counts districts whose minority share exceeds half.
	MajorityMinority int `json:"majority_minority"`
}

// Assemble turns unit groups into district records, one per group in order.
// Unit lists are sorted; metrics come from the table and the adjacency
// graph's shape bookkeeping.
func Assemble(tbl *census.Table, graph *adjacency.Graph, groups [][]string) ([]District, error) {
	if tbl == nil || graph == nil {
		return nil, errors.New("district: table and graph are required")
	}
	if len(groups) == 0 {
		return nil, errors.New("district: no unit groups")
	}

	ideal := float64(tbl.TotalPopulation()) / float64(len(groups))
	districts := make([]District, len(groups))
	for gi, members := range groups {
		if len(members) == 0 {
			return nil, &EmptyDistrictError{ID: gi + 1}
		}
		ids := append([]string(nil), members...)
		sort.Strings(ids)

		d := District{ID: gi + 1, Units: ids, Demographics: map[string]int64{}}
		idx := make([]int, len(ids))
		var leanPop float64
		for i, id := range ids {
			u, ok := tbl.Unit(id)
			if !ok {
				return nil, fmt.Errorf("district %d: unknown unit %q", d.ID, id)
			}
			ui, ok := graph.Index(id)
			if !ok {
				return nil, fmt.Errorf("district %d: unit %q missing from adjacency graph", d.ID, id)
			}
			idx[i] = ui
			d.Population += u.Population
			for group, pop := range u.Demographics {
				d.Demographics[group] += pop
			}
			leanPop += u.Lean() * float64(u.Population)
		}

		d.Lean = 0.5
		if d.Population > 0 {
			d.Lean = leanPop / float64(d.Population)
		}
		area, perimeter := graph.GroupShape(idx)
		d.Compactness = geo.PolsbyPopper(area, perimeter)
		if ideal > 0 {
			d.Deviation = (float64(d.Population) - ideal) / ideal
		}
		districts[gi] = d
	}
	return districts, nil
}

// Summarize computes plan-level stats. minorityGroups names the demographic
// groups counted toward the majority-minority tally.
func Summarize(districts []District, minorityGroups []string) Summary {
	s := Summary{Districts: len(districts)}
	if len(districts) == 0 {
		return s
	}
	var compact float64
	for i := range districts {
		d := &districts[i]
		s.TotalPopulation += d.Population
		if dev := math.Abs(d.Deviation); dev > s.MaxDeviation {
			s.MaxDeviation = dev
		}
		compact += d.Compactness
		if d.Share(minorityGroups) > 0.5 {
			s.MajorityMinority++
		}
	}
	s.IdealPopulation = float64(s.TotalPopulation) / float64(len(districts))
	s.MeanCompactness = compact / float64(len(districts))
	return s
}
