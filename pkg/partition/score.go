package partition

import (
	"math"
	"sort"

	"github.com/temotskipa/autoredistrict/pkg/geo"
)

// sideStats are the running attributes of one side of a cut. They are
// maintained incrementally as the sweep frontier grows, so evaluating a
// snapshot never rescans the region.
type sideStats struct {
	units    int
	pop      int64
	minority int64
	leanPop  float64 // Σ lean·population, lean 0.5 where unknown
	area     float64
	boundary float64 // Σ unit boundary lengths
	sharedIn float64 // Σ shared border over edges internal to the side
	coiPop   map[string]int64
	vraPop   map[int]int64 // minority population per protected cluster
}

func (s *sideStats) perimeter() float64 {
	return s.boundary - 2*s.sharedIn
}

func (s *sideStats) polsby() float64 {
	return geo.PolsbyPopper(s.area, s.perimeter())
}

func (s *sideStats) leanShare() float64 {
	if s.pop == 0 {
		return 0.5
	}
	return s.leanPop / float64(s.pop)
}

func (s *sideStats) minorityShare() float64 {
	if s.pop == 0 {
		return 0
	}
	return float64(s.minority) / float64(s.pop)
}

// regionStats are the fixed totals of the region being bisected.
type regionStats struct {
	units       int
	pop         int64
	minority    int64
	leanPop     float64
	area        float64
	boundary    float64
	sharedTotal float64 // Σ shared border over all internal edges
	coiPop      map[string]int64
	coiTags     []string // sorted keys of coiPop

	// clusterMin holds the total minority population of each protected
	// cluster in the region, indexed by cluster id.
	clusterMin []int64
}

// cut is one candidate bisection. Side B is derived from the region totals
// so only side A is tracked during the sweep.
type cut struct {
	target float64
	a, b   sideStats
	sweep  int
	dev    float64 // |pop(A) − target| / target

	// members holds side A's unit indices, sorted; firstID is the smallest
	// GEOID in A, the final tie-break.
	members []int
	firstID string

	score     float64
	vraActive bool    // region holds at least one protected cluster
	vraCrack  float64 // Σ separated minority fraction over protected clusters
	coiSplit  float64 // Σ separated population fraction over community tags
}

// newCut derives side B, the guard measurements, and the deviation from a
// side-A snapshot. across is the shared border length between A and B.
func newCut(region *regionStats, a sideStats, across float64, target float64, sweep int, vraActive bool) *cut {
	c := &cut{target: target, a: a, sweep: sweep, vraActive: vraActive}
	c.b = sideStats{
		units:    region.units - a.units,
		pop:      region.pop - a.pop,
		minority: region.minority - a.minority,
		leanPop:  region.leanPop - a.leanPop,
		area:     region.area - a.area,
		boundary: region.boundary - a.boundary,
		sharedIn: region.sharedTotal - a.sharedIn - across,
	}
	if target > 0 {
		c.dev = math.Abs(float64(a.pop)-target) / target
	}

	for _, tag := range region.coiTags {
		total := region.coiPop[tag]
		inA := a.coiPop[tag]
		smaller := inA
		if other := total - inA; other < smaller {
			smaller = other
		}
		if smaller > 0 && total > 0 {
			c.coiSplit += float64(smaller) / float64(total)
		}
	}

	for id, total := range region.clusterMin {
		inA := a.vraPop[id]
		smaller := inA
		if other := total - inA; other < smaller {
			smaller = other
		}
		if smaller > 0 && total > 0 {
			c.vraCrack += float64(smaller) / float64(total)
		}
	}
	return c
}

// betterCut is the total order used to pick the winning candidate: lower
// score, then earlier sweep, then smaller deviation, then the smaller first
// GEOID.
func betterCut(x, y *cut) bool {
	if x.score != y.score {
		return x.score < y.score
	}
	if x.sweep != y.sweep {
		return x.sweep < y.sweep
	}
	if x.dev != y.dev {
		return x.dev < y.dev
	}
	return x.firstID < y.firstID
}

// scorer is one policy term of the cut-selection pipeline. Terms return
// values where lower is better and are summed in pipeline order.
type scorer interface {
	name() string
	score(c *cut) float64
}

// balanceScorer penalizes population deviation from the target share.
type balanceScorer struct{ weight float64 }

func (s balanceScorer) name() string { return "balance" }

func (s balanceScorer) score(c *cut) float64 {
	return s.weight * c.dev
}

// compactnessScorer penalizes low mean Polsby-Popper across the two sides.
type compactnessScorer struct{ weight float64 }

func (s compactnessScorer) name() string { return "compactness" }

func (s compactnessScorer) score(c *cut) float64 {
	if s.weight == 0 {
		return 0
	}
	return s.weight * (1 - (c.a.polsby()+c.b.polsby())/2)
}

// partisanScorer penalizes competitive partisan shares. With weight zero it
// is inert; the partisan algorithm variant weights it so that minimizing the
// term packs both sides away from 0.5.
type partisanScorer struct{ weight float64 }

func (s partisanScorer) name() string { return "partisan" }

func (s partisanScorer) score(c *cut) float64 {
	if s.weight == 0 {
		return 0
	}
	return s.weight * (1 - math.Abs(c.a.leanShare()-0.5) - math.Abs(c.b.leanShare()-0.5))
}

// coiScorer penalizes separated community population.
type coiScorer struct{ weight float64 }

func (s coiScorer) name() string { return "coi" }

func (s coiScorer) score(c *cut) float64 {
	if s.weight == 0 {
		return 0
	}
	return s.weight * c.coiSplit
}

// vraScorer penalizes dispersing minority population across both sides of a
// cut while the region holds protected clusters. Concentrating the minority
// in one side keeps an opportunity district reachable in deeper bisections.
type vraScorer struct{ weight float64 }

func (s vraScorer) name() string { return "vra" }

func (s vraScorer) score(c *cut) float64 {
	if s.weight == 0 || !c.vraActive {
		return 0
	}
	best := math.Max(c.a.minorityShare(), c.b.minorityShare())
	return s.weight * (1 - best)
}

func buildScorers(o *Options) []scorer {
	scorers := []scorer{
		balanceScorer{o.Weights.Population},
		compactnessScorer{o.Weights.Compactness},
	}
	if o.VRA {
		scorers = append(scorers, vraScorer{o.Weights.VRA})
	}
	scorers = append(scorers,
		coiScorer{o.Weights.COI},
		partisanScorer{o.Weights.Partisan},
	)
	return scorers
}

func (c *cut) evaluate(scorers []scorer) {
	c.score = 0
	for _, s := range scorers {
		c.score += s.score(c)
	}
}

func sortedTags(coiPop map[string]int64) []string {
	tags := make([]string, 0, len(coiPop))
	for t := range coiPop {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
