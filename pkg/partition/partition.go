package partition

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/census"
)

// Split partitions the table's units into opts.Districts contiguous,
// population-balanced groups. Every bisection targets ⌈k/2⌉:⌊k/2⌋ population
// shares, widening its tolerance geometrically when no contiguous cut fits
// and failing with an InfeasibleError once relaxation is exhausted. The
// result is identical for identical inputs, parallel or not.
func Split(ctx context.Context, tbl *census.Table, g *adjacency.Graph, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if tbl == nil || g == nil {
		return nil, fmt.Errorf("%w: nil table or graph", ErrInvalidOptions)
	}
	if g.Len() != tbl.Len() {
		return nil, fmt.Errorf("%w: graph covers %d units, table has %d", ErrInvalidOptions, g.Len(), tbl.Len())
	}
	if opts.Districts > tbl.Len() {
		return nil, fmt.Errorf("%w: %d districts for %d units", ErrTooManyDistricts, opts.Districts, tbl.Len())
	}

	n := g.Len()
	s := &splitter{
		opts:        &opts,
		graph:       g,
		pop:         make([]int64, n),
		minority:    make([]int64, n),
		leanPop:     make([]float64, n),
		coi:         make([]string, n),
		scorers:     buildScorers(&opts),
		totalSplits: opts.Districts - 1,
	}
	for i := 0; i < n; i++ {
		u, ok := tbl.Unit(g.ID(i))
		if !ok {
			return nil, fmt.Errorf("%w: graph unit %s missing from table", ErrInvalidOptions, g.ID(i))
		}
		s.pop[i] = u.Population
		s.minority[i] = u.DemographicPop(opts.MinorityGroups)
		s.leanPop[i] = u.Lean() * float64(u.Population)
		s.coi[i] = u.COI
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if comps := g.Components(all); len(comps) > 1 {
		return nil, disconnected(g, comps)
	}

	groups, err := s.split(ctx, all, opts.Districts, 0)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Groups: make([][]string, len(groups)),
		Stats: Stats{
			Splits:     int(s.splitsDone.Load()),
			Sweeps:     int(s.sweeps.Load()),
			Candidates: int(s.candidates.Load()),
			Relaxed:    int(s.relaxed.Load()),
		},
	}
	for i, grp := range groups {
		ids := make([]string, len(grp))
		for k, u := range grp {
			ids[k] = g.ID(u)
		}
		result.Groups[i] = ids
	}

	s.mu.Lock()
	decisions := s.decisions
	s.mu.Unlock()
	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].Depth != decisions[j].Depth {
			return decisions[i].Depth < decisions[j].Depth
		}
		if decisions[i].Region != decisions[j].Region {
			return decisions[i].Region < decisions[j].Region
		}
		if decisions[i].Kind != decisions[j].Kind {
			return decisions[i].Kind < decisions[j].Kind
		}
		return decisions[i].Detail < decisions[j].Detail
	})
	result.Decisions = decisions
	return result, nil
}

type splitter struct {
	opts  *Options
	graph *adjacency.Graph

	// Per-unit attribute arrays, aligned with graph indices.
	pop      []int64
	minority []int64
	leanPop  []float64 // lean·population
	coi      []string

	scorers []scorer

	totalSplits int
	splitsDone  atomic.Int64
	sweeps      atomic.Int64
	candidates  atomic.Int64
	relaxed     atomic.Int64

	mu        sync.Mutex
	decisions []Decision
}

// split recurses on a sorted region until k reaches 1. The two halves run
// concurrently under Parallel; merge order is positional, so concurrency
// never changes the output.
func (s *splitter) split(ctx context.Context, units []int, k, depth int) ([][]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k == 1 {
		return [][]int{units}, nil
	}
	k1 := (k + 1) / 2
	k2 := k - k1

	a, b, err := s.bisect(ctx, units, k1, k2, depth)
	if err != nil {
		return nil, err
	}
	done := int(s.splitsDone.Add(1))
	if s.opts.Progress != nil {
		s.opts.Progress(done, s.totalSplits)
	}
	s.opts.Logger.Debug("split",
		"depth", depth, "units", len(units), "left", len(a), "right", len(b), "k1", k1, "k2", k2)

	if s.opts.Parallel {
		var ga, gb [][]int
		eg, gctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			var err error
			ga, err = s.split(gctx, a, k1, depth+1)
			return err
		})
		eg.Go(func() error {
			var err error
			gb, err = s.split(gctx, b, k2, depth+1)
			return err
		})
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		return append(ga, gb...), nil
	}

	ga, err := s.split(ctx, a, k1, depth+1)
	if err != nil {
		return nil, err
	}
	gb, err := s.split(ctx, b, k2, depth+1)
	if err != nil {
		return nil, err
	}
	return append(ga, gb...), nil
}

// bisect cuts a region into two contiguous sides holding k1:k2 population
// shares. All sweep directions run at the current tolerance; if none yields
// a candidate the tolerance widens by ×1.5 up to MaxRelaxations times before
// the bisection is declared infeasible.
func (s *splitter) bisect(ctx context.Context, units []int, k1, k2, depth int) ([]int, []int, error) {
	run := s.newSweepRun(units, k1, k2)
	axes := run.axes()
	tol := s.opts.Tolerance

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		var passes, fails []*cut
		for i, ax := range axes {
			pass, fail, err := run.runSweep(ctx, ax, i, tol)
			if err != nil {
				return nil, nil, err
			}
			if pass != nil {
				passes = append(passes, pass)
			}
			if fail != nil {
				fails = append(fails, fail)
			}
		}
		s.sweeps.Add(int64(len(axes)))

		if len(passes) > 0 || len(fails) > 0 {
			best := s.choose(run, passes, fails, depth)
			a, b := splitMembers(units, best.members)
			return a, b, nil
		}
		if attempt >= s.opts.MaxRelaxations {
			break
		}
		tol *= 1.5
		s.relaxed.Add(1)
		s.record(Decision{
			Kind:   DecisionRelaxed,
			Depth:  depth,
			Region: s.graph.ID(units[0]),
			Units:  len(units),
			Detail: fmt.Sprintf("tolerance widened to %.4g after %d sweeps found no balanced contiguous cut", tol, len(axes)),
		})
		s.opts.Logger.Debug("tolerance relaxed", "depth", depth, "units", len(units), "tolerance", tol)
	}

	best, dev, ok := run.nearestCut(ctx)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	infe := &InfeasibleError{
		Depth:         depth,
		Units:         len(units),
		Tolerance:     tol,
		BestDeviation: dev,
	}
	if ok {
		infe.Best = best
	}
	return nil, nil, infe
}

// choose picks the winning cut: the best-scoring guard-passing candidate, or
// the least-violating one with a warning decision when every candidate
// trips a guard.
func (s *splitter) choose(run *sweepRun, passes, fails []*cut, depth int) *cut {
	if len(passes) > 0 {
		best := passes[0]
		for _, c := range passes[1:] {
			if betterCut(c, best) {
				best = c
			}
		}
		return best
	}

	best := fails[0]
	for _, c := range fails[1:] {
		if run.lessViolating(c, best) {
			best = c
		}
	}
	region := s.graph.ID(run.units[0])
	if run.vra && best.vraCrack > 0 {
		s.record(Decision{
			Kind:   DecisionVRAFallback,
			Depth:  depth,
			Region: region,
			Units:  len(run.units),
			Detail: fmt.Sprintf(
				"all %d candidates crack a protected minority cluster; kept the cut separating the smallest minority fraction (%.3f)",
				len(fails), best.vraCrack),
		})
		s.opts.Logger.Warn("voting-rights fallback", "depth", depth, "region", region, "crack", best.vraCrack)
	}
	if s.opts.COIStrict && best.coiSplit > 0 {
		s.record(Decision{
			Kind:   DecisionCOIFallback,
			Depth:  depth,
			Region: region,
			Units:  len(run.units),
			Detail: fmt.Sprintf(
				"all %d candidates split a community of interest; kept the cut separating the least population (fraction %.3f)",
				len(fails), best.coiSplit),
		})
		s.opts.Logger.Warn("community fallback", "depth", depth, "region", region, "split", best.coiSplit)
	}
	return best
}

func (s *splitter) record(d Decision) {
	s.mu.Lock()
	s.decisions = append(s.decisions, d)
	s.mu.Unlock()
}

// splitMembers divides the sorted region into the sorted cut members and the
// sorted remainder.
func splitMembers(units, members []int) (a, b []int) {
	a = members
	b = make([]int, 0, len(units)-len(members))
	k := 0
	for _, u := range units {
		if k < len(members) && members[k] == u {
			k++
			continue
		}
		b = append(b, u)
	}
	return a, b
}

func disconnected(g *adjacency.Graph, comps [][]int) error {
	sizes := make([]int, len(comps))
	smallest := comps[0]
	for i, c := range comps {
		sizes[i] = len(c)
		if len(c) < len(smallest) {
			smallest = c
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	sample := make([]string, 0, 3)
	for _, u := range smallest {
		sample = append(sample, g.ID(u))
		if len(sample) == 3 {
			break
		}
	}
	return &adjacency.DisconnectedError{Sizes: sizes, Sample: sample}
}
