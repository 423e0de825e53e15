package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/cache"
	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/district"
	"github.com/temotskipa/autoredistrict/pkg/observability"
	"github.com/temotskipa/autoredistrict/pkg/partition"
	"github.com/temotskipa/autoredistrict/pkg/plan"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger - it doesn't store
// pipeline results. Multiple goroutines can safely use the same Runner with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → adjacency → partition → assemble pipeline
// with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	observability.Pipeline().OnLoadStart(ctx, opts.Source())
	tbl, err := r.LoadTable(opts)
	if err != nil {
		observability.Pipeline().OnLoadComplete(ctx, opts.Source(), 0, time.Since(loadStart), err)
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Table = tbl
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Units = tbl.Len()
	observability.Pipeline().OnLoadComplete(ctx, opts.Source(), tbl.Len(), result.Stats.LoadTime, nil)

	opts.Logger.Info("loaded units",
		"source", opts.Source(),
		"units", tbl.Len(),
		"population", tbl.TotalPopulation(),
		"duration", result.Stats.LoadTime)

	// Stage 2: Adjacency
	adjStart := time.Now()
	observability.Pipeline().OnAdjacencyStart(ctx, tbl.Len())
	g, adjacencyHit, err := r.BuildAdjacencyWithCacheInfo(ctx, tbl, opts)
	if err != nil {
		observability.Pipeline().OnAdjacencyComplete(ctx, 0, time.Since(adjStart), err)
		return nil, fmt.Errorf("adjacency: %w", err)
	}
	result.Graph = g
	result.Stats.AdjacencyTime = time.Since(adjStart)
	result.Stats.Edges = g.EdgeCount()
	result.CacheInfo.AdjacencyHit = adjacencyHit
	observability.Pipeline().OnAdjacencyComplete(ctx, g.EdgeCount(), result.Stats.AdjacencyTime, nil)

	opts.Logger.Info("built adjacency graph",
		"units", g.Len(),
		"edges", g.EdgeCount(),
		"cached", adjacencyHit,
		"duration", result.Stats.AdjacencyTime)

	// A finished plan for this table and configuration may already exist.
	planKey := r.Keyer.PlanKey(tbl.Fingerprint(), opts.planKeyOpts())
	if !opts.Refresh {
		if p, ok := r.cachedPlan(ctx, planKey); ok {
			result.Plan = p
			result.CacheInfo.PlanHit = true
			opts.Logger.Info("plan cache hit", "id", p.ID, "districts", len(p.Districts))
			return result, nil
		}
	}

	// Stage 3: Partition
	partStart := time.Now()
	observability.Pipeline().OnPartitionStart(ctx, opts.Partition.Districts)
	res, err := partition.Split(ctx, tbl, g, opts.Partition)
	if err != nil {
		observability.Pipeline().OnPartitionComplete(ctx, opts.Partition.Districts, time.Since(partStart), err)
		return nil, fmt.Errorf("partition: %w", err)
	}
	result.Stats.PartitionTime = time.Since(partStart)
	observability.Pipeline().OnPartitionComplete(ctx, len(res.Groups), result.Stats.PartitionTime, nil)

	opts.Logger.Info("partitioned region",
		"districts", len(res.Groups),
		"sweeps", res.Stats.Sweeps,
		"relaxed", res.Stats.Relaxed,
		"duration", result.Stats.PartitionTime)

	// Stage 4: Assemble
	asmStart := time.Now()
	observability.Pipeline().OnAssembleStart(ctx, len(res.Groups))
	districts, err := district.Assemble(tbl, g, res.Groups)
	if err != nil {
		observability.Pipeline().OnAssembleComplete(ctx, len(res.Groups), time.Since(asmStart), err)
		return nil, fmt.Errorf("assemble: %w", err)
	}
	summary := district.Summarize(districts, opts.Partition.MinorityGroups)
	p := plan.New(plan.FromOptions(opts.Partition), districts, summary, res)
	p.Fingerprint = tbl.Fingerprint()
	result.Plan = p
	result.Stats.AssembleTime = time.Since(asmStart)
	observability.Pipeline().OnAssembleComplete(ctx, len(districts), result.Stats.AssembleTime, nil)

	r.storePlan(ctx, planKey, p)

	opts.Logger.Info("assembled plan",
		"id", p.ID,
		"districts", len(districts),
		"max_deviation", fmt.Sprintf("%.4f", summary.MaxDeviation),
		"duration", result.Stats.AssembleTime)

	return result, nil
}

// LoadTable reads the unit table configured by opts and applies the COI
// sidecar when one is named.
func (r *Runner) LoadTable(opts Options) (*census.Table, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	var (
		tbl *census.Table
		err error
	)
	if opts.Demo > 0 {
		tbl = census.DemoTable(opts.Demo)
	} else {
		tbl, err = census.LoadGeoJSON(opts.GeoJSON, opts.Mapping)
		if err != nil {
			return nil, err
		}
	}

	if opts.COIFile != "" {
		matched, err := tbl.ApplyCOIFile(opts.COIFile)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debug("applied COI tags", "file", opts.COIFile, "matched", matched)
	}
	return tbl, nil
}

// BuildAdjacencyWithCacheInfo builds the contiguity graph with caching and
// returns cache hit info.
func (r *Runner) BuildAdjacencyWithCacheInfo(ctx context.Context, tbl *census.Table, opts Options) (*adjacency.Graph, bool, error) {
	key := r.Keyer.AdjacencyKey(tbl.Fingerprint(), opts.adjacencyKeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var g adjacency.Graph
			if err := json.Unmarshal(data, &g); err == nil {
				observability.Cache().OnCacheHit(ctx, "adjacency")
				return &g, true, nil
			}
			// A stale or truncated entry falls through to a rebuild.
		}
		observability.Cache().OnCacheMiss(ctx, "adjacency")
	}

	g, err := adjacency.Build(ctx, tbl, opts.Adjacency)
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(g); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLAdjacency); err == nil {
			observability.Cache().OnCacheSet(ctx, "adjacency", len(data))
		}
	}
	return g, false, nil
}

// BuildAdjacency is a convenience wrapper that calls
// BuildAdjacencyWithCacheInfo and discards the cache hit info.
func (r *Runner) BuildAdjacency(ctx context.Context, tbl *census.Table, opts Options) (*adjacency.Graph, error) {
	g, _, err := r.BuildAdjacencyWithCacheInfo(ctx, tbl, opts)
	return g, err
}

func (r *Runner) cachedPlan(ctx context.Context, key string) (*plan.Plan, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "plan")
		return nil, false
	}
	p, err := plan.Read(bytes.NewReader(data))
	if err != nil {
		observability.Cache().OnCacheMiss(ctx, "plan")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "plan")
	return p, true
}

func (r *Runner) storePlan(ctx context.Context, key string, p *plan.Plan) {
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, buf.Bytes(), cache.TTLPlan); err == nil {
		observability.Cache().OnCacheSet(ctx, "plan", buf.Len())
	}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger routes the runner's logger into options that don't carry
// their own, including the partition stage's.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if opts.Partition.Logger == nil {
		opts.Partition.Logger = opts.Logger
	}
}
