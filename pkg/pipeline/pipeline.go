// Package pipeline runs the complete districting pipeline for the CLI and
// the HTTP API, so caching, logging, and instrumentation behave identically
// across entry points.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Load: read the unit table from GeoJSON or generate the demo grid
//  2. Adjacency: build the contiguity graph (cached by table fingerprint)
//  3. Partition: recursively bisect into balanced contiguous districts
//  4. Assemble: turn unit groups into district records and a plan
//
// Finished plans are cached keyed by fingerprint plus options, so repeating
// a run with identical inputs returns the stored plan.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Demo:      8,
//	    Partition: partition.Options{Districts: 4},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Plan.WriteFile("plan.json")
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/cache"
	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/partition"
	"github.com/temotskipa/autoredistrict/pkg/plan"
)

// ErrInvalidOptions marks pipeline option validation failures.
var ErrInvalidOptions = errors.New("pipeline: invalid options")

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input options. Exactly one of GeoJSON or Demo selects the unit table.
	GeoJSON string `json:"geojson,omitempty"` // path to a GeoJSON unit file
	Demo    int    `json:"demo,omitempty"`    // demo grid size

	// Mapping renames the GeoJSON properties the loader reads.
	Mapping census.PropertyMapping `json:"mapping,omitempty"`

	// COIFile is an optional CSV sidecar tagging units with communities.
	COIFile string `json:"coi_file,omitempty"`

	// Adjacency configures contiguity graph construction.
	Adjacency adjacency.Options `json:"adjacency,omitempty"`

	// Partition configures the split.
	Partition partition.Options `json:"partition"`

	// Refresh recomputes cached stages and overwrites their entries.
	Refresh bool `json:"refresh,omitempty"`

	// Logger receives stage progress. Defaults to the runner's logger.
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Plan is the finished districting plan.
	Plan *plan.Plan

	// Table is the loaded unit table.
	Table *census.Table

	// Graph is the contiguity graph, for rendering and diagnostics.
	Graph *adjacency.Graph

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Units         int
	Edges         int
	LoadTime      time.Duration
	AdjacencyTime time.Duration
	PartitionTime time.Duration
	AssembleTime  time.Duration
}

// CacheInfo tracks cache hits for each cached pipeline stage.
type CacheInfo struct {
	AdjacencyHit bool // Whether the contiguity graph came from cache
	PlanHit      bool // Whether the finished plan came from cache
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.GeoJSON == "" && o.Demo == 0 {
		return fmt.Errorf("%w: geojson path or demo size is required", ErrInvalidOptions)
	}
	if o.GeoJSON != "" && o.Demo != 0 {
		return fmt.Errorf("%w: geojson and demo are mutually exclusive", ErrInvalidOptions)
	}
	if o.Demo < 0 {
		return fmt.Errorf("%w: demo size must be positive, got %d", ErrInvalidOptions, o.Demo)
	}
	if err := o.Partition.ValidateAndSetDefaults(); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	o.validated = true
	return nil
}

// Source describes the configured input for logs and instrumentation.
func (o *Options) Source() string {
	if o.Demo > 0 {
		return fmt.Sprintf("demo:%d", o.Demo)
	}
	return o.GeoJSON
}

// adjacencyKeyOpts returns cache key options for the adjacency stage.
func (o *Options) adjacencyKeyOpts() cache.AdjacencyKeyOpts {
	return cache.AdjacencyKeyOpts{
		MinSharedLength: o.Adjacency.MinSharedLength,
		Tolerance:       o.Adjacency.Tolerance,
	}
}

// planKeyOpts collects every option that shapes the finished plan. The table
// fingerprint covers the input data, including applied COI tags.
func (o *Options) planKeyOpts() any {
	return struct {
		Adjacency adjacency.Options `json:"adjacency"`
		Partition partition.Options `json:"partition"`
	}{o.Adjacency, o.Partition}
}
