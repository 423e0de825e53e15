package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/pipeline"
	"github.com/temotskipa/autoredistrict/pkg/render/nodelink"
)

// adjacencyOpts holds the command-line flags for the adjacency command.
type adjacencyOpts struct {
	demo         int
	minShared    float64
	disconnected bool   // tolerate a disconnected unit set
	labels       bool   // annotate DOT nodes with GEOID and population
	output       string // graph JSON destination
	dot          string // DOT export path
	svg          string // SVG render path
	idProp       string
	popProp      string
	noCache      bool
	refresh      bool
}

// adjacencyCommand creates the adjacency command for building and exporting
// the contiguity graph.
func (c *CLI) adjacencyCommand() *cobra.Command {
	opts := adjacencyOpts{}

	cmd := &cobra.Command{
		Use:   "adjacency [units.geojson]",
		Short: "Build the rook-contiguity graph for a set of census units",
		Long: `Build the rook-contiguity graph for a set of census units.

Two units are neighbors when their boundaries share a segment of positive
length; corner touches do not count. The graph is cached by table
fingerprint, so repeated runs over the same input are instant.

Examples:
  autoredistrict adjacency tracts.geojson -o graph.json
  autoredistrict adjacency tracts.geojson --svg graph.svg
  autoredistrict adjacency --demo 6 --dot graph.dot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.runAdjacency(cmd.Context(), input, &opts)
		},
	}

	cmd.Flags().IntVar(&opts.demo, "demo", 0, "use a synthetic N×N demo grid instead of a GeoJSON input")
	cmd.Flags().Float64Var(&opts.minShared, "min-shared-length", 0, "minimum shared border length counting as adjacency (0 = default)")
	cmd.Flags().BoolVar(&opts.disconnected, "allow-disconnected", false, "build even when the unit set is not connected")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "annotate rendered nodes with GEOID and population")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "graph JSON output file")
	cmd.Flags().StringVar(&opts.dot, "dot", "", "write the graph in DOT format")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "render the graph as SVG")
	cmd.Flags().StringVar(&opts.idProp, "id-property", "", "GeoJSON property holding the GEOID (default GEOID)")
	cmd.Flags().StringVar(&opts.popProp, "pop-property", "", "GeoJSON property holding the population (default pop)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute the cached graph")

	return cmd
}

// runAdjacency loads the units, builds the graph, and writes the requested
// exports.
func (c *CLI) runAdjacency(ctx context.Context, input string, opts *adjacencyOpts) error {
	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	popts := pipeline.Options{
		GeoJSON: input,
		Demo:    opts.demo,
		Mapping: census.PropertyMapping{
			ID:         opts.idProp,
			Population: opts.popProp,
		},
		Adjacency: adjacency.Options{
			MinSharedLength:   opts.minShared,
			AllowDisconnected: opts.disconnected,
		},
		// Partition options are unused here, but validation requires a
		// district count.
		Refresh: opts.refresh,
		Logger:  c.Logger,
	}
	popts.Partition.Districts = 1
	// Validating here fills the adjacency defaults so the cache key matches
	// the one a later plan run computes.
	if err := popts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	tbl, err := runner.LoadTable(popts)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Building contiguity graph...")
	spinner.Start()
	graph, cached, err := runner.BuildAdjacencyWithCacheInfo(ctx, tbl, popts)
	if err != nil {
		spinner.StopWithError("Adjacency build failed")
		return err
	}
	spinner.Stop()

	printSuccess("Contiguity graph built")
	printStats(graph.Len(), graph.EdgeCount(), cached)
	if opts.disconnected {
		members := make([]int, graph.Len())
		for i := range members {
			members[i] = i
		}
		if comps := graph.Components(members); len(comps) > 1 {
			printWarning("unit set has %d components", len(comps))
		}
	}

	if opts.output != "" {
		data, err := json.MarshalIndent(graph, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return err
		}
		printFile(opts.output)
	}

	if opts.dot != "" || opts.svg != "" {
		dot := nodelink.ToDOT(tbl, graph, nodelink.Options{Labels: opts.labels})
		if opts.dot != "" {
			if err := os.WriteFile(opts.dot, []byte(dot), 0o644); err != nil {
				return err
			}
			printFile(opts.dot)
		}
		if opts.svg != "" {
			svg, err := nodelink.RenderSVG(ctx, dot)
			if err != nil {
				return fmt.Errorf("render svg: %w", err)
			}
			if err := os.WriteFile(opts.svg, svg, 0o644); err != nil {
				return err
			}
			printFile(opts.svg)
		}
	}
	return nil
}
