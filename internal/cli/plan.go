package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/partition"
	"github.com/temotskipa/autoredistrict/pkg/pipeline"
	"github.com/temotskipa/autoredistrict/pkg/render/nodelink"
)

// planOpts holds the command-line flags for the plan command.
type planOpts struct {
	demo        int     // demo grid size instead of a GeoJSON input
	districts   int     // number of districts
	tolerance   float64 // population tolerance window
	algorithm   string  // objective variant: fair, partisan
	axis        string  // sweep axis mode: bbox, pca
	maxSweeps   int     // sweep directions per bisection
	maxRelax    int     // tolerance relaxation rounds
	parallel    bool    // fork-join recursion
	vra         bool    // voting-rights guard
	vraThresh   float64 // protected cluster share threshold
	minority    []string
	coiFile     string // COI CSV sidecar
	coiStrict   bool   // hard-reject community splits
	precedence  string // guard order: vra-first, coi-first
	weightPop   float64
	weightComp  float64
	weightVRA   float64
	weightCOI   float64
	weightPart  float64
	idProp      string // GeoJSON property names
	popProp     string
	leanProp    string
	coiProp     string
	demPrefix   string
	output      string // plan JSON destination (stdout if empty)
	svg         string // optional district map SVG
	save        bool   // persist to the plan store
	interactive bool   // open the district browser afterwards
	noCache     bool
	refresh     bool
}

// partitionOptions converts the flags into partition options.
func (o *planOpts) partitionOptions() partition.Options {
	return partition.Options{
		Districts:      o.districts,
		Tolerance:      o.tolerance,
		MaxRelaxations: o.maxRelax,
		MaxSweeps:      o.maxSweeps,
		AxisMode:       partition.AxisMode(o.axis),
		Algorithm:      partition.Algorithm(o.algorithm),
		Weights: partition.Weights{
			Population:  o.weightPop,
			Compactness: o.weightComp,
			VRA:         o.weightVRA,
			COI:         o.weightCOI,
			Partisan:    o.weightPart,
		},
		VRA:            o.vra,
		VRAThreshold:   o.vraThresh,
		MinorityGroups: o.minority,
		COIStrict:      o.coiStrict,
		Precedence:     partition.Precedence(o.precedence),
		Parallel:       o.parallel,
	}
}

// pipelineOptions converts the flags into pipeline options for the given
// input path ("" in demo mode).
func (o *planOpts) pipelineOptions(input string) pipeline.Options {
	return pipeline.Options{
		GeoJSON: input,
		Demo:    o.demo,
		Mapping: census.PropertyMapping{
			ID:                o.idProp,
			Population:        o.popProp,
			Lean:              o.leanProp,
			COI:               o.coiProp,
			DemographicPrefix: o.demPrefix,
		},
		COIFile:   o.coiFile,
		Partition: o.partitionOptions(),
		Refresh:   o.refresh,
	}
}

// planCommand creates the plan command, the end-to-end districting run.
func (c *CLI) planCommand() *cobra.Command {
	opts := planOpts{}

	cmd := &cobra.Command{
		Use:   "plan [units.geojson]",
		Short: "Partition census units into balanced districts",
		Long: `Partition census units into contiguous, population-balanced districts.

The input is a GeoJSON FeatureCollection of census units with population,
demographic, and optional partisan-lean properties, or --demo N for a
synthetic N×N grid. The finished plan is written as JSON to --output (or
stdout) and can be saved to the plan store with --save.

Examples:
  autoredistrict plan tracts.geojson -d 8 -o plan.json
  autoredistrict plan tracts.geojson -d 8 --vra --coi communities.csv
  autoredistrict plan --demo 10 -d 4 --algorithm partisan
  autoredistrict plan tracts.geojson -d 8 --svg districts.svg --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.runPlan(cmd.Context(), input, &opts)
		},
	}

	cmd.Flags().IntVar(&opts.demo, "demo", 0, "use a synthetic N×N demo grid instead of a GeoJSON input")
	cmd.Flags().IntVarP(&opts.districts, "districts", "d", 2, "number of districts")
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", 0.01, "population tolerance window per bisection")
	cmd.Flags().StringVar(&opts.algorithm, "algorithm", "fair", "objective variant: fair, partisan")
	cmd.Flags().StringVar(&opts.axis, "axis", "bbox", "sweep axis mode: bbox, pca")
	cmd.Flags().IntVar(&opts.maxSweeps, "max-sweeps", 0, "sweep directions per bisection (0 = default)")
	cmd.Flags().IntVar(&opts.maxRelax, "max-relaxations", 0, "tolerance relaxation rounds (0 = default)")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "run recursion branches concurrently")

	cmd.Flags().BoolVar(&opts.vra, "vra", false, "protect minority-opportunity clusters from cracking")
	cmd.Flags().Float64Var(&opts.vraThresh, "vra-threshold", 0, "minority share marking a protected unit (0 = default 0.5)")
	cmd.Flags().StringSliceVar(&opts.minority, "minority-group", nil, "demographic group(s) counted as minority")
	cmd.Flags().StringVar(&opts.coiFile, "coi", "", "CSV sidecar tagging units with communities of interest")
	cmd.Flags().BoolVar(&opts.coiStrict, "coi-strict", false, "hard-reject cuts that split a community")
	cmd.Flags().StringVar(&opts.precedence, "precedence", "vra-first", "guard order: vra-first, coi-first")

	cmd.Flags().Float64Var(&opts.weightPop, "weight-population", 0, "population balance weight (0 = default)")
	cmd.Flags().Float64Var(&opts.weightComp, "weight-compactness", 0, "compactness weight (0 = default)")
	cmd.Flags().Float64Var(&opts.weightVRA, "weight-vra", 0, "VRA concentration weight (0 = default)")
	cmd.Flags().Float64Var(&opts.weightCOI, "weight-coi", 0, "community preservation weight (0 = default)")
	cmd.Flags().Float64Var(&opts.weightPart, "weight-partisan", 0, "partisan packing weight (0 = default)")

	cmd.Flags().StringVar(&opts.idProp, "id-property", "", "GeoJSON property holding the GEOID (default GEOID)")
	cmd.Flags().StringVar(&opts.popProp, "pop-property", "", "GeoJSON property holding the population (default pop)")
	cmd.Flags().StringVar(&opts.leanProp, "lean-property", "", "GeoJSON property holding the partisan lean (default lean)")
	cmd.Flags().StringVar(&opts.coiProp, "coi-property", "", "GeoJSON property holding the COI tag (default coi)")
	cmd.Flags().StringVar(&opts.demPrefix, "dem-prefix", "", "GeoJSON property prefix for demographic groups (default dem_)")

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "plan JSON output file (stdout if empty)")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "write a district-colored adjacency map SVG")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save the plan to the plan store")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse the districts interactively afterwards")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute cached stages")

	return cmd
}

// runPlan executes the full districting pipeline and reports the plan.
func (c *CLI) runPlan(ctx context.Context, input string, opts *planOpts) error {
	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	popts := opts.pipelineOptions(input)

	spinner := newSpinnerWithContext(ctx, "Districting...")
	popts.Partition.Progress = func(done, total int) {
		spinner.SetMessage(fmt.Sprintf("Districting... %d/%d splits", done, total))
	}
	spinner.Start()

	res, err := runner.Execute(ctx, popts)
	if err != nil {
		spinner.StopWithError("Districting failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	p := res.Plan
	printSuccess("Plan complete: %d districts", len(p.Districts))
	printStats(res.Stats.Units, res.Stats.Edges, res.CacheInfo.PlanHit)
	printNewline()
	fmt.Println(districtTable(p.Districts, p.Params.MinorityGroups))
	printNewline()
	printPlanSummary(p)
	printPlanWarnings(p)

	if err := writePlan(p, opts.output); err != nil {
		return err
	}
	if opts.output != "" {
		printFile(opts.output)
	}

	if opts.svg != "" {
		if err := writeDistrictSVG(ctx, res, opts.svg); err != nil {
			return err
		}
		printFile(opts.svg)
	}

	if opts.save {
		store, err := c.openStore(ctx)
		if err != nil {
			return fmt.Errorf("open plan store: %w", err)
		}
		defer store.Close()
		if err := store.Save(ctx, p); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		printDetail("Saved as %s", p.ID)
		printNewline()
		printNextStep("Inspect", appName+" plans show "+p.ID)
	}

	if opts.interactive {
		return browseDistricts(p)
	}
	return nil
}

// writePlan writes the plan JSON to path, or stdout when path is empty.
func writePlan(p interface{ Write(io.Writer) error }, path string) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return p.Write(out)
}

// writeDistrictSVG renders the adjacency graph colored by district.
func writeDistrictSVG(ctx context.Context, res *pipeline.Result, path string) error {
	dot := nodelink.ToDOT(res.Table, res.Graph, nodelink.Options{Districts: res.Plan.Districts})
	svg, err := nodelink.RenderSVG(ctx, dot)
	if err != nil {
		return fmt.Errorf("render svg: %w", err)
	}
	return os.WriteFile(path, svg, 0o644)
}

// nopCloser wraps an io.Writer with a no-op Close method, making os.Stdout
// usable where a WriteCloser is expected.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path, or stdout when path
// is empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
