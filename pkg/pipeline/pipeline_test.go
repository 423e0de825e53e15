package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/temotskipa/autoredistrict/pkg/cache"
	"github.com/temotskipa/autoredistrict/pkg/partition"
)

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"demo", Options{Demo: 4, Partition: partition.Options{Districts: 2}}, false},
		{"geojson", Options{GeoJSON: "units.geojson", Partition: partition.Options{Districts: 2}}, false},
		{"no source", Options{Partition: partition.Options{Districts: 2}}, true},
		{"both sources", Options{Demo: 4, GeoJSON: "x.geojson", Partition: partition.Options{Districts: 2}}, true},
		{"negative demo", Options{Demo: -1, Partition: partition.Options{Districts: 2}}, true},
		{"bad partition", Options{Demo: 4, Partition: partition.Options{Districts: 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	opts := Options{Demo: 4, Partition: partition.Options{Districts: 2}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("first validate: %v", err)
	}
	tolerance := opts.Partition.Tolerance
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if opts.Partition.Tolerance != tolerance {
		t.Errorf("Tolerance changed across validations: %v != %v", opts.Partition.Tolerance, tolerance)
	}
}

func TestSource(t *testing.T) {
	demo := Options{Demo: 8}
	if got := demo.Source(); got != "demo:8" {
		t.Errorf("Source() = %q, want demo:8", got)
	}
	file := Options{GeoJSON: "state.geojson"}
	if got := file.Source(); got != "state.geojson" {
		t.Errorf("Source() = %q, want state.geojson", got)
	}
}

func testRunner(t *testing.T, c cache.Cache) *Runner {
	t.Helper()
	return NewRunner(c, nil, log.New(io.Discard))
}

func TestExecuteDemo(t *testing.T) {
	runner := testRunner(t, nil)
	defer runner.Close()

	opts := Options{
		Demo:      4,
		Partition: partition.Options{Districts: 4},
	}
	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Plan == nil {
		t.Fatal("Execute returned no plan")
	}
	if len(result.Plan.Districts) != 4 {
		t.Fatalf("districts = %d, want 4", len(result.Plan.Districts))
	}
	if result.Stats.Units != 16 {
		t.Errorf("Stats.Units = %d, want 16", result.Stats.Units)
	}
	if result.Stats.Edges != 24 {
		t.Errorf("Stats.Edges = %d, want 24", result.Stats.Edges)
	}
	if result.CacheInfo.AdjacencyHit || result.CacheInfo.PlanHit {
		t.Errorf("CacheInfo = %+v, want no hits with a null cache", result.CacheInfo)
	}

	// Every unit lands in exactly one district.
	seen := map[string]bool{}
	for _, d := range result.Plan.Districts {
		for _, id := range d.Units {
			if seen[id] {
				t.Errorf("unit %s assigned twice", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != 16 {
		t.Errorf("districts cover %d units, want 16", len(seen))
	}

	if result.Plan.Summary.TotalPopulation != result.Table.TotalPopulation() {
		t.Errorf("Summary.TotalPopulation = %d, want %d",
			result.Plan.Summary.TotalPopulation, result.Table.TotalPopulation())
	}
	if result.Plan.Fingerprint != result.Table.Fingerprint() {
		t.Error("plan fingerprint should match the table")
	}
	if result.Plan.Params.Districts != 4 {
		t.Errorf("Params.Districts = %d, want 4", result.Plan.Params.Districts)
	}
}

func TestExecuteCaching(t *testing.T) {
	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := testRunner(t, fileCache)
	defer runner.Close()

	opts := Options{
		Demo:      4,
		Partition: partition.Options{Districts: 2},
	}

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.CacheInfo.AdjacencyHit || first.CacheInfo.PlanHit {
		t.Errorf("first run CacheInfo = %+v, want cold cache", first.CacheInfo)
	}

	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheInfo.AdjacencyHit {
		t.Error("second run should hit the adjacency cache")
	}
	if !second.CacheInfo.PlanHit {
		t.Error("second run should hit the plan cache")
	}
	if second.Plan.ID != first.Plan.ID {
		t.Errorf("cached plan ID = %s, want %s", second.Plan.ID, first.Plan.ID)
	}

	// Refresh bypasses both caches and mints a new plan.
	opts.Refresh = true
	third, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if third.CacheInfo.AdjacencyHit || third.CacheInfo.PlanHit {
		t.Errorf("refresh run CacheInfo = %+v, want no hits", third.CacheInfo)
	}
	if third.Plan.ID == first.Plan.ID {
		t.Error("refresh should recompute the plan")
	}

	// Different options must not reuse the cached plan.
	fresh := Options{
		Demo:      4,
		Partition: partition.Options{Districts: 4},
	}
	fourth, err := runner.Execute(context.Background(), fresh)
	if err != nil {
		t.Fatalf("fourth Execute: %v", err)
	}
	if fourth.CacheInfo.PlanHit {
		t.Error("different districts count should miss the plan cache")
	}
	if len(fourth.Plan.Districts) != 4 {
		t.Errorf("districts = %d, want 4", len(fourth.Plan.Districts))
	}
}

func TestExecuteInvalidOptions(t *testing.T) {
	runner := testRunner(t, nil)
	defer runner.Close()

	if _, err := runner.Execute(context.Background(), Options{}); err == nil {
		t.Error("Execute without a source should fail")
	}
	if _, err := runner.Execute(context.Background(), Options{GeoJSON: "missing.geojson", Partition: partition.Options{Districts: 2}}); err == nil {
		t.Error("Execute with a missing file should fail")
	}
}

func TestLoadTableCOI(t *testing.T) {
	runner := testRunner(t, nil)
	defer runner.Close()

	coiPath := filepath.Join(t.TempDir(), "coi.csv")
	if err := os.WriteFile(coiPath, []byte("geoid,coi\n000000,riverside\n000001,riverside\n"), 0o644); err != nil {
		t.Fatalf("write COI file: %v", err)
	}

	tbl, err := runner.LoadTable(Options{
		Demo:      2,
		COIFile:   coiPath,
		Partition: partition.Options{Districts: 2},
	})
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	u, ok := tbl.Unit("000000")
	if !ok || u.COI != "riverside" {
		t.Errorf("unit 000000 COI = %q, want riverside", u.COI)
	}
	tags := tbl.COITags()
	if len(tags) != 1 || tags[0] != "riverside" {
		t.Errorf("COITags = %v, want [riverside]", tags)
	}
}
