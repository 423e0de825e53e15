package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/district"
)

func demoGraph(t *testing.T) (*census.Table, *adjacency.Graph) {
	t.Helper()
	tbl := census.DemoTable(2)
	g, err := adjacency.Build(context.Background(), tbl, adjacency.Options{})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return tbl, g
}

func TestToDOT(t *testing.T) {
	tbl, g := demoGraph(t)

	dot := ToDOT(tbl, g, Options{})

	if !strings.HasPrefix(dot, "graph adjacency {") {
		t.Errorf("DOT should open an undirected graph, got %q", dot[:30])
	}
	for _, id := range []string{"000000", "000001", "001000", "001001"} {
		if !strings.Contains(dot, `"`+id+`"`) {
			t.Errorf("DOT missing node %s", id)
		}
	}

	// Centroid of unit (row 0, col 1) is (1.5, 0.5), scaled by 72.
	if !strings.Contains(dot, `pos="108.00,36.00!"`) {
		t.Error("DOT missing pinned centroid position for 000001")
	}

	// Four edges on the 2x2 grid, each emitted once.
	if got := strings.Count(dot, " -- "); got != 4 {
		t.Errorf("edge count = %d, want 4", got)
	}
	if !strings.Contains(dot, `"000000" -- "000001"`) {
		t.Error("DOT missing edge 000000 -- 000001")
	}
	if strings.Contains(dot, `"000001" -- "000000"`) {
		t.Error("DOT should emit each edge once")
	}
}

func TestToDOTDistrictColors(t *testing.T) {
	tbl, g := demoGraph(t)

	districts := []district.District{
		{ID: 1, Units: []string{"000000", "001000"}},
		{ID: 2, Units: []string{"000001", "001001"}},
	}
	dot := ToDOT(tbl, g, Options{Districts: districts, Labels: true})

	if !strings.Contains(dot, `fillcolor="`+DistrictColor(1)+`"`) {
		t.Error("DOT missing district 1 fill color")
	}
	if !strings.Contains(dot, `fillcolor="`+DistrictColor(2)+`"`) {
		t.Error("DOT missing district 2 fill color")
	}

	// Labels option adds populations.
	if !strings.Contains(dot, `"000000\n1000"`) {
		t.Error("DOT missing population label for 000000")
	}
}

func TestDistrictColor(t *testing.T) {
	if DistrictColor(0) != "white" {
		t.Errorf("DistrictColor(0) = %q, want white", DistrictColor(0))
	}
	if DistrictColor(1) == DistrictColor(2) {
		t.Error("adjacent district IDs should get distinct colors")
	}
	// Palette recycles.
	if DistrictColor(1) != DistrictColor(1+len(palette)) {
		t.Error("palette should recycle for large district counts")
	}
}
