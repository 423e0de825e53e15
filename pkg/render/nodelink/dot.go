// Package nodelink renders the adjacency graph as a node-link diagram,
// with units pinned at their centroids and districts shown as fill colors.
// Useful for eyeballing contiguity and district shapes without a GIS tool.
package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/census"
	"github.com/temotskipa/autoredistrict/pkg/district"
)

// Options configures node-link rendering.
type Options struct {
	// Districts colors each unit by district membership when set.
	Districts []district.District

	// Labels adds unit populations to node labels.
	// When false, only the GEOID is shown.
	Labels bool
}

// posScale converts centroid coordinates to Graphviz points. Demo grids and
// projected shapefiles both land at a readable size with one unit per inch.
const posScale = 72.0

// ColorBrewer Set2, recycled when there are more districts than entries.
var palette = []string{
	"#66c2a5", "#fc8d62", "#8da0cb", "#e78ac3",
	"#a6d854", "#ffd92f", "#e5c494", "#b3b3b3",
}

// DistrictColor returns the fill color for a district ID.
func DistrictColor(id int) string {
	if id < 1 {
		return "white"
	}
	return palette[(id-1)%len(palette)]
}

// ToDOT converts the adjacency graph to Graphviz DOT format. Node positions
// are pinned to unit centroids, so the neato layout reproduces the map's
// geography. The result renders with [RenderSVG].
func ToDOT(tbl *census.Table, g *adjacency.Graph, opts Options) string {
	assigned := districtOf(opts.Districts)

	var buf bytes.Buffer
	buf.WriteString("graph adjacency {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=10, fixedsize=false];\n")
	buf.WriteString("  edge [color=grey60];\n")
	buf.WriteString("\n")

	for i := 0; i < g.Len(); i++ {
		id := g.ID(i)
		attrs := nodeAttrs(tbl, g, i, assigned[id], opts.Labels)
		fmt.Fprintf(&buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for i := 0; i < g.Len(); i++ {
		for _, j := range g.Neighbors(i) {
			if j > i {
				fmt.Fprintf(&buf, "  %q -- %q;\n", g.ID(i), g.ID(j))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// districtOf maps each GEOID to its district ID.
func districtOf(districts []district.District) map[string]int {
	assigned := make(map[string]int)
	for _, d := range districts {
		for _, id := range d.Units {
			assigned[id] = d.ID
		}
	}
	return assigned
}

func nodeAttrs(tbl *census.Table, g *adjacency.Graph, i int, districtID int, labels bool) []string {
	id := g.ID(i)

	label := id
	if labels {
		if u, ok := tbl.Unit(id); ok {
			label = fmt.Sprintf("%s\n%d", id, u.Population)
		}
	}

	c := g.Centroid(i)
	attrs := []string{
		fmt.Sprintf("label=%q", label),
		fmt.Sprintf("pos=\"%.2f,%.2f!\"", c.X()*posScale, c.Y()*posScale),
	}
	if districtID > 0 {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", DistrictColor(districtID)))
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
