// Package visualization renders the connections grown during a run.
package visualization

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/neurogrow/internal/models"
	"github.com/nvandessel/neurogrow/internal/store"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// roleColors maps layer roles to DOT colors.
var roleColors = map[string]string{
	"feeling":  "steelblue",
	"shallow":  "mediumseagreen",
	"deep":     "goldenrod",
	"output":   "tomato",
	"feedback": "orchid",
}

// Graph is the connection graph of one run.
type Graph struct {
	RunID string `json:"run_id"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a neuron position touched by growth.
type Node struct {
	ID    string          `json:"id"`
	At    models.Position `json:"at"`
	Layer int             `json:"layer"`
	Role  string          `json:"role,omitempty"`
}

// Edge is one grown connection.
type Edge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Tick     int64   `json:"tick"`
	Distance float64 `json:"distance"`
}

// BuildGraph loads the connections of a run. Layer roles come from the
// run's snapshots when there are any.
func BuildGraph(ctx context.Context, s store.Store, runID string) (*Graph, error) {
	conns, err := s.Connections(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	snaps, err := s.Snapshots(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	roles := make(map[int]string)
	for _, sn := range snaps {
		roles[sn.Layer] = sn.Role
	}

	g := &Graph{RunID: runID, Nodes: []Node{}, Edges: []Edge{}}
	seen := make(map[models.Position]bool)
	addNode := func(p models.Position) {
		if seen[p] {
			return
		}
		seen[p] = true
		g.Nodes = append(g.Nodes, Node{ID: p.String(), At: p, Layer: p.Z, Role: roles[p.Z]})
	}
	for _, c := range conns {
		addNode(c.From)
		addNode(c.To)
		g.Edges = append(g.Edges, Edge{
			Source:   c.From.String(),
			Target:   c.To.String(),
			Tick:     c.Tick,
			Distance: c.Distance,
		})
	}
	slices.SortStableFunc(g.Nodes, func(a, b Node) int { return a.Layer - b.Layer })
	return g, nil
}

// RenderDOT produces a Graphviz DOT representation of the graph with one
// cluster per layer.
func RenderDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph neurogrow {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=9];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n\n")

	// Nodes are sorted by layer, so each cluster is contiguous.
	for i := 0; i < len(g.Nodes); {
		layer := g.Nodes[i].Layer
		role := g.Nodes[i].Role
		label := fmt.Sprintf("layer %d", layer)
		if role != "" {
			label += " (" + role + ")"
		}
		b.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", layer))
		b.WriteString(fmt.Sprintf("    label=%q;\n", label))

		color := roleColors[role]
		if color == "" {
			color = "lightgray"
		}
		for ; i < len(g.Nodes) && g.Nodes[i].Layer == layer; i++ {
			n := g.Nodes[i]
			b.WriteString(fmt.Sprintf("    %q [label=\"%d,%d\", fillcolor=%q];\n", n.ID, n.At.Y, n.At.X, color))
		}
		b.WriteString("  }\n")
	}
	if len(g.Nodes) > 0 {
		b.WriteString("\n")
	}

	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("  %q -> %q [label=\"t%d\", tooltip=\"distance=%.3f\"];\n",
			e.Source, e.Target, e.Tick, e.Distance))
	}

	b.WriteString("}\n")
	return b.String()
}
