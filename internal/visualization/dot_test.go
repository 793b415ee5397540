package visualization

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/neurogrow/internal/models"
	"github.com/nvandessel/neurogrow/internal/store"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	if err := s.CreateRun(ctx, store.Run{ID: "r1", Scenario: "demo", StartedAt: time.Now()}); err != nil {
		t.Fatalf("create run: %v", err)
	}
	return s
}

func TestBuildGraph_Empty(t *testing.T) {
	s := setupTestStore(t)

	g, err := BuildGraph(context.Background(), s, "r1")
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("expected empty graph, got %+v", g)
	}

	dot := RenderDOT(g)
	if !strings.HasPrefix(dot, "digraph neurogrow {") || !strings.HasSuffix(dot, "}\n") {
		t.Errorf("unexpected DOT:\n%s", dot)
	}
	if strings.Contains(dot, "subgraph") {
		t.Error("empty graph should have no clusters")
	}
}

func TestBuildGraph_WithConnections(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a, b, c := models.Pos(0, 0, 0), models.Pos(1, 1, 1), models.Pos(1, 2, 2)
	if err := s.RecordConnections(ctx, []store.Connection{
		{RunID: "r1", Tick: 2, From: a, To: b, Distance: 1.732},
		{RunID: "r1", Tick: 5, From: b, To: c, Distance: 1.414},
		{RunID: "r1", Tick: 6, From: a, To: b, Distance: 1.732},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSnapshots(ctx, []store.LayerSnapshot{
		{RunID: "r1", Tick: 0, Layer: 0, Role: "feeling"},
		{RunID: "r1", Tick: 0, Layer: 1, Role: "shallow"},
	}); err != nil {
		t.Fatal(err)
	}

	g, err := BuildGraph(ctx, s, "r1")
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if len(g.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3 distinct positions", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Errorf("edges = %d, want 3", len(g.Edges))
	}
	for i := 1; i < len(g.Nodes); i++ {
		if g.Nodes[i].Layer < g.Nodes[i-1].Layer {
			t.Fatalf("nodes not ordered by layer: %+v", g.Nodes)
		}
	}
	if g.Nodes[0].Role != "feeling" {
		t.Errorf("layer 0 role = %q, want feeling", g.Nodes[0].Role)
	}

	dot := RenderDOT(g)
	for _, want := range []string{
		"subgraph cluster_0",
		"subgraph cluster_1",
		`label="layer 1 (shallow)"`,
		`fillcolor="steelblue"`,
		`"` + a.String() + `" -> "` + b.String() + `"`,
		`label="t5"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestBuildGraph_UnknownRun(t *testing.T) {
	s := setupTestStore(t)
	g, err := BuildGraph(context.Background(), s, "ghost")
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if len(g.Nodes) != 0 {
		t.Errorf("unknown run should give an empty graph")
	}
}
