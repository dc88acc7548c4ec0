package impact

import (
	"testing"

	"github.com/valknut-dev/valknut/internal/graph"
)

func buildCycleGraph() *graph.Graph {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	g.AddEdge("c", "d")
	return g
}

func TestBuildCyclePacksFindsSCC(t *testing.T) {
	g := buildCycleGraph()
	scc := g.Tarjan()
	packs := BuildCyclePacks(g, scc, CycleCutterConfig{})
	if len(packs) != 1 {
		t.Fatalf("expected 1 cycle pack, got %d", len(packs))
	}
	p := packs[0]
	if len(p.Cycle.Members) != 3 {
		t.Errorf("expected 3 members in the cycle, got %d", len(p.Cycle.Members))
	}
	if len(p.Cycle.CutNodes) == 0 {
		t.Error("expected at least one cut node")
	}
	if p.Value.Score <= 0 {
		t.Error("expected positive value score")
	}
}

func TestBuildCyclePacksIgnoresAcyclicGraph(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	scc := g.Tarjan()
	packs := BuildCyclePacks(g, scc, CycleCutterConfig{})
	if len(packs) != 0 {
		t.Fatalf("expected 0 packs for an acyclic graph, got %d", len(packs))
	}
}
