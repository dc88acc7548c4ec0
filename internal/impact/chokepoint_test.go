package impact

import (
	"testing"

	"github.com/valknut-dev/valknut/internal/graph"
)

func TestBuildChokepointPacksSurfacesHighBetweenness(t *testing.T) {
	// Star graph: hub has high betweenness, spokes have none.
	g := graph.New()
	for _, spoke := range []string{"a", "b", "c", "d", "e"} {
		g.AddEdge(spoke, "hub")
		g.AddEdge("hub", spoke)
	}

	packs := BuildChokepointPacks(g, ChokepointConfig{MinCentrality: 0, MinCount: 1})
	if len(packs) == 0 {
		t.Fatal("expected at least one chokepoint pack")
	}
	if packs[0].Chokepoint.NodeID != "hub" {
		t.Errorf("expected hub to be the top chokepoint, got %s", packs[0].Chokepoint.NodeID)
	}
}

func TestBuildChokepointPacksRespectsMinCentrality(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	packs := BuildChokepointPacks(g, ChokepointConfig{MinCentrality: 0.99})
	if len(packs) != 0 {
		t.Fatalf("expected 0 packs above an unreachable centrality floor, got %d", len(packs))
	}
}
