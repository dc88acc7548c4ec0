package impact

import (
	"fmt"
	"sort"

	"github.com/valknut-dev/valknut/internal/graph"
)

// ChokepointConfig controls how many high-centrality nodes are surfaced.
type ChokepointConfig struct {
	MinCentrality float64 // default 0.05
	TopPercent    float64 // default 0.05 (top 5%)
	MinCount      int     // default 3
}

// BuildChokepointPacks surfaces the highest-betweenness nodes that exceed
// MinCentrality, taking the larger of the top-N% or MinCount cutoffs
// (spec.md §4.6.3).
func BuildChokepointPacks(g *graph.Graph, cfg ChokepointConfig) []*Pack {
	if cfg.MinCentrality == 0 {
		cfg.MinCentrality = 0.05
	}
	if cfg.TopPercent == 0 {
		cfg.TopPercent = 0.05
	}
	if cfg.MinCount == 0 {
		cfg.MinCount = 3
	}

	betweenness := g.Betweenness(0)
	nodes := g.Nodes()

	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for _, id := range nodes {
		if b := betweenness[id]; b > cfg.MinCentrality {
			candidates = append(candidates, scored{id, b})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	n := int(float64(len(nodes)) * cfg.TopPercent)
	if n < cfg.MinCount {
		n = cfg.MinCount
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	candidates = candidates[:n]

	var packs []*Pack
	for i, c := range candidates {
		neighbors := g.InDegree(c.id) + g.OutDegree(c.id)
		crossCommunity := float64(neighbors) / 2.0
		importsToRehome := neighbors
		if importsToRehome > 20 {
			importsToRehome = 20
		}

		pack := &Pack{
			ID:   fmt.Sprintf("chokepoint-%d", i),
			Kind: KindChokepoint,
			Value: PackValue{
				Score:   crossCommunity,
				Metrics: map[string]float64{"cross_community_edges_reduced": crossCommunity},
			},
			Effort: PackEffort{
				Score:   float64(importsToRehome),
				Metrics: map[string]float64{"imports_to_rehome_est": float64(importsToRehome)},
			},
			Steps: []string{
				"identify the distinct responsibilities this node is serving as a junction for",
				"split it along those responsibilities, or introduce a facade per caller group",
				"rehome each caller's import to its new, narrower dependency",
			},
			Chokepoint: &ChokepointPack{
				NodeID:          c.id,
				NeighborCount:   neighbors,
				CommunityLabels: communityLabels(neighbors),
			},
		}
		packs = append(packs, pack)
	}
	return packs
}

// communityLabels names the communities a chokepoint node's neighbors fall
// into. Ported from impact_packs.py's chokepoint-pack builder: one label
// per three neighbors, capped at five — a simplified stand-in for real
// community detection over the neighbor set.
func communityLabels(neighborCount int) []string {
	n := neighborCount / 3
	if n > 5 {
		n = 5
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("community_%d", i)
	}
	return labels
}
