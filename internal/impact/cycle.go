package impact

import (
	"fmt"
	"sort"

	"github.com/valknut-dev/valknut/internal/graph"
)

// CycleCutterConfig controls the feedback-vertex-set search.
type CycleCutterConfig struct {
	MaxIterations int // default 100
	MinSCCSize    int // default 2
}

// BuildCyclePacks extracts every nontrivial strongly connected component
// from g and proposes a greedy feedback-vertex-set cut for each
// (spec.md §4.6.2).
func BuildCyclePacks(g *graph.Graph, scc *graph.SCCResult, cfg CycleCutterConfig) []*Pack {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 100
	}
	if cfg.MinSCCSize == 0 {
		cfg.MinSCCSize = 2
	}

	members := make(map[int][]string)
	for _, id := range g.Nodes() {
		comp := scc.ComponentOf[id]
		members[comp] = append(members[comp], id)
	}

	betweenness := g.Betweenness(0)

	var comps []int
	for comp, ids := range members {
		if len(ids) >= cfg.MinSCCSize {
			comps = append(comps, comp)
		}
	}
	sort.Ints(comps)

	var packs []*Pack
	for _, comp := range comps {
		ids := members[comp]
		sort.Strings(ids)
		cut := greedyFeedbackVertexSet(g, ids, betweenness, cfg.MaxIterations)

		cutCount := len(cut)
		cyclesRemoved := 2 * float64(cutCount)
		sccCountDelta := float64(cutCount - 1)
		pathLenDelta := 0.1 * float64(cutCount)
		if pathLenDelta > 0.5 {
			pathLenDelta = 0.5
		}

		importsToRehome := 0
		for _, id := range cut {
			importsToRehome += g.InDegree(id) + g.OutDegree(id)
		}
		if importsToRehome > 20 {
			importsToRehome = 20
		}

		pack := &Pack{
			ID:   fmt.Sprintf("cycle-%d", comp),
			Kind: KindCycle,
			Value: PackValue{
				Score: cyclesRemoved,
				Metrics: map[string]float64{
					"cycles_removed":      cyclesRemoved,
					"scc_count_delta":     sccCountDelta,
					"avg_path_len_delta":  pathLenDelta,
				},
			},
			Effort: PackEffort{
				Score: float64(cutCount + importsToRehome),
				Metrics: map[string]float64{
					"modules_touched":       float64(cutCount),
					"imports_to_rehome_est": float64(importsToRehome),
				},
			},
			Steps: []string{
				"introduce an interface or callback at the cut edges to invert the dependency",
				"move the cut nodes' shared dependency into a separate module imported by both sides",
				"re-run import analysis to confirm the cycle is broken",
			},
			Cycle: &CyclePack{
				Members:  ids,
				CutNodes: cut,
			},
		}
		packs = append(packs, pack)
	}
	return packs
}

// greedyFeedbackVertexSet repeatedly removes the node scoring highest on
// 0.5*betweenness + 0.3*degree + 0.2*boundary_edges until the induced
// subgraph on ids is acyclic or the iteration cap is hit (spec.md §4.6.2).
func greedyFeedbackVertexSet(g *graph.Graph, ids []string, betweenness map[string]float64, maxIter int) []string {
	remaining := make(map[string]bool, len(ids))
	for _, id := range ids {
		remaining[id] = true
	}

	var cut []string
	for iter := 0; iter < maxIter && len(remaining) > 1; iter++ {
		sub := inducedSubgraph(g, remaining)
		subSCC := sub.Tarjan()
		if !hasNontrivialCycle(subSCC) {
			break
		}

		ordered := make([]string, 0, len(remaining))
		for id := range remaining {
			ordered = append(ordered, id)
		}
		sort.Strings(ordered)

		best, bestScore := "", -1.0
		for _, id := range ordered {
			degree := float64(g.InDegree(id) + g.OutDegree(id))
			boundary := boundaryEdges(g, id, remaining)
			score := 0.5*betweenness[id] + 0.3*degree + 0.2*boundary
			if score > bestScore {
				best, bestScore = id, score
			}
		}
		if best == "" {
			break
		}
		cut = append(cut, best)
		delete(remaining, best)
	}
	sort.Strings(cut)
	return cut
}

func inducedSubgraph(g *graph.Graph, keep map[string]bool) *graph.Graph {
	sub := graph.New()
	for id := range keep {
		sub.AddNode(id)
	}
	for _, e := range g.Edges() {
		if keep[e.From] && keep[e.To] {
			sub.AddEdge(e.From, e.To)
		}
	}
	return sub
}

func boundaryEdges(g *graph.Graph, id string, component map[string]bool) float64 {
	count := 0
	for _, e := range g.Edges() {
		if e.From == id && !component[e.To] {
			count++
		}
		if e.To == id && !component[e.From] {
			count++
		}
	}
	return float64(count)
}

func hasNontrivialCycle(scc *graph.SCCResult) bool {
	for _, size := range scc.Sizes {
		if size >= 2 {
			return true
		}
	}
	return false
}
