package extract

import (
	"sync"

	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/graph"
)

// GraphExtractor computes fan_in/fan_out, centralities, and cycle
// membership from the ParseIndex's import graph, preferring it over the
// call graph when both are present (spec.md §4.3.2, resolving the
// related clone-mass precedence open question the same way).
type GraphExtractor struct {
	seed int64

	mu    sync.Mutex
	cache map[*entity.ParseIndex]*graphCache
}

type graphCache struct {
	g           *graph.Graph
	betweenness map[string]float64
	closeness   map[string]float64
	eigenvector map[string]float64
	scc         *graph.SCCResult
}

func NewGraphExtractor(seed int64) *GraphExtractor {
	return &GraphExtractor{seed: seed, cache: make(map[*entity.ParseIndex]*graphCache)}
}

func (g *GraphExtractor) Name() string { return "graph" }

func (g *GraphExtractor) Definitions() []entity.FeatureDefinition {
	return []entity.FeatureDefinition{
		{Name: "fan_in", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "fan_out", DataType: "float", Default: 0, HigherIsWorse: false},
		{Name: "betweenness", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "closeness", DataType: "float", Default: 0, HigherIsWorse: false},
		{Name: "eigenvector", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "in_cycle", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "cycle_size", DataType: "float", Default: 0, HigherIsWorse: true},
	}
}

func (g *GraphExtractor) Extract(e *entity.Entity, idx *entity.ParseIndex) (map[string]float64, []string, error) {
	cache := g.cacheFor(idx)
	if cache.g == nil {
		return map[string]float64{}, nil, nil
	}
	id := string(e.ID)
	inCycle := 0.0
	if cache.scc.InCycle(id) {
		inCycle = 1.0
	}
	return map[string]float64{
		"fan_in":      float64(cache.g.InDegree(id)),
		"fan_out":     float64(cache.g.OutDegree(id)),
		"betweenness": cache.betweenness[id],
		"closeness":   cache.closeness[id],
		"eigenvector": cache.eigenvector[id],
		"in_cycle":    inCycle,
		"cycle_size":  cache.scc.CycleSize(id, len(cache.g.Nodes())),
	}, nil, nil
}

// cacheFor computes (once per ParseIndex) every whole-graph metric, since
// betweenness/closeness/eigenvector/SCC are graph-global and must not be
// recomputed per entity (spec.md §4.3.2: "Cached per graph").
func (g *GraphExtractor) cacheFor(idx *entity.ParseIndex) *graphCache {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.cache[idx]; ok {
		return c
	}

	var gr *graph.Graph
	if ig, ok := idx.ImportGraph.(*graph.Graph); ok && ig != nil && len(ig.Nodes()) > 0 {
		gr = ig
	} else if cg, ok := idx.CallGraph.(*graph.Graph); ok && cg != nil {
		gr = cg
	}

	c := &graphCache{g: gr}
	if gr != nil {
		c.betweenness = gr.Betweenness(g.seed)
		c.closeness = gr.Closeness()
		c.eigenvector = gr.Eigenvector()
		c.scc = gr.Tarjan()
	} else {
		c.scc = &graph.SCCResult{ComponentOf: map[string]int{}}
	}
	g.cache[idx] = c
	return c
}
