// Package brief renders a ranked entity into the LLM-facing refactor brief
// the tool protocol's get_topk/get_item methods return (spec.md §6),
// ported in meaning from original_source's
// attic/python-valknut/valknut/core/briefs.py.
package brief

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/graph"
	"github.com/valknut-dev/valknut/internal/score"
	"github.com/valknut-dev/valknut/internal/vkconfig"
)

// DependencySlice carries the entity's import list, depth-limited callees,
// and import-graph successors.
type DependencySlice struct {
	Imports             []string `json:"imports"`
	CalleesDepthLimited []string `json:"callees_depth_limited"`
	Dependencies        []string `json:"dependencies"`
}

// Findings groups the detected-smell lists surfaced alongside a score.
type Findings struct {
	Duplicates   []map[string]any `json:"duplicates,omitempty"`
	Cycles       []map[string]any `json:"cycles,omitempty"`
	TypeFriction []string         `json:"type_friction,omitempty"`
	Cohesion     []string         `json:"cohesion,omitempty"`
	Complexity   []string         `json:"complexity,omitempty"`
}

func (f *Findings) empty() bool {
	return len(f.Duplicates) == 0 && len(f.Cycles) == 0 && len(f.TypeFriction) == 0 &&
		len(f.Cohesion) == 0 && len(f.Complexity) == 0
}

// TopFeature is one significant normalized feature surfaced in a brief.
type TopFeature struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Normalized bool    `json:"normalized"`
}

// Item is one entity's LLM-ready refactor brief.
type Item struct {
	EntityID string  `json:"entity_id"`
	Language string  `json:"language"`
	Path     string  `json:"path"`
	Kind     string  `json:"kind"`
	Score    float64 `json:"score"`
	Summary  string  `json:"summary"`

	Signatures []string `json:"signatures,omitempty"`
	LOC        int      `json:"loc"`

	DependencySlice *DependencySlice `json:"dependency_slice,omitempty"`
	Invariants      []string         `json:"invariants"`
	Findings        *Findings        `json:"findings,omitempty"`
	CandidateRefactors []string      `json:"candidate_refactors"`
	SafetyChecklist    []string      `json:"safety_checklist"`

	TopFeatures  []TopFeature `json:"top_features,omitempty"`
	Explanations []string     `json:"explanations,omitempty"`
}

// Generator builds briefs according to a briefs config.
type Generator struct {
	cfg vkconfig.BriefsConfig
}

func NewGenerator(cfg vkconfig.BriefsConfig) *Generator {
	return &Generator{cfg: cfg}
}

// Generate builds one entity's brief from its ranked entry and parse
// index context.
func (g *Generator) Generate(entry score.RankedEntry, idx *entity.ParseIndex) *Item {
	e := entry.Entity
	fv := entry.FeatureVector

	item := &Item{
		EntityID: string(e.ID),
		Language: e.Language,
		Path:     e.Location.Path,
		Kind:     string(e.Kind),
		Score:    entry.Score,
		LOC:      e.Location.EndLine - e.Location.StartLine + 1,
	}

	if g.cfg.IncludeSignatures {
		item.Signatures = signatures(e)
	}

	item.DependencySlice = g.dependencySlice(e, idx)
	item.Invariants = invariants(e)
	findings := analyzeFindings(fv)
	if !findings.empty() {
		item.Findings = findings
	}

	if g.cfg.IncludeDetectedRefactors {
		item.CandidateRefactors = suggestRefactors(fv, e)
	}
	item.SafetyChecklist = safetyChecklist(e, fv)
	item.TopFeatures = topFeatures(fv)
	item.Explanations = entry.Explanation

	item.Summary = summarize(e, fv, item)
	return item
}

func signatures(e *entity.Entity) []string {
	if e.Signature != "" {
		return []string{e.Signature}
	}
	if e.Kind != entity.KindFunction && e.Kind != entity.KindMethod {
		return nil
	}
	params := strings.Join(e.Parameters, ", ")
	ret := ""
	if e.ReturnType != "" {
		ret = " -> " + e.ReturnType
	}
	if e.Kind == entity.KindMethod {
		return []string{fmt.Sprintf("def %s(%s)%s: ...", e.Name, params, ret)}
	}
	return []string{fmt.Sprintf("function %s(%s)%s { ... }", e.Name, params, ret)}
}

func (g *Generator) dependencySlice(e *entity.Entity, idx *entity.ParseIndex) *DependencySlice {
	slice := &DependencySlice{}
	if idx == nil {
		return slice
	}
	if fileID, ok := idx.FileEntity(e.Location.Path); ok {
		if fileEnt, ok := idx.Entity(fileID); ok {
			slice.Imports = fileEnt.Imports
		}
	}
	if idx.CallGraph != nil {
		slice.CalleesDepthLimited = calleesWithDepth(idx.CallGraph, string(e.ID), g.cfg.CalleeDepth)
	}
	if idx.ImportGraph != nil && idx.ImportGraph.Has(string(e.ID)) {
		slice.Dependencies = successors(idx.ImportGraph, string(e.ID), 10)
	}
	return slice
}

func calleesWithDepth(g entity.Graph, start string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	type frontier struct {
		id    string
		depth int
	}
	visited := map[string]bool{start: true}
	queue := []frontier{{start, 0}}
	var callees []string
	for len(queue) > 0 && len(callees) < 20 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, next := range successorsOf(g, cur.id) {
			if visited[next] {
				continue
			}
			visited[next] = true
			callees = append(callees, next)
			queue = append(queue, frontier{next, cur.depth + 1})
			if len(callees) >= 20 {
				break
			}
		}
	}
	return callees
}

func successors(g entity.Graph, id string, limit int) []string {
	out := successorsOf(g, id)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// successorsOf pulls direct successors from the concrete graph
// implementation (internal/graph.Graph.Edges); other entity.Graph
// implementations yield no successors rather than panicking.
func successorsOf(g entity.Graph, id string) []string {
	concrete, ok := g.(*graph.Graph)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range concrete.Edges() {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

func invariants(e *entity.Entity) []string {
	var out []string
	if e.Docstring != "" {
		doc := strings.ToLower(e.Docstring)
		if strings.Contains(doc, "returns") && (strings.Contains(doc, "non-null") || strings.Contains(doc, "not none")) {
			out = append(out, "returns non-null value on success")
		}
		if strings.Contains(doc, "raises") || strings.Contains(doc, "throws") {
			out = append(out, "raises exception on invalid input")
		}
		if strings.Contains(doc, "side effect") {
			out = append(out, "has documented side effects")
		}
	}
	switch e.Language {
	case "python":
		if e.ReturnType != "" {
			out = append(out, fmt.Sprintf("returns %s", e.ReturnType))
		}
	case "typescript", "javascript":
		if strings.Contains(e.ReturnType, "Promise") {
			out = append(out, "returns Promise (async operation)")
		}
	}
	if len(e.Parameters) > 5 {
		out = append(out, "takes many parameters - consider parameter object")
	}
	return out
}

func analyzeFindings(fv *entity.FeatureVector) *Findings {
	f := &Findings{}
	if cm := fv.Normalized["clone_mass"]; cm > 0.3 {
		f.Duplicates = []map[string]any{{
			"similarity": min1(0.99, cm+0.2),
			"note":       "see get_impact_packs for concrete clone-group members",
		}}
	}
	if fv.Normalized["in_cycle"] > 0.5 {
		size := fv.Normalized["cycle_size"]
		f.Cycles = []map[string]any{{"size": int(size * 100)}}
	}
	var typeFriction []string
	if ar := fv.Normalized["any_type_ratio"]; ar > 0.3 {
		typeFriction = append(typeFriction, fmt.Sprintf("High 'any' type usage (%.0f%%)", ar*100))
	}
	if casts := fv.Normalized["cast_density"]; casts > 0.1 {
		typeFriction = append(typeFriction, fmt.Sprintf("Frequent type casts (%.1f per 1k LOC)", casts))
	}
	f.TypeFriction = typeFriction

	var cohesion []string
	if lcom := fv.Normalized["cohesion_lcom"]; lcom > 0.7 {
		cohesion = append(cohesion, "Low cohesion - methods don't share data")
	}
	if pc := fv.Normalized["parameter_count"]; pc > 0.8 {
		cohesion = append(cohesion, "Too many parameters - consider parameter object")
	}
	f.Cohesion = cohesion

	var complexity []string
	if fv.Normalized["cyclomatic"] > 0.8 {
		complexity = append(complexity, "High cyclomatic complexity")
	}
	if fv.Normalized["max_nesting"] > 0.7 {
		complexity = append(complexity, "Deep nesting levels")
	}
	f.Complexity = complexity
	return f
}

func min1(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func suggestRefactors(fv *entity.FeatureVector, e *entity.Entity) []string {
	var out []string
	if fv.Normalized["cyclomatic"] > 0.7 {
		out = append(out, "Extract Method")
	}
	if fv.Normalized["parameter_count"] > 0.8 {
		out = append(out, "Introduce Parameter Object")
	}
	if fv.Normalized["clone_mass"] > 0.5 {
		out = append(out, "Extract Common Code")
	}
	if fv.Normalized["in_cycle"] > 0.5 {
		out = append(out, "Break Dependency Cycle (interface/inversion)")
	}
	if fv.Normalized["cohesion_lcom"] > 0.7 {
		if e.Kind == entity.KindClass {
			out = append(out, "Split Class")
		} else {
			out = append(out, "Split Method")
		}
	}
	if fv.Normalized["fan_out"] > 0.7 {
		out = append(out, "Reduce Dependencies")
	}
	if fv.Normalized["any_type_ratio"] > 0.5 {
		out = append(out, "Improve Type Safety")
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func safetyChecklist(e *entity.Entity, fv *entity.FeatureVector) []string {
	var out []string
	if fanIn := fv.Raw["fan_in"]; fanIn > 5 {
		out = append(out, fmt.Sprintf("Update %d dependent callsites", int(fanIn)))
	}
	if len(e.Parameters) > 3 {
		out = append(out, "Update all call sites with parameter changes")
	}
	if fv.Raw["cyclomatic"] > 10 {
		out = append(out, "Add comprehensive test coverage for all branches")
	}
	if fv.Normalized["in_cycle"] > 0.5 {
		out = append(out, "Plan refactoring order to avoid breaking cycles")
	}
	out = append(out,
		"Run full test suite after changes",
		"Update documentation and comments",
		"Consider backward compatibility",
	)
	return out
}

func topFeatures(fv *entity.FeatureVector) []TopFeature {
	var out []TopFeature
	for name, value := range fv.Normalized {
		if value > 0.5 {
			out = append(out, TopFeature{Name: name, Value: value, Normalized: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func summarize(e *entity.Entity, fv *entity.FeatureVector, item *Item) string {
	var issues []string
	if fv.Normalized["clone_mass"] > 0.5 {
		issues = append(issues, "high duplication")
	}
	if fv.Normalized["cyclomatic"] > 0.7 {
		issues = append(issues, "complex logic")
	}
	if fv.Normalized["in_cycle"] > 0.5 {
		issues = append(issues, "in cycle")
	}
	if fv.Normalized["parameter_count"] > 0.8 {
		issues = append(issues, "many parameters")
	}

	kind := strings.Title(string(e.Kind))
	refactors := item.CandidateRefactors
	if len(refactors) > 2 {
		refactors = refactors[:2]
	}

	switch {
	case len(issues) > 0 && len(refactors) > 0:
		return fmt.Sprintf("%s with %s; suggest %s", kind, strings.Join(issues, " and "), strings.ToLower(strings.Join(refactors, " and ")))
	case len(issues) > 0:
		return fmt.Sprintf("%s with %s", kind, strings.Join(issues, " and "))
	case len(refactors) > 0:
		return fmt.Sprintf("%s candidate for %s", kind, strings.ToLower(strings.Join(refactors, " and ")))
	default:
		return fmt.Sprintf("Refactoring candidate %s", kind)
	}
}
