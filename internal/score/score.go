// Package score implements the scorer & ranker stage (spec.md §4.5),
// ported in meaning from original_source/.../valknut/core/scoring.py's
// WeightedScorer and RankingSystem.
package score

import (
	"fmt"
	"sort"

	"github.com/valknut-dev/valknut/internal/entity"
)

// Weights is the six-category weight vector (spec.md §6's `weights`
// section); re-normalized to sum to 1 at construction.
type Weights struct {
	Complexity   float64
	CloneMass    float64
	Centrality   float64
	Cycles       float64
	TypeFriction float64
	SmellPrior   float64
}

// categoryFeatures mirrors scoring.py's `_get_feature_mapping()` exactly.
var categoryFeatures = map[string][]string{
	"complexity":    {"cyclomatic", "cognitive", "max_nesting", "parameter_count", "branch_fanout"},
	"clone_mass":    {"clone_mass", "clone_groups_count", "max_clone_similarity"},
	"centrality":    {"betweenness", "fan_in", "fan_out", "closeness", "eigenvector"},
	"cycles":        {"in_cycle", "cycle_size"},
	"type_friction": {"annotated_param_ratio", "any_type_ratio", "cast_density", "unsafe_density"},
	"smell_prior":   {"refactoring_urgency", "cohesion_lcom"},
}

// categoryOrder is the fixed iteration order matching spec.md §4.5's
// table, used wherever category order affects output (e.g. explanations).
var categoryOrder = []string{"complexity", "clone_mass", "centrality", "cycles", "type_friction", "smell_prior"}

// WeightedScorer computes a per-entity score from a FeatureVector's
// normalized features.
type WeightedScorer struct {
	weights map[string]float64
}

// NewWeightedScorer normalizes w to sum to 1 (equal weights if the total
// is <= 0, per spec.md §4.5).
func NewWeightedScorer(w Weights) *WeightedScorer {
	raw := map[string]float64{
		"complexity":    w.Complexity,
		"clone_mass":    w.CloneMass,
		"centrality":    w.Centrality,
		"cycles":        w.Cycles,
		"type_friction": w.TypeFriction,
		"smell_prior":   w.SmellPrior,
	}
	total := 0.0
	for _, v := range raw {
		total += v
	}
	normalized := make(map[string]float64, len(raw))
	if total <= 0 {
		eq := 1.0 / float64(len(raw))
		for k := range raw {
			normalized[k] = eq
		}
	} else {
		for k, v := range raw {
			normalized[k] = v / total
		}
	}
	return &WeightedScorer{weights: normalized}
}

// CategoryScores computes, per category, the mean of its available
// normalized features in fv (categories with no present feature are
// omitted entirely, per spec.md §4.5's "mean-of-available-features").
func (s *WeightedScorer) CategoryScores(fv *entity.FeatureVector) map[string]float64 {
	out := make(map[string]float64)
	for _, category := range categoryOrder {
		features := categoryFeatures[category]
		sum, n := 0.0, 0
		for _, f := range features {
			if v, ok := fv.Normalized[f]; ok {
				sum += v
				n++
			}
		}
		if n > 0 {
			out[category] = sum / float64(n)
		}
	}
	return out
}

// Score computes the per-entity score: the weighted sum of available
// category scores, renormalized by the sum of weights that actually
// contributed, clipped to [0,1] (spec.md §4.5).
func (s *WeightedScorer) Score(fv *entity.FeatureVector) float64 {
	categories := s.CategoryScores(fv)
	weightedSum, weightSum := 0.0, 0.0
	for category, v := range categories {
		w := s.weights[category]
		weightedSum += w * v
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	score := weightedSum / weightSum
	return clip(score, 0, 1)
}

func clip(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// RankedEntry is one (FeatureVector, score) pair in a RankingResult.
type RankedEntry struct {
	FeatureVector *entity.FeatureVector
	Entity        *entity.Entity
	Score         float64
	Explanation   []string
}

// RankingSystem sorts scored entities and renders explanations.
type RankingSystem struct {
	scorer *WeightedScorer
}

func NewRankingSystem(scorer *WeightedScorer) *RankingSystem {
	return &RankingSystem{scorer: scorer}
}

// Rank scores and sorts every entity's FeatureVector, by (score DESC,
// in_cycle DESC, fan_in DESC) — spec.md §4.5's deterministic tie-break —
// and returns the full ordering (callers slice to top_k themselves).
func (r *RankingSystem) Rank(vectors []*entity.FeatureVector, entities map[entity.ID]*entity.Entity) []RankedEntry {
	out := make([]RankedEntry, 0, len(vectors))
	for _, fv := range vectors {
		e := entities[fv.EntityID]
		out = append(out, RankedEntry{
			FeatureVector: fv,
			Entity:        e,
			Score:         r.scorer.Score(fv),
			Explanation:   r.explain(fv),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aCycle, bCycle := a.FeatureVector.Normalized["in_cycle"], b.FeatureVector.Normalized["in_cycle"]
		if aCycle != bCycle {
			return aCycle > bCycle
		}
		return a.FeatureVector.Raw["fan_in"] > b.FeatureVector.Raw["fan_in"]
	})
	return out
}

// explain renders the top-3-contributing-category sentences plus the
// special-case strings from spec.md §4.5. Explanations are metadata only.
func (r *RankingSystem) explain(fv *entity.FeatureVector) []string {
	categories := r.scorer.CategoryScores(fv)
	type kv struct {
		name  string
		value float64
	}
	var ranked []kv
	for _, c := range categoryOrder {
		if v, ok := categories[c]; ok {
			ranked = append(ranked, kv{c, v})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].value > ranked[j].value })

	var out []string
	for i, c := range ranked {
		if i >= 3 {
			break
		}
		out = append(out, fmt.Sprintf("%s contributes %.0f%% toward refactorability", c.name, c.value*100))
	}

	if v := fv.Normalized["clone_mass"]; v > 0.5 {
		out = append(out, fmt.Sprintf("high clone mass (%.2f): significant duplicated code", v))
	}
	if v := fv.Normalized["in_cycle"]; v > 0.5 {
		out = append(out, "participates in a dependency cycle")
	}
	if v := fv.Normalized["fan_in"]; v > 0.7 {
		out = append(out, fmt.Sprintf("high fan-in (%.2f): many dependents, changes here are high-risk", v))
	}
	return out
}
