package impact

import "sort"

// RankConfig controls the final value/effort ranking pass.
type RankConfig struct {
	MaxPacks      int  // 0 = unlimited
	NonOverlap    bool // when true, a pack overlapping an already-selected pack's entities is skipped
	MinEffort     float64
}

// Rank scores every pack as value_score / max(effort_score, 1), sorts
// descending, and optionally enforces non-overlap across already-selected
// packs' entity sets before applying the max_packs cap (spec.md §4.6.5).
func Rank(packs []*Pack, cfg RankConfig) []*Pack {
	if cfg.MinEffort == 0 {
		cfg.MinEffort = 1
	}

	scored := append([]*Pack(nil), packs...)
	sort.SliceStable(scored, func(i, j int) bool {
		return rankScore(scored[i], cfg) > rankScore(scored[j], cfg)
	})

	if !cfg.NonOverlap && cfg.MaxPacks <= 0 {
		return scored
	}

	var out []*Pack
	seen := make(map[string]bool)
	for _, p := range scored {
		if cfg.NonOverlap {
			overlaps := false
			for id := range p.EntitySet() {
				if seen[id] {
					overlaps = true
					break
				}
			}
			if overlaps {
				continue
			}
			for id := range p.EntitySet() {
				seen[id] = true
			}
		}
		out = append(out, p)
		if cfg.MaxPacks > 0 && len(out) >= cfg.MaxPacks {
			break
		}
	}
	return out
}

func rankScore(p *Pack, cfg RankConfig) float64 {
	effort := p.Effort.Score
	if effort < cfg.MinEffort {
		effort = cfg.MinEffort
	}
	return p.Value.Score / effort
}
