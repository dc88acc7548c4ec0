package impact

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/valknut-dev/valknut/internal/extract"
)

// CloneConsolidatorConfig controls the clone-pack builder's thresholds.
type CloneConsolidatorConfig struct {
	MinSimilarity float64
	MinTotalLOC   int // default 60
	MaxParams     int // default 6
	Callsites     map[string]int // entity id -> known callsite count, optional
}

// BuildClonePacks produces one ClonePack per eligible clone group
// (spec.md §4.6.1).
func BuildClonePacks(groups []extract.CloneGroup, cfg CloneConsolidatorConfig) []*Pack {
	if cfg.MinTotalLOC == 0 {
		cfg.MinTotalLOC = 60
	}
	if cfg.MaxParams == 0 {
		cfg.MaxParams = 6
	}

	var packs []*Pack
	for i, group := range groups {
		if group.Similarity < cfg.MinSimilarity {
			continue
		}
		totalLOC := 0
		for _, m := range group.Members {
			totalLOC += m.LineEnd - m.LineStart + 1
		}
		if totalLOC < cfg.MinTotalLOC {
			continue
		}

		medoid := selectMedoid(group.Members)
		params, usesConfig := extractParameters(group.Members, cfg.MaxParams)
		optional := identifyOptionalBlocks(group.Members)
		target := suggestTarget(group.Members)

		callsites := 0
		for _, m := range group.Members {
			callsites += cfg.Callsites[m.EntityID]
		}

		scoreDrop := float64(totalLOC) / 1000.0
		if scoreDrop > 0.2 {
			scoreDrop = 0.2
		}
		effort := float64(totalLOC) + 2*float64(callsites)

		pack := &Pack{
			ID:   fmt.Sprintf("clone-%d", i),
			Kind: KindClone,
			Value: PackValue{
				Score:   scoreDrop,
				Metrics: map[string]float64{"dup_loc_removed": float64(totalLOC), "score_drop_estimate": scoreDrop},
			},
			Effort: PackEffort{
				Score:   effort,
				Metrics: map[string]float64{"loc": float64(totalLOC), "callsites": float64(callsites)},
			},
			Steps: []string{
				"extract the shared logic into a single function",
				"parameterize the points where members differ",
				"replace every member's call site with the extracted function",
			},
			Clone: &ClonePack{
				Members:             group.Members,
				MedoidEntityID:      medoid,
				ExtractedParams:     params,
				UsesConfigObject:    usesConfig,
				OptionalBlocks:      optional,
				SuggestedTargetPath: target,
			},
		}
		packs = append(packs, pack)
	}
	return packs
}

// selectMedoid picks the member whose summed pairwise token similarity to
// every other member is maximal (spec.md §4.6.1 step 1).
func selectMedoid(members []extract.CloneMember) string {
	if len(members) == 0 {
		return ""
	}
	if len(members) == 1 {
		return members[0].EntityID
	}
	best, bestSum := members[0].EntityID, -1.0
	for i, a := range members {
		sum := 0.0
		for j, b := range members {
			if i == j {
				continue
			}
			sim, err := edlib.StringsSimilarity(a.EntityID, b.EntityID, edlib.Jaccard)
			if err == nil {
				sum += float64(sim)
			}
		}
		if sum > bestSum {
			best, bestSum = a.EntityID, sum
		}
	}
	return best
}

// extractParameters approximates varying literal/identifier positions
// across members by their distinct entity names; when the count exceeds
// maxParams, a single synthetic "config object" parameter is emitted
// instead (spec.md §4.6.1 step 2).
func extractParameters(members []extract.CloneMember, maxParams int) ([]string, bool) {
	seen := make(map[string]bool)
	var params []string
	for _, m := range members {
		name := filepath.Base(m.EntityID)
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}
	if len(params) > maxParams {
		return []string{"config"}, true
	}
	return params, false
}

// identifyOptionalBlocks flags members present in some but not all clone
// instances by their distinguishing line-range length, a coarse proxy for
// "code present in some but not all members" (spec.md §4.6.1 step 3).
func identifyOptionalBlocks(members []extract.CloneMember) []string {
	if len(members) < 2 {
		return nil
	}
	lengths := make(map[int]int)
	for _, m := range members {
		lengths[m.LineEnd-m.LineStart+1]++
	}
	var optional []string
	for length, count := range lengths {
		if count < len(members) {
			optional = append(optional, fmt.Sprintf("%d-line block present in %d/%d members", length, count, len(members)))
		}
	}
	return optional
}

// suggestTarget chooses a destination by the members' common ancestor
// directory, falling back to a shared-utility convention (spec.md §4.6.1
// step 4).
func suggestTarget(members []extract.CloneMember) string {
	if len(members) == 0 {
		return "internal/shared"
	}
	dirs := make([]string, len(members))
	for i, m := range members {
		dirs[i] = filepath.ToSlash(filepath.Dir(m.Path))
	}
	sort.Strings(dirs)
	common := commonPrefix(dirs)
	if common == "" {
		return "internal/shared"
	}
	return strings.TrimRight(common, "/") + "/shared"
}

func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	first := strings.Split(paths[0], "/")
	last := strings.Split(paths[len(paths)-1], "/")
	n := len(first)
	if len(last) < n {
		n = len(last)
	}
	i := 0
	for i < n && first[i] == last[i] {
		i++
	}
	return strings.Join(first[:i], "/")
}
