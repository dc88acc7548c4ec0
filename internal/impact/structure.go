package impact

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valknut-dev/valknut/internal/extract"
)

// StructurePackConfig controls the directory-imbalance and huge-file
// thresholds used by the structure-pack synthesizer.
type StructurePackConfig struct {
	ImbalanceThreshold float64 // default 0.6
	MinImbalanceDrop   float64 // default 0.15
	MinClusters        int     // default 2
	MaxClusters        int     // default 4

	// CycleParticipation/CloneContribution/ExternalImporters are optional
	// per-file lookups populated by the pipeline from the graph/clone
	// extractors, used by the file-split value/effort formula.
	CycleParticipation map[string]float64
	CloneContribution  map[string]float64
	ExternalImporters  map[string]int
	Exports            map[string]int
}

// BuildStructurePacks walks the directory tree and emits a BranchReorgPack
// for every directory whose imbalance exceeds the threshold and which can
// be split into sub-clusters with a meaningful imbalance drop, plus a
// FileSplitPack for every huge file, with no exclusion by path kind or
// entity count (spec.md
// §4.6.4, extended per the file-split value/effort formula restored from
// original_source).
func BuildStructurePacks(root *extract.DirNode, cfg StructurePackConfig) []*Pack {
	if cfg.ImbalanceThreshold == 0 {
		cfg.ImbalanceThreshold = 0.6
	}
	if cfg.MinImbalanceDrop == 0 {
		cfg.MinImbalanceDrop = 0.15
	}
	if cfg.MinClusters == 0 {
		cfg.MinClusters = 2
	}
	if cfg.MaxClusters == 0 {
		cfg.MaxClusters = 4
	}

	var packs []*Pack
	walkDirs(root, &packs, cfg)
	walkFiles(root, &packs, cfg)
	return packs
}

func walkDirs(d *extract.DirNode, packs *[]*Pack, cfg StructurePackConfig) {
	if d.DirImbalance >= cfg.ImbalanceThreshold {
		if pack := buildBranchReorgPack(d, cfg); pack != nil {
			*packs = append(*packs, pack)
		}
	}
	// Deterministic order for reproducible pack lists.
	names := make([]string, 0, len(d.Subdirs))
	for name := range d.Subdirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		walkDirs(d.Subdirs[name], packs, cfg)
	}
}

// buildBranchReorgPack groups a directory's direct files with
// clusterFiles (by language, then by tests/utils/config/core name
// pattern), estimates the imbalance drop from splitting the directory into
// those clusters, and emits a pack only when that drop clears
// MinImbalanceDrop.
func buildBranchReorgPack(d *extract.DirNode, cfg StructurePackConfig) *Pack {
	clusters := clusterFiles(d, cfg.MinClusters, cfg.MaxClusters)
	if len(clusters) < cfg.MinClusters {
		return nil
	}

	estimatedDrop := estimateImbalanceDrop(d, clusters)
	if estimatedDrop < cfg.MinImbalanceDrop {
		return nil
	}

	proposal := make([]ClusterProposal, 0, len(clusters))
	for i, c := range clusters {
		ids := make([]string, 0)
		loc := 0
		for _, f := range c {
			ids = append(ids, f.EntityIDs...)
			loc += f.LOC
		}
		proposal = append(proposal, ClusterProposal{
			Name:      fmt.Sprintf("%s/%s", d.Path, suggestClusterName(c, i)),
			FileCount: len(c),
			LOC:       loc,
			EntityIDs: ids,
		})
	}

	return &Pack{
		ID:   fmt.Sprintf("branch-reorg-%s", d.Path),
		Kind: KindBranchReorg,
		Value: PackValue{
			Score:   estimatedDrop,
			Metrics: map[string]float64{"dir_imbalance_drop": estimatedDrop},
		},
		Effort: PackEffort{
			Score:   float64(len(d.Files)),
			Metrics: map[string]float64{"files_moved": float64(len(d.Files))},
		},
		Steps: []string{
			"create one subdirectory per proposed group",
			"move each group's files into its new subdirectory, updating imports",
			"re-run structure analysis to confirm the imbalance has dropped",
		},
		BranchReorg: &BranchReorgPack{
			TargetDirectory: d.Path,
			CurrentMetrics: map[string]float64{
				"dir_imbalance":    d.DirImbalance,
				"branching_factor": float64(d.BranchingFactor),
				"total_loc":        float64(d.TotalLOC),
			},
			Proposal: proposal,
		},
	}
}

// clusterFiles groups a directory's direct files by language and by
// extension/name-pattern (tests/utils/config/core), then merges undersized
// clusters and caps the result at four, per spec.md §4.6.4 and the original
// structure detector's _cluster_files.
func clusterFiles(d *extract.DirNode, min, max int) [][]*extract.FileNode {
	files := d.Files
	if len(files) < 4 {
		return [][]*extract.FileNode{files}
	}

	testSuffixes := []string{".test.js", ".test.ts", ".spec.js", ".spec.ts", "_test.py"}
	configSuffixes := []string{".config.js", ".config.ts"}

	named := map[string][]*extract.FileNode{"tests": nil, "utils": nil, "config": nil, "core": nil}
	byLang := map[string][]*extract.FileNode{}

	for _, f := range files {
		// Cluster by language first (most specific), same as the original
		// implementation's lang_<language> bucket.
		if f.Language != "" && f.Language != "unknown" {
			key := "lang_" + f.Language
			byLang[key] = append(byLang[key], f)
			continue
		}

		base := filepath.Base(f.Path)
		nameLower := strings.ToLower(base)
		stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

		switch {
		case hasAnySuffix(nameLower, testSuffixes) || strings.Contains(stem, "test_"):
			named["tests"] = append(named["tests"], f)
		case strings.Contains(stem, "util") || strings.Contains(stem, "helper"):
			named["utils"] = append(named["utils"], f)
		case hasAnySuffix(nameLower, configSuffixes) || strings.Contains(stem, "config"):
			named["config"] = append(named["config"], f)
		default:
			named["core"] = append(named["core"], f)
		}
	}

	all := make([][]*extract.FileNode, 0, len(named)+len(byLang))
	for _, key := range []string{"tests", "utils", "config", "core"} {
		if len(named[key]) > 0 {
			all = append(all, named[key])
		}
	}
	langKeys := make([]string, 0, len(byLang))
	for k := range byLang {
		langKeys = append(langKeys, k)
	}
	sort.Strings(langKeys)
	for _, k := range langKeys {
		all = append(all, byLang[k])
	}

	var balanced, small [][]*extract.FileNode
	for _, c := range all {
		if len(c) >= 2 {
			balanced = append(balanced, c)
		} else {
			small = append(small, c)
		}
	}
	for _, c := range small {
		if len(balanced) == 0 {
			balanced = append(balanced, c)
			continue
		}
		idx := 0
		for i := 1; i < len(balanced); i++ {
			if len(balanced[i]) < len(balanced[idx]) {
				idx = i
			}
		}
		balanced[idx] = append(balanced[idx], c...)
	}

	for len(balanced) > max {
		sort.Slice(balanced, func(i, j int) bool { return len(balanced[i]) < len(balanced[j]) })
		balanced[1] = append(balanced[1], balanced[0]...)
		balanced = balanced[1:]
	}

	if len(balanced) == 0 {
		return [][]*extract.FileNode{files}
	}
	return balanced
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// suggestClusterName names a proposed cluster from its file stems' keyword
// patterns, falling back to a common-prefix guess and finally a fixed
// rotation — ported from the original structure detector's
// _suggest_cluster_name.
func suggestClusterName(cluster []*extract.FileNode, index int) string {
	if len(cluster) == 0 {
		return fmt.Sprintf("group-%d", index)
	}
	stems := make([]string, len(cluster))
	for i, f := range cluster {
		base := filepath.Base(f.Path)
		stems[i] = strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	switch {
	case anyStemContains(stems, "test"):
		return "tests"
	case anyStemContainsAny(stems, "util", "helper"):
		return "utils"
	case anyStemContainsAny(stems, "config", "setting"):
		return "config"
	case anyStemContainsAny(stems, "service", "api"):
		return "services"
	case anyStemContainsAny(stems, "model", "entity", "data"):
		return "models"
	case anyStemContainsAny(stems, "ui", "component", "view"):
		return "ui"
	}

	if len(stems) > 1 {
		if common := strings.TrimRight(commonPrefix(stems), "_-"); len(common) >= 2 {
			return common
		}
	}

	fallback := []string{"core", "lib", "base", "main"}
	return fallback[index%len(fallback)]
}

func anyStemContains(stems []string, sub string) bool {
	for _, s := range stems {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func anyStemContainsAny(stems []string, subs ...string) bool {
	for _, s := range stems {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
	}
	return false
}

func commonPrefix(stems []string) string {
	minLen := len(stems[0])
	for _, s := range stems[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}
	var b strings.Builder
	for i := 0; i < minLen; i++ {
		c := stems[0][i]
		for _, s := range stems[1:] {
			if s[i] != c {
				return b.String()
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// estimateImbalanceDrop approximates the dir_imbalance reduction from
// splitting d's files into the proposed clusters: d's current imbalance
// minus the mean imbalance of the clusters, where each cluster's imbalance
// counts only its weighted file-pressure and size-pressure terms.
func estimateImbalanceDrop(d *extract.DirNode, clusters [][]*extract.FileNode) float64 {
	if len(clusters) == 0 {
		return 0
	}
	sumImbalance := 0.0
	for _, c := range clusters {
		locs := make([]float64, len(c))
		total := 0
		for i, f := range c {
			locs[i] = float64(f.LOC)
			total += f.LOC
		}
		filePressure := capped(float64(len(c)) / 25.0)
		sizePressure := capped(float64(total) / 2000.0)
		sumImbalance += 0.35*filePressure + 0.25*sizePressure
	}
	meanImbalance := sumImbalance / float64(len(clusters))
	drop := d.DirImbalance - meanImbalance
	if drop < 0 {
		return 0
	}
	return drop
}

func capped(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func walkFiles(d *extract.DirNode, packs *[]*Pack, cfg StructurePackConfig) {
	for _, f := range d.Files {
		if !f.Huge {
			continue
		}
		*packs = append(*packs, buildFileSplitPack(f, cfg))
	}
	names := make([]string, 0, len(d.Subdirs))
	for name := range d.Subdirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		walkFiles(d.Subdirs[name], packs, cfg)
	}
}

// buildFileSplitPack proposes splitting a huge file's entities into
// name-pattern groups (see splitEntities), scored with the value/effort formula restored
// from original_source: size_drop = 0.6*size_factor, total_value =
// 0.6*size_factor + 0.3*cycle_participation + 0.1*clone_contribution,
// total_effort = min(20, 0.5*exports + 0.5*external_importers).
func buildFileSplitPack(f *extract.FileNode, cfg StructurePackConfig) *Pack {
	sizeFactor := capped(float64(f.LOC) / float64(hugeLOCReference))
	cycleParticipation := cfg.CycleParticipation[f.Path]
	cloneContribution := cfg.CloneContribution[f.Path]
	exports := float64(cfg.Exports[f.Path])
	externalImporters := float64(cfg.ExternalImporters[f.Path])

	sizeDrop := 0.6 * sizeFactor
	totalValue := 0.6*sizeFactor + 0.3*cycleParticipation + 0.1*cloneContribution
	totalEffort := 0.5*exports + 0.5*externalImporters
	if totalEffort > 20 {
		totalEffort = 20
	}

	ext := filepath.Ext(f.Path)
	stem := strings.TrimSuffix(f.Path, ext)
	splits := splitEntities(stem, ext, f.EntityIDs, cfg.MaxClusters)

	var reasons []string
	reasons = append(reasons, fmt.Sprintf("%d lines exceeds the huge-file threshold", f.LOC))
	if cycleParticipation > 0 {
		reasons = append(reasons, "participates in a dependency cycle")
	}
	if cloneContribution > 0 {
		reasons = append(reasons, "contributes duplicated code mass")
	}

	return &Pack{
		ID:   fmt.Sprintf("file-split-%s", f.Path),
		Kind: KindFileSplit,
		Value: PackValue{
			Score: totalValue,
			Metrics: map[string]float64{
				"size_drop":           sizeDrop,
				"total_value":         totalValue,
				"cycle_participation": cycleParticipation,
				"clone_contribution":  cloneContribution,
			},
		},
		Effort: PackEffort{
			Score: totalEffort,
			Metrics: map[string]float64{
				"exports":             exports,
				"external_importers":  externalImporters,
				"total_effort":        totalEffort,
			},
		},
		Steps: []string{
			"group the file's entities by cohesive responsibility",
			"extract each group into its own file, re-exporting as needed",
			"update importers to the new file paths",
		},
		FileSplit: &FileSplitPack{
			TargetFile: f.Path,
			Reasons:    reasons,
			Splits:     splits,
		},
	}
}

const hugeLOCReference = 2000

// splitEntities groups a huge file's entity ids by name pattern (tests,
// utils, services, models, else core), in the order each pattern is first
// encountered, naming each group after the file stem — ported from the
// original structure detector's _suggest_file_splits. Groups beyond
// maxGroups are dropped, matching the original's fixed cap.
func splitEntities(stem, ext string, ids []string, maxGroups int) []FileSplitGroup {
	if len(ids) < 2 {
		if len(ids) == 0 {
			return nil
		}
		return []FileSplitGroup{{Name: stem + ext, EntityIDs: ids}}
	}
	if maxGroups < 1 {
		maxGroups = 4
	}

	groups := map[string][]string{}
	var order []string
	for _, id := range ids {
		base := id
		if i := strings.LastIndex(id, "."); i >= 0 {
			base = id[i+1:]
		}
		baseLower := strings.ToLower(base)

		var key string
		switch {
		case strings.Contains(baseLower, "test"):
			key = "tests"
		case anyStemContainsAny([]string{baseLower}, "util", "helper"):
			key = "utils"
		case anyStemContainsAny([]string{baseLower}, "service", "manager", "handler", "api"):
			key = "services"
		case anyStemContainsAny([]string{baseLower}, "model", "entity", "data", "user"):
			key = "models"
		default:
			key = "core"
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], id)
	}

	splits := make([]FileSplitGroup, 0, len(order))
	for _, key := range order {
		splits = append(splits, FileSplitGroup{Name: fmt.Sprintf("%s_%s%s", stem, key, ext), EntityIDs: groups[key]})
	}
	if len(splits) > maxGroups {
		splits = splits[:maxGroups]
	}
	return splits
}
