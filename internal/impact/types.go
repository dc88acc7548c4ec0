// Package impact implements the impact-pack synthesizer (spec.md §4.6):
// the clone consolidator, cycle cutter, chokepoint detector, and
// structure-pack synthesizer, plus a final value/effort ranker with
// optional non-overlap enforcement.
//
// Ported in meaning from original_source's impact_packs.py
// (CloneConsolidator/CycleCutter/ChokepointDetector) and the attic
// structure.py (directory-imbalance and file-split builders).
package impact

import "github.com/valknut-dev/valknut/internal/extract"

// PackKind tags the closed ImpactPack sum type (spec.md §3).
type PackKind string

const (
	KindClone        PackKind = "clone"
	KindCycle        PackKind = "cycle"
	KindChokepoint   PackKind = "chokepoint"
	KindBranchReorg  PackKind = "branch_reorg"
	KindFileSplit    PackKind = "file_split"
)

// PackValue and PackEffort are the numeric records used for ranking
// (spec.md §3).
type PackValue struct {
	Score   float64            `json:"score"`
	Metrics map[string]float64 `json:"metrics"`
}

type PackEffort struct {
	Score   float64            `json:"score"`
	Metrics map[string]float64 `json:"metrics"`
}

// Pack is the closed tagged union. Exactly one of the variant fields is
// non-nil, selected by Kind.
type Pack struct {
	ID     string     `json:"id"`
	Kind   PackKind   `json:"kind"`
	Value  PackValue  `json:"value"`
	Effort PackEffort `json:"effort"`
	Steps  []string   `json:"steps"`

	Clone       *ClonePack       `json:"clone,omitempty"`
	Cycle       *CyclePack       `json:"cycle,omitempty"`
	Chokepoint  *ChokepointPack  `json:"chokepoint,omitempty"`
	BranchReorg *BranchReorgPack `json:"branch_reorg,omitempty"`
	FileSplit   *FileSplitPack   `json:"file_split,omitempty"`
}

// EntitySet returns every entity id this pack touches, used by the
// non-overlap ranker.
func (p *Pack) EntitySet() map[string]bool {
	out := make(map[string]bool)
	switch p.Kind {
	case KindClone:
		for _, m := range p.Clone.Members {
			out[m.EntityID] = true
		}
	case KindCycle:
		for _, id := range p.Cycle.Members {
			out[id] = true
		}
	case KindChokepoint:
		out[p.Chokepoint.NodeID] = true
	case KindBranchReorg:
		for _, c := range p.BranchReorg.Proposal {
			for _, id := range c.EntityIDs {
				out[id] = true
			}
		}
	case KindFileSplit:
		for _, s := range p.FileSplit.Splits {
			for _, id := range s.EntityIDs {
				out[id] = true
			}
		}
	}
	return out
}

// ClonePack (spec.md §3).
type ClonePack struct {
	Members             []extract.CloneMember `json:"members"`
	MedoidEntityID      string                 `json:"medoid_entity_id"`
	ExtractedParams     []string               `json:"extracted_params"`
	UsesConfigObject    bool                   `json:"uses_config_object"`
	OptionalBlocks      []string               `json:"optional_blocks"`
	SuggestedTargetPath string                 `json:"suggested_target_path"`
}

// CyclePack (spec.md §3).
type CyclePack struct {
	Members  []string `json:"members"`
	CutNodes []string `json:"cut_nodes"`
}

// ChokepointPack (spec.md §3).
type ChokepointPack struct {
	NodeID          string   `json:"node_id"`
	CommunityLabels []string `json:"community_labels"`
	NeighborCount   int      `json:"neighbor_count"`
}

// ClusterProposal is one named sub-cluster in a BranchReorgPack.
type ClusterProposal struct {
	Name      string   `json:"name"`
	FileCount int      `json:"file_count"`
	LOC       int      `json:"loc"`
	EntityIDs []string `json:"entity_ids"`
}

// BranchReorgPack (spec.md §3).
type BranchReorgPack struct {
	TargetDirectory string             `json:"target_directory"`
	CurrentMetrics  map[string]float64 `json:"current_metrics"`
	Proposal        []ClusterProposal  `json:"proposal"`
}

// FileSplitGroup is one suggested split in a FileSplitPack.
type FileSplitGroup struct {
	Name      string   `json:"name"`
	EntityIDs []string `json:"entity_ids"`
}

// FileSplitPack (spec.md §3).
type FileSplitPack struct {
	TargetFile string           `json:"target_file"`
	Reasons    []string         `json:"reasons"`
	Splits     []FileSplitGroup `json:"splits"`
}
