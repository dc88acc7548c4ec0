package impact

import (
	"testing"

	"github.com/valknut-dev/valknut/internal/extract"
)

func memberRange(entityID, path string, start, end int) extract.CloneMember {
	return extract.CloneMember{EntityID: entityID, Path: path, LineStart: start, LineEnd: end}
}

func TestBuildClonePacksFiltersBySimilarityAndSize(t *testing.T) {
	groups := []extract.CloneGroup{
		{
			Similarity: 0.9,
			Members: []extract.CloneMember{
				memberRange("a://x.go::F1", "x.go", 1, 50),
				memberRange("a://y.go::F2", "y.go", 1, 50),
			},
		},
		{
			Similarity: 0.5, // below default threshold when MinSimilarity is set
			Members: []extract.CloneMember{
				memberRange("a://z.go::F3", "z.go", 1, 10),
				memberRange("a://w.go::F4", "w.go", 1, 10),
			},
		},
	}

	packs := BuildClonePacks(groups, CloneConsolidatorConfig{MinSimilarity: 0.7})
	if len(packs) != 1 {
		t.Fatalf("expected 1 pack, got %d", len(packs))
	}
	if packs[0].Clone.MedoidEntityID == "" {
		t.Error("expected a medoid to be selected")
	}
	if packs[0].Value.Metrics["dup_loc_removed"] != 100 {
		t.Errorf("expected dup_loc_removed=100, got %v", packs[0].Value.Metrics["dup_loc_removed"])
	}
}

func TestBuildClonePacksSkipsSmallGroups(t *testing.T) {
	groups := []extract.CloneGroup{
		{
			Similarity: 0.9,
			Members: []extract.CloneMember{
				memberRange("a://x.go::F1", "x.go", 1, 5),
				memberRange("a://y.go::F2", "y.go", 1, 5),
			},
		},
	}
	packs := BuildClonePacks(groups, CloneConsolidatorConfig{MinSimilarity: 0.5, MinTotalLOC: 60})
	if len(packs) != 0 {
		t.Fatalf("expected 0 packs below MinTotalLOC, got %d", len(packs))
	}
}

func TestExtractParametersFallsBackToConfigObject(t *testing.T) {
	members := []extract.CloneMember{
		memberRange("a://x.go::A", "x.go", 1, 1),
		memberRange("a://x.go::B", "x.go", 1, 1),
		memberRange("a://x.go::C", "x.go", 1, 1),
	}
	params, usesConfig := extractParameters(members, 2)
	if !usesConfig {
		t.Error("expected config-object fallback when member count exceeds maxParams")
	}
	if len(params) != 1 || params[0] != "config" {
		t.Errorf("unexpected params: %v", params)
	}
}
