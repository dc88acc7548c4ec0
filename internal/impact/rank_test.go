package impact

import "testing"

func valueEffortPack(id string, value, effort float64, entities ...string) *Pack {
	return &Pack{
		ID:     id,
		Kind:   KindChokepoint,
		Value:  PackValue{Score: value},
		Effort: PackEffort{Score: effort},
		Chokepoint: &ChokepointPack{
			NodeID: id,
		},
	}
}

func TestRankSortsByValueOverEffort(t *testing.T) {
	packs := []*Pack{
		valueEffortPack("low-ratio", 10, 10),
		valueEffortPack("high-ratio", 10, 1),
	}
	ranked := Rank(packs, RankConfig{})
	if ranked[0].ID != "high-ratio" {
		t.Errorf("expected high-ratio first, got %s", ranked[0].ID)
	}
}

func TestRankEnforcesNonOverlap(t *testing.T) {
	a := valueEffortPack("a", 10, 1)
	a.Chokepoint.NodeID = "shared"
	b := valueEffortPack("b", 5, 1)
	b.Chokepoint.NodeID = "shared"

	ranked := Rank([]*Pack{a, b}, RankConfig{NonOverlap: true})
	if len(ranked) != 1 {
		t.Fatalf("expected non-overlap to drop the second pack, got %d packs", len(ranked))
	}
	if ranked[0].ID != "a" {
		t.Errorf("expected the higher-ranked pack to survive, got %s", ranked[0].ID)
	}
}

func TestRankRespectsMaxPacks(t *testing.T) {
	packs := []*Pack{
		valueEffortPack("a", 10, 1, "a"),
		valueEffortPack("b", 9, 1, "b"),
		valueEffortPack("c", 8, 1, "c"),
	}
	ranked := Rank(packs, RankConfig{MaxPacks: 2})
	if len(ranked) != 2 {
		t.Fatalf("expected 2 packs, got %d", len(ranked))
	}
}
