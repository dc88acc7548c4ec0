package impact

import (
	"fmt"
	"testing"

	"github.com/valknut-dev/valknut/internal/extract"
)

func buildImbalancedTree() *extract.DirNode {
	files := []extract.FileInfo{
		{Path: "pkg/a.go", LOC: 900, EntityIDs: []string{"e1"}},
		{Path: "pkg/b.go", LOC: 20, EntityIDs: []string{"e2"}},
		{Path: "pkg/c.go", LOC: 15, EntityIDs: []string{"e3"}},
		{Path: "pkg/d.go", LOC: 10, EntityIDs: []string{"e4"}},
	}
	return extract.BuildTree(files)
}

func TestBuildStructurePacksEmitsFileSplitForHugeFile(t *testing.T) {
	root := buildImbalancedTree()
	packs := BuildStructurePacks(root, StructurePackConfig{})

	var found bool
	for _, p := range packs {
		if p.Kind == KindFileSplit && p.FileSplit.TargetFile == "pkg/a.go" {
			found = true
			if len(p.FileSplit.Splits) == 0 {
				t.Error("expected at least one split group")
			}
		}
	}
	if !found {
		t.Error("expected a file-split pack for the huge file pkg/a.go")
	}
}

// buildImbalancedDirectoryTree mirrors spec.md §8 scenario #6: a directory
// of 40 files with LOC [10, 10, ..., 10, 2000]. File names are drawn from
// the tests/utils/config/core patterns so the semantic clusterer has
// something to key on, the way a real lopsided package would.
func buildImbalancedDirectoryTree() *extract.DirNode {
	var files []extract.FileInfo
	for i := 0; i < 10; i++ {
		files = append(files, extract.FileInfo{Path: fmt.Sprintf("pkg/test_%d.go", i), LOC: 10, EntityIDs: []string{fmt.Sprintf("t%d", i)}})
	}
	for i := 0; i < 10; i++ {
		files = append(files, extract.FileInfo{Path: fmt.Sprintf("pkg/util%d.go", i), LOC: 10, EntityIDs: []string{fmt.Sprintf("u%d", i)}})
	}
	for i := 0; i < 10; i++ {
		files = append(files, extract.FileInfo{Path: fmt.Sprintf("pkg/config%d.go", i), LOC: 10, EntityIDs: []string{fmt.Sprintf("c%d", i)}})
	}
	for i := 0; i < 9; i++ {
		files = append(files, extract.FileInfo{Path: fmt.Sprintf("pkg/core%d.go", i), LOC: 10, EntityIDs: []string{fmt.Sprintf("k%d", i)}})
	}
	files = append(files, extract.FileInfo{Path: "pkg/big.go", LOC: 2000, EntityIDs: []string{"big"}})
	return extract.BuildTree(files)
}

func TestBuildStructurePacksEmitsBranchReorgForImbalancedDirectory(t *testing.T) {
	root := buildImbalancedDirectoryTree()
	pkg := root.Subdirs["pkg"]
	if pkg.DirImbalance <= 0.6 {
		t.Fatalf("expected pkg's dir_imbalance to exceed 0.6, got %f", pkg.DirImbalance)
	}

	packs := BuildStructurePacks(root, StructurePackConfig{})

	var found bool
	for _, p := range packs {
		if p.Kind == KindBranchReorg && p.BranchReorg.TargetDirectory == "pkg" {
			found = true
			if n := len(p.BranchReorg.Proposal); n < 2 || n > 4 {
				t.Errorf("expected 2-4 proposed clusters, got %d", n)
			}
		}
	}
	if !found {
		t.Fatal("expected a branch-reorg pack for the imbalanced directory pkg")
	}
}

func TestBuildStructurePacksSkipsBalancedDirectory(t *testing.T) {
	files := []extract.FileInfo{
		{Path: "pkg/a.go", LOC: 100, EntityIDs: []string{"e1"}},
		{Path: "pkg/b.go", LOC: 100, EntityIDs: []string{"e2"}},
	}
	root := extract.BuildTree(files)
	packs := BuildStructurePacks(root, StructurePackConfig{})
	for _, p := range packs {
		if p.Kind == KindBranchReorg {
			t.Errorf("did not expect a branch-reorg pack for a balanced directory, got %+v", p.BranchReorg)
		}
	}
}
