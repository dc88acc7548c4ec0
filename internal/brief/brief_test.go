package brief

import (
	"strings"
	"testing"

	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/graph"
	"github.com/valknut-dev/valknut/internal/score"
	"github.com/valknut-dev/valknut/internal/vkconfig"
)

func rankedEntry(fv *entity.FeatureVector, e *entity.Entity) score.RankedEntry {
	return score.RankedEntry{
		FeatureVector: fv,
		Entity:        e,
		Score:         0.9,
		Explanation:   []string{"high complexity"},
	}
}

func TestGenerateBuildsSignaturesForFunctions(t *testing.T) {
	gen := NewGenerator(vkconfig.BriefsConfig{IncludeSignatures: true, IncludeDetectedRefactors: true, CalleeDepth: 1})

	e := entity.NewEntity("go://a.go::Foo", "Foo", entity.KindFunction,
		entity.Location{Path: "a.go", StartLine: 1, EndLine: 10}, "go")
	e.Parameters = []string{"x", "y"}
	e.ReturnType = "error"

	fv := entity.NewFeatureVector(e.ID)
	fv.Normalized["cyclomatic"] = 0.9

	item := gen.Generate(rankedEntry(fv, e), nil)

	if len(item.Signatures) != 1 {
		t.Fatalf("expected one synthesized signature, got %d", len(item.Signatures))
	}
	if !strings.Contains(item.Signatures[0], "Foo(x, y)") {
		t.Errorf("expected signature to reference name and params, got %q", item.Signatures[0])
	}
	if item.LOC != 10 {
		t.Errorf("expected LOC 10, got %d", item.LOC)
	}
}

func TestGeneratePrefersExplicitSignature(t *testing.T) {
	gen := NewGenerator(vkconfig.BriefsConfig{IncludeSignatures: true})
	e := entity.NewEntity("go://a.go::Foo", "Foo", entity.KindFunction,
		entity.Location{Path: "a.go", StartLine: 1, EndLine: 2}, "go")
	e.Signature = "func Foo(x int) error"

	fv := entity.NewFeatureVector(e.ID)
	item := gen.Generate(rankedEntry(fv, e), nil)

	if len(item.Signatures) != 1 || item.Signatures[0] != "func Foo(x int) error" {
		t.Errorf("expected the entity's own signature to be used verbatim, got %v", item.Signatures)
	}
}

func TestAnalyzeFindingsThresholds(t *testing.T) {
	e := entity.NewEntity("go://a.go::Foo", "Foo", entity.KindFunction, entity.Location{Path: "a.go", StartLine: 1, EndLine: 1}, "go")
	fv := entity.NewFeatureVector(e.ID)
	fv.Normalized["clone_mass"] = 0.5
	fv.Normalized["cyclomatic"] = 0.9

	findings := analyzeFindings(fv)
	if findings.empty() {
		t.Fatal("expected findings above threshold to be non-empty")
	}
	if len(findings.Duplicates) != 1 {
		t.Errorf("expected one duplicate finding, got %d", len(findings.Duplicates))
	}
	if len(findings.Complexity) != 1 {
		t.Errorf("expected one complexity finding, got %d", len(findings.Complexity))
	}
}

func TestAnalyzeFindingsBelowThresholdIsEmpty(t *testing.T) {
	fv := entity.NewFeatureVector("go://a.go::Foo")
	fv.Normalized["clone_mass"] = 0.1
	if !analyzeFindings(fv).empty() {
		t.Error("expected findings below every threshold to be empty")
	}
}

func TestSuggestRefactorsCapsAtFive(t *testing.T) {
	e := entity.NewEntity("go://a.go::Foo", "Foo", entity.KindClass, entity.Location{Path: "a.go", StartLine: 1, EndLine: 1}, "go")
	fv := entity.NewFeatureVector(e.ID)
	fv.Normalized["cyclomatic"] = 0.9
	fv.Normalized["parameter_count"] = 0.9
	fv.Normalized["clone_mass"] = 0.9
	fv.Normalized["in_cycle"] = 0.9
	fv.Normalized["cohesion_lcom"] = 0.9
	fv.Normalized["fan_out"] = 0.9
	fv.Normalized["any_type_ratio"] = 0.9

	out := suggestRefactors(fv, e)
	if len(out) != 5 {
		t.Fatalf("expected refactor suggestions capped at 5, got %d: %v", len(out), out)
	}
}

func TestSuggestRefactorsSplitsClassVsMethod(t *testing.T) {
	fv := entity.NewFeatureVector("id")
	fv.Normalized["cohesion_lcom"] = 0.9

	class := entity.NewEntity("id", "C", entity.KindClass, entity.Location{Path: "a.go", StartLine: 1, EndLine: 1}, "go")
	method := entity.NewEntity("id", "m", entity.KindMethod, entity.Location{Path: "a.go", StartLine: 1, EndLine: 1}, "go")

	if got := suggestRefactors(fv, class); !contains(got, "Split Class") {
		t.Errorf("expected Split Class for a class entity, got %v", got)
	}
	if got := suggestRefactors(fv, method); !contains(got, "Split Method") {
		t.Errorf("expected Split Method for a method entity, got %v", got)
	}
}

func TestTopFeaturesSortedDescendingAndCapped(t *testing.T) {
	fv := entity.NewFeatureVector("id")
	for i := 0; i < 15; i++ {
		fv.Normalized[string(rune('a'+i))] = 0.6 + float64(i)*0.01
	}
	out := topFeatures(fv)
	if len(out) != 10 {
		t.Fatalf("expected top 10 features, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Value > out[i-1].Value {
			t.Fatalf("expected descending order, got %v then %v", out[i-1].Value, out[i].Value)
		}
	}
}

func TestSafetyChecklistAlwaysIncludesBaseline(t *testing.T) {
	e := entity.NewEntity("id", "f", entity.KindFunction, entity.Location{Path: "a.go", StartLine: 1, EndLine: 1}, "go")
	fv := entity.NewFeatureVector(e.ID)
	checklist := safetyChecklist(e, fv)
	if !contains(checklist, "Run full test suite after changes") {
		t.Error("expected the baseline safety checklist items to always be present")
	}
}

func TestDependencySliceWalksCallGraph(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")

	idx := entity.NewParseIndex("go")
	idx.CallGraph = g
	idx.ImportGraph = g

	gen := NewGenerator(vkconfig.BriefsConfig{CalleeDepth: 2})
	e := entity.NewEntity("a", "a", entity.KindFunction, entity.Location{Path: "a.go", StartLine: 1, EndLine: 1}, "go")
	slice := gen.dependencySlice(e, idx)

	if !contains(slice.CalleesDepthLimited, "b") || !contains(slice.CalleesDepthLimited, "c") {
		t.Errorf("expected a two-hop callee walk to reach b and c, got %v", slice.CalleesDepthLimited)
	}
}

func TestInvariantsFromDocstringAndParamCount(t *testing.T) {
	e := entity.NewEntity("id", "f", entity.KindFunction, entity.Location{Path: "a.go", StartLine: 1, EndLine: 1}, "go")
	e.Docstring = "Returns non-null on success. Raises on invalid input."
	e.Parameters = []string{"a", "b", "c", "d", "e", "f"}

	out := invariants(e)
	if !contains(out, "returns non-null value on success") {
		t.Errorf("expected docstring-derived invariant, got %v", out)
	}
	if !contains(out, "raises exception on invalid input") {
		t.Errorf("expected raises invariant, got %v", out)
	}
	if !contains(out, "takes many parameters - consider parameter object") {
		t.Errorf("expected param-count invariant, got %v", out)
	}
}

func contains(xs []string, target string) bool {
	for _, x := range xs {
		if x == target {
			return true
		}
	}
	return false
}
