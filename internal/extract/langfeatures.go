package extract

import (
	"regexp"
	"strings"

	"github.com/valknut-dev/valknut/internal/entity"
)

// LanguageFeatureExtractor computes the type/exception/cohesion features
// of spec.md §4.3.4 with one set of regular expressions applied to every
// language's source alike; there is no per-language table.
type LanguageFeatureExtractor struct{}

func NewLanguageFeatureExtractor() *LanguageFeatureExtractor { return &LanguageFeatureExtractor{} }

func (l *LanguageFeatureExtractor) Name() string { return "lang_features" }

func (l *LanguageFeatureExtractor) Definitions() []entity.FeatureDefinition {
	return []entity.FeatureDefinition{
		{Name: "annotated_param_ratio", DataType: "float", Default: 1, HigherIsWorse: false},
		{Name: "any_type_ratio", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "cast_density", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "unsafe_density", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "generic_density", DataType: "float", Default: 0, HigherIsWorse: false},
		{Name: "raise_density", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "distinct_exception_types", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "panic_density", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "cohesion_lcom", DataType: "float", Default: 0, HigherIsWorse: true},
	}
}

var (
	anyTypePattern    = regexp.MustCompile(`\b(any|interface\{\}|Object|dynamic)\b`)
	castPattern       = regexp.MustCompile(`\bas\s+\w+|\([A-Z]\w*\)\s*\w|static_cast<|dynamic_cast<`)
	unsafePattern     = regexp.MustCompile(`\bunsafe\b`)
	genericPattern    = regexp.MustCompile(`<[A-Z]\w*(,\s*[A-Z]\w*)*>|\[T\b`)
	raisePattern      = regexp.MustCompile(`\b(raise|throw|panic)\b`)
	exceptionTypePat  = regexp.MustCompile(`\b(raise|throw)\s+(\w+)|catch\s*\(\s*(\w+)|except\s+(\w+)`)
)

func (l *LanguageFeatureExtractor) Extract(e *entity.Entity, idx *entity.ParseIndex) (map[string]float64, []string, error) {
	switch e.Kind {
	case entity.KindFunction, entity.KindMethod:
		return l.extractFunction(e), nil, nil
	case entity.KindClass, entity.KindStruct:
		return l.extractCohesion(e, idx), nil, nil
	default:
		return map[string]float64{}, nil, nil
	}
}

func (l *LanguageFeatureExtractor) extractFunction(e *entity.Entity) map[string]float64 {
	source := e.Source
	lines := float64(countNonEmptyLines(source))
	if lines == 0 {
		lines = 1
	}
	kloc := lines / 1000.0
	if kloc == 0 {
		kloc = 1.0 / 1000.0
	}

	annotated := 0
	for _, p := range e.Parameters {
		if strings.Contains(p, ":") {
			annotated++
		}
	}
	annotatedRatio := 1.0
	if len(e.Parameters) > 0 {
		annotatedRatio = float64(annotated) / float64(len(e.Parameters))
	}

	anyCount := float64(len(anyTypePattern.FindAllString(source, -1)))
	anyRatio := 0.0
	if len(e.Parameters) > 0 {
		anyRatio = anyCount / float64(len(e.Parameters))
		if anyRatio > 1 {
			anyRatio = 1
		}
	}

	raiseMatches := raisePattern.FindAllString(source, -1)
	distinctTypes := make(map[string]bool)
	for _, m := range exceptionTypePat.FindAllStringSubmatch(source, -1) {
		for _, g := range m[1:] {
			if g != "" && g != "raise" && g != "throw" {
				distinctTypes[g] = true
			}
		}
	}

	panicCount := float64(strings.Count(strings.ToLower(source), "panic"))

	return map[string]float64{
		"annotated_param_ratio":    annotatedRatio,
		"any_type_ratio":           anyRatio,
		"cast_density":             float64(len(castPattern.FindAllString(source, -1))) / kloc,
		"unsafe_density":           float64(len(unsafePattern.FindAllString(source, -1))) / kloc,
		"generic_density":          float64(len(genericPattern.FindAllString(source, -1))) / kloc,
		"raise_density":            float64(len(raiseMatches)) / kloc,
		"distinct_exception_types": float64(len(distinctTypes)),
		"panic_density":            panicCount / kloc,
	}
}

// extractCohesion computes an LCOM-like score over a class/struct's
// direct method children: 1 minus the fraction of method pairs that
// share at least one referenced field (spec.md §4.3.4). Field references
// are approximated by textual containment of each declared field name in
// each method's source.
func (l *LanguageFeatureExtractor) extractCohesion(e *entity.Entity, idx *entity.ParseIndex) map[string]float64 {
	if len(e.Fields) == 0 {
		return map[string]float64{"cohesion_lcom": 0}
	}

	var methods []*entity.Entity
	for _, cid := range e.ChildIDs {
		if m, ok := idx.Entity(cid); ok && m.Kind == entity.KindMethod {
			methods = append(methods, m)
		}
	}
	if len(methods) < 2 {
		return map[string]float64{"cohesion_lcom": 0}
	}

	fieldSets := make([]map[string]bool, len(methods))
	for i, m := range methods {
		set := make(map[string]bool)
		for _, f := range e.Fields {
			if strings.Contains(m.Source, f) {
				set[f] = true
			}
		}
		fieldSets[i] = set
	}

	totalPairs := 0
	sharingPairs := 0
	for i := 0; i < len(methods); i++ {
		for j := i + 1; j < len(methods); j++ {
			totalPairs++
			if sharesField(fieldSets[i], fieldSets[j]) {
				sharingPairs++
			}
		}
	}
	if totalPairs == 0 {
		return map[string]float64{"cohesion_lcom": 0}
	}
	lcom := 1.0 - float64(sharingPairs)/float64(totalPairs)
	return map[string]float64{"cohesion_lcom": lcom}
}

func sharesField(a, b map[string]bool) bool {
	for f := range a {
		if b[f] {
			return true
		}
	}
	return false
}

func countNonEmptyLines(source string) int {
	n := 0
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
