package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/valknut-dev/valknut/internal/entity"
)

// Suggestion is a RefactoringSuggestion record attached to a
// FeatureVector (spec.md §4.3.5).
type Suggestion struct {
	Type        string
	Severity    string // low, medium, high
	Title       string
	Description string
	Rationale   string
	Effort      string // low, medium, high
	Before      string
	After       string
}

// RefactorExtractor scans entity source text for the refactoring patterns
// in spec.md §4.3.5's table and attaches suggestions plus a
// refactoring_urgency feature.
type RefactorExtractor struct{}

func NewRefactorExtractor() *RefactorExtractor { return &RefactorExtractor{} }

func (r *RefactorExtractor) Name() string { return "refactor" }

func (r *RefactorExtractor) Definitions() []entity.FeatureDefinition {
	return []entity.FeatureDefinition{
		{Name: "refactoring_urgency", DataType: "float", Default: 0, Min: f(0), Max: f(100), HigherIsWorse: true},
		{Name: "suggestion_count", DataType: "float", Default: 0, HigherIsWorse: true},
	}
}

func f(v float64) *float64 { return &v }

var (
	magicNumberPattern = regexp.MustCompile(`(?:^|[^.\w])(-?\d+)(?:[^.\w]|$)`)
	conditionalOpsPat  = regexp.MustCompile(`&&|\|\||\band\b|\bor\b`)
	paramTypePattern   = regexp.MustCompile(`:\s*(\w+)`)
)

func (r *RefactorExtractor) Extract(e *entity.Entity, idx *entity.ParseIndex) (map[string]float64, []string, error) {
	if e.Kind != entity.KindFunction && e.Kind != entity.KindMethod {
		return map[string]float64{}, nil, nil
	}

	var suggestions []Suggestion
	lines := strings.Split(e.Source, "\n")
	lineCount := len(lines)

	if lineCount > 20 {
		sev := "medium"
		if lineCount > 30 {
			sev = "high"
		}
		suggestions = append(suggestions, Suggestion{
			Type: "extract_method", Severity: sev, Title: "Extract Method",
			Description: fmt.Sprintf("function spans %d lines", lineCount),
			Rationale:   "long functions are harder to test and reason about in isolation",
			Effort:      "medium",
		})
	}

	cyclomatic := scanComplexity(e.Source, len(e.Parameters))["cyclomatic"]
	if cyclomatic > 10 {
		sev := "medium"
		if cyclomatic > 15 {
			sev = "high"
		}
		suggestions = append(suggestions, Suggestion{
			Type: "split_function", Severity: sev, Title: "Split Function",
			Description: fmt.Sprintf("cyclomatic complexity %.0f", cyclomatic),
			Rationale:   "high branching complexity concentrates risk in one unit",
			Effort:      "high",
		})
	}

	if len(e.Parameters) > 3 {
		sev := "medium"
		if len(e.Parameters) > 5 {
			sev = "high"
		}
		suggestions = append(suggestions, Suggestion{
			Type: "reduce_parameters", Severity: sev, Title: "Introduce Parameter Object / Reduce Parameters",
			Description: fmt.Sprintf("%d parameters", len(e.Parameters)),
			Rationale:   "long parameter lists are error-prone at call sites",
			Effort:      "medium",
		})
	}

	maxConditionalOps := 0
	for _, line := range lines {
		n := len(conditionalOpsPat.FindAllString(line, -1))
		if n > maxConditionalOps {
			maxConditionalOps = n
		}
	}
	if maxConditionalOps >= 2 {
		suggestions = append(suggestions, Suggestion{
			Type: "consolidate_conditional", Severity: "medium", Title: "Consolidate Conditional",
			Description: "conditional combines multiple logical operators",
			Rationale:   "compound boolean expressions are hard to verify by inspection",
			Effort:      "low",
		})
	}

	magicCount := countMagicNumbers(e.Source)
	if magicCount >= 3 {
		suggestions = append(suggestions, Suggestion{
			Type: "replace_magic_numbers", Severity: "low", Title: "Replace Magic Numbers with Constants",
			Description: fmt.Sprintf("%d unexplained numeric literals", magicCount),
			Rationale:   "named constants document intent at the call site",
			Effort:      "low",
		})
	}

	if sharedType, count := commonParamType(e.Parameters); count >= 3 {
		suggestions = append(suggestions, Suggestion{
			Type: "extract_class", Severity: "medium", Title: "Extract Class (parameter object)",
			Description: fmt.Sprintf("%d parameters share type %q", count, sharedType),
			Rationale:   "parameters that travel together usually belong in one type",
			Effort:      "medium",
		})
	}

	if hasCloneWindow(lines) {
		suggestions = append(suggestions, Suggestion{
			Type: "extract_common_code", Severity: "medium", Title: "Extract Common Code",
			Description: "two windows of this function are near-duplicates",
			Rationale:   "duplicated logic drifts independently unless consolidated",
			Effort:      "medium",
		})
	}

	urgency := 0.0
	hasHigh := false
	for _, s := range suggestions {
		switch s.Severity {
		case "high":
			hasHigh = true
			urgency += 35
		case "medium":
			urgency += 15
		case "low":
			urgency += 5
		}
	}
	if hasHigh && urgency < 100 {
		if urgency < 60 {
			urgency = 60
		}
	}
	if urgency > 100 {
		urgency = 100
	}

	texts := make([]string, len(suggestions))
	for i, s := range suggestions {
		texts[i] = s.Title + ": " + s.Description
	}

	return map[string]float64{
		"refactoring_urgency": urgency,
		"suggestion_count":    float64(len(suggestions)),
	}, texts, nil
}

func countMagicNumbers(source string) int {
	count := 0
	for _, m := range magicNumberPattern.FindAllStringSubmatch(source, -1) {
		switch strings.TrimSpace(m[1]) {
		case "0", "1", "-1":
			continue
		}
		count++
	}
	return count
}

func commonParamType(params []string) (string, int) {
	counts := make(map[string]int)
	for _, p := range params {
		m := paramTypePattern.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		counts[m[1]]++
	}
	best, bestCount := "", 0
	for t, c := range counts {
		if c > bestCount {
			best, bestCount = t, c
		}
	}
	return best, bestCount
}

// hasCloneWindow looks for two non-overlapping 3-line windows with token
// similarity >= 70%, stemmed via porter2 and compared with go-edlib's
// token-level similarity (spec.md §4.3.5's "Extract Common Code" rule).
func hasCloneWindow(lines []string) bool {
	const windowSize = 3
	if len(lines) < windowSize*2 {
		return false
	}
	windows := make([]string, 0, len(lines)-windowSize+1)
	for i := 0; i+windowSize <= len(lines); i++ {
		windows = append(windows, stemWindow(lines[i:i+windowSize]))
	}
	for i := 0; i < len(windows); i++ {
		if strings.TrimSpace(windows[i]) == "" {
			continue
		}
		for j := i + windowSize; j < len(windows); j++ {
			if strings.TrimSpace(windows[j]) == "" {
				continue
			}
			sim, err := edlib.StringsSimilarity(windows[i], windows[j], edlib.Jaccard)
			if err == nil && float64(sim) >= 0.70 {
				return true
			}
		}
	}
	return false
}

func stemWindow(lines []string) string {
	var tokens []string
	for _, line := range lines {
		for _, tok := range strings.Fields(line) {
			tok = strings.Trim(tok, "(){}[];,.")
			if tok == "" {
				continue
			}
			tokens = append(tokens, porter2.Stem(strings.ToLower(tok)))
		}
	}
	return strings.Join(tokens, " ")
}
