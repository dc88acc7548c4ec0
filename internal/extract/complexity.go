package extract

import (
	"regexp"
	"strings"

	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/gofastjs"
)

// ComplexityExtractor computes cyclomatic/cognitive complexity, max
// nesting, parameter count, and branch fanout (spec.md §4.3.1).
type ComplexityExtractor struct{}

func NewComplexityExtractor() *ComplexityExtractor { return &ComplexityExtractor{} }

func (c *ComplexityExtractor) Name() string { return "complexity" }

func (c *ComplexityExtractor) Definitions() []entity.FeatureDefinition {
	return []entity.FeatureDefinition{
		{Name: "cyclomatic", Description: "cyclomatic complexity", DataType: "float", Default: 1, HigherIsWorse: true},
		{Name: "cognitive", Description: "cognitive complexity", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "max_nesting", Description: "maximum simultaneous nesting depth", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "parameter_count", Description: "declared parameter count", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "branch_fanout", Description: "branches per decision", DataType: "float", Default: 0, HigherIsWorse: true},
	}
}

var (
	decisionTokens = regexp.MustCompile(`\b(if|elif|else\s+if|while|for|try|catch|except|switch|case|match|select)\b|\?.*:`)
	branchTokens   = regexp.MustCompile(`\b(else|elif|case|catch|except|finally)\b`)
	boolOps        = regexp.MustCompile(`\b(and|or)\b|&&|\|\|`)
)

func (c *ComplexityExtractor) Extract(e *entity.Entity, idx *entity.ParseIndex) (map[string]float64, []string, error) {
	switch e.Kind {
	case entity.KindFunction, entity.KindMethod:
		if e.Language == "javascript" {
			if m, ok := scanComplexityFastJS(e); ok {
				return m, nil, nil
			}
		}
		m := scanComplexity(e.Source, len(e.Parameters))
		return m, nil, nil
	case entity.KindFile, entity.KindClass, entity.KindModule, entity.KindStruct, entity.KindInterface, entity.KindTrait:
		return c.aggregate(e, idx), nil, nil
	default:
		return map[string]float64{}, nil, nil
	}
}

// scanComplexityFastJS tries go-fAST's fast-path scan for a JavaScript
// function entity, matching by name. It returns ok=false on any parse
// failure (ES6 modules/TypeScript syntax go-fAST can't handle) or when no
// function in the scan matches the entity's own name, so the caller falls
// back to the regex-based scanComplexity.
func scanComplexityFastJS(e *entity.Entity) (map[string]float64, bool) {
	readings, err := gofastjs.Scan(e.Source)
	if err != nil {
		return nil, false
	}
	for _, r := range readings {
		if r.Name != e.Name && !(r.Name == "" && e.Name == "anonymous") {
			continue
		}
		fanout := 0.0
		if r.Cyclomatic > 1 {
			fanout = 1.0
		}
		return map[string]float64{
			"cyclomatic":      float64(r.Cyclomatic),
			"cognitive":       float64(r.Cyclomatic + r.MaxNesting),
			"max_nesting":     float64(r.MaxNesting),
			"parameter_count": float64(r.ParamCount),
			"branch_fanout":   fanout,
		}, true
	}
	return nil, false
}

func scanComplexity(source string, paramCount int) map[string]float64 {
	lines := strings.Split(source, "\n")
	cyclomatic := 1.0
	cognitive := 0.0
	decisions := 0
	branches := 0
	depth := 0
	maxDepth := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		opens := strings.Count(line, "{") + strings.Count(line, ":") - strings.Count(line, "::")
		closes := strings.Count(line, "}")

		decisionMatches := decisionTokens.FindAllString(trimmed, -1)
		decisions += len(decisionMatches)
		cyclomatic += float64(len(decisionMatches))

		branches += len(branchTokens.FindAllString(trimmed, -1))

		weight := 0.0
		if len(decisionMatches) > 0 {
			weight += 1.0 * float64(len(decisionMatches))
		}
		weight += 0.5 * float64(len(boolOps.FindAllString(trimmed, -1)))
		if weight > 0 {
			cognitive += weight * (1 + float64(depth))
		}

		if opens > 0 {
			depth += opens
			if depth > maxDepth {
				maxDepth = depth
			}
		}
		if closes > 0 {
			depth -= closes
			if depth < 0 {
				depth = 0
			}
		}
	}

	fanout := 0.0
	if decisions > 0 {
		fanout = float64(branches) / float64(decisions)
	}

	return map[string]float64{
		"cyclomatic":      cyclomatic,
		"cognitive":       cognitive,
		"max_nesting":     float64(maxDepth),
		"parameter_count": float64(paramCount),
		"branch_fanout":   fanout,
	}
}

// aggregate rolls up direct and transitive function/method descendants'
// complexity into a file/class-level summary: cyclomatic and cognitive
// summed, max_nesting and parameter_count taken as maxima, branch_fanout
// averaged (spec.md §4.3.1).
func (c *ComplexityExtractor) aggregate(e *entity.Entity, idx *entity.ParseIndex) map[string]float64 {
	var cyclomaticSum, cognitiveSum, fanoutSum float64
	var maxNesting, maxParams float64
	count := 0

	var walk func(id entity.ID)
	walk = func(id entity.ID) {
		child, ok := idx.Entity(id)
		if !ok {
			return
		}
		if child.Kind == entity.KindFunction || child.Kind == entity.KindMethod {
			m := scanComplexity(child.Source, len(child.Parameters))
			cyclomaticSum += m["cyclomatic"]
			cognitiveSum += m["cognitive"]
			fanoutSum += m["branch_fanout"]
			if m["max_nesting"] > maxNesting {
				maxNesting = m["max_nesting"]
			}
			if m["parameter_count"] > maxParams {
				maxParams = m["parameter_count"]
			}
			count++
		}
		for _, cid := range child.ChildIDs {
			walk(cid)
		}
	}
	for _, cid := range e.ChildIDs {
		walk(cid)
	}

	fanout := 0.0
	if count > 0 {
		fanout = fanoutSum / float64(count)
	}

	return map[string]float64{
		"cyclomatic":      cyclomaticSum,
		"cognitive":       cognitiveSum,
		"max_nesting":     maxNesting,
		"parameter_count": maxParams,
		"branch_fanout":   fanout,
	}
}
