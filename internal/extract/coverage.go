package extract

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valknut-dev/valknut/internal/entity"
)

// LineCoverage records per-line hit counts for one source file, the
// normal form every supported coverage format is parsed into.
type LineCoverage struct {
	Hits          map[int]int  // line number -> hit count (0 = uncovered)
	BranchPercent *float64     // nil when the format carries no branch data
}

// CoverageReport maps file path to its parsed line coverage.
type CoverageReport map[string]LineCoverage

// LoadCoverageReport auto-detects the report format by extension and
// content sniffing (spec.md §4.3.6) and parses it.
func LoadCoverageReport(path string) (CoverageReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".json" && looksLikeIstanbul(data):
		return parseIstanbul(data)
	case ext == ".json":
		return parsePythonCoverage(data)
	case ext == ".xml" && strings.Contains(string(data[:min(len(data), 512)]), "<coverage"):
		return parseCobertura(data)
	case ext == ".xml":
		return parseJaCoCo(data)
	default:
		return parseLCOV(data)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func looksLikeIstanbul(data []byte) bool {
	return strings.Contains(string(data[:min(len(data), 256)]), `"statementMap"`)
}

// parsePythonCoverage parses coverage.py's JSON export:
// {"files": {"path": {"executed_lines": [...], "missing_lines": [...]}}}
func parsePythonCoverage(data []byte) (CoverageReport, error) {
	var doc struct {
		Files map[string]struct {
			ExecutedLines []int `json:"executed_lines"`
			MissingLines  []int `json:"missing_lines"`
		} `json:"files"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	report := make(CoverageReport)
	for path, f := range doc.Files {
		hits := make(map[int]int)
		for _, l := range f.ExecutedLines {
			hits[l] = 1
		}
		for _, l := range f.MissingLines {
			hits[l] = 0
		}
		report[path] = LineCoverage{Hits: hits}
	}
	return report, nil
}

// parseIstanbul parses Istanbul's JSON coverage map, reducing each
// statement's location to its covering line numbers.
func parseIstanbul(data []byte) (CoverageReport, error) {
	var doc map[string]struct {
		Path         string `json:"path"`
		StatementMap map[string]struct {
			Start struct{ Line int } `json:"start"`
			End   struct{ Line int } `json:"end"`
		} `json:"statementMap"`
		S map[string]int `json:"s"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	report := make(CoverageReport)
	for _, f := range doc {
		hits := make(map[int]int)
		for id, loc := range f.StatementMap {
			count := f.S[id]
			for line := loc.Start.Line; line <= loc.End.Line; line++ {
				if existing, ok := hits[line]; !ok || count > existing {
					hits[line] = count
				}
			}
		}
		report[f.Path] = LineCoverage{Hits: hits}
	}
	return report, nil
}

// parseLCOV parses the line-oriented LCOV "tracefile" format:
// SF:<path> / DA:<line>,<hits> / BRF/BRH / end_of_record.
func parseLCOV(data []byte) (CoverageReport, error) {
	report := make(CoverageReport)
	var currentPath string
	var current LineCoverage
	var brf, brh int

	flush := func() {
		if currentPath == "" {
			return
		}
		if brf > 0 {
			pct := float64(brh) / float64(brf) * 100
			current.BranchPercent = &pct
		}
		report[currentPath] = current
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "SF:"):
			flush()
			currentPath = strings.TrimPrefix(line, "SF:")
			current = LineCoverage{Hits: make(map[int]int)}
			brf, brh = 0, 0
		case strings.HasPrefix(line, "DA:"):
			parts := strings.Split(strings.TrimPrefix(line, "DA:"), ",")
			if len(parts) >= 2 {
				ln, _ := strconv.Atoi(parts[0])
				hits, _ := strconv.Atoi(parts[1])
				current.Hits[ln] = hits
			}
		case strings.HasPrefix(line, "BRF:"):
			brf, _ = strconv.Atoi(strings.TrimPrefix(line, "BRF:"))
		case strings.HasPrefix(line, "BRH:"):
			brh, _ = strconv.Atoi(strings.TrimPrefix(line, "BRH:"))
		case line == "end_of_record":
			flush()
			currentPath = ""
		}
	}
	return report, nil
}

// jacocoDoc and coberturaDoc are minimal XML shapes sufficient to recover
// per-line hit counts; both formats nest packages/classes/lines similarly.
type jacocoDoc struct {
	Packages []struct {
		Sourcefiles []struct {
			Name  string `xml:"name,attr"`
			Lines []struct {
				Nr int `xml:"nr,attr"`
				CI int `xml:"ci,attr"`
			} `xml:"line"`
		} `xml:"sourcefile"`
	} `xml:"package"`
}

func parseJaCoCo(data []byte) (CoverageReport, error) {
	var doc jacocoDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	report := make(CoverageReport)
	for _, pkg := range doc.Packages {
		for _, sf := range pkg.Sourcefiles {
			hits := make(map[int]int)
			for _, l := range sf.Lines {
				hits[l.Nr] = l.CI
			}
			report[sf.Name] = LineCoverage{Hits: hits}
		}
	}
	return report, nil
}

type coberturaDoc struct {
	Packages []struct {
		Classes []struct {
			Filename string `xml:"filename,attr"`
			Lines    struct {
				Line []struct {
					Number int `xml:"number,attr"`
					Hits   int `xml:"hits,attr"`
				} `xml:"line"`
			} `xml:"lines"`
		} `xml:"classes>class"`
	} `xml:"packages>package"`
}

func parseCobertura(data []byte) (CoverageReport, error) {
	var doc coberturaDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	report := make(CoverageReport)
	for _, pkg := range doc.Packages {
		for _, cls := range pkg.Classes {
			hits := make(map[int]int)
			for _, l := range cls.Lines.Line {
				hits[l.Number] = l.Hits
			}
			report[cls.Filename] = LineCoverage{Hits: hits}
		}
	}
	return report, nil
}

// CoverageExtractor computes per-entity coverage features from a loaded
// report (spec.md §4.3.6).
type CoverageExtractor struct {
	Report CoverageReport
}

func NewCoverageExtractor(report CoverageReport) *CoverageExtractor {
	return &CoverageExtractor{Report: report}
}

func (c *CoverageExtractor) Name() string { return "coverage" }

func (c *CoverageExtractor) Definitions() []entity.FeatureDefinition {
	return []entity.FeatureDefinition{
		{Name: "coverage_percentage", DataType: "float", Default: 0, HigherIsWorse: false},
		{Name: "uncovered_line_count", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "uncovered_block_count", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "branch_coverage_percentage", DataType: "float", Default: 0, HigherIsWorse: false},
		{Name: "coverage_priority_score", DataType: "float", Default: 0, HigherIsWorse: true},
	}
}

func (c *CoverageExtractor) Extract(e *entity.Entity, idx *entity.ParseIndex) (map[string]float64, []string, error) {
	if c.Report == nil {
		return map[string]float64{}, nil, nil
	}
	fileCov, ok := matchFile(c.Report, e.Location.Path)
	if !ok {
		return map[string]float64{}, nil, nil
	}

	covered, total := 0, 0
	uncoveredLines := make(map[int]bool)
	for line := e.Location.StartLine; line <= e.Location.EndLine; line++ {
		hits, tracked := fileCov.Hits[line]
		if !tracked {
			continue
		}
		total++
		if hits > 0 {
			covered++
		} else {
			uncoveredLines[line] = true
		}
	}
	if total == 0 {
		return map[string]float64{}, nil, nil
	}

	pct := float64(covered) / float64(total) * 100
	blocks := countUncoveredBlocks(uncoveredLines, e.Location.StartLine, e.Location.EndLine)

	importance := 1.0
	switch e.Kind {
	case entity.KindFunction, entity.KindMethod:
		importance = 1.5
	case entity.KindFile:
		importance = 0.5
	}
	priority := (1 - pct/100) * importance

	result := map[string]float64{
		"coverage_percentage":        pct,
		"uncovered_line_count":       float64(len(uncoveredLines)),
		"uncovered_block_count":      float64(blocks),
		"coverage_priority_score":    priority,
	}
	if fileCov.BranchPercent != nil {
		result["branch_coverage_percentage"] = *fileCov.BranchPercent
	}
	return result, nil, nil
}

func matchFile(report CoverageReport, path string) (LineCoverage, bool) {
	if cov, ok := report[path]; ok {
		return cov, true
	}
	for p, cov := range report {
		if strings.HasSuffix(path, p) || strings.HasSuffix(p, path) {
			return cov, true
		}
	}
	return LineCoverage{}, false
}

func countUncoveredBlocks(uncovered map[int]bool, start, end int) int {
	blocks := 0
	inBlock := false
	for line := start; line <= end; line++ {
		if uncovered[line] {
			if !inBlock {
				blocks++
				inBlock = true
			}
		} else {
			inBlock = false
		}
	}
	return blocks
}
