package extract

import (
	"strconv"
	"strings"

	"github.com/valknut-dev/valknut/internal/entity"
)

// CloneGroup is the pipeline's in-memory clone group: a similarity score
// and a list of members with explicit start/end lines. internal/clonebridge
// decodes the external detector's wire format (spec.md §6.3) into it.
type CloneGroup struct {
	Similarity float64       `json:"similarity"`
	Members    []CloneMember `json:"members"`
}

// CloneMember is one participant in a clone group.
type CloneMember struct {
	EntityID   string  `json:"entity_id"`
	Path       string  `json:"path"`
	LineStart  int     `json:"line_start"`
	LineEnd    int     `json:"line_end"`
	Similarity float64 `json:"similarity"`
}

// ParseLines parses a "A-B" line-range string into start/end ints.
func ParseLines(lines string) (int, int, bool) {
	parts := strings.SplitN(lines, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return a, b, true
}

// CloneMassExtractor computes clone_mass/clone_groups_count/
// max_clone_similarity/clone_locations_count (spec.md §4.3.3) from an
// externally produced clone-group list.
type CloneMassExtractor struct {
	Groups []CloneGroup
}

func NewCloneMassExtractor(groups []CloneGroup) *CloneMassExtractor {
	return &CloneMassExtractor{Groups: groups}
}

func (c *CloneMassExtractor) Name() string { return "clone_mass" }

func (c *CloneMassExtractor) Definitions() []entity.FeatureDefinition {
	return []entity.FeatureDefinition{
		{Name: "clone_mass", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "clone_groups_count", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "max_clone_similarity", DataType: "float", Default: 0, HigherIsWorse: true},
		{Name: "clone_locations_count", DataType: "float", Default: 0, HigherIsWorse: true},
	}
}

func (c *CloneMassExtractor) Extract(e *entity.Entity, idx *entity.ParseIndex) (map[string]float64, []string, error) {
	loc := e.Location
	entityLOC := loc.EndLine - loc.StartLine + 1
	if entityLOC <= 0 {
		entityLOC = 1
	}

	var overlapLines, groupsCount, locationsCount int
	var maxSim float64

	for _, group := range c.Groups {
		contains := false
		for _, m := range group.Members {
			if m.Path != loc.Path {
				continue
			}
			ov := intersect(loc.StartLine, loc.EndLine, m.LineStart, m.LineEnd)
			if ov > 0 {
				contains = true
				overlapLines += ov
			}
		}
		if contains {
			groupsCount++
			if group.Similarity > maxSim {
				maxSim = group.Similarity
			}
			locationsCount += len(group.Members) - 1
		}
	}

	mass := float64(overlapLines) / float64(entityLOC)
	if mass > 1.0 {
		mass = 1.0
	}

	return map[string]float64{
		"clone_mass":            mass,
		"clone_groups_count":    float64(groupsCount),
		"max_clone_similarity":  maxSim,
		"clone_locations_count": float64(locationsCount),
	}, nil, nil
}

func intersect(aStart, aEnd, bStart, bEnd int) int {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end < start {
		return 0
	}
	return end - start + 1
}
