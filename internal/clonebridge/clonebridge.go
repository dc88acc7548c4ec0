// Package clonebridge decodes the external clone-detector's JSON output
// (spec.md §6's clone-group input schema), dropping members whose reported
// line ranges fail a sanity check, and separately provides an in-process
// token/line grouper (GroupInProcess) that builds clone groups from source
// text alone (spec.md §9's Open Question on unreliable echo-subsystem line
// ranges). The decoder does not call the grouper; the pipeline runs
// GroupInProcess whenever the echo detector is enabled.
//
// The external detector itself is an out-of-scope collaborator
// (spec.md's Non-goals) — this package only speaks its wire format and
// supplies an in-process alternative to it.
package clonebridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/valknut-dev/valknut/internal/extract"
)

// wireGroup mirrors spec.md §6's clone-group input schema exactly:
// {similarity: float, members: [{entity_id, path, lines: "A-B", similarity}]}.
type wireGroup struct {
	Similarity float64      `json:"similarity"`
	Members    []wireMember `json:"members"`
}

type wireMember struct {
	EntityID   string  `json:"entity_id"`
	Path       string  `json:"path"`
	Lines      string  `json:"lines"`
	Similarity float64 `json:"similarity"`
}

// DecodeExternal parses the detector's JSON groups and validates every
// member's line range against the corresponding file's known length
// (fileLines). Members whose range is malformed, out of bounds, or
// overlaps a sibling member in the same group are dropped rather than
// failing the whole group, since a single bad member is a narrower
// failure than discarding otherwise-good duplication evidence.
func DecodeExternal(r io.Reader, fileLines map[string]int) ([]extract.CloneGroup, error) {
	var wire []wireGroup
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("clonebridge: decode external clone groups: %w", err)
	}

	groups := make([]extract.CloneGroup, 0, len(wire))
	for _, wg := range wire {
		members := make([]extract.CloneMember, 0, len(wg.Members))
		for _, wm := range wg.Members {
			start, end, ok := extract.ParseLines(wm.Lines)
			if !ok || start <= 0 || end < start {
				continue
			}
			if total, known := fileLines[wm.Path]; known && end > total {
				continue
			}
			members = append(members, extract.CloneMember{
				EntityID:   wm.EntityID,
				Path:       wm.Path,
				LineStart:  start,
				LineEnd:    end,
				Similarity: wm.Similarity,
			})
		}
		members = dropOverlappingSiblings(members)
		if len(members) < 2 {
			continue
		}
		groups = append(groups, extract.CloneGroup{Similarity: wg.Similarity, Members: members})
	}
	return groups, nil
}

// dropOverlappingSiblings removes members whose line range overlaps an
// earlier member in the same path — a detector reporting the same span
// twice, or ranges that drifted into each other, is the failure mode
// spec.md §9 calls out; a clean clone group has disjoint member spans.
func dropOverlappingSiblings(members []extract.CloneMember) []extract.CloneMember {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Path != members[j].Path {
			return members[i].Path < members[j].Path
		}
		return members[i].LineStart < members[j].LineStart
	})
	out := make([]extract.CloneMember, 0, len(members))
	lastEnd := make(map[string]int)
	for _, m := range members {
		if end, ok := lastEnd[m.Path]; ok && m.LineStart <= end {
			continue
		}
		out = append(out, m)
		lastEnd[m.Path] = m.LineEnd
	}
	return out
}

// FallbackConfig controls the in-process token/line grouper.
type FallbackConfig struct {
	WindowLines    int     // default 6
	MinSimilarity  float64 // default 0.7
}

// SourceFile is one file's content, pre-split into lines, for the
// in-process grouper.
type SourceFile struct {
	Path  string
	Lines []string
}

// GroupInProcess builds clone groups directly from source text rather than
// trusting an external detector's line ranges at all: it slides a
// fixed-size window over every file's lines, hashes each window's
// normalized token stream with xxhash (the same fast-hash the rest of the
// pack uses for content-equality checks), and groups windows that collide
// exactly (same hash, i.e. identical normalized tokens) or whose Jaccard
// token overlap clears MinSimilarity.
func GroupInProcess(files []SourceFile, cfg FallbackConfig) []extract.CloneGroup {
	if cfg.WindowLines == 0 {
		cfg.WindowLines = 6
	}
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = 0.7
	}

	type window struct {
		path       string
		start, end int
		tokens     []string
		hash       uint64
	}
	var windows []window
	for _, f := range files {
		for start := 0; start+cfg.WindowLines <= len(f.Lines); start++ {
			end := start + cfg.WindowLines
			tokens := tokenize(strings.Join(f.Lines[start:end], "\n"))
			if len(tokens) == 0 {
				continue
			}
			windows = append(windows, window{
				path:   f.Path,
				start:  start + 1,
				end:    end,
				tokens: tokens,
				hash:   xxhash.Sum64String(strings.Join(tokens, " ")),
			})
		}
	}

	assigned := make([]bool, len(windows))
	var groups []extract.CloneGroup
	for i := range windows {
		if assigned[i] {
			continue
		}
		var members []extract.CloneMember
		bestSim := 1.0
		for j := i + 1; j < len(windows); j++ {
			if assigned[j] || windows[i].path == windows[j].path && overlaps(windows[i].start, windows[i].end, windows[j].start, windows[j].end) {
				continue
			}
			sim := jaccard(windows[i].tokens, windows[j].tokens)
			if windows[i].hash == windows[j].hash || sim >= cfg.MinSimilarity {
				if len(members) == 0 {
					members = append(members, extract.CloneMember{
						Path:      windows[i].path,
						LineStart: windows[i].start,
						LineEnd:   windows[i].end,
					})
					assigned[i] = true
				}
				members = append(members, extract.CloneMember{
					Path:      windows[j].path,
					LineStart: windows[j].start,
					LineEnd:   windows[j].end,
				})
				assigned[j] = true
				if sim < bestSim {
					bestSim = sim
				}
			}
		}
		if len(members) >= 2 {
			groups = append(groups, extract.CloneGroup{Similarity: bestSim, Members: members})
		}
	}
	return groups
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && bStart <= aEnd
}

func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		case strings.ContainsRune("(){}[];,.", r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ReadSourceFiles loads a file's content and splits it into lines for the
// in-process grouper.
func ReadSourceFiles(path string, r io.Reader) (SourceFile, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return SourceFile{}, fmt.Errorf("clonebridge: read %s: %w", path, err)
	}
	return SourceFile{Path: path, Lines: lines}, nil
}
