// Package langadapter implements the parse index builder (spec.md §4.2):
// one Adapter per supported language, each walking its tree-sitter tree
// via a capture query and emitting entities, an import graph, and
// (optionally) a call graph.
//
// The per-language grammar wiring (tree_sitter_<lang>.Language() ->
// sitter.NewLanguage -> parser.SetLanguage) is lifted directly from the
// teacher's internal/parser/parser_language_setup.go. Rather than one
// hand-written adapter file per language duplicating that wiring ten
// times, a single data-driven adapter is parameterized by a per-language
// spec table (specs.go) — the node-type map spec.md §4.2 calls for.
package langadapter

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/graph"
	"github.com/valknut-dev/valknut/internal/treesitter"
	"github.com/valknut-dev/valknut/internal/vkerrors"
)

// ParsedImport is one import/use/require form found in a file, per
// spec.md §4.2, prior to resolution against the project's other files.
type ParsedImport struct {
	Module     string
	IsRelative bool
}

// Adapter is the per-language contract: advertise identity and parse
// individual files into entities plus raw (unresolved) imports.
type Adapter interface {
	Name() string
	Extensions() []string
	// ParseFile walks one file's syntax tree, emitting its File entity,
	// all nested entities (parent/child wired, source order preserved),
	// and the raw import list for later resolution.
	ParseFile(path string, source []byte) ([]*entity.Entity, []ParsedImport, error)
}

// Registry maps file extension to the adapter that handles it.
type Registry struct {
	byExt  map[string]Adapter
	byName map[string]Adapter
}

// NewRegistry builds a registry containing every adapter named in
// `languages` (spec.md's config `languages` list); unknown names are
// reported as a vkerrors.ConfigurationError, matching spec.md §7's
// "unknown language" fail-fast case.
func NewRegistry(languages []string) (*Registry, error) {
	r := &Registry{byExt: make(map[string]Adapter), byName: make(map[string]Adapter)}
	for _, name := range languages {
		spec, ok := specs[name]
		if !ok {
			return nil, vkerrors.NewConfiguration("languages", name, fmt.Errorf("no adapter registered for language %q", name))
		}
		a := newGenericAdapter(spec)
		r.byName[name] = a
		for _, ext := range spec.Extensions {
			r.byExt[ext] = a
		}
	}
	return r, nil
}

// ForExtension returns the adapter registered for a file extension, if any.
func (r *Registry) ForExtension(ext string) (Adapter, bool) {
	a, ok := r.byExt[strings.ToLower(ext)]
	return a, ok
}

// Extensions returns the union of every registered adapter's extensions.
func (r *Registry) Extensions() map[string]bool {
	out := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		out[ext] = true
	}
	return out
}

// genericAdapter implements Adapter by driving a tree-sitter grammar with
// a language spec's entity-capture query and node-kind map.
type genericAdapter struct {
	spec *LanguageSpec
}

func newGenericAdapter(spec *LanguageSpec) *genericAdapter {
	return &genericAdapter{spec: spec}
}

func (a *genericAdapter) Name() string         { return a.spec.Name }
func (a *genericAdapter) Extensions() []string { return a.spec.Extensions }

func (a *genericAdapter) ParseFile(path string, source []byte) ([]*entity.Entity, []ParsedImport, error) {
	lang := sitter.NewLanguage(a.spec.Language())
	tree, err := treesitter.Parse(lang, source)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	fileID := entity.ID(fmt.Sprintf("%s://%s::<file>", a.spec.Name, path))
	fileEntity := entity.NewEntity(fileID, path, entity.KindFile, entity.Location{
		Path: path, StartLine: 1, EndLine: treesitter.LineCount(source), StartCol: 0, EndCol: 0,
	}, a.spec.Name)
	fileEntity.Source = string(source)

	entities := []*entity.Entity{fileEntity}

	if a.spec.EntityQuery != "" {
		captures, err := treesitter.RunQuery(lang, tree, source, a.spec.EntityQuery)
		if err != nil {
			return entities, nil, err
		}
		entities = append(entities, a.buildEntities(path, source, fileEntity, captures)...)
	}

	imports := extractImports(source, a.spec)
	return entities, imports, nil
}

// buildEntities correlates a query's "<kind>.definition" and "<kind>.name"
// captures: each definition's own span becomes the entity's location, and
// the smallest name capture inside that span becomes its identifier.
func (a *genericAdapter) buildEntities(path string, source []byte, file *entity.Entity, captures []treesitter.Capture) []*entity.Entity {
	var defs []treesitter.Capture
	var names []treesitter.Capture
	for _, c := range captures {
		kindName, field, ok := strings.Cut(c.Name, ".")
		if !ok {
			continue
		}
		if _, known := a.spec.CaptureKinds[kindName]; !known {
			continue
		}
		switch field {
		case "definition":
			defs = append(defs, c)
		case "name":
			names = append(names, c)
		}
	}

	var out []*entity.Entity
	// stack of open entities by containing location, used to wire parents
	// by source-order nesting rather than recomputing containment O(n^2).
	type stackFrame struct {
		ent *entity.Entity
		loc entity.Location
	}
	stack := []stackFrame{{ent: file, loc: file.Location}}

	sortByStart(defs)

	for _, def := range defs {
		kindName, _, _ := strings.Cut(def.Name, ".")
		kind := a.spec.CaptureKinds[kindName]
		loc := entity.Location{Path: path, StartLine: def.StartLine, EndLine: def.EndLine, StartCol: def.StartCol, EndCol: def.EndCol}

		for len(stack) > 1 && !stack[len(stack)-1].loc.Contains(loc) {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].ent

		name := nameFor(def, names)
		qualified := name
		if parent.Kind != entity.KindFile {
			qualified = parent.Name + "." + name
		}

		id := entity.ID(fmt.Sprintf("%s://%s::%s", a.spec.Name, path, qualified))
		e := entity.NewEntity(id, qualified, kind, loc, a.spec.Name)
		e.Source = def.Text
		e.ParentID = parent.ID
		parent.ChildIDs = append(parent.ChildIDs, e.ID)

		out = append(out, e)
		stack = append(stack, stackFrame{ent: e, loc: loc})
	}

	return out
}

func nameFor(def treesitter.Capture, names []treesitter.Capture) string {
	best := ""
	bestSpan := -1
	for _, n := range names {
		if n.StartLine < def.StartLine || n.EndLine > def.EndLine {
			continue
		}
		if n.StartLine == def.StartLine && n.StartCol < def.StartCol {
			continue
		}
		span := n.EndLine - n.StartLine
		if bestSpan == -1 || span < bestSpan {
			best = n.Text
			bestSpan = span
		}
	}
	if best == "" {
		return "anonymous"
	}
	return best
}

func sortByStart(caps []treesitter.Capture) {
	for i := 1; i < len(caps); i++ {
		j := i
		for j > 0 && caps[j-1].StartLine*1_000_000+caps[j-1].StartCol > caps[j].StartLine*1_000_000+caps[j].StartCol {
			caps[j-1], caps[j] = caps[j], caps[j-1]
			j--
		}
	}
}

// BuildImportGraph resolves every file's raw import list into edges over
// a graph of file-entity ids, per spec.md §4.2. Unresolved imports are
// dropped silently.
func BuildImportGraph(files map[string][]ParsedImport, fileIDs map[string]entity.ID, spec *LanguageSpec) *graph.Graph {
	g := graph.New()
	for path, importerID := range fileIDs {
		g.AddNode(string(importerID))
		_ = path
	}
	for path, imports := range files {
		importerID, ok := fileIDs[path]
		if !ok {
			continue
		}
		for _, imp := range imports {
			target, ok := resolveImport(path, imp, fileIDs, spec)
			if !ok {
				continue
			}
			g.AddEdge(string(importerID), string(target))
		}
	}
	return g
}
