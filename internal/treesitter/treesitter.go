// Package treesitter wraps github.com/tree-sitter/go-tree-sitter with the
// parse-once, query-captures walking pattern the teacher's parser package
// uses (internal/parser/parser_language_setup.go,
// internal/parser/parser_parse_methods.go): NewParser, SetLanguage, run a
// capture query over the tree, and read node text/position via
// StartPosition/EndPosition rather than walking every node by hand.
package treesitter

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Capture is one query-match capture: a node tagged by a capture name
// (e.g. "function.name") along with the byte range and line/column span
// it spans in the source.
type Capture struct {
	Name      string
	Node      *sitter.Node
	StartLine int // 1-based
	StartCol  int // 0-based
	EndLine   int
	EndCol    int
	Text      string
}

// Parse parses source with the given grammar language and returns the
// resulting tree. Callers must call tree.Close() when done.
func Parse(lang *sitter.Language, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, err
	}
	return parser.Parse(source, nil), nil
}

// RunQuery compiles queryText against lang and executes it over tree's
// root node, returning every capture across every match in document order.
func RunQuery(lang *sitter.Language, tree *sitter.Tree, source []byte, queryText string) ([]Capture, error) {
	query, err := sitter.NewQuery(lang, queryText)
	if err != nil {
		return nil, err
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(query, tree.RootNode(), source)
	var out []Capture
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			node := c.Node
			name := query.CaptureNames()[c.Index]
			start := node.StartPosition()
			end := node.EndPosition()
			out = append(out, Capture{
				Name:      name,
				Node:      &node,
				StartLine: int(start.Row) + 1,
				StartCol:  int(start.Column),
				EndLine:   int(end.Row) + 1,
				EndCol:    int(end.Column),
				Text:      string(source[node.StartByte():node.EndByte()]),
			})
		}
	}
	return out, nil
}

// LineCount counts newline-delimited lines in source, used by extractors
// for entity LOC when a dedicated metric isn't otherwise available.
func LineCount(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := 1
	for _, b := range source {
		if b == '\n' {
			n++
		}
	}
	return n
}
