// Package gofastjs provides a fast-path complexity scan for plain ES5
// JavaScript, using github.com/t14raptor/go-fast's AST parser instead of
// tree-sitter. Grounded on the teacher's own dual-analyzer strategy
// (internal/analysis/javascript_gofast_analyzer.go): go-fAST is tried
// first for its speed, and on any error the complexity extractor
// (internal/extract) falls back to its own regex line scan — go-fAST does
// not support ES6 modules or TypeScript syntax, so failure here is
// expected and not logged as a warning.
package gofastjs

import (
	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"
)

// FunctionComplexity is one function/method's fast-path complexity
// reading, keyed by its declared name (empty for anonymous functions).
type FunctionComplexity struct {
	Name       string
	Cyclomatic int
	MaxNesting int
	ParamCount int
}

// Scan parses source with go-fAST and returns a fast-path complexity
// reading per function declared at top level, inside top-level blocks or
// if/for/while bodies, or as a class method; functions declared inside
// another function's body are not reported. Returns an error when the
// source uses syntax go-fAST can't parse (ES6 modules, TypeScript); the
// complexity extractor then uses its regex line scan instead.
func Scan(source string) ([]FunctionComplexity, error) {
	program, err := parser.ParseFile(source)
	if err != nil {
		return nil, err
	}

	var out []FunctionComplexity
	v := &scanner{}
	for _, stmt := range program.Body {
		v.visitStmt(stmt.Stmt, &out)
	}
	return out, nil
}

type scanner struct{}

func (s *scanner) visitStmt(stmt ast.Stmt, out *[]FunctionComplexity) {
	if stmt == nil {
		return
	}
	switch n := stmt.(type) {
	case *ast.FunctionDeclaration:
		if n.Function != nil {
			name := ""
			if n.Function.Name != nil {
				name = n.Function.Name.Name
			}
			*out = append(*out, s.measureFunction(name, n.Function.Parameters, n.Function.Body))
		}
	case *ast.ClassDeclaration:
		if n.Class != nil {
			for _, el := range n.Class.Body {
				s.visitClassElement(el.Element, out)
			}
		}
	case *ast.BlockStatement:
		for _, inner := range n.List {
			s.visitStmt(inner.Stmt, out)
		}
	case *ast.IfStatement:
		s.visitStmt(stmtOf(n.Consequent), out)
		s.visitStmt(stmtOf(n.Alternate), out)
	case *ast.ForStatement:
		s.visitStmt(stmtOf(n.Body), out)
	case *ast.WhileStatement:
		s.visitStmt(stmtOf(n.Body), out)
	}
}

func (s *scanner) visitClassElement(el ast.ClassElement, out *[]FunctionComplexity) {
	method, ok := el.(*ast.MethodDefinition)
	if !ok || method.Function == nil || method.Function.Function == nil {
		return
	}
	name := ""
	if method.Key != nil {
		if id, ok := method.Key.(*ast.Identifier); ok {
			name = id.Name
		}
	}
	*out = append(*out, s.measureFunction(name, method.Function.Function.Parameters, method.Function.Function.Body))
}

func (s *scanner) measureFunction(name string, params *ast.ParameterList, body *ast.BlockStatement) FunctionComplexity {
	paramCount := 0
	if params != nil {
		paramCount = len(params.List)
	}
	cyclomatic, maxNesting := 1, 0
	if body != nil {
		cyclomatic, maxNesting = walkComplexity(body, 0)
	}
	return FunctionComplexity{Name: name, Cyclomatic: cyclomatic, MaxNesting: maxNesting, ParamCount: paramCount}
}

// walkComplexity counts decision points and tracks nesting depth over a
// go-fAST statement subtree.
func walkComplexity(stmt ast.Stmt, depth int) (cyclomatic, maxNesting int) {
	if stmt == nil {
		return 0, depth
	}
	maxNesting = depth
	switch n := stmt.(type) {
	case *ast.BlockStatement:
		for _, inner := range n.List {
			c, m := walkComplexity(inner.Stmt, depth)
			cyclomatic += c
			if m > maxNesting {
				maxNesting = m
			}
		}
	case *ast.IfStatement:
		cyclomatic++
		c, m := walkComplexity(stmtOf(n.Consequent), depth+1)
		cyclomatic += c
		maxNesting = maxOf(maxNesting, m)
		if n.Alternate != nil {
			c, m := walkComplexity(stmtOf(n.Alternate), depth+1)
			cyclomatic += c
			maxNesting = maxOf(maxNesting, m)
		}
	case *ast.ForStatement:
		cyclomatic++
		c, m := walkComplexity(stmtOf(n.Body), depth+1)
		cyclomatic += c
		maxNesting = maxOf(maxNesting, m)
	case *ast.WhileStatement:
		cyclomatic++
		c, m := walkComplexity(stmtOf(n.Body), depth+1)
		cyclomatic += c
		maxNesting = maxOf(maxNesting, m)
	case *ast.TryStatement:
		cyclomatic++
		if n.Body != nil {
			c, m := walkComplexity(n.Body, depth+1)
			cyclomatic += c
			maxNesting = maxOf(maxNesting, m)
		}
	case *ast.SwitchStatement:
		cyclomatic += len(n.Body)
	}
	return cyclomatic, maxNesting
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// stmtOf unwraps go-fAST's StmtOrExpr-style wrapper types into a plain
// ast.Stmt, returning nil for expression-bodied constructs this scan
// doesn't descend into.
func stmtOf(v interface{}) ast.Stmt {
	switch s := v.(type) {
	case ast.Stmt:
		return s
	case *ast.Statement:
		if s != nil {
			return s.Stmt
		}
	}
	return nil
}
