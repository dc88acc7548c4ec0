package langadapter

import (
	"unsafe"

	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"

	"github.com/valknut-dev/valknut/internal/entity"
)

// LanguageSpec is the per-language node-type map spec.md §4.2 calls for:
// grammar binding, file extensions, the entity-capture query, and the
// import-resolution rules (regex form, relative/absolute resolution,
// stdlib prefixes to discard).
type LanguageSpec struct {
	Name         string
	Extensions   []string
	Language     func() unsafe.Pointer
	CaptureKinds map[string]entity.Kind
	EntityQuery  string

	ImportPattern string // regex with one capturing group: the module/path text
	IndexFiles    []string
	StdlibPrefixes []string
}

var specs = map[string]*LanguageSpec{
	"go": {
		Name:       "go",
		Extensions: []string{".go"},
		Language:   func() unsafe.Pointer { return tree_sitter_go.Language() },
		CaptureKinds: map[string]entity.Kind{
			"function": entity.KindFunction,
			"method":   entity.KindMethod,
			"struct":   entity.KindStruct,
			"interface": entity.KindInterface,
		},
		EntityQuery: `
(function_declaration name: (identifier) @function.name) @function.definition
(method_declaration name: (field_identifier) @method.name) @method.definition
(type_spec name: (type_identifier) @struct.name type: (struct_type)) @struct.definition
(type_spec name: (type_identifier) @interface.name type: (interface_type)) @interface.definition
`,
		ImportPattern:  `"([^"]+)"`,
		StdlibPrefixes: []string{}, // no prefix filter: Go imports are resolved by suffix match only
	},
	"python": {
		Name:       "python",
		Extensions: []string{".py"},
		Language:   func() unsafe.Pointer { return tree_sitter_python.Language() },
		CaptureKinds: map[string]entity.Kind{
			"class":    entity.KindClass,
			"function": entity.KindFunction,
		},
		EntityQuery: `
(class_definition name: (identifier) @class.name) @class.definition
(function_definition name: (identifier) @function.name) @function.definition
`,
		ImportPattern: `^\s*(?:from\s+([\w\.]+)\s+import|import\s+([\w\.]+))`,
		IndexFiles:    []string{"__init__.py"},
		StdlibPrefixes: []string{
			"os", "sys", "re", "json", "typing", "collections", "itertools",
			"functools", "abc", "dataclasses", "pathlib", "math", "io",
		},
	},
	"javascript": {
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Language:   func() unsafe.Pointer { return tree_sitter_javascript.Language() },
		CaptureKinds: map[string]entity.Kind{
			"class":    entity.KindClass,
			"function": entity.KindFunction,
			"method":   entity.KindMethod,
		},
		EntityQuery: `
(class_declaration name: (identifier) @class.name) @class.definition
(function_declaration name: (identifier) @function.name) @function.definition
(method_definition name: (property_identifier) @method.name) @method.definition
`,
		ImportPattern: `from\s+["']([^"']+)["']|require\(\s*["']([^"']+)["']\s*\)`,
		IndexFiles:    []string{"index.js", "index.mjs"},
	},
	"typescript": {
		Name:       "typescript",
		Extensions: []string{".ts", ".tsx"},
		Language:   func() unsafe.Pointer { return tree_sitter_typescript.LanguageTypescript() },
		CaptureKinds: map[string]entity.Kind{
			"class":     entity.KindClass,
			"interface": entity.KindInterface,
			"function":  entity.KindFunction,
			"method":    entity.KindMethod,
		},
		EntityQuery: `
(class_declaration name: (type_identifier) @class.name) @class.definition
(interface_declaration name: (type_identifier) @interface.name) @interface.definition
(function_declaration name: (identifier) @function.name) @function.definition
(method_definition name: (property_identifier) @method.name) @method.definition
`,
		ImportPattern: `from\s+["']([^"']+)["']`,
		IndexFiles:    []string{"index.ts", "index.tsx"},
	},
	"java": {
		Name:       "java",
		Extensions: []string{".java"},
		Language:   func() unsafe.Pointer { return tree_sitter_java.Language() },
		CaptureKinds: map[string]entity.Kind{
			"class":     entity.KindClass,
			"interface": entity.KindInterface,
			"enum":      entity.KindEnum,
			"method":    entity.KindMethod,
		},
		EntityQuery: `
(class_declaration name: (identifier) @class.name) @class.definition
(interface_declaration name: (identifier) @interface.name) @interface.definition
(enum_declaration name: (identifier) @enum.name) @enum.definition
(method_declaration name: (identifier) @method.name) @method.definition
`,
		ImportPattern:  `^\s*import\s+(?:static\s+)?([\w\.\*]+)\s*;`,
		StdlibPrefixes: []string{"java.", "javax."},
	},
	"rust": {
		Name:       "rust",
		Extensions: []string{".rs"},
		Language:   func() unsafe.Pointer { return tree_sitter_rust.Language() },
		CaptureKinds: map[string]entity.Kind{
			"struct":   entity.KindStruct,
			"enum":     entity.KindEnum,
			"trait":    entity.KindTrait,
			"function": entity.KindFunction,
		},
		EntityQuery: `
(struct_item name: (type_identifier) @struct.name) @struct.definition
(enum_item name: (type_identifier) @enum.name) @enum.definition
(trait_item name: (type_identifier) @trait.name) @trait.definition
(function_item name: (identifier) @function.name) @function.definition
`,
		ImportPattern:  `^\s*use\s+([\w:]+)`,
		StdlibPrefixes: []string{"std::", "core::", "alloc::"},
	},
	"cpp": {
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".h", ".hh"},
		Language:   func() unsafe.Pointer { return tree_sitter_cpp.Language() },
		CaptureKinds: map[string]entity.Kind{
			"class":    entity.KindClass,
			"struct":   entity.KindStruct,
			"function": entity.KindFunction,
		},
		EntityQuery: `
(class_specifier name: (type_identifier) @class.name) @class.definition
(struct_specifier name: (type_identifier) @struct.name) @struct.definition
(function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function.definition
`,
		ImportPattern:  `^\s*#include\s+[<"]([^>"]+)[>"]`,
		StdlibPrefixes: []string{"std", "bits/"},
	},
	"csharp": {
		Name:       "csharp",
		Extensions: []string{".cs"},
		Language:   func() unsafe.Pointer { return tree_sitter_csharp.Language() },
		CaptureKinds: map[string]entity.Kind{
			"class":     entity.KindClass,
			"interface": entity.KindInterface,
			"struct":    entity.KindStruct,
			"method":    entity.KindMethod,
		},
		EntityQuery: `
(class_declaration name: (identifier) @class.name) @class.definition
(interface_declaration name: (identifier) @interface.name) @interface.definition
(struct_declaration name: (identifier) @struct.name) @struct.definition
(method_declaration name: (identifier) @method.name) @method.definition
`,
		ImportPattern:  `^\s*using\s+([\w\.]+)\s*;`,
		StdlibPrefixes: []string{"System"},
	},
	"php": {
		Name:       "php",
		Extensions: []string{".php"},
		Language:   func() unsafe.Pointer { return tree_sitter_php.LanguagePHP() },
		CaptureKinds: map[string]entity.Kind{
			"class":     entity.KindClass,
			"interface": entity.KindInterface,
			"function":  entity.KindFunction,
			"method":    entity.KindMethod,
		},
		EntityQuery: `
(class_declaration name: (name) @class.name) @class.definition
(interface_declaration name: (name) @interface.name) @interface.definition
(function_definition name: (name) @function.name) @function.definition
(method_declaration name: (name) @method.name) @method.definition
`,
		ImportPattern: `^\s*(?:require|require_once|include|include_once)\s*\(?\s*['"]([^'"]+)['"]`,
	},
	"zig": {
		Name:       "zig",
		Extensions: []string{".zig"},
		Language:   func() unsafe.Pointer { return tree_sitter_zig.Language() },
		CaptureKinds: map[string]entity.Kind{
			"function": entity.KindFunction,
		},
		EntityQuery: `
(FnProto name: (IDENTIFIER) @function.name) @function.definition
`,
		ImportPattern:  `@import\(\s*"([^"]+)"\s*\)`,
		StdlibPrefixes: []string{"std"},
	},
}

// SpecFor looks up a language's LanguageSpec by name, returning nil if no
// adapter is registered for it.
func SpecFor(name string) *LanguageSpec {
	return specs[name]
}
