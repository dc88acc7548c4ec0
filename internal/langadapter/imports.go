package langadapter

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/valknut-dev/valknut/internal/entity"
)

var importRegexCache sync.Map

func compiledImportPattern(pattern string) *regexp.Regexp {
	if v, ok := importRegexCache.Load(pattern); ok {
		return v.(*regexp.Regexp)
	}
	re := regexp.MustCompile(pattern)
	importRegexCache.Store(pattern, re)
	return re
}

// extractImports scans source line-by-line for the language's import
// form (spec.md §4.2: "regex is acceptable"). Each match's module text is
// classified relative vs. absolute using a simple lexical rule: forms
// starting with "." are relative (for go and cpp, only "./" and "../").
func extractImports(source []byte, spec *LanguageSpec) []ParsedImport {
	if spec.ImportPattern == "" {
		return nil
	}
	re := compiledImportPattern(spec.ImportPattern)
	var out []ParsedImport
	for _, line := range strings.Split(string(source), "\n") {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		module := firstNonEmpty(m[1:])
		if module == "" {
			continue
		}
		out = append(out, ParsedImport{
			Module:     module,
			IsRelative: isRelativeForm(module, spec.Name),
		})
	}
	return out
}

func firstNonEmpty(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}

func isRelativeForm(module, lang string) bool {
	switch lang {
	case "python":
		return strings.HasPrefix(module, ".")
	case "javascript", "typescript":
		return strings.HasPrefix(module, ".")
	case "go", "cpp":
		return strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../")
	default:
		return strings.HasPrefix(module, ".")
	}
}

// resolveImport resolves one ParsedImport into a file-entity id, per
// spec.md §4.2: relative forms are joined to the importing file's
// directory and looked up among the known files with each of the
// language's extensions, then with its index files; absolute forms
// search by suffix match against every known file path (approximating
// "search known project roots" without needing a manifest parser per
// language); stdlib-prefixed modules are dropped.
func resolveImport(fromPath string, imp ParsedImport, fileIDs map[string]entity.ID, spec *LanguageSpec) (entity.ID, bool) {
	for _, prefix := range spec.StdlibPrefixes {
		if strings.HasPrefix(imp.Module, prefix) {
			return "", false
		}
	}

	if imp.IsRelative {
		base := filepath.Dir(fromPath)
		rel := strings.ReplaceAll(imp.Module, ".", string(filepath.Separator))
		if strings.HasPrefix(imp.Module, ".") && !strings.Contains(imp.Module, "/") && spec.Name == "python" {
			rel = strings.TrimLeft(imp.Module, ".")
			rel = strings.ReplaceAll(rel, ".", string(filepath.Separator))
		}
		candidate := filepath.Clean(filepath.Join(base, rel))

		for _, ext := range spec.Extensions {
			if id, ok := fileIDs[candidate+ext]; ok {
				return id, true
			}
		}
		for _, idx := range spec.IndexFiles {
			if id, ok := fileIDs[filepath.Join(candidate, idx)]; ok {
				return id, true
			}
		}
		if id, ok := fileIDs[candidate]; ok {
			return id, true
		}
		return "", false
	}

	// Absolute form: search known files by suffix match on the module
	// path translated to a filesystem path fragment.
	fragment := strings.ReplaceAll(imp.Module, ".", string(filepath.Separator))
	fragment = strings.Trim(fragment, string(filepath.Separator))
	for path, id := range fileIDs {
		for _, ext := range spec.Extensions {
			if strings.HasSuffix(path, fragment+ext) {
				return id, true
			}
		}
		for _, idx := range spec.IndexFiles {
			if strings.HasSuffix(path, filepath.Join(fragment, idx)) {
				return id, true
			}
		}
	}
	return "", false
}
