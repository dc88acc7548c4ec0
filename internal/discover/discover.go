// Package discover implements the discovery stage (spec.md §4.1): turning
// a list of root paths into a deduplicated, ordered list of absolute file
// paths eligible for parsing.
//
// Git-aware enumeration uses go-git (adopted from the rest of the example
// pack, not the teacher itself — the teacher indexes a single working
// directory and never needed repository discovery). The filesystem
// fallback and its early-pruning blacklist are adapted from the teacher's
// project-root/binary-artifact detection (internal/indexing,
// internal/config in the teacher tree).
package discover

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/valknut-dev/valknut/internal/vkerrors"
	"github.com/valknut-dev/valknut/internal/vklog"
)

// Root describes one discovery root (vkconfig.RootConfig without the
// config-package import, to keep discover independent of vkconfig).
type Root struct {
	Path    string
	Include []string
	Exclude []string
}

// pruneBlacklist mirrors the teacher's build-artifact/vendored-directory
// exclusion list, applied during filesystem-walk pruning regardless of
// the caller's own exclude globs.
var pruneBlacklist = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "vendor": true, "target": true,
	"dist": true, "build": true, "out": true,
	".venv": true, "venv": true, "__pycache__": true, ".tox": true,
	".cache": true, ".next": true, ".nuxt": true,
	"bin": true, "obj": true,
}

// Discover enumerates files across all roots. extensions is the union of
// file extensions advertised by the enabled language adapters (with the
// leading dot, e.g. ".go"). Returns the ordered, deduplicated path list
// plus any per-root warnings (unreadable roots are skipped, not fatal).
func Discover(roots []Root, extensions map[string]bool) ([]string, []*vkerrors.StageError) {
	var (
		result   []string
		seen     = make(map[string]bool)
		warnings []*vkerrors.StageError
	)

	for _, root := range roots {
		abs, err := filepath.Abs(root.Path)
		if err != nil {
			warnings = append(warnings, vkerrors.New(vkerrors.StageDiscovery, "resolve_root", err).WithFile(root.Path))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			warnings = append(warnings, vkerrors.New(vkerrors.StageDiscovery, "stat_root", err).WithFile(abs))
			continue
		}

		files, ignoreMatcher, err := enumerateRoot(abs)
		if err != nil {
			vklog.Warn("discover", "git enumeration failed for %s, falling back to walk: %v", abs, err)
			files, err = walkRoot(abs, root)
			if err != nil {
				warnings = append(warnings, vkerrors.New(vkerrors.StageDiscovery, "walk_root", err).WithFile(abs))
				continue
			}
		}

		for _, f := range files {
			if !passesFilters(f, abs, root, extensions, ignoreMatcher) {
				continue
			}
			if seen[f] {
				continue
			}
			seen[f] = true
			result = append(result, f)
		}
	}

	return result, warnings
}

// enumerateRoot attempts git-based enumeration: tracked files plus
// non-ignored untracked files, located via the nearest ancestor repository.
// Returns an error (not fatal) when no repository is found, signaling the
// caller to fall back to a filesystem walk.
func enumerateRoot(root string) ([]string, gitignore.Matcher, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, err
	}
	repoRoot := wt.Filesystem.Root()

	patterns, _ := gitignore.ReadPatterns(wt.Filesystem, nil)
	matcher := gitignore.NewMatcher(patterns)

	seen := make(map[string]bool)
	var out []string

	// Tracked files: walk HEAD's tree.
	if head, err := repo.Head(); err == nil {
		if commit, err := repo.CommitObject(head.Hash()); err == nil {
			if tree, err := commit.Tree(); err == nil {
				_ = tree.Files().ForEach(func(f *object.File) error {
					p := filepath.Join(repoRoot, f.Name)
					if !seen[p] {
						seen[p] = true
						out = append(out, p)
					}
					return nil
				})
			}
		}
	}

	// Untracked-but-not-ignored files, from worktree status.
	status, err := wt.Status()
	if err == nil {
		for path, st := range status {
			if st.Worktree != git.Untracked {
				continue
			}
			p := filepath.Join(repoRoot, path)
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}

	sort.Strings(out)
	return out, matcher, nil
}

func walkRoot(root string, cfg Root) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // swallow individual I/O errors, file/dir skipped
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if rel != "." && (pruneBlacklist[name] || matchesAny(cfg.Exclude, rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

func passesFilters(path, root string, cfg Root, extensions map[string]bool, ignore gitignore.Matcher) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !extensions[ext] {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if matchesAny(cfg.Exclude, rel) {
		return false
	}
	if ignore != nil {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if ignore.Match(parts, false) {
			return false
		}
	}
	if len(cfg.Include) == 0 {
		return true
	}
	return matchesAny(cfg.Include, rel)
}

func matchesAny(globs []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if strings.HasPrefix(rel, strings.TrimSuffix(g, "/**")+"/") {
			return true
		}
	}
	return false
}
