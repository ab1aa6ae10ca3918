// Package scan finds documentable source files in a project tree and, when
// the project is given as a git URL, checks it out into a temporary
// directory first.
package scan

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/codescribe/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to project root, slash-separated
	Language string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Excluder decides whether a project-relative path is excluded from the run.
// Patterns are treated as regular expressions; a pattern that does not
// compile falls back to substring matching. Paths with a dot-prefixed
// component are always excluded.
type Excluder struct {
	regexps  []*regexp.Regexp
	literals []string
}

// NewExcluder compiles the given exclusion patterns.
func NewExcluder(patterns []string) *Excluder {
	e := &Excluder{}
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			e.regexps = append(e.regexps, re)
		} else {
			e.literals = append(e.literals, p)
		}
	}
	return e
}

// Match reports whether rel (slash-separated, project-relative) is excluded.
func (e *Excluder) Match(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part != "." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	if e == nil {
		return false
	}
	for _, re := range e.regexps {
		if re.MatchString(rel) {
			return true
		}
	}
	for _, lit := range e.literals {
		if strings.Contains(rel, lit) {
			return true
		}
	}
	return false
}

// Files discovers documentable source files under root, honoring .gitignore
// and the exclusion predicate. Results are sorted by path.
func Files(root string, exclude *Excluder) ([]FileEntry, error) {
	gi := loadGitignore(root)

	var results []FileEntry

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if exclude.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if exclude.Match(rel) {
			return nil
		}

		ext := filepath.Ext(name)
		langName := lang.ForExtension(ext)
		if langName == "" {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
