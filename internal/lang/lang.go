// Package lang provides a language registry mapping file extensions to
// tree-sitter languages, their embedded tag queries, and the language-specific
// hooks the pipeline needs (symbol qualification, signatures, import targets,
// docstring placement).
package lang

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codescribe/internal/model"
)

//go:embed queries/*.scm
var queryFS embed.FS

var whitespaceRe = regexp.MustCompile(`\s+`)

// ImportRef is one import reference extracted from a source file: a dotted
// module path plus the number of leading relative-import dots (0 for
// absolute imports).
type ImportRef struct {
	Module string
	Dots   int
}

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
	queryOnce  sync.Once
	query      *sitter.Query
	queryErr   error

	// FindMethodClass returns the enclosing class name if a @definition.function
	// is actually a method. Returns "" if not a method.
	FindMethodClass func(node *sitter.Node, source []byte) string

	// InsideFunction reports whether a definition node is nested inside a
	// function body. Nested definitions are not documented.
	InsideFunction func(node *sitter.Node) bool

	// ExtractSignature returns a signature string for a definition node.
	ExtractSignature func(node *sitter.Node, kind model.SymbolKind, source []byte) string

	// ImportTargets extracts module references from a @reference.import node.
	ImportTargets func(node *sitter.Node, source []byte) []ImportRef

	// DocstringSpan returns the [start, end) byte span of the docstring
	// string literal that opens a body block, or (-1, -1) when absent.
	DocstringSpan func(body *sitter.Node) (int, int)

	// ModuleDocInsertAt returns the offset at which a new module-level
	// docstring should be inserted (after a shebang/encoding comment).
	ModuleDocInsertAt func(source []byte) int
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// GetTagQuery returns the compiled tree-sitter query (safe to share across goroutines).
func (l *Language) GetTagQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.Name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
