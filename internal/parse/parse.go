// Package parse builds SourceUnits from raw file text using tree-sitter:
// declared symbols with byte-offset spans, existing docstring spans, and
// in-project import references resolved to unit paths.
package parse

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codescribe/internal/lang"
	"github.com/phobologic/codescribe/internal/model"
)

// ErrInvalidSyntax is returned when a file cannot be parsed into a usable
// syntax tree. The unit is skipped; no write will ever happen for it.
var ErrInvalidSyntax = errors.New("invalid syntax")

// File is one scanned input file with its contents.
type File struct {
	Path     string // repo-relative, slash-separated
	Language string
	Source   []byte
}

// Unit parses a single file and extracts its declared symbols and import
// references. The parser must be created for the file's language.
func Unit(l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte, filePath string) (*model.SourceUnit, []lang.ImportRef, error) {
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, nil, ErrInvalidSyntax
	}

	unit := &model.SourceUnit{
		Path:   filePath,
		Raw:    source,
		Status: model.StatusPending,
	}
	unit.ModuleDocStart, unit.ModuleDocEnd = l.DocstringSpan(root)
	unit.ModuleDocAt = l.ModuleDocInsertAt(source)

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var refs []lang.ImportRef

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode, defNode *sitter.Node
		var captureName string

		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			switch cname {
			case "name":
				nameNode = c.Node
			case "definition.class", "definition.function", "reference.import":
				captureName = cname
				defNode = c.Node
			}
		}
		if captureName == "" || defNode == nil {
			continue
		}

		if captureName == "reference.import" {
			refs = append(refs, l.ImportTargets(defNode, source)...)
			continue
		}

		if nameNode == nil || l.InsideFunction(defNode) {
			continue
		}

		kind := model.Function
		if captureName == "definition.class" {
			kind = model.Class
		}

		name := lang.NodeText(nameNode, source)
		if kind == model.Function {
			if className := l.FindMethodClass(defNode, source); className != "" {
				kind = model.Method
				name = className + "." + name
			}
		}

		body := defNode.ChildByFieldName("body")
		if body == nil {
			continue
		}
		bodyStart := int(body.StartByte())
		docStart, docEnd := l.DocstringSpan(body)

		unit.Symbols = append(unit.Symbols, model.Symbol{
			Name:      name,
			Kind:      kind,
			Line:      int(nameNode.StartPoint().Row) + 1,
			Signature: l.ExtractSignature(defNode, kind, source),
			DefStart:  int(defNode.StartByte()),
			DefEnd:    int(defNode.EndByte()),
			BodyStart: bodyStart,
			DocStart:  docStart,
			DocEnd:    docEnd,
			Indent:    lineIndent(source, bodyStart),
		})
	}

	sort.SliceStable(unit.Symbols, func(i, j int) bool {
		return unit.Symbols[i].DefStart < unit.Symbols[j].DefStart
	})

	return unit, refs, nil
}

// Units parses all files concurrently and resolves import references to
// in-project dependency edges. Files that fail to parse still produce a
// unit, marked skipped, so they appear in the status report. The returned
// slice preserves the input order.
func Units(files []File, logger *slog.Logger) []*model.SourceUnit {
	type result struct {
		index int
		unit  *model.SourceUnit
		refs  []lang.ImportRef
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parsers.
			parsers := make(map[string]*sitter.Parser)

			for idx := range work {
				f := files[idx]
				l := lang.Languages[f.Language]
				if l == nil {
					continue
				}
				q, err := l.GetTagQuery()
				if err != nil {
					logger.Warn("query compile failed", "language", f.Language, "error", err)
					continue
				}
				p, ok := parsers[f.Language]
				if !ok {
					p = l.NewParser()
					parsers[f.Language] = p
				}

				unit, refs, err := Unit(l, p, q, f.Source, f.Path)
				if err != nil {
					logger.Warn("could not parse file, skipping", "path", f.Path, "error", err)
					unit = &model.SourceUnit{
						Path:           f.Path,
						Raw:            f.Source,
						Status:         model.StatusSkipped,
						Reason:         "ParseError",
						ModuleDocStart: -1,
						ModuleDocEnd:   -1,
					}
					refs = nil
				}
				results <- result{index: idx, unit: unit, refs: refs}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	indexed := make([]*model.SourceUnit, len(files))
	refsByIndex := make([][]lang.ImportRef, len(files))
	for r := range results {
		indexed[r.index] = r.unit
		refsByIndex[r.index] = r.refs
	}

	var units []*model.SourceUnit
	unitSet := make(map[string]struct{})
	for _, u := range indexed {
		if u == nil {
			continue
		}
		units = append(units, u)
		unitSet[u.Path] = struct{}{}
	}

	for i, u := range indexed {
		if u == nil || u.Status == model.StatusSkipped {
			continue
		}
		u.Deps = resolveDeps(u.Path, refsByIndex[i], unitSet)
	}

	return units
}

// resolveDeps maps import references to unit paths present in the project.
// External and unresolvable imports contribute no edge.
func resolveDeps(unitPath string, refs []lang.ImportRef, unitSet map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var deps []string
	for _, ref := range refs {
		target := ResolveImport(unitPath, ref, unitSet)
		if target == "" || target == unitPath {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		deps = append(deps, target)
	}
	sort.Strings(deps)
	return deps
}

// ResolveImport resolves one import reference against the set of project
// unit paths. Relative imports walk up from the importing file's directory
// (one level per dot beyond the first); absolute imports start at the
// project root. A module resolves to either "<path>.py" or
// "<path>/__init__.py". Returns "" when the import is not in-project.
func ResolveImport(unitPath string, ref lang.ImportRef, unitSet map[string]struct{}) string {
	var base string
	if ref.Dots > 0 {
		base = path.Dir(unitPath)
		for d := 0; d < ref.Dots-1; d++ {
			if base == "." {
				return ""
			}
			base = path.Dir(base)
		}
		if base == "." {
			base = ""
		}
	}

	parts := []string{}
	if base != "" {
		parts = append(parts, base)
	}
	if ref.Module != "" {
		parts = append(parts, strings.Split(ref.Module, ".")...)
	}
	if len(parts) == 0 {
		return ""
	}
	modulePath := path.Join(parts...)

	if candidate := modulePath + ".py"; contains(unitSet, candidate) {
		return candidate
	}
	if candidate := path.Join(modulePath, "__init__.py"); contains(unitSet, candidate) {
		return candidate
	}
	return ""
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// lineIndent returns the whitespace prefix of the line on which offset sits.
// Returns "" when anything other than whitespace precedes the offset on that
// line (e.g. a body on the same line as its def).
func lineIndent(source []byte, offset int) string {
	if offset < 0 || offset > len(source) {
		return ""
	}
	start := offset
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	prefix := source[start:offset]
	for _, b := range prefix {
		if b != ' ' && b != '\t' {
			return ""
		}
	}
	return string(prefix)
}
