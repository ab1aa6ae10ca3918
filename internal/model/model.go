// Package model defines core data structures for codescribe.
package model

// SymbolKind indicates the syntactic kind of a declared symbol.
type SymbolKind string

const (
	Class    SymbolKind = "class"
	Function SymbolKind = "function"
	Method   SymbolKind = "method"
)

// Status is the lifecycle state of a source unit within one run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Symbol is a declared class, function, or method with byte-offset spans
// into the unit's raw source. Spans are stable as long as the source is not
// rewritten, which is what allows span-preserving edits.
type Symbol struct {
	Name      string // qualified: "Class.method" for methods
	Kind      SymbolKind
	Line      int // 1-based line of the name
	Signature string

	DefStart  int    // definition node span
	DefEnd    int    //
	BodyStart int    // byte offset of the first statement in the body
	DocStart  int    // existing docstring string node span, or -1
	DocEnd    int    //
	Indent    string // indentation of the body's statements
}

// SourceUnit is one file's text, parsed symbol set, resolved in-project
// dependencies, and generation status. Units are created by the scanner and
// mutated in place by the orchestrator and updater; no two pipeline steps
// touch the same unit concurrently.
type SourceUnit struct {
	Path    string // repo-relative, slash-separated
	Raw     []byte
	Symbols []Symbol
	Deps    []string // unit paths this unit imports, sorted, unique

	// Module docstring span (-1 when absent) and the offset at which a new
	// module docstring is inserted (after a shebang line, if any).
	ModuleDocStart int
	ModuleDocEnd   int
	ModuleDocAt    int

	Status  Status
	Reason  string
	Payload *DocPayload
}

// ModuleDoc returns the unit's current module docstring text: the generated
// one when a payload is committed, otherwise the one already present in the
// source, otherwise "".
func (u *SourceUnit) ModuleDoc() string {
	if u.Payload != nil && u.Payload.ModuleDoc != "" {
		return u.Payload.ModuleDoc
	}
	if u.ModuleDocStart >= 0 && u.ModuleDocEnd <= len(u.Raw) {
		return unquoteDocstring(string(u.Raw[u.ModuleDocStart:u.ModuleDocEnd]))
	}
	return ""
}

// DocPayload is the structured per-symbol documentation returned by a
// provider for one unit.
type DocPayload struct {
	ModuleDoc string
	Symbols   map[string]string // qualified symbol name -> docstring text
}

// DirectorySummary is the synthesized description of one directory, built
// bottom-up. Immutable once emitted by the aggregator.
type DirectorySummary struct {
	Path          string // repo-relative, "." for the root
	FileSummaries []string
	ChildPaths    []string
	Text          string
	Failed        bool
}

// UnitReport is one row of the per-unit status report.
type UnitReport struct {
	Path   string
	Status Status
	Reason string
}

// Report collects the per-unit outcomes of a run, in generation order.
func Report(units []*SourceUnit) []UnitReport {
	out := make([]UnitReport, 0, len(units))
	for _, u := range units {
		out = append(out, UnitReport{Path: u.Path, Status: u.Status, Reason: u.Reason})
	}
	return out
}

// unquoteDocstring strips triple or single quote delimiters and any string
// prefix (r, b, u) from a Python string literal.
func unquoteDocstring(lit string) string {
	for len(lit) > 0 {
		switch lit[0] {
		case 'r', 'b', 'u', 'R', 'B', 'U', 'f', 'F':
			lit = lit[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(lit) >= 2*len(q) && lit[:len(q)] == q && lit[len(lit)-len(q):] == q {
			return lit[len(q) : len(lit)-len(q)]
		}
	}
	return lit
}
