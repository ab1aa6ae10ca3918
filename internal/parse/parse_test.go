package parse

import (
	"io"
	"log/slog"
	"testing"

	"github.com/phobologic/codescribe/internal/lang"
	"github.com/phobologic/codescribe/internal/model"
)

func setup(t *testing.T) func(source, path string) (*model.SourceUnit, []lang.ImportRef) {
	t.Helper()
	l := lang.Languages["python"]
	if l == nil {
		t.Fatal("python not registered")
	}
	q, err := l.GetTagQuery()
	if err != nil {
		t.Fatalf("GetTagQuery: %v", err)
	}
	return func(source, path string) (*model.SourceUnit, []lang.ImportRef) {
		t.Helper()
		p := l.NewParser()
		u, refs, err := Unit(l, p, q, []byte(source), path)
		if err != nil {
			t.Fatalf("Unit(%s): %v", path, err)
		}
		return u, refs
	}
}

func findSymbol(t *testing.T, u *model.SourceUnit, name string) *model.Symbol {
	t.Helper()
	for i := range u.Symbols {
		if u.Symbols[i].Name == name {
			return &u.Symbols[i]
		}
	}
	t.Fatalf("symbol %q not found in %v", name, u.Symbols)
	return nil
}

func TestUnitFunction(t *testing.T) {
	t.Parallel()
	parse := setup(t)

	source := "def hello(name: str) -> None:\n    pass\n"
	u, _ := parse(source, "hello.py")

	if len(u.Symbols) != 1 {
		t.Fatalf("symbols = %v, want 1", u.Symbols)
	}
	s := u.Symbols[0]
	if s.Name != "hello" || s.Kind != model.Function {
		t.Errorf("symbol = %q/%q, want hello/function", s.Name, s.Kind)
	}
	if s.Line != 1 {
		t.Errorf("line = %d, want 1", s.Line)
	}
	if s.Signature != "hello(name: str) -> None" {
		t.Errorf("sig = %q", s.Signature)
	}
	if got := source[s.BodyStart : s.BodyStart+4]; got != "pass" {
		t.Errorf("BodyStart points at %q, want pass", got)
	}
	if s.Indent != "    " {
		t.Errorf("indent = %q, want four spaces", s.Indent)
	}
	if s.DocStart != -1 {
		t.Errorf("DocStart = %d, want -1", s.DocStart)
	}
}

func TestUnitClassAndMethod(t *testing.T) {
	t.Parallel()
	parse := setup(t)

	source := `class MyClass(Base):
    def my_method(self, x: int) -> str:
        return str(x)

    @property
    def val(self):
        return self._v
`
	u, _ := parse(source, "cls.py")

	cls := findSymbol(t, u, "MyClass")
	if cls.Kind != model.Class {
		t.Errorf("kind = %q, want class", cls.Kind)
	}
	if cls.Signature != "MyClass(Base)" {
		t.Errorf("sig = %q", cls.Signature)
	}

	m := findSymbol(t, u, "MyClass.my_method")
	if m.Kind != model.Method {
		t.Errorf("kind = %q, want method", m.Kind)
	}
	if m.Signature != "my_method(self, x: int) -> str" {
		t.Errorf("sig = %q", m.Signature)
	}
	if m.Indent != "        " {
		t.Errorf("indent = %q, want eight spaces", m.Indent)
	}

	// Decorated methods are still qualified by their class.
	findSymbol(t, u, "MyClass.val")
}

func TestUnitExistingDocstrings(t *testing.T) {
	t.Parallel()
	parse := setup(t)

	source := `"""Module doc."""


def f():
    """Function doc."""
    return 1
`
	u, _ := parse(source, "doc.py")

	if u.ModuleDocStart != 0 {
		t.Errorf("ModuleDocStart = %d, want 0", u.ModuleDocStart)
	}
	if got := source[u.ModuleDocStart:u.ModuleDocEnd]; got != `"""Module doc."""` {
		t.Errorf("module doc span = %q", got)
	}

	f := findSymbol(t, u, "f")
	if f.DocStart < 0 {
		t.Fatalf("DocStart = %d, want a span", f.DocStart)
	}
	if got := source[f.DocStart:f.DocEnd]; got != `"""Function doc."""` {
		t.Errorf("doc span = %q", got)
	}
}

func TestUnitModuleDocInsertAfterShebang(t *testing.T) {
	t.Parallel()
	parse := setup(t)

	source := "#!/usr/bin/env python\nx = 1\n"
	u, _ := parse(source, "script.py")

	if u.ModuleDocStart != -1 {
		t.Errorf("ModuleDocStart = %d, want -1", u.ModuleDocStart)
	}
	if got := source[u.ModuleDocAt:]; got != "x = 1\n" {
		t.Errorf("insertion point splits at %q", got)
	}
}

func TestUnitSkipsNestedFunctions(t *testing.T) {
	t.Parallel()
	parse := setup(t)

	source := `def outer():
    def inner():
        pass
    return inner
`
	u, _ := parse(source, "nested.py")

	if len(u.Symbols) != 1 || u.Symbols[0].Name != "outer" {
		t.Errorf("symbols = %v, want only outer", u.Symbols)
	}
}

func TestUnitInvalidSyntax(t *testing.T) {
	t.Parallel()
	l := lang.Languages["python"]
	q, err := l.GetTagQuery()
	if err != nil {
		t.Fatalf("GetTagQuery: %v", err)
	}

	_, _, err = Unit(l, l.NewParser(), q, []byte("def broken(:\n"), "broken.py")
	if err == nil {
		t.Fatal("expected an error for unparseable source")
	}
}

func TestUnitImportRefs(t *testing.T) {
	t.Parallel()
	parse := setup(t)

	source := `import os
import a.b
import c as d
from pkg.mod import x
from ..util import helper
from . import sibling
`
	_, refs := parse(source, "imports.py")

	want := []lang.ImportRef{
		{Module: "os"},
		{Module: "a.b"},
		{Module: "c"},
		{Module: "pkg.mod"},
		{Module: "util", Dots: 2},
		{Module: "sibling", Dots: 1},
	}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for i, w := range want {
		if refs[i] != w {
			t.Errorf("refs[%d] = %v, want %v", i, refs[i], w)
		}
	}
}

func TestResolveImport(t *testing.T) {
	t.Parallel()

	unitSet := map[string]struct{}{
		"top.py":               {},
		"pkg/mod.py":           {},
		"pkg/main.py":          {},
		"pkg/util/__init__.py": {},
	}

	tests := []struct {
		name string
		from string
		ref  lang.ImportRef
		want string
	}{
		{"absolute module", "pkg/main.py", lang.ImportRef{Module: "pkg.mod"}, "pkg/mod.py"},
		{"absolute package", "pkg/main.py", lang.ImportRef{Module: "pkg.util"}, "pkg/util/__init__.py"},
		{"relative sibling", "pkg/main.py", lang.ImportRef{Module: "mod", Dots: 1}, "pkg/mod.py"},
		{"relative package", "pkg/main.py", lang.ImportRef{Module: "util", Dots: 1}, "pkg/util/__init__.py"},
		{"relative parent", "pkg/main.py", lang.ImportRef{Module: "top", Dots: 2}, "top.py"},
		{"external", "pkg/main.py", lang.ImportRef{Module: "os"}, ""},
		{"dots escape root", "pkg/main.py", lang.ImportRef{Module: "x", Dots: 3}, ""},
		{"bare dots", "pkg/main.py", lang.ImportRef{Dots: 1}, ""},
	}
	for _, tt := range tests {
		if got := ResolveImport(tt.from, tt.ref, unitSet); got != tt.want {
			t.Errorf("%s: ResolveImport = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestUnitsResolvesDeps(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	files := []File{
		{Path: "a.py", Language: "python", Source: []byte("def a_fn():\n    pass\n")},
		{Path: "b.py", Language: "python", Source: []byte("import a\n\n\ndef b_fn():\n    return a.a_fn()\n")},
	}
	units := Units(files, logger)

	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}
	if units[0].Path != "a.py" || units[1].Path != "b.py" {
		t.Fatalf("input order not preserved: %s, %s", units[0].Path, units[1].Path)
	}
	if len(units[1].Deps) != 1 || units[1].Deps[0] != "a.py" {
		t.Errorf("b.py deps = %v, want [a.py]", units[1].Deps)
	}
	if len(units[0].Deps) != 0 {
		t.Errorf("a.py deps = %v, want none", units[0].Deps)
	}
}

func TestUnitsMarksUnparseableSkipped(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	files := []File{
		{Path: "ok.py", Language: "python", Source: []byte("x = 1\n")},
		{Path: "bad.py", Language: "python", Source: []byte("def broken(:\n")},
	}
	units := Units(files, logger)

	if len(units) != 2 {
		t.Fatalf("units = %d, want 2 (skipped units still reported)", len(units))
	}
	bad := units[1]
	if bad.Status != model.StatusSkipped {
		t.Errorf("status = %q, want skipped", bad.Status)
	}
	if bad.Reason != "ParseError" {
		t.Errorf("reason = %q, want ParseError", bad.Reason)
	}
	if units[0].Status != model.StatusPending {
		t.Errorf("ok.py status = %q, want pending", units[0].Status)
	}
}

func TestLineIndent(t *testing.T) {
	t.Parallel()

	source := []byte("def f():\n    pass\nx = 1  # trailing\n")
	tests := []struct {
		offset int
		want   string
	}{
		{13, "    "}, // start of "pass"
		{0, ""},      // start of file
		{18, ""},     // start of "x = 1"
	}
	for _, tt := range tests {
		if got := lineIndent(source, tt.offset); got != tt.want {
			t.Errorf("lineIndent(%d) = %q, want %q", tt.offset, got, tt.want)
		}
	}
}
