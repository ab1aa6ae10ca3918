package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/codescribe/internal/model"
	"github.com/phobologic/codescribe/internal/scan"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPrintReport(t *testing.T) {
	t.Parallel()

	units := []*model.SourceUnit{
		{Path: "a.py", Status: model.StatusDone},
		{Path: "b.py", Status: model.StatusFailed, Reason: "ProviderPoolExhausted"},
		{Path: "c.py", Status: model.StatusSkipped, Reason: "ParseError"},
	}

	var b strings.Builder
	printReport(&b, units)
	out := b.String()

	for _, want := range []string{"a.py", "done", "b.py", "ProviderPoolExhausted", "c.py", "ParseError"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteUnits(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}

	changed := &model.SourceUnit{Path: "pkg/a.py", Status: model.StatusDone, Raw: []byte("new a\n")}
	same := &model.SourceUnit{Path: "same.py", Status: model.StatusDone, Raw: []byte("same\n")}
	failed := &model.SourceUnit{Path: "failed.py", Status: model.StatusFailed, Raw: []byte("ignored\n")}

	originals := map[string][]byte{
		"pkg/a.py": []byte("old a\n"),
		"same.py":  []byte("same\n"),
	}

	if err := writeUnits(root, []*model.SourceUnit{changed, same, failed}, originals, testLogger); err != nil {
		t.Fatalf("writeUnits: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "pkg", "a.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new a\n" {
		t.Errorf("a.py = %q, want new contents", got)
	}

	if _, err := os.Stat(filepath.Join(root, "same.py")); !os.IsNotExist(err) {
		t.Error("unchanged unit must not be written")
	}
	if _, err := os.Stat(filepath.Join(root, "failed.py")); !os.IsNotExist(err) {
		t.Error("failed unit must not be written")
	}
}

func TestLoadUnits(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "a.py"), []byte("import b\nx = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.py"), []byte("y = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	units, err := loadUnits(root, scan.NewExcluder(nil), testLogger)
	if err != nil {
		t.Fatalf("loadUnits: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}
	if units[0].Path != "a.py" || units[1].Path != "b.py" {
		t.Errorf("paths = %s, %s", units[0].Path, units[1].Path)
	}
	if len(units[0].Deps) != 1 || units[0].Deps[0] != "b.py" {
		t.Errorf("a.py deps = %v, want [b.py]", units[0].Deps)
	}

	if _, err := loadUnits(t.TempDir(), nil, testLogger); err == nil {
		t.Error("expected an error for a tree with no source files")
	}
}
