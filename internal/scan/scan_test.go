package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func entryPaths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestFilesDiscovery(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "pkg/b.py", "y = 2\n")
	writeFile(t, root, "pkg/__pycache__/b.cpython-311.pyc", "")
	writeFile(t, root, "pkg/__pycache__/c.py", "")
	writeFile(t, root, ".hidden/d.py", "")
	writeFile(t, root, "notes.txt", "not source\n")
	writeFile(t, root, "venv/lib/e.py", "")

	entries, err := Files(root, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	want := []string{"a.py", "pkg/b.py"}
	got := entryPaths(entries)
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries = %v, want %v (sorted)", got, want)
		}
	}
	if entries[0].Language != "python" {
		t.Errorf("language = %q, want python", entries[0].Language)
	}
}

func TestFilesHonorsGitignore(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeFile(t, root, "kept.py", "")
	writeFile(t, root, "generated.py", "")
	writeFile(t, root, ".gitignore", "generated.py\n")

	entries, err := Files(root, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	got := entryPaths(entries)
	if len(got) != 1 || got[0] != "kept.py" {
		t.Errorf("entries = %v, want [kept.py]", got)
	}
}

func TestFilesHonorsExcluder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeFile(t, root, "a.py", "")
	writeFile(t, root, "tests/test_a.py", "")
	writeFile(t, root, "pkg/b.py", "")

	entries, err := Files(root, NewExcluder([]string{`^tests/`}))
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	got := entryPaths(entries)
	want := []string{"a.py", "pkg/b.py"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("entries = %v, want %v", got, want)
	}
}

func TestExcluderMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		patterns []string
		rel      string
		want     bool
	}{
		{"regex match", []string{`_test\.py$`}, "pkg/a_test.py", true},
		{"regex miss", []string{`_test\.py$`}, "pkg/a.py", false},
		{"invalid regex falls back to substring", []string{"[broken"}, "dir/[broken/x.py", true},
		{"dot component", nil, ".venv/x.py", true},
		{"nested dot component", nil, "pkg/.cache/x.py", true},
		{"plain path", nil, "pkg/x.py", false},
	}
	for _, tt := range tests {
		e := NewExcluder(tt.patterns)
		if got := e.Match(tt.rel); got != tt.want {
			t.Errorf("%s: Match(%q) = %v, want %v", tt.name, tt.rel, got, tt.want)
		}
	}
}

func TestExcluderNilSafe(t *testing.T) {
	t.Parallel()

	var e *Excluder
	if e.Match("pkg/x.py") {
		t.Error("nil excluder must not match plain paths")
	}
	if !e.Match(".git/config") {
		t.Error("nil excluder still rejects dot components")
	}
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"https://github.com/user/repo.git", true},
		{"http://example.com/repo", true},
		{"git@github.com:user/repo.git", true},
		{"/home/user/project", false},
		{"./relative", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsRemote(tt.in); got != tt.want {
			t.Errorf("IsRemote(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProjectPathLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got, cleanup, err := ProjectPath(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProjectPath: %v", err)
	}
	defer cleanup()
	if got != dir {
		t.Errorf("path = %q, want %q", got, dir)
	}

	if _, _, err := ProjectPath(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
