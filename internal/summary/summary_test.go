package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codescribe/internal/events"
	"github.com/phobologic/codescribe/internal/model"
	"github.com/phobologic/codescribe/internal/provider"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string, call int) (any, error)
}

func (g *fakeGen) Generate(_ context.Context, prompt string, _ provider.Schema) (any, error) {
	g.mu.Lock()
	call := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.fn(prompt, call)
}

func (g *fakeGen) seen() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func docUnit(path, doc string) *model.SourceUnit {
	u := &model.SourceUnit{
		Path:           path,
		Raw:            []byte("x = 1\n"),
		ModuleDocStart: -1,
		ModuleDocEnd:   -1,
	}
	if doc != "" {
		u.Payload = &model.DocPayload{ModuleDoc: doc}
	}
	return u
}

func summaryPaths(all []*model.DirectorySummary) []string {
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.Path
	}
	return out
}

func TestRunPostOrder(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{fn: func(_ string, call int) (any, error) {
		return "summary " + string(rune('0'+call)), nil
	}}
	units := []*model.SourceUnit{
		docUnit("top.py", "Top doc."),
		docUnit("pkg/a.py", "A doc."),
		docUnit("pkg/sub/b.py", "B doc."),
	}

	root, all, err := New(gen, nil, testLogger, Config{}).Run(context.Background(), units)
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg/sub", "pkg", "."}, summaryPaths(all),
		"children are summarized strictly before their parents")
	require.NotNil(t, root)
	assert.Equal(t, ".", root.Path)
	assert.False(t, root.Failed)
}

func TestRunChildSummariesFeedParents(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{fn: func(prompt string, _ int) (any, error) {
		if strings.Contains(prompt, "`pkg/sub`") && !strings.Contains(prompt, "SUBDIRECTORIES") {
			return "Inner helpers live here.", nil
		}
		return "Outer summary.", nil
	}}
	units := []*model.SourceUnit{
		docUnit("pkg/a.py", "A doc."),
		docUnit("pkg/sub/b.py", "B doc."),
	}

	_, _, err := New(gen, nil, testLogger, Config{}).Run(context.Background(), units)
	require.NoError(t, err)

	prompts := gen.seen()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[1], "Inner helpers live here.",
		"a parent's prompt carries its child's generated summary")
	assert.Contains(t, prompts[1], "`a.py`: A doc.")
}

func TestRunFailureIsContained(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{fn: func(prompt string, _ int) (any, error) {
		if strings.Contains(prompt, "`pkg`") && strings.Contains(prompt, "directory `pkg`") {
			return nil, errors.New("boom")
		}
		return "Fine.", nil
	}}
	units := []*model.SourceUnit{
		docUnit("pkg/a.py", "A doc."),
		docUnit("top.py", "Top doc."),
	}

	root, all, err := New(gen, nil, testLogger, Config{}).Run(context.Background(), units)
	require.NoError(t, err, "a per-directory failure must not fail the run")

	byPath := map[string]*model.DirectorySummary{}
	for _, s := range all {
		byPath[s.Path] = s
	}
	require.Contains(t, byPath, "pkg")
	assert.True(t, byPath["pkg"].Failed)
	assert.Equal(t, FailedPlaceholder, byPath["pkg"].Text)
	assert.False(t, root.Failed, "the root still summarizes from what it has")
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGen{fn: func(_ string, call int) (any, error) {
		cancel()
		return "done anyway", nil
	}}
	units := []*model.SourceUnit{
		docUnit("pkg/a.py", "A doc."),
		docUnit("top.py", "Top doc."),
	}

	_, all, err := New(gen, nil, testLogger, Config{}).Run(ctx, units)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(all), 2, "remaining directories are not dispatched after cancellation")
}

func TestRunEmitsSubtaskEvents(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{fn: func(string, int) (any, error) { return "ok", nil }}
	sink := &events.Collector{}
	units := []*model.SourceUnit{docUnit("a.py", "Doc.")}

	_, _, err := New(gen, sink, testLogger, Config{}).Run(context.Background(), units)
	require.NoError(t, err)

	var sawRoot bool
	for _, e := range sink.Events {
		if s, ok := e.(events.Subtask); ok && s.ID == "root" && s.Status == events.StatusSuccess {
			sawRoot = true
		}
	}
	assert.True(t, sawRoot)
}

func TestFileSummaries(t *testing.T) {
	t.Parallel()

	documented := docUnit("pkg/a.py", "Parses things.")

	withSource := &model.SourceUnit{
		Path:           "pkg/b.py",
		Raw:            []byte("\"\"\"From source.\"\"\"\nx = 1\n"),
		ModuleDocStart: 0,
		ModuleDocEnd:   len(`"""From source."""`),
	}

	undocumented := &model.SourceUnit{
		Path:           "pkg/c.py",
		Raw:            []byte("def f():\n    pass\n"),
		ModuleDocStart: -1,
		ModuleDocEnd:   -1,
		Symbols:        []model.Symbol{{Name: "f"}, {Name: "C"}},
	}

	lines := fileSummaries([]*model.SourceUnit{documented, withSource, undocumented})
	require.Len(t, lines, 3)
	assert.Equal(t, "`a.py`: Parses things.", lines[0])
	assert.Equal(t, "`b.py`: From source.", lines[1])
	assert.Equal(t, "`c.py`: Contains definitions for: `f, C`.", lines[2])
}

func TestBuildTreeLinksAncestors(t *testing.T) {
	t.Parallel()

	// A unit deep in the tree creates every intermediate directory.
	tree := buildTree([]*model.SourceUnit{docUnit("a/b/c/d.py", "")})

	require.Contains(t, tree, ".")
	require.Contains(t, tree, "a")
	require.Contains(t, tree, "a/b")
	require.Contains(t, tree, "a/b/c")
	assert.Equal(t, []string{"a"}, tree["."].children)
	assert.Equal(t, []string{"a/b"}, tree["a"].children)
	assert.Len(t, tree["a/b/c"].units, 1)
}
