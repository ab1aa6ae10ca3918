// Package summary synthesizes per-directory descriptions bottom-up: a
// post-order pass over the directory tree in which each directory's input
// is its own units' module summaries plus its children's already-produced
// summaries. The root directory's summary is the pipeline's final
// top-level output.
package summary

import (
	"context"
	"log/slog"
	"path"
	"sort"

	"github.com/phobologic/codescribe/internal/events"
	"github.com/phobologic/codescribe/internal/model"
	"github.com/phobologic/codescribe/internal/provider"
)

// FailedPlaceholder is the text recorded for a directory whose summary
// could not be generated. Traversal continues past it.
const FailedPlaceholder = "Summary generation failed for this directory."

// Generator is the slice of the provider pool the aggregator uses.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema provider.Schema) (any, error)
}

// Config carries run-scoped settings.
type Config struct {
	// Description is the user-supplied project description.
	Description string

	// ProjectName names the root directory in the root summary prompt.
	ProjectName string
}

// Aggregator produces DirectorySummaries.
type Aggregator struct {
	gen    Generator
	sink   events.Sink
	logger *slog.Logger
	cfg    Config
}

// New creates an aggregator. A nil sink discards events.
func New(gen Generator, sink events.Sink, logger *slog.Logger, cfg Config) *Aggregator {
	if sink == nil {
		sink = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{gen: gen, sink: sink, logger: logger, cfg: cfg}
}

// dirNode is one directory in the tree built from unit paths.
type dirNode struct {
	units    []*model.SourceUnit
	children []string
}

// Run walks the directory tree implied by the units' paths in post-order
// (children strictly before parents, via an explicit stack rather than
// recursion) and generates one summary per directory. It returns the root
// summary and all summaries in emission order. Per-directory failures are
// contained: the directory gets a placeholder and traversal continues.
func (a *Aggregator) Run(ctx context.Context, units []*model.SourceUnit) (*model.DirectorySummary, []*model.DirectorySummary, error) {
	tree := buildTree(units)

	a.sink.Emit(events.Phase{ID: "summaries", Name: "Generating Directory Summaries", Status: events.StatusInProgress})

	order := postOrder(tree)

	produced := make(map[string]*model.DirectorySummary, len(order))
	var all []*model.DirectorySummary

	for _, dir := range order {
		if err := ctx.Err(); err != nil {
			a.sink.Emit(events.Phase{ID: "summaries", Status: events.StatusError})
			return nil, all, err
		}

		node := tree[dir]
		subtaskID := dir
		displayName := dir
		if dir == "." {
			subtaskID = "root"
			displayName = "Project Root"
		}
		a.sink.Emit(events.Subtask{
			ID: subtaskID, ParentID: "summaries", ListID: "summary-dir-list",
			Name: "Directory: " + displayName, Status: events.StatusInProgress,
		})

		s := &model.DirectorySummary{
			Path:          dir,
			FileSummaries: fileSummaries(node.units),
			ChildPaths:    node.children,
		}

		prompt := a.buildPrompt(dir, s, produced)
		result, err := a.gen.Generate(ctx, prompt, provider.TextSchema{})
		if err != nil {
			if ctx.Err() != nil {
				a.sink.Emit(events.Phase{ID: "summaries", Status: events.StatusError})
				return nil, all, ctx.Err()
			}
			a.logger.Error("directory summary failed", "dir", dir, "error", err)
			s.Failed = true
			s.Text = FailedPlaceholder
			a.sink.Emit(events.Subtask{ID: subtaskID, ParentID: "summaries", Status: events.StatusError})
		} else {
			s.Text = result.(string)
			a.sink.Emit(events.Subtask{ID: subtaskID, ParentID: "summaries", Status: events.StatusSuccess})
		}

		produced[dir] = s
		all = append(all, s)
	}

	a.sink.Emit(events.Phase{ID: "summaries", Status: events.StatusSuccess})
	return produced["."], all, nil
}

// buildTree groups units by directory and links every ancestor chain up to
// the root so interior directories without units of their own still get a
// summary.
func buildTree(units []*model.SourceUnit) map[string]*dirNode {
	tree := map[string]*dirNode{".": {}}

	ensure := func(dir string) *dirNode {
		if n, ok := tree[dir]; ok {
			return n
		}
		n := &dirNode{}
		tree[dir] = n
		return n
	}

	for _, u := range units {
		dir := path.Dir(u.Path)
		ensure(dir).units = append(ensure(dir).units, u)

		for dir != "." {
			parent := path.Dir(dir)
			pn := ensure(parent)
			if !containsString(pn.children, dir) {
				pn.children = append(pn.children, dir)
			}
			dir = parent
		}
	}

	for _, n := range tree {
		sort.Strings(n.children)
		sort.Slice(n.units, func(i, j int) bool { return n.units[i].Path < n.units[j].Path })
	}
	return tree
}

// postOrder returns directories children-first using an explicit stack, so
// traversal depth is bounded on deep trees.
func postOrder(tree map[string]*dirNode) []string {
	type frame struct {
		dir      string
		expanded bool
	}

	var order []string
	stack := []frame{{dir: "."}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.expanded {
			order = append(order, f.dir)
			continue
		}
		stack = append(stack, frame{dir: f.dir, expanded: true})
		children := tree[f.dir].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{dir: children[i]})
		}
	}
	return order
}

// fileSummaries renders one line per unit: its module summary when one
// exists, otherwise its declared symbols as a fallback.
func fileSummaries(units []*model.SourceUnit) []string {
	var lines []string
	for _, u := range units {
		base := path.Base(u.Path)
		if doc := firstLine(u.ModuleDoc()); doc != "" {
			lines = append(lines, "`"+base+"`: "+doc)
			continue
		}
		if len(u.Symbols) > 0 {
			names := make([]string, 0, len(u.Symbols))
			for i := range u.Symbols {
				names = append(names, u.Symbols[i].Name)
			}
			lines = append(lines, "`"+base+"`: Contains definitions for: `"+joinStrings(names)+"`.")
			continue
		}
		lines = append(lines, "`"+base+"`: A Python source file.")
	}
	return lines
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

func joinStrings(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
