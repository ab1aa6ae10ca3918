package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phobologic/codescribe/internal/events"
	"github.com/phobologic/codescribe/internal/orchestrate"
	"github.com/phobologic/codescribe/internal/scan"
	"github.com/phobologic/codescribe/internal/summary"
)

// ReadmesCmd generates a README.md overview for every directory, bottom-up,
// from the project's module docstrings. With --generate it runs docstring
// generation first so the overviews are built from fresh documentation.
type ReadmesCmd struct {
	Path        string   `arg:"" help:"Project directory or git URL."`
	Description string   `short:"d" help:"Project description included in prompts."`
	Exclude     []string `short:"x" help:"Patterns of paths to exclude."`
	Generate    bool     `short:"g" help:"Generate docstrings before summarizing."`
	DryRun      bool     `help:"Generate without writing files."`
}

func (c *ReadmesCmd) Run(app *appContext) error {
	cfg, err := loadRunConfig(app.logger)
	if err != nil {
		return err
	}
	if c.Description != "" {
		cfg.Description = c.Description
	}

	pool, err := buildPool(cfg, app.logger)
	if err != nil {
		return err
	}

	root, cleanup, err := scan.ProjectPath(app.ctx, c.Path)
	if err != nil {
		return err
	}
	defer cleanup()
	if scan.IsRemote(c.Path) && !c.DryRun {
		app.logger.Warn("project is a temporary checkout; written files are discarded at exit")
	}

	patterns := c.Exclude
	if cfg.Exclude != "" {
		patterns = append(patterns, cfg.Exclude)
	}
	units, err := loadUnits(root, scan.NewExcluder(patterns), app.logger)
	if err != nil {
		return err
	}

	sink := events.SlogSink{Logger: app.logger}

	if c.Generate {
		originals := make(map[string][]byte, len(units))
		for _, u := range units {
			originals[u.Path] = u.Raw
		}
		orch := orchestrate.New(pool, sink, app.logger, orchestrate.Config{
			Description:    cfg.Description,
			AbortThreshold: cfg.Generation.AbortThreshold,
		})
		if err := orch.Run(app.ctx, units); err != nil {
			return err
		}
		if !c.DryRun {
			if err := writeUnits(root, units, originals, app.logger); err != nil {
				return err
			}
		}
	}

	agg := summary.New(pool, sink, app.logger, summary.Config{
		Description: cfg.Description,
		ProjectName: filepath.Base(root),
	})
	rootSummary, all, err := agg.Run(app.ctx, units)
	if err != nil {
		return err
	}

	if !c.DryRun {
		written := 0
		for _, s := range all {
			if s.Failed {
				continue
			}
			dest := filepath.Join(root, filepath.FromSlash(s.Path), "README.md")
			if err := os.WriteFile(dest, []byte(s.Text+"\n"), 0o644); err != nil {
				app.logger.Error("write failed", "path", dest, "error", err)
				continue
			}
			written++
		}
		app.logger.Info("README files written", "count", written)
	}

	if rootSummary != nil && !rootSummary.Failed {
		fmt.Println(rootSummary.Text)
	}
	sink.Emit(events.Done{Message: "Directory summaries complete.", ArtifactRef: "README.md"})
	return nil
}
