package main

import (
	"os"

	"github.com/phobologic/codescribe/internal/events"
	"github.com/phobologic/codescribe/internal/orchestrate"
	"github.com/phobologic/codescribe/internal/scan"
)

// DocstringsCmd generates docstrings for a project and writes them back
// into the source files.
type DocstringsCmd struct {
	Path        string   `arg:"" help:"Project directory or git URL."`
	Description string   `short:"d" help:"Project description included in prompts."`
	Exclude     []string `short:"x" help:"Patterns of paths to exclude."`
	DryRun      bool     `help:"Generate without writing files back."`
}

func (c *DocstringsCmd) Run(app *appContext) error {
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

	originals := make(map[string][]byte, len(units))
	for _, u := range units {
		originals[u.Path] = u.Raw
	}

	sink := events.SlogSink{Logger: app.logger}
	orch := orchestrate.New(pool, sink, app.logger, orchestrate.Config{
		Description:    cfg.Description,
		AbortThreshold: cfg.Generation.AbortThreshold,
	})

	runErr := orch.Run(app.ctx, units)

	if !c.DryRun {
		if err := writeUnits(root, units, originals, app.logger); err != nil && runErr == nil {
			runErr = err
		}
	}

	printReport(os.Stdout, units)
	if runErr == nil {
		sink.Emit(events.Done{Message: "Docstring generation complete."})
	}
	return runErr
}
