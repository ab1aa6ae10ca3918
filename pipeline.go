package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phobologic/codescribe/internal/config"
	"github.com/phobologic/codescribe/internal/model"
	"github.com/phobologic/codescribe/internal/parse"
	"github.com/phobologic/codescribe/internal/provider"
	"github.com/phobologic/codescribe/internal/scan"
)

// loadRunConfig resolves the run configuration: the env file first (so the
// config file can reference its variables), then the YAML file when given,
// otherwise credentials straight from the environment.
func loadRunConfig(logger *slog.Logger) (*config.Config, error) {
	if err := config.LoadEnvFile(cli.EnvFile); err != nil {
		logger.Warn("env file not loaded", "path", cli.EnvFile, "error", err)
	}

	if cli.Config != "" {
		cfg, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		if len(cfg.Credentials) == 0 {
			cfg.Credentials = config.FromEnv().Credentials
		}
		return cfg, nil
	}
	return config.FromEnv(), nil
}

// buildPool constructs the provider pool from the configuration. An empty
// pool is an error: nothing can be generated without credentials.
func buildPool(cfg *config.Config, logger *slog.Logger) (*provider.Pool, error) {
	pool := provider.New(cfg.PoolCredentials(),
		provider.WithCooldown(cfg.Generation.Cooldown()),
		provider.WithRetryLimit(cfg.Generation.RetryLimit),
		provider.WithLogger(logger),
	)
	if pool.Size() == 0 {
		return nil, errors.New("no usable credentials: set GROQ_API_KEY_1 or GEMINI_API_KEY_1, or list credentials in the config file")
	}
	return pool, nil
}

// loadUnits scans the project tree and parses every documentable file.
func loadUnits(root string, excluder *scan.Excluder, logger *slog.Logger) ([]*model.SourceUnit, error) {
	entries, err := scan.Files(root, excluder)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no documentable source files found under %s", root)
	}

	files := make([]parse.File, 0, len(entries))
	for _, e := range entries {
		src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(e.Path)))
		if err != nil {
			logger.Warn("could not read file, skipping", "path", e.Path, "error", err)
			continue
		}
		files = append(files, parse.File{Path: e.Path, Language: e.Language, Source: src})
	}

	return parse.Units(files, logger), nil
}

// writeUnits writes each successfully documented unit back to disk, skipping
// units whose bytes did not change.
func writeUnits(root string, units []*model.SourceUnit, originals map[string][]byte, logger *slog.Logger) error {
	var firstErr error
	written := 0
	for _, u := range units {
		if u.Status != model.StatusDone {
			continue
		}
		if orig, ok := originals[u.Path]; ok && string(orig) == string(u.Raw) {
			continue
		}
		dest := filepath.Join(root, filepath.FromSlash(u.Path))
		if err := os.WriteFile(dest, u.Raw, 0o644); err != nil {
			logger.Error("write failed", "path", u.Path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}
	logger.Info("source files updated", "count", written)
	return firstErr
}

// printReport writes the per-unit outcome table.
func printReport(w io.Writer, units []*model.SourceUnit) {
	fmt.Fprintf(w, "\n%-50s %-12s %s\n", "FILE", "STATUS", "REASON")
	for _, r := range model.Report(units) {
		fmt.Fprintf(w, "%-50s %-12s %s\n", r.Path, r.Status, r.Reason)
	}
}
