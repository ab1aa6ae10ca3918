// Package orchestrate drives documentation generation in dependency order:
// it assembles per-unit context from already-committed dependency
// summaries, calls the provider pool, reconciles the returned payload
// against the unit's declared symbols, and hands the result to the source
// updater. A single unit's failure never aborts the run; only sustained
// pool exhaustion does.
package orchestrate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phobologic/codescribe/internal/events"
	"github.com/phobologic/codescribe/internal/graph"
	"github.com/phobologic/codescribe/internal/model"
	"github.com/phobologic/codescribe/internal/provider"
	"github.com/phobologic/codescribe/internal/update"
)

// DefaultAbortThreshold is the number of consecutive pool-exhaustion
// failures after which the run is aborted.
const DefaultAbortThreshold = 5

// ErrAborted indicates the run was stopped because the provider pool was
// exhausted for too many units in a row.
var ErrAborted = errors.New("run aborted: provider pool exhausted repeatedly")

// Generator is the slice of the provider pool the orchestrator uses.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema provider.Schema) (any, error)
}

// Config carries run-scoped settings.
type Config struct {
	// Description is the user-supplied project description included in
	// every prompt.
	Description string

	// AbortThreshold escalates to a run-level abort after this many
	// consecutive pool-exhaustion failures. Zero means the default.
	AbortThreshold int
}

// Orchestrator processes units in dependency order.
type Orchestrator struct {
	gen    Generator
	sink   events.Sink
	logger *slog.Logger
	cfg    Config
}

// New creates an orchestrator. A nil sink discards events.
func New(gen Generator, sink events.Sink, logger *slog.Logger, cfg Config) *Orchestrator {
	if sink == nil {
		sink = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AbortThreshold <= 0 {
		cfg.AbortThreshold = DefaultAbortThreshold
	}
	return &Orchestrator{gen: gen, sink: sink, logger: logger, cfg: cfg}
}

// Run orders the units, generates documentation for each, and merges the
// results in place. Units are mutated: Raw is rewritten on success, Status
// and Reason always reflect the outcome. Returns nil on normal completion
// (including mixed per-unit failures), ErrAborted on escalation, or the
// context's error on cancellation.
func (o *Orchestrator) Run(ctx context.Context, units []*model.SourceUnit) error {
	logger := o.logger.With("run", uuid.NewString())

	order, warnings := graph.Order(units)
	for _, w := range warnings {
		logger.Warn("dependency cycle broken", "source", w.Source, "target", w.Target)
		o.sink.Emit(events.Log{Message: "Warning: dependency cycle broken: " + w.Source + " -> " + w.Target})
	}

	o.sink.Emit(events.Phase{ID: "docstrings", Name: "Generating Docstrings", Status: events.StatusInProgress})

	summaries := make(map[string]*model.DocPayload, len(order))
	consecutiveExhaustion := 0

	for _, unit := range order {
		if err := ctx.Err(); err != nil {
			// Stop dispatching new units; committed results are retained.
			o.sink.Emit(events.Log{Message: "Run canceled; stopping dispatch."})
			o.sink.Emit(events.Phase{ID: "docstrings", Status: events.StatusError})
			return err
		}

		subtaskID := "doc-" + unit.Path
		if unit.Status == model.StatusSkipped {
			o.sink.Emit(events.Subtask{
				ID: subtaskID, ParentID: "docstrings", ListID: "docstring-file-list",
				Name: "Documenting " + unit.Path, Status: events.StatusError,
			})
			continue
		}

		unit.Status = model.StatusGenerating
		o.sink.Emit(events.Subtask{
			ID: subtaskID, ParentID: "docstrings", ListID: "docstring-file-list",
			Name: "Documenting " + unit.Path, Status: events.StatusInProgress,
		})

		prompt := buildDocPrompt(o.cfg.Description, unit, o.depContexts(unit, summaries))

		result, err := o.gen.Generate(ctx, prompt, provider.DocSchema{})
		if err != nil {
			if ctx.Err() != nil {
				unit.Status = model.StatusPending
				o.sink.Emit(events.Log{Message: "Run canceled; stopping dispatch."})
				o.sink.Emit(events.Phase{ID: "docstrings", Status: events.StatusError})
				return ctx.Err()
			}

			unit.Status = model.StatusFailed
			unit.Reason = failureReason(err)
			logger.Error("generation failed", "path", unit.Path, "reason", unit.Reason, "error", err)
			o.sink.Emit(events.Subtask{ID: subtaskID, ParentID: "docstrings", Status: events.StatusError})

			if errors.Is(err, provider.ErrPoolExhausted) {
				consecutiveExhaustion++
				if consecutiveExhaustion >= o.cfg.AbortThreshold {
					detail := "aborting run: provider pool exhausted for " +
						unit.Path + " and the preceding units"
					o.sink.Emit(events.Error{Detail: detail})
					o.sink.Emit(events.Phase{ID: "docstrings", Status: events.StatusError})
					return ErrAborted
				}
			} else {
				consecutiveExhaustion = 0
			}
			continue
		}
		consecutiveExhaustion = 0

		payload := result.(*model.DocPayload)
		o.reconcile(logger, unit, payload)

		updated, changed, err := update.Apply(unit, payload, logger)
		if err != nil {
			unit.Status = model.StatusFailed
			unit.Reason = "StaleInsertion"
			logger.Error("update failed", "path", unit.Path, "error", err)
			o.sink.Emit(events.Subtask{ID: subtaskID, ParentID: "docstrings", Status: events.StatusError})
			continue
		}

		unit.Raw = updated
		unit.Payload = payload
		unit.Status = model.StatusDone
		summaries[unit.Path] = payload
		if !changed {
			logger.Info("unit already documented, no change", "path", unit.Path)
		}
		o.sink.Emit(events.Subtask{ID: subtaskID, ParentID: "docstrings", Status: events.StatusSuccess})
	}

	o.sink.Emit(events.Phase{ID: "docstrings", Status: events.StatusSuccess})
	return nil
}

// depContexts collects the committed summaries of a unit's direct
// dependencies. A failed dependency contributes a placeholder: degraded
// context, never a blocked dependent.
func (o *Orchestrator) depContexts(unit *model.SourceUnit, summaries map[string]*model.DocPayload) []depContext {
	deps := make([]depContext, 0, len(unit.Deps))
	for _, dep := range unit.Deps {
		deps = append(deps, depContext{Path: dep, Payload: summaries[dep]})
	}
	return deps
}

// reconcile aligns the payload with the unit's declared symbols: entries
// for undeclared symbols are dropped, declared symbols missing from the
// payload are filled with an empty fallback. Both discrepancies are logged,
// neither is fatal.
func (o *Orchestrator) reconcile(logger *slog.Logger, unit *model.SourceUnit, payload *model.DocPayload) {
	declared := make(map[string]struct{}, len(unit.Symbols))
	for i := range unit.Symbols {
		declared[unit.Symbols[i].Name] = struct{}{}
	}

	for name := range payload.Symbols {
		if _, ok := declared[name]; !ok {
			logger.Warn("payload documents undeclared symbol, dropping",
				"path", unit.Path, "symbol", name)
			delete(payload.Symbols, name)
		}
	}
	for name := range declared {
		if _, ok := payload.Symbols[name]; !ok {
			logger.Warn("payload missing declared symbol, using fallback",
				"path", unit.Path, "symbol", name)
			payload.Symbols[name] = ""
		}
	}
}

// failureReason maps a generation error to a status-report reason.
func failureReason(err error) string {
	switch {
	case errors.Is(err, provider.ErrSchema):
		return "SchemaMismatch"
	case errors.Is(err, provider.ErrPoolExhausted):
		return "ProviderPoolExhausted"
	default:
		return "ProviderError"
	}
}
