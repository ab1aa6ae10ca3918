// Package events defines the typed lifecycle records the pipeline emits for
// an external transport layer to consume. Events are ordered: the pipeline
// emits them from a single goroutine per run.
package events

import "log/slog"

// Status is the lifecycle state carried by phase and subtask events.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Event is one record in the run's lifecycle stream.
type Event interface {
	event()
}

// Phase marks a top-level pipeline stage transition.
type Phase struct {
	ID     string
	Name   string
	Status Status
}

// Subtask marks progress on one unit or directory within a phase.
type Subtask struct {
	ID       string
	ParentID string
	ListID   string
	Name     string
	Status   Status
}

// Log carries a free-text progress message.
type Log struct {
	Message string
}

// Error carries a run-level error detail.
type Error struct {
	Detail string
}

// Done terminates the stream with a final message and a reference to the
// run's artifact (e.g. the root directory summary).
type Done struct {
	Message     string
	ArtifactRef string
}

func (Phase) event()   {}
func (Subtask) event() {}
func (Log) event()     {}
func (Error) event()   {}
func (Done) event()    {}

// Sink consumes lifecycle events.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// SlogSink logs each event through a slog.Logger; useful as the default
// sink for CLI runs where no transport is attached.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(e Event) {
	switch ev := e.(type) {
	case Phase:
		s.Logger.Info("phase", "id", ev.ID, "status", string(ev.Status))
	case Subtask:
		s.Logger.Info("subtask", "id", ev.ID, "name", ev.Name, "status", string(ev.Status))
	case Log:
		s.Logger.Info(ev.Message)
	case Error:
		s.Logger.Error(ev.Detail)
	case Done:
		s.Logger.Info("done", "message", ev.Message, "artifact", ev.ArtifactRef)
	}
}

// Collector retains every emitted event in order; intended for tests and
// buffered transports.
type Collector struct {
	Events []Event
}

func (c *Collector) Emit(e Event) { c.Events = append(c.Events, e) }
