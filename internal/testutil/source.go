package testutil

import (
	"context"

	"fwatch-go/internal/fwatch"
)

// ScriptedSource is a WatchSource driven by the test. Emit delivers one
// notification to the engine; the channel is buffered so a test can queue a
// burst without blocking.
type ScriptedSource struct {
	events chan fwatch.Notification
	errs   chan error
}

// NewScriptedSource creates a source with room for 64 queued notifications.
func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{
		events: make(chan fwatch.Notification, 64),
		errs:   make(chan error, 1),
	}
}

// Emit queues one notification for the engine.
func (s *ScriptedSource) Emit(n fwatch.Notification) {
	s.events <- n
}

// EmitError queues one non-fatal watch error.
func (s *ScriptedSource) EmitError(err error) {
	s.errs <- err
}

func (s *ScriptedSource) Start(ctx context.Context) error { return nil }

func (s *ScriptedSource) Events() <-chan fwatch.Notification { return s.events }

func (s *ScriptedSource) Errors() <-chan error { return s.errs }

func (s *ScriptedSource) Stop() {}

// Compile-time check
var _ fwatch.WatchSource = (*ScriptedSource)(nil)
