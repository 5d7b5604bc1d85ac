package model

// Result is what a step hands back to the engine through its continuation.
// A non-nil Err aborts a run that has already started stepping.
type Result[T any] struct {
	Err   error
	Value T
}

// Event names an observer hook.
type Event string

const (
	// EventStep fires with the step metadata right before the step is deferred.
	EventStep Event = "step"
	// EventError fires when a step fails synchronously, just before EventEnd.
	EventError Event = "error"
	// EventEnd fires exactly once per run.
	EventEnd Event = "end"
)
