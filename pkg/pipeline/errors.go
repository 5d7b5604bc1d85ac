package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrRunnerMustBeSet = errors.New("step runner must be set")
	ErrStepPanicked    = errors.New("step panicked")
	ErrTimeout         = errors.New("pipeline timed out")
	ErrAborted         = errors.New("pipeline aborted")
	ErrFinished        = errors.New("pipeline run already finished")
	ErrClosed          = errors.New("pipeline closed")
)

// ErrorKind tells how a run was aborted.
type ErrorKind int

const (
	// KindStep is a step that returned an error, panicked, or had no runner.
	KindStep ErrorKind = iota + 1
	// KindCallback is a step that passed an error to its continuation.
	KindCallback
	// KindTimeout is the watchdog firing before the run finished.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindStep:
		return "step"
	case KindCallback:
		return "callback"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is delivered to end observers when a run aborts. Err is the
// originating error, reachable with errors.Is and errors.Cause.
type Error struct {
	Err      error
	Pipeline string
	Step     string
	Kind     ErrorKind
	Index    int
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("pipeline %q: %s error: %v", e.Pipeline, e.Kind, e.Err)
	}

	return fmt.Sprintf("pipeline %q: %s error at step %q: %v", e.Pipeline, e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause implements the causer interface of github.com/pkg/errors.
func (e *Error) Cause() error { return e.Err }

// KindOf returns the kind of a run error, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var pipeErr *Error
	if errors.As(err, &pipeErr) {
		return pipeErr.Kind
	}

	return 0
}
