package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-stepchain/pkg/pipeline"
	"github.com/askiada/go-stepchain/pkg/pipeline/model"
	"github.com/askiada/go-stepchain/pkg/pipeline/scheduler"
)

const waitTimeout = 2 * time.Second

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newPipe creates a pipeline running on a loop owned by the test, so that
// drainLoop can wait for every deferred task.
func newPipe[T any](t *testing.T, name string, opts ...pipeline.Option) (*pipeline.Pipeline[T], *scheduler.Loop) {
	t.Helper()

	loop := scheduler.New()
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(context.Background())
	}()

	opts = append([]pipeline.Option{pipeline.WithLogger(discardLogger), pipeline.WithLoop(loop)}, opts...)
	pipe, err := pipeline.New[T](name, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		pipe.Close()
		loop.Close()
		<-done
	})

	return pipe, loop
}

// drainLoop blocks until every task queued on loop before the call has run.
func drainLoop(t *testing.T, loop *scheduler.Loop) {
	t.Helper()

	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		require.NoError(t, loop.Post(func() { close(done) }))
		select {
		case <-done:
		case <-time.After(waitTimeout):
			require.FailNow(t, "loop did not drain")
		}
	}
}

func waitDone[T any](t *testing.T, pipe *pipeline.Pipeline[T]) {
	t.Helper()

	select {
	case <-pipe.Done():
	case <-time.After(waitTimeout):
		require.FailNow(t, "pipeline did not finish")
	}
}

type endRecorder[T any] struct {
	calls   int
	err     error
	results []T
}

// recordEnd registers an end observer. Read the recorder only after the run
// is done: observers run on the loop goroutine before Done is closed.
func recordEnd[T any](pipe *pipeline.Pipeline[T]) *endRecorder[T] {
	rec := &endRecorder[T]{}
	pipe.On(model.EventEnd, func(n pipeline.Notification[T]) {
		rec.calls++
		rec.err = n.Err
		rec.results = n.Results
	})

	return rec
}

func emit[T any](value T) pipeline.Runner[T] {
	return func(_ context.Context, _ []T, next pipeline.Continuation[T]) error {
		next(pipeline.Ok(value))

		return nil
	}
}

func failWith[T any](err error) pipeline.Runner[T] {
	return func(_ context.Context, _ []T, next pipeline.Continuation[T]) error {
		next(pipeline.Fail[T](err))

		return nil
	}
}

// capture parks the continuation of a step on a channel instead of calling it.
func capture[T any](nexts chan<- pipeline.Continuation[T]) pipeline.Runner[T] {
	return func(_ context.Context, _ []T, next pipeline.Continuation[T]) error {
		nexts <- next

		return nil
	}
}

func receive[T any](t *testing.T, nexts <-chan pipeline.Continuation[T]) pipeline.Continuation[T] {
	t.Helper()

	select {
	case next := <-nexts:
		return next
	case <-time.After(waitTimeout):
		require.FailNow(t, "step was not dispatched")
	}

	return nil
}
