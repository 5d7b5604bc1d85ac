package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-stepchain/internal/ctxlog"
	"github.com/askiada/go-stepchain/pkg/pipeline/model"
)

// Continuation hands control back to the engine. Only the first call of a
// given continuation counts.
type Continuation[T any] func(res model.Result[T])

// Runner is the body of a step. results is a copy of the result log at
// dispatch time, index 0 being the initial input. A runner either returns a
// non-nil error or, now or later, calls next exactly once.
type Runner[T any] func(ctx context.Context, results []T, next Continuation[T]) error

// Ok is a successful result carrying v.
func Ok[T any](v T) model.Result[T] {
	return model.Result[T]{Value: v}
}

// Fail is a failed result.
func Fail[T any](err error) model.Result[T] {
	return model.Result[T]{Err: err}
}

// Func turns a synchronous function into a Runner. A returned error fails
// the step, otherwise the value is passed to the continuation.
func Func[T any](fn func(ctx context.Context, results []T) (T, error)) Runner[T] {
	return func(ctx context.Context, results []T, next Continuation[T]) error {
		out, err := fn(ctx, results)
		if err != nil {
			return err
		}
		next(Ok(out))

		return nil
	}
}

// LoggerFromContext returns the pipeline logger attached to a step context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return ctxlog.FromContext(ctx)
}

type step[T any] struct {
	runner Runner[T]
	info   model.StepInfo
}

func (s *step[T]) run(ctx context.Context, results []T, next Continuation[T]) (err error) {
	if s.runner == nil {
		return ErrRunnerMustBeSet
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrStepPanicked, "%v", r)
		}
	}()

	return s.runner(ctx, results, next)
}

// execute is the single re-entrant control point of a run. It always runs
// on the scheduler goroutine. from is the step whose continuation led here,
// nil for external calls.
func (p *Pipeline[T]) execute(ctx context.Context, gen uint64, res model.Result[T], from *step[T]) {
	now := p.clock.Now()

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()

		return
	}

	first := len(p.results) == 0
	p.results = append(p.results, res.Value)

	name := model.EndSentinel
	if p.cursor < len(p.steps) {
		name = p.steps[p.cursor].info.Label()
	}
	p.timing = append(p.timing, model.Timing{Step: name, At: now})

	if first {
		p.startRunLocked(ctx, gen, now)
	}

	var elapsed time.Duration
	if from != nil && len(p.timing) > 1 {
		elapsed = now.Sub(p.timing[len(p.timing)-2].At)
	}

	switch {
	case p.cursor > 0 && res.Err != nil:
		failed := from
		if failed == nil {
			failed = p.steps[p.cursor-1]
		}
		p.mu.Unlock()

		if from != nil {
			p.feature.stepOutput(&from.info, elapsed, res.Err)
		}

		p.end(gen, &Error{
			Kind:     KindCallback,
			Pipeline: p.name,
			Step:     failed.info.Label(),
			Index:    failed.info.Index,
			Err:      res.Err,
		}, false)
	case p.cursor >= len(p.steps):
		p.mu.Unlock()

		if from != nil {
			p.feature.stepOutput(&from.info, elapsed, nil)
		}

		p.end(gen, res.Err, false)
	default:
		next := p.steps[p.cursor]
		p.cursor++
		p.current = next
		view := slices.Clone(p.results)
		p.mu.Unlock()

		if from != nil {
			p.feature.stepOutput(&from.info, elapsed, nil)
		}

		p.emit(model.EventStep, Notification[T]{Step: &next.info, Results: view})

		err := p.post(func() { p.dispatch(gen, next, view) })
		if err != nil {
			p.logger.Error("unable to dispatch step", "step", next.info.Label(), "error", err)
		}
	}
}

// startRunLocked sets up the step context and arms the watchdog for a new
// run. p.mu must be held.
func (p *Pipeline[T]) startRunLocked(ctx context.Context, gen uint64, now time.Time) {
	p.runCtx, p.cancelRun = context.WithCancel(ctxlog.WithLogger(ctx, p.logger))
	p.startTime = now

	if p.timeout > 0 && !p.armed {
		p.armed = true
		p.watchdog = p.clock.AfterFunc(p.timeout, func() {
			err := p.loop.Post(func() { p.expire(gen) })
			if err != nil {
				p.logger.Warn("unable to deliver pipeline timeout", "error", err)
			}
		})
	}
}

// dispatch runs a step. A synchronous failure takes the same abort path as
// an error passed to the continuation.
func (p *Pipeline[T]) dispatch(gen uint64, stp *step[T], results []T) {
	p.mu.RLock()
	live := gen == p.generation && !p.finished
	ctx := p.runCtx
	var dispatchedAt time.Time
	if len(p.timing) > 0 {
		dispatchedAt = p.timing[len(p.timing)-1].At
	}
	p.mu.RUnlock()

	if !live {
		p.logger.Debug("skipping step of a finished run", "step", stp.info.Label())

		return
	}

	p.logger.Debug("dispatching step", "step", stp.info.Label(), "index", stp.info.Index)

	err := stp.run(ctx, results, p.continuation(gen, stp))
	if err != nil {
		var elapsed time.Duration
		if !dispatchedAt.IsZero() {
			elapsed = p.clock.Now().Sub(dispatchedAt)
		}
		p.feature.stepOutput(&stp.info, elapsed, err)

		p.end(gen, &Error{
			Kind:     KindStep,
			Pipeline: p.name,
			Step:     stp.info.Label(),
			Index:    stp.info.Index,
			Err:      err,
		}, true)
	}
}

func (p *Pipeline[T]) continuation(gen uint64, stp *step[T]) Continuation[T] {
	var called atomic.Bool

	return func(res model.Result[T]) {
		if !called.CompareAndSwap(false, true) {
			p.logger.Warn("continuation called more than once", "step", stp.info.Label())

			return
		}

		err := p.loop.Post(func() { p.resume(gen, stp, res) })
		if err != nil {
			p.logger.Warn("unable to resume pipeline", "step", stp.info.Label(), "error", err)
		}
	}
}

// resume re-enters execute from a continuation unless the run it belongs
// to has been reset or has already finished.
func (p *Pipeline[T]) resume(gen uint64, stp *step[T], res model.Result[T]) {
	p.mu.RLock()
	live := gen == p.generation && !p.finished
	p.mu.RUnlock()

	if !live {
		p.logger.Debug("dropping late continuation", "step", stp.info.Label())

		return
	}

	p.execute(context.Background(), gen, res, stp)
}
