package pipeline

import (
	"slices"
	"time"

	"github.com/askiada/go-stepchain/pkg/pipeline/model"
)

// Stop pins the cursor past the last step and cancels the watchdog. A step
// already in flight may still call its continuation; the run then
// terminates normally instead of dispatching further steps.
func (p *Pipeline[T]) Stop() *Pipeline[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	return p
}

func (p *Pipeline[T]) stopLocked() {
	p.cursor = len(p.steps)

	if p.watchdog != nil {
		p.watchdog.Stop()
		p.watchdog = nil
	}
}

// Abort ends the current run with err, ErrAborted when err is nil. It is a
// no-op for a run that already finished.
func (p *Pipeline[T]) Abort(err error) *Pipeline[T] {
	postErr := p.abort(err)
	if postErr != nil {
		p.logger.Error("unable to abort pipeline", "error", postErr)
	}

	return p
}

func (p *Pipeline[T]) abort(err error) error {
	if err == nil {
		err = ErrAborted
	}

	return p.post(func() {
		p.mu.RLock()
		gen := p.generation
		p.mu.RUnlock()

		p.end(gen, err, false)
	})
}

// expire is the watchdog callback, run on the scheduler goroutine.
func (p *Pipeline[T]) expire(gen uint64) {
	p.mu.RLock()
	stale := gen != p.generation || p.finished
	timeoutErr := &Error{
		Kind:     KindTimeout,
		Pipeline: p.name,
		Index:    -1,
		Err:      ErrTimeout,
	}
	if p.current != nil {
		timeoutErr.Step = p.current.info.Label()
		timeoutErr.Index = p.current.info.Index
	}
	p.mu.RUnlock()

	if stale {
		return
	}

	p.logger.Warn("pipeline timed out", "step", timeoutErr.Step)
	p.end(gen, timeoutErr, false)
}

// end is the single completion point of a run. Whatever path calls it
// first wins; later calls only re-apply Stop.
func (p *Pipeline[T]) end(gen uint64, err error, stepFailed bool) {
	now := p.clock.Now()

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()

		return
	}

	p.stopLocked()

	if p.finished {
		p.mu.Unlock()

		return
	}

	p.finished = true
	p.endErr = err
	results := slices.Clone(p.results)
	cancel := p.cancelRun
	done := p.done
	var total time.Duration
	if !p.startTime.IsZero() {
		total = now.Sub(p.startTime)
	}
	p.mu.Unlock()

	if stepFailed {
		p.emit(model.EventError, Notification[T]{Err: err, Results: results})
	}

	p.emit(model.EventEnd, Notification[T]{Err: err, Results: results})
	p.feature.finish(err, total)

	if err != nil {
		p.logger.Info("pipeline aborted", "results", len(results), "error", err)
	} else {
		p.logger.Info("pipeline finished", "results", len(results), "duration", total)
	}

	if cancel != nil {
		cancel()
	}
	close(done)
}
