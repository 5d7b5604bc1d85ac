package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-stepchain/pkg/clock"
	"github.com/askiada/go-stepchain/pkg/pipeline/model"
	"github.com/askiada/go-stepchain/pkg/pipeline/scheduler"
)

// Observer is notified of pipeline events. Observers run synchronously on
// the scheduler goroutine in registration order.
type Observer[T any] func(n Notification[T])

// Notification is the payload handed to observers.
type Notification[T any] struct {
	Err      error
	Step     *model.StepInfo
	Event    model.Event
	Pipeline string
	Results  []T
}

// Pipeline runs an ordered list of steps, one at a time, threading the
// result log through them.
type Pipeline[T any] struct {
	name     string
	clock    clock.Clock
	logger   *slog.Logger
	feature  *feature
	loop     *scheduler.Loop
	ownLoop  bool
	loopOnce sync.Once

	mu        sync.RWMutex
	steps     []*step[T]
	observers map[model.Event][]Observer[T]
	timeout   time.Duration

	// State of the current run. generation changes on every Reset so that
	// callbacks captured by an older run can tell they are stale.
	generation uint64
	cursor     int
	results    []T
	timing     []model.Timing
	finished   bool
	armed      bool
	watchdog   *clock.Timer
	current    *step[T]
	runCtx     context.Context
	cancelRun  context.CancelFunc
	startTime  time.Time
	done       chan struct{}
	endErr     error
}

// New creates an idle pipeline with an empty step registry.
func New[T any](name string, opts ...Option) (*Pipeline[T], error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.clock == nil {
		cfg.clock = clock.Real()
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	pipe := &Pipeline[T]{
		name:      name,
		clock:     cfg.clock,
		logger:    cfg.logger.With("pipeline", name),
		loop:      cfg.loop,
		timeout:   cfg.timeout,
		observers: make(map[model.Event][]Observer[T]),
		done:      make(chan struct{}),
	}
	pipe.feature = &feature{opts: cfg.plugins, logger: pipe.logger}

	if pipe.loop == nil {
		pipe.loop = scheduler.New()
		pipe.ownLoop = true
	}

	err := pipe.feature.new(name)
	if err != nil {
		return nil, err
	}

	return pipe, nil
}

// Name returns the label given at construction.
func (p *Pipeline[T]) Name() string {
	return p.name
}

// Use appends a step to the registry. The runner is not checked until the
// step is dispatched.
func (p *Pipeline[T]) Use(runner Runner[T], opts ...StepOption) *Pipeline[T] {
	p.mu.Lock()
	parent := model.StartStep
	if len(p.steps) > 0 {
		parent = &p.steps[len(p.steps)-1].info
	}

	stp := &step[T]{
		info: model.StepInfo{
			Type:  model.NormalStepType,
			Index: len(p.steps),
		},
		runner: runner,
	}
	for _, opt := range opts {
		opt(&stp.info)
	}

	p.steps = append(p.steps, stp)
	p.mu.Unlock()

	p.feature.prepareStep(parent, &stp.info)

	return p
}

// On registers an observer for event. Observers survive Reset.
func (p *Pipeline[T]) On(event model.Event, fn Observer[T]) *Pipeline[T] {
	if fn == nil {
		return p
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.observers[event] = append(p.observers[event], fn)

	return p
}

// SetTimeout changes the run deadline. It takes effect on the next run
// that has not executed yet. Zero disables the watchdog.
func (p *Pipeline[T]) SetTimeout(timeout time.Duration) *Pipeline[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.timeout = timeout

	return p
}

// Timeout returns the configured deadline.
func (p *Pipeline[T]) Timeout() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.timeout
}

// Execute starts a run with res as the initial entry of the result log, or
// advances a run that is already stepping. It returns immediately; the work
// happens on the scheduler goroutine.
func (p *Pipeline[T]) Execute(res model.Result[T]) *Pipeline[T] {
	return p.ExecuteContext(context.Background(), res)
}

// ExecuteContext is Execute with a parent context for the step contexts of
// the run. ctx only matters on the call that starts a run.
func (p *Pipeline[T]) ExecuteContext(ctx context.Context, res model.Result[T]) *Pipeline[T] {
	err := p.post(func() {
		p.mu.RLock()
		gen := p.generation
		p.mu.RUnlock()

		p.execute(ctx, gen, res, nil)
	})
	if err != nil {
		p.logger.Error("unable to execute pipeline", "error", err)
	}

	return p
}

// Run executes the pipeline with input and blocks until the run ends. When
// ctx is done first, the run is aborted with the context error. A run that
// already finished must be Reset before it can run again, otherwise Run
// returns ErrFinished.
func (p *Pipeline[T]) Run(ctx context.Context, input T) ([]T, error) {
	p.mu.RLock()
	finished := p.finished
	done := p.done
	p.mu.RUnlock()

	if finished {
		return nil, ErrFinished
	}

	err := p.post(func() {
		p.mu.RLock()
		gen := p.generation
		p.mu.RUnlock()

		p.execute(ctx, gen, Ok(input), nil)
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to start pipeline")
	}

	select {
	case <-done:
	case <-ctx.Done():
		err := p.abort(errors.Wrap(ctx.Err(), "run cancelled"))
		if err != nil {
			return p.Results(), ctx.Err()
		}
		<-done
	}

	return p.Results(), p.Err()
}

// Results returns a copy of the result log.
func (p *Pipeline[T]) Results() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.results)
}

// Timing returns a copy of the timing log.
func (p *Pipeline[T]) Timing() []model.Timing {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.timing)
}

// Finished reports whether the current run has ended.
func (p *Pipeline[T]) Finished() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.finished
}

// Cursor returns the index of the next step to dispatch.
func (p *Pipeline[T]) Cursor() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.cursor
}

// Len returns the number of registered steps.
func (p *Pipeline[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.steps)
}

// Done returns a channel closed when the current run ends. Reset swaps in
// a new channel.
func (p *Pipeline[T]) Done() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.done
}

// Err returns the error delivered to end observers for the current run.
func (p *Pipeline[T]) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.endErr
}

// Reset returns the pipeline to its idle state, keeping steps and
// observers. Callbacks still held by the previous run become no-ops.
// Resetting a run that has not finished abandons it without an end
// notification.
func (p *Pipeline[T]) Reset() *Pipeline[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.cancelRun != nil {
		p.cancelRun()
	}

	p.generation++
	p.cursor = 0
	p.results = nil
	p.timing = nil
	p.finished = false
	p.armed = false
	p.current = nil
	p.runCtx = nil
	p.cancelRun = nil
	p.startTime = time.Time{}
	p.endErr = nil
	p.done = make(chan struct{})

	return p
}

// Close stops the watchdog and the scheduler goroutine owned by the
// pipeline. A loop given with WithLoop is left running. A run still in
// progress is cut short with ErrClosed: Done is closed and Err reports it,
// but end observers are not notified.
func (p *Pipeline[T]) Close() {
	p.mu.Lock()
	p.stopLocked()
	if p.cancelRun != nil {
		p.cancelRun()
	}
	if !p.finished {
		p.finished = true
		p.endErr = ErrClosed
		close(p.done)
	}
	p.mu.Unlock()

	if p.ownLoop {
		p.loop.Close()
	}
}

// post defers task to the scheduler, starting the owned loop on first use.
func (p *Pipeline[T]) post(task func()) error {
	if p.ownLoop {
		p.loopOnce.Do(func() {
			go func() {
				err := p.loop.Run(context.Background())
				if err != nil {
					p.logger.Error("scheduler stopped", "error", err)
				}
			}()
		})
	}

	return p.loop.Post(task)
}

func (p *Pipeline[T]) emit(event model.Event, notif Notification[T]) {
	p.mu.RLock()
	observers := slices.Clone(p.observers[event])
	p.mu.RUnlock()

	notif.Event = event
	notif.Pipeline = p.name

	for _, fn := range observers {
		p.notify(fn, notif)
	}
}

// notify runs one observer. A panicking observer is logged and skipped.
func (p *Pipeline[T]) notify(fn Observer[T], notif Notification[T]) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("observer panicked", "event", notif.Event, "panic", r)
		}
	}()

	fn(notif)
}
