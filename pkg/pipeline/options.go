package pipeline

import (
	"log/slog"
	"time"

	"github.com/askiada/go-stepchain/pkg/clock"
	"github.com/askiada/go-stepchain/pkg/pipeline/model"
	"github.com/askiada/go-stepchain/pkg/pipeline/scheduler"
)

type config struct {
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger
	loop    *scheduler.Loop
	plugins []model.PipelineOption
}

// Option configures a Pipeline at construction.
type Option func(c *config)

// WithTimeout sets the run deadline. Zero disables the watchdog.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithClock replaces the clock used for timing entries and the watchdog.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

// WithLogger sets the logger of the pipeline and of its step contexts.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLoop makes the pipeline defer its work to loop. The caller owns the
// loop and must run it; Close leaves it untouched.
func WithLoop(loop *scheduler.Loop) Option {
	return func(c *config) {
		c.loop = loop
	}
}

// WithOptions attaches plugins such as measure.PipelineMeasure or
// drawer.PipelineDrawer.
func WithOptions(opts ...model.PipelineOption) Option {
	return func(c *config) {
		c.plugins = append(c.plugins, opts...)
	}
}

// StepOption configures a step at registration.
type StepOption func(info *model.StepInfo)

// StepName sets the friendly name of a step.
func StepName(name string) StepOption {
	return func(info *model.StepInfo) {
		info.Name = name
	}
}
