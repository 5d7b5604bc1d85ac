package pipeline

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-stepchain/pkg/pipeline/model"
)

// feature fans engine events out to the pipeline plugins. Plugin failures
// after construction cannot abort a run, they are logged.
type feature struct {
	opts   []model.PipelineOption
	logger *slog.Logger
}

func (f *feature) new(name string) error {
	for _, opt := range f.opts {
		err := opt.New(name)
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return nil
}

func (f *feature) prepareStep(parentStep, step *model.StepInfo) {
	for _, opt := range f.opts {
		err := opt.PrepareStep(parentStep, step)
		if err != nil {
			f.logger.Warn("unable to prepare step", "step", step.Label(), "error", err)
		}
	}
}

func (f *feature) stepOutput(step *model.StepInfo, duration time.Duration, stepErr error) {
	for _, opt := range f.opts {
		err := opt.OnStepOutput(step, duration, stepErr)
		if err != nil {
			f.logger.Warn("unable to record step output", "step", step.Label(), "error", err)
		}
	}
}

func (f *feature) finish(runErr error, total time.Duration) {
	for _, opt := range f.opts {
		err := opt.Finish(runErr, total)
		if err != nil {
			f.logger.Warn("unable to finish pipeline option", "error", err)
		}
	}
}
