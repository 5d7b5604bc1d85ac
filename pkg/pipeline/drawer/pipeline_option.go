package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-stepchain/pkg/pipeline/measure"
	"github.com/askiada/go-stepchain/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m    measure.Measure
	last string
}

func (pd *pipelineDrawer) New(_ string) error {
	err := pd.AddStep(model.StartStep.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start step to drawer")
	}
	err = pd.AddStep(model.EndStep.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end step to drawer")
	}
	pd.last = model.StartStep.Name

	return nil
}

func (pd *pipelineDrawer) PrepareStep(parentStep, step *model.StepInfo) error {
	err := pd.AddStep(step.Label())
	if err != nil {
		return err
	}
	err = pd.AddLink(parentStep.Label(), step.Label())
	if err != nil {
		return err
	}
	pd.last = step.Label()

	return nil
}

func (pd *pipelineDrawer) OnStepOutput(_ *model.StepInfo, _ time.Duration, _ error) error {
	return nil
}

func (pd *pipelineDrawer) Finish(err error, totalDuration time.Duration) error {
	linkErr := pd.AddLink(pd.last, model.EndStep.Name)
	if linkErr != nil {
		return errors.Wrap(linkErr, "unable to link last step to end")
	}

	if pd.m != nil {
		setErr := pd.AddMeasure(pd.m)
		if setErr != nil {
			return errors.Wrap(setErr, "unable to add measure")
		}
	}

	setErr := pd.SetTotalTime(model.EndStep.Name, totalDuration)
	if setErr != nil {
		return errors.Wrap(setErr, "unable to set total time")
	}

	setErr = pd.SetFailed(model.EndStep.Name, err != nil)
	if setErr != nil {
		return errors.Wrap(setErr, "unable to mark run outcome")
	}

	setErr = pd.Draw()
	if setErr != nil {
		return errors.Wrap(setErr, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the pipeline every time a run finishes. measure may
// be nil.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer, m: measure}
}
