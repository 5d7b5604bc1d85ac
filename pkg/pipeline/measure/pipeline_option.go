package measure

import (
	"time"

	"github.com/askiada/go-stepchain/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
}

func (pm *pipelineMeasure) New(_ string) error {
	pm.AddMetric(model.StartStep.Name)
	pm.AddMetric(model.EndStep.Name)

	return nil
}

func (pm *pipelineMeasure) PrepareStep(_, step *model.StepInfo) error {
	pm.AddMetric(step.Label())

	return nil
}

func (pm *pipelineMeasure) OnStepOutput(step *model.StepInfo, duration time.Duration, err error) error {
	mt := pm.AddMetric(step.Label())
	mt.AddDuration(duration)
	if err != nil {
		mt.AddFailure()
	}

	return nil
}

func (pm *pipelineMeasure) Finish(err error, totalDuration time.Duration) error {
	mt := pm.AddMetric(model.EndStep.Name)
	mt.AddDuration(totalDuration)
	mt.SetTotalDuration(totalDuration)
	if err != nil {
		mt.AddFailure()
	}

	return nil
}

// PipelineMeasure records step durations into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{measure}
}
