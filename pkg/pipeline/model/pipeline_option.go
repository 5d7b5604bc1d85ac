package model

import "time"

// PipelineOption defines the interface for pipeline plugins. New runs inside
// the pipeline constructor and PrepareStep on the goroutine calling Use.
// OnStepOutput and Finish run on the pipeline scheduler goroutine.
type PipelineOption interface {
	// New initialises the plugin for the named pipeline.
	New(pipelineName string) error
	// PrepareStep runs when a step is registered. parentStep is the previously
	// registered step, or StartStep.
	PrepareStep(parentStep, step *StepInfo) error
	// OnStepOutput runs every time a step hands control back to the engine.
	// duration is measured from the dispatch of the step.
	OnStepOutput(step *StepInfo, duration time.Duration, err error) error
	// Finish runs after the end observers of a run.
	Finish(err error, totalDuration time.Duration) error
}
