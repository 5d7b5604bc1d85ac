package model

import (
	"strconv"
	"time"
)

type stepType string

const (
	StartStepType  stepType = "start"
	NormalStepType stepType = "step"
	EndStepType    stepType = "end"
)

// EndSentinel is the timing name recorded when execute is called with the
// cursor already past the last step.
const EndSentinel = "END"

// StepInfo describes a registered step.
type StepInfo struct {
	Type  stepType
	Name  string
	Index int
}

// Label returns the step name, or a positional name for anonymous steps.
func (s *StepInfo) Label() string {
	if s.Name != "" {
		return s.Name
	}

	return "#" + strconv.Itoa(s.Index)
}

var (
	StartStep = &StepInfo{Type: StartStepType, Name: "start", Index: -1}
	EndStep   = &StepInfo{Type: EndStepType, Name: "end", Index: -1}
)

// Timing records which step a call to execute was about to dispatch, and when.
type Timing struct {
	Step string
	At   time.Time
}
