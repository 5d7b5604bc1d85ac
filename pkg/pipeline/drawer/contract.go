package drawer

import (
	"time"

	"github.com/askiada/go-stepchain/pkg/pipeline/measure"
)

// Drawer is an interface that defines the methods for drawing a pipeline.
type Drawer interface {
	// AddStep adds a step to the pipeline drawer.
	AddStep(stepName string) error
	// AddLink adds a link between parent and children steps.
	AddLink(parentStepName, childrenStepName string) error
	// Draw creates a file with the pipeline graph.
	Draw() error
	// SetTotalTime labels a step with a total duration.
	SetTotalTime(stepName string, total time.Duration) error
	// SetFailed marks or unmarks a step as the one where the run stopped.
	SetFailed(stepName string, failed bool) error
	// AddMeasure adds a measure to the pipeline drawer.
	AddMeasure(measure measure.Measure) error
}
