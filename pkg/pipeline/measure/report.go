package measure

import (
	"sort"
	"time"

	"github.com/askiada/go-stepchain/pkg/pipeline/model"
)

// StepReport summarises the metric of one step.
type StepReport struct {
	Name     string
	Average  time.Duration
	Max      time.Duration
	Count    int64
	Failures int64
}

// Report lists the steps of msr, slowest average first. The start and end
// markers are left out.
func Report(msr Measure) []StepReport {
	var reports []StepReport

	for _, name := range msr.Names() {
		if name == model.StartStep.Name || name == model.EndStep.Name {
			continue
		}

		mt := msr.GetMetric(name)
		reports = append(reports, StepReport{
			Name:     name,
			Average:  mt.AVGDuration(),
			Max:      mt.MaxDuration(),
			Count:    mt.Count(),
			Failures: mt.Failures(),
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Average > reports[j].Average
	})

	return reports
}
