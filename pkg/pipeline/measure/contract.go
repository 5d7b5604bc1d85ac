package measure

import "time"

// Measure collects one Metric per step of a pipeline.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
	// Names returns the metric names in registration order.
	Names() []string
}

// Metric accumulates the outputs of a single step across runs.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddFailure()
	AVGDuration() time.Duration
	MaxDuration() time.Duration
	Count() int64
	Failures() int64
	SetTotalDuration(total time.Duration)
	GetTotalDuration() time.Duration
}
