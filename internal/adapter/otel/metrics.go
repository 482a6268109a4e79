package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "switchyard"

// Metrics holds all Switchyard metric instruments.
type Metrics struct {
	RunsStarted     metric.Int64Counter
	RunsCompleted   metric.Int64Counter
	RunsFailed      metric.Int64Counter
	Handoffs        metric.Int64Counter
	GatePauses      metric.Int64Counter
	Approvals       metric.Int64Counter
	Rejections      metric.Int64Counter
	RunDuration     metric.Float64Histogram
	ComplexityScore metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("switchyard.runs.started",
		metric.WithDescription("Number of orchestration runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("switchyard.runs.completed",
		metric.WithDescription("Number of orchestration runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("switchyard.runs.failed",
		metric.WithDescription("Number of orchestration runs failed"))
	if err != nil {
		return nil, err
	}

	m.Handoffs, err = meter.Int64Counter("switchyard.handoffs",
		metric.WithDescription("Number of agent-to-agent handoffs"))
	if err != nil {
		return nil, err
	}

	m.GatePauses, err = meter.Int64Counter("switchyard.gate.pauses",
		metric.WithDescription("Number of actions paused for human approval"))
	if err != nil {
		return nil, err
	}

	m.Approvals, err = meter.Int64Counter("switchyard.gate.approvals",
		metric.WithDescription("Number of human approvals"))
	if err != nil {
		return nil, err
	}

	m.Rejections, err = meter.Int64Counter("switchyard.gate.rejections",
		metric.WithDescription("Number of human rejections"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("switchyard.run.duration_seconds",
		metric.WithDescription("Run duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.ComplexityScore, err = meter.Int64Histogram("switchyard.complexity.score",
		metric.WithDescription("Assessed request complexity"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
