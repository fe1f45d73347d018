package service

import (
	"context"
	"errors"
	"time"

	"crm-backend/internal/observability"

	"go.uber.org/zap"
)

// StepPolicy decides whether a failing step stops its workflow.
type StepPolicy int

const (
	Fatal StepPolicy = iota
	BestEffort
)

func (p StepPolicy) String() string {
	if p == Fatal {
		return "fatal"
	}
	return "best_effort"
}

// Step is one write of a multi-step mutation. Run sees the results of the
// steps before it.
type Step struct {
	Name   string
	Policy StepPolicy
	Run    func(ctx context.Context, prior StepReport) error
}

type StepResult struct {
	Name   string
	Policy StepPolicy
	Err    error
}

// StepReport lists the steps that ran, in order.
type StepReport struct {
	Results []StepResult
}

// Failed reports whether the named step ran and failed.
func (r StepReport) Failed(name string) bool {
	for _, res := range r.Results {
		if res.Name == name {
			return res.Err != nil
		}
	}
	return false
}

// Warnings names the best-effort steps that failed.
func (r StepReport) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil && res.Policy == BestEffort {
			out = append(out, res.Name)
		}
	}
	return out
}

type escalatedError struct {
	err error
}

func (e escalatedError) Error() string { return e.err.Error() }
func (e escalatedError) Unwrap() error { return e.err }

// Escalate makes a best-effort step stop the workflow with err.
func Escalate(err error) error {
	if err == nil {
		return nil
	}
	return escalatedError{err: err}
}

// stepRunner executes steps in order and stops at the first fatal failure.
// Best-effort failures are logged and counted.
type stepRunner struct {
	Workflow string
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

func (r stepRunner) run(ctx context.Context, steps []Step) (StepReport, error) {
	start := time.Now()
	defer func() {
		if r.Metrics != nil {
			r.Metrics.RecordWorkflowDuration(r.Workflow, time.Since(start))
		}
	}()

	var report StepReport
	for _, step := range steps {
		err := step.Run(ctx, report)
		report.Results = append(report.Results, StepResult{Name: step.Name, Policy: step.Policy, Err: err})
		if err == nil {
			continue
		}

		var esc escalatedError
		escalated := errors.As(err, &esc)
		fatal := step.Policy == Fatal || escalated
		if r.Metrics != nil {
			policy := step.Policy
			if escalated {
				policy = Fatal
			}
			r.Metrics.IncrStepFailure(r.Workflow, step.Name, policy.String())
		}
		fields := []zap.Field{
			zap.String("workflow", r.Workflow),
			zap.String("step", step.Name),
			zap.Error(err),
		}
		if fatal {
			r.logger().Error("workflow step failed", fields...)
			if escalated {
				return report, esc.err
			}
			return report, err
		}
		r.logger().Warn("workflow step failed, continuing", fields...)
	}
	return report, nil
}

func (r stepRunner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
