package service

import (
	"context"
	"errors"
	"testing"

	"crm-backend/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStepRunner_StopsOnFatal(t *testing.T) {
	var ran []string
	step := func(name string, policy StepPolicy, err error) Step {
		return Step{Name: name, Policy: policy, Run: func(context.Context, StepReport) error {
			ran = append(ran, name)
			return err
		}}
	}
	boom := errors.New("boom")

	report, err := stepRunner{Workflow: "test", Logger: zap.NewNop(), Metrics: observability.NewMetrics()}.run(context.Background(), []Step{
		step("a", BestEffort, errors.New("soft")),
		step("b", Fatal, boom),
		step("c", Fatal, nil),
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.True(t, report.Failed("a"))
	assert.False(t, report.Failed("c"))
	assert.Equal(t, []string{"a"}, report.Warnings())
}

func TestStepRunner_Escalation(t *testing.T) {
	hard := errors.New("hard")
	report, err := stepRunner{Workflow: "test"}.run(context.Background(), []Step{
		{Name: "first", Policy: BestEffort, Run: func(context.Context, StepReport) error { return errors.New("x") }},
		{Name: "second", Policy: BestEffort, Run: func(_ context.Context, prior StepReport) error {
			if prior.Failed("first") {
				return Escalate(hard)
			}
			return nil
		}},
		{Name: "third", Policy: Fatal, Run: func(context.Context, StepReport) error {
			t.Fatal("must not run")
			return nil
		}},
	})
	assert.Equal(t, hard, err)
	assert.Len(t, report.Results, 2)
	assert.Nil(t, Escalate(nil))
}

func TestStepPolicy_String(t *testing.T) {
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "best_effort", BestEffort.String())
}
