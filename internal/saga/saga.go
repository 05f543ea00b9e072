// Package saga runs a sequence of steps and, when one fails, undoes the
// completed ones in reverse order.
package saga

import (
	"context"
	"fmt"

	"ottsonly-backend/internal/metrics"
	"ottsonly-backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Step is one forward action and the action that undoes it. Compensate may
// be nil for steps with nothing to undo.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

type Saga struct {
	name  string
	steps []Step
}

func New(name string, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps}
}

// Add appends a step.
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Error reports which step failed. It unwraps to the step's error.
type Error struct {
	Saga string
	Step string
	Err  error
	// CompensationFailures counts undo steps that themselves failed.
	CompensationFailures int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: step %s: %v", e.Saga, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes the steps in order. On the first failure it compensates the
// steps that completed, last first, and returns a *Error. Compensations run
// on a context that is not cancelled with ctx.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Do(ctx); err != nil {
			failures := s.compensate(context.WithoutCancel(ctx), i-1, step.Name, err)
			metrics.SagaRuns.WithLabelValues(s.name, "compensated").Inc()
			return &Error{Saga: s.name, Step: step.Name, Err: err, CompensationFailures: failures}
		}
	}
	metrics.SagaRuns.WithLabelValues(s.name, "ok").Inc()
	return nil
}

func (s *Saga) compensate(ctx context.Context, last int, failedStep string, cause error) int {
	failures := 0
	for i := last; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			failures++
			metrics.SagaCompensations.WithLabelValues(s.name, step.Name, "error").Inc()
			logger.WithFields(logrus.Fields{
				"saga":        s.name,
				"step":        step.Name,
				"failed_step": failedStep,
				"cause":       cause.Error(),
			}).WithError(err).Error("COMPENSATION FAILED, manual reconciliation required")
			continue
		}
		metrics.SagaCompensations.WithLabelValues(s.name, step.Name, "ok").Inc()
	}
	return failures
}
