package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/policyd/pkg/policy/store"
)

// Step is one unit of startup work.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

// StepFunc adapts a function to a Step.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context) error
}

// Name returns the step name.
func (s StepFunc) Name() string { return s.StepName }

// Run calls the wrapped function.
func (s StepFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// entry pairs a step with whether its failure aborts startup.
type entry struct {
	step     Step
	required bool
}

// Required marks a step whose failure aborts startup.
func Required(s Step) Step {
	return requiredStep{s}
}

type requiredStep struct{ Step }

// StepResult reports the execution of one step.
type StepResult struct {
	Name     string        `json:"name"`
	Required bool          `json:"required"`
	Skipped  bool          `json:"skipped,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Results is the ordered output of a Sequence run.
type Results []StepResult

// Err returns the first failed required step as an error, or nil.
func (r Results) Err() error {
	for _, res := range r {
		if res.Required && res.Err != nil {
			return fmt.Errorf("startup step %q failed: %w", res.Name, res.Err)
		}
	}
	return nil
}

// Sequence runs steps in registration order.
type Sequence struct {
	entries []entry
	logger  *slog.Logger
}

// NewSequence creates a sequence of steps. Wrap a step with Required to make
// its failure abort the remaining steps.
func NewSequence(logger *slog.Logger, steps ...Step) *Sequence {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequence{logger: logger}
	for _, st := range steps {
		s.Add(st)
	}
	return s
}

// Add appends a step.
func (s *Sequence) Add(st Step) {
	if r, ok := st.(requiredStep); ok {
		s.entries = append(s.entries, entry{step: r.Step, required: true})
		return
	}
	s.entries = append(s.entries, entry{step: st})
}

// Run executes every step in order. After a required step fails the
// remaining steps are reported as skipped.
func (s *Sequence) Run(ctx context.Context) Results {
	results := make(Results, 0, len(s.entries))
	aborted := false

	for _, e := range s.entries {
		res := StepResult{Name: e.step.Name(), Required: e.required}
		if aborted {
			res.Skipped = true
			results = append(results, res)
			continue
		}

		start := time.Now()
		res.Err = e.step.Run(ctx)
		res.Duration = time.Since(start)
		results = append(results, res)

		switch {
		case res.Err == nil:
			s.logger.Debug("startup step completed",
				"step", res.Name,
				"duration_ms", res.Duration.Milliseconds(),
			)
		case e.required:
			s.logger.Error("required startup step failed",
				"step", res.Name,
				"error", res.Err,
			)
			aborted = true
		default:
			s.logger.Debug("optional startup step failed, continuing",
				"step", res.Name,
				"error", res.Err,
			)
		}
	}

	return results
}

// StoreCheckStep verifies that the store backend is reachable.
func StoreCheckStep(st store.Store) Step {
	return StepFunc{
		StepName: "store-ping",
		Fn:       st.Ping,
	}
}

// errSeedFailed marks a seed step that finished in a failure state.
var errSeedFailed = errors.New("policy seed failed")

// PolicySeedStep seeds the store from path. The outcome is passed to report
// when non-nil.
func PolicySeedStep(o *Orchestrator, path string, report func(Outcome)) Step {
	return StepFunc{
		StepName: "policy-seed",
		Fn: func(ctx context.Context) error {
			out := o.Run(ctx, path)
			if report != nil {
				report(out)
			}
			if out.Err != nil {
				return fmt.Errorf("%w: %w", errSeedFailed, out.Err)
			}
			return nil
		},
	}
}
