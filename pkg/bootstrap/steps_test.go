package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"mercator-hq/policyd/pkg/policy"
	"mercator-hq/policyd/pkg/policy/loader"
	"mercator-hq/policyd/pkg/policy/store"
)

func recordingStep(name string, order *[]string, err error) Step {
	return StepFunc{
		StepName: name,
		Fn: func(ctx context.Context) error {
			*order = append(*order, name)
			return err
		},
	}
}

func TestSequence_RunsInOrder(t *testing.T) {
	var order []string
	seq := NewSequence(nil,
		recordingStep("one", &order, nil),
		recordingStep("two", &order, nil),
		recordingStep("three", &order, nil),
	)

	results := seq.Run(context.Background())

	if !reflect.DeepEqual(order, []string{"one", "two", "three"}) {
		t.Errorf("order = %v", order)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if err := results.Err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSequence_OptionalFailureContinues(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	seq := NewSequence(nil,
		recordingStep("optional", &order, boom),
		recordingStep("after", &order, nil),
	)

	results := seq.Run(context.Background())

	if !reflect.DeepEqual(order, []string{"optional", "after"}) {
		t.Errorf("order = %v", order)
	}
	if !errors.Is(results[0].Err, boom) || results[0].Required {
		t.Errorf("result[0] = %+v", results[0])
	}
	if err := results.Err(); err != nil {
		t.Errorf("optional failure should not abort: %v", err)
	}
}

func TestSequence_RequiredFailureAborts(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	seq := NewSequence(nil,
		Required(recordingStep("required", &order, boom)),
		recordingStep("after", &order, nil),
	)

	results := seq.Run(context.Background())

	if !reflect.DeepEqual(order, []string{"required"}) {
		t.Errorf("order = %v", order)
	}
	if !results[1].Skipped {
		t.Error("expected remaining step to be skipped")
	}
	err := results.Err()
	if err == nil || !errors.Is(err, boom) {
		t.Errorf("Err() = %v, want wrapped boom", err)
	}
}

func TestPolicySeedStep_FailsOpen(t *testing.T) {
	handler := &captureHandler{}
	logger := slog.New(handler)
	st := store.NewMemoryStore()
	orch := NewOrchestrator(loader.New(nil), st, logger)

	var outcome Outcome
	var order []string
	seq := NewSequence(logger,
		Required(StoreCheckStep(st)),
		PolicySeedStep(orch, "/nonexistent/policies.json", func(o Outcome) { outcome = o }),
		recordingStep("serve", &order, nil),
	)

	results := seq.Run(context.Background())

	if err := results.Err(); err != nil {
		t.Fatalf("seed failure must not abort startup: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"serve"}) {
		t.Errorf("later step did not run: %v", order)
	}
	if outcome.State != StateLoadFailed {
		t.Errorf("reported state = %s", outcome.State)
	}
	if !errors.Is(results[1].Err, policy.ErrNotFound) {
		t.Errorf("seed step error = %v", results[1].Err)
	}
	if n := len(handler.atLevel(slog.LevelError)); n != 1 {
		t.Errorf("error records = %d, want 1", n)
	}
}

func TestPolicySeedStep_Disabled(t *testing.T) {
	st := store.NewMemoryStore()
	orch := NewOrchestrator(loader.New(nil), st, nil)

	var outcome Outcome
	err := PolicySeedStep(orch, "", func(o Outcome) { outcome = o }).Run(context.Background())

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if outcome.State != StateDisabled {
		t.Errorf("state = %s", outcome.State)
	}
}
