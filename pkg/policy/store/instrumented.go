package store

import (
	"context"
	"time"

	"mercator-hq/policyd/pkg/policy"
)

// Recorder receives store measurements. metrics.Collector implements it.
type Recorder interface {
	RecordStoreUpdate(backend string, success bool, duration time.Duration)
	SetActivePolicies(backend string, count int)
}

// Instrumented wraps a Store and reports every replacement to a Recorder.
type Instrumented struct {
	Store
	backend  string
	recorder Recorder
}

// NewInstrumented wraps next. A nil recorder returns next unchanged.
func NewInstrumented(next Store, backend string, recorder Recorder) Store {
	if recorder == nil {
		return next
	}
	return &Instrumented{Store: next, backend: backend, recorder: recorder}
}

// UpdatePolicies delegates to the wrapped store and records the result.
func (s *Instrumented) UpdatePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, error) {
	applied, _, err := s.ReplacePolicies(ctx, policies)
	return applied, err
}

// ReplacePolicies replaces through Replace on the wrapped store and records
// the result.
func (s *Instrumented) ReplacePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, Snapshot, error) {
	start := time.Now()
	applied, snap, err := Replace(ctx, s.Store, policies)
	s.recorder.RecordStoreUpdate(s.backend, err == nil, time.Since(start))
	if err == nil {
		s.recorder.SetActivePolicies(s.backend, len(applied))
	}
	return applied, snap, err
}

// Unwrap returns the wrapped store.
func (s *Instrumented) Unwrap() Store {
	return s.Store
}
