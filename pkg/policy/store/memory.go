package store

import (
	"context"
	"sync"
	"time"

	"mercator-hq/policyd/pkg/policy"
)

// MemoryStore is a thread-safe in-memory policy store.
// It uses copy-on-write semantics: a replacement builds the new set aside and
// swaps it in under the write lock.
type MemoryStore struct {
	mu       sync.RWMutex
	policies []policy.Policy
	snapshot Snapshot

	now func() time.Time
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Replacer = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: []policy.Policy{},
		now:      time.Now,
	}
}

// UpdatePolicies atomically replaces the entire policy set.
func (s *MemoryStore) UpdatePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, error) {
	applied, _, err := s.ReplacePolicies(ctx, policies)
	return applied, err
}

// ReplacePolicies is UpdatePolicies that also returns the new snapshot.
func (s *MemoryStore) ReplacePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, Snapshot, error) {
	if err := validateSet("memory", policies); err != nil {
		return nil, Snapshot{}, err
	}

	next := policy.Clone(policies)
	snap, err := newSnapshot(next, s.now())
	if err != nil {
		return nil, Snapshot{}, &Error{Backend: "memory", Op: "update", Message: "failed to compute version", Cause: err}
	}

	s.mu.Lock()
	s.policies = next
	s.snapshot = snap
	s.mu.Unlock()

	return policy.Clone(next), snap, nil
}

// ReadPolicies returns a copy of the active set.
func (s *MemoryStore) ReadPolicies(ctx context.Context) ([]policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return policy.Clone(s.policies), nil
}

// Snapshot returns metadata about the active set.
func (s *MemoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
