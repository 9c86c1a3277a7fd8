package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mercator-hq/policyd/pkg/policy"
)

// Store holds the active policy set.
// Implementations must be safe for concurrent use.
type Store interface {
	// UpdatePolicies atomically replaces the active set and returns the
	// applied set. On error the previous set remains active.
	UpdatePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, error)

	// ReadPolicies returns the active set in insertion order.
	ReadPolicies(ctx context.Context) ([]policy.Policy, error)

	// Snapshot returns metadata about the active set.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Replacer is implemented by stores that report the snapshot produced by a
// replacement together with the applied set. All stores in this package
// implement it.
type Replacer interface {
	ReplacePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, Snapshot, error)
}

// Replace replaces the active set of st and returns the snapshot of that
// replacement. For a store that is not a Replacer the snapshot is read after
// the update, may already describe a later replacement, and is left empty if
// that read fails. The error only reports the update.
func Replace(ctx context.Context, st Store, policies []policy.Policy) ([]policy.Policy, Snapshot, error) {
	if r, ok := st.(Replacer); ok {
		return r.ReplacePolicies(ctx, policies)
	}

	applied, err := st.UpdatePolicies(ctx, policies)
	if err != nil {
		return nil, Snapshot{}, err
	}
	snap, _ := st.Snapshot(ctx)
	return applied, snap, nil
}

// Snapshot describes the active policy set.
type Snapshot struct {
	// Revision identifies the replacement that produced the set. Empty until
	// the first successful update.
	Revision string `json:"revision"`

	// Version is a content hash of the set. Equal sets have equal versions.
	Version string `json:"version"`

	// AppliedAt is when the set became active.
	AppliedAt time.Time `json:"applied_at"`

	// Count is the number of policies in the set.
	Count int `json:"count"`
}

// Error represents a failed store operation.
type Error struct {
	// Backend is the store backend name (memory, sqlite, redis).
	Backend string

	// Op is the operation that failed (e.g., "update", "read").
	Op string

	// Message describes the failure.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s store %s failed: %s: %v", e.Backend, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s store %s failed: %s", e.Backend, e.Op, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// validateSet rejects sets the stores cannot hold: nil input, empty ids and
// duplicate ids.
func validateSet(backend string, policies []policy.Policy) error {
	if policies == nil {
		return &Error{Backend: backend, Op: "update", Message: "policies cannot be nil"}
	}

	seen := make(map[string]int, len(policies))
	for i, p := range policies {
		if p.ID == "" {
			return &Error{
				Backend: backend,
				Op:      "update",
				Message: fmt.Sprintf("policy at index %d has an empty id", i),
			}
		}
		if j, ok := seen[p.ID]; ok {
			return &Error{
				Backend: backend,
				Op:      "update",
				Message: fmt.Sprintf("duplicate policy id %q at indexes %d and %d", p.ID, j, i),
			}
		}
		seen[p.ID] = i
	}

	return nil
}

// newSnapshot builds the metadata for a set about to become active.
func newSnapshot(policies []policy.Policy, now time.Time) (Snapshot, error) {
	version, err := contentVersion(policies)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Revision:  uuid.NewString(),
		Version:   version,
		AppliedAt: now.UTC(),
		Count:     len(policies),
	}, nil
}

// contentVersion hashes the canonical JSON encoding of the set.
func contentVersion(policies []policy.Policy) (string, error) {
	data, err := json.Marshal(policies)
	if err != nil {
		return "", fmt.Errorf("failed to encode policies: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:16], nil
}
