package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/policyd/pkg/policy"
	"mercator-hq/policyd/pkg/policy/store"
)

// Loader reads a policy file. *loader.Loader implements it.
type Loader interface {
	Load(path string) ([]policy.Policy, error)
}

// State is the terminal state of a seeding attempt.
type State int

const (
	// StateIdle means the orchestrator has not run.
	StateIdle State = iota
	// StateDisabled means no file was configured.
	StateDisabled
	// StateLoadFailed means the file could not be validated or decoded.
	StateLoadFailed
	// StateApplyFailed means the store rejected the decoded set.
	StateApplyFailed
	// StateApplied means the store holds the decoded set.
	StateApplied
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDisabled:
		return "disabled"
	case StateLoadFailed:
		return "load_failed"
	case StateApplyFailed:
		return "apply_failed"
	case StateApplied:
		return "applied"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome reports a seeding attempt.
type Outcome struct {
	State    State         `json:"state"`
	Path     string        `json:"path,omitempty"`
	Applied  int           `json:"applied"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Error returns the failure message, or "" on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Orchestrator seeds a store from a policy file.
type Orchestrator struct {
	loader Loader
	store  store.Store
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger uses slog.Default().
func NewOrchestrator(l Loader, st store.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		loader: l,
		store:  st,
		logger: logger,
	}
}

// Run seeds the store from path. An empty path disables seeding.
// Failures are logged once and reported in the Outcome; Run never returns
// an error and never retries.
func (o *Orchestrator) Run(ctx context.Context, path string) Outcome {
	start := time.Now()
	out := Outcome{State: StateIdle, Path: path}

	if path == "" {
		o.logger.Debug("no policy file configured, skipping policy seed")
		out.State = StateDisabled
		out.Duration = time.Since(start)
		return out
	}

	policies, err := o.loader.Load(path)
	if err != nil {
		out.State = StateLoadFailed
		out.Err = err
		out.Duration = time.Since(start)
		o.logger.Error("failed to load policies from file",
			"path", path,
			"kind", policy.KindOf(err).String(),
			"error", err,
		)
		return out
	}

	applied, err := o.store.UpdatePolicies(ctx, policies)
	if err != nil {
		out.State = StateApplyFailed
		out.Err = &policy.Error{
			Kind:    policy.KindStoreApplyFailure,
			Path:    path,
			Message: "store rejected policies",
			Cause:   err,
		}
		out.Duration = time.Since(start)
		o.logger.Error("failed to update policies from file",
			"path", path,
			"count", len(policies),
			"error", err,
		)
		return out
	}

	out.State = StateApplied
	out.Applied = len(applied)
	out.Duration = time.Since(start)
	o.logger.Info(fmt.Sprintf("successfully updated policies from file %s: %d policies", path, out.Applied),
		"path", path,
		"count", out.Applied,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out
}
