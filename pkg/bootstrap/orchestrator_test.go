package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"mercator-hq/policyd/pkg/policy"
	"mercator-hq/policyd/pkg/policy/loader"
	"mercator-hq/policyd/pkg/policy/store"
)

// captureHandler records log records for assertions.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) atLevel(level slog.Level) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

func attr(r slog.Record, key string) (slog.Value, bool) {
	var (
		v     slog.Value
		found bool
	)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v, found = a.Value, true
			return false
		}
		return true
	})
	return v, found
}

// countingLoader wraps a Loader and counts calls.
type countingLoader struct {
	next  Loader
	calls int
}

func (l *countingLoader) Load(path string) ([]policy.Policy, error) {
	l.calls++
	return l.next.Load(path)
}

// countingStore wraps a Store and counts replacements.
type countingStore struct {
	store.Store
	updates int
	err     error
}

func (s *countingStore) UpdatePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, error) {
	s.updates++
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.UpdatePolicies(ctx, policies)
}

type fixture struct {
	loader  *countingLoader
	store   *countingStore
	handler *captureHandler
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		loader:  &countingLoader{next: loader.New(nil)},
		store:   &countingStore{Store: store.NewMemoryStore()},
		handler: &captureHandler{},
	}
	f.orch = NewOrchestrator(f.loader, f.store, slog.New(f.handler))
	return f
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestOrchestrator_Applied(t *testing.T) {
	f := newFixture(t)
	path := writeFile(t, "policies.json", `[{"id":"p1","effect":"allow","actions":["read"]}]`)

	out := f.orch.Run(context.Background(), path)

	if out.State != StateApplied {
		t.Fatalf("state = %s, want applied (err: %v)", out.State, out.Err)
	}
	if out.Applied != 1 || out.Err != nil {
		t.Errorf("outcome = %+v", out)
	}
	if f.store.updates != 1 {
		t.Errorf("store updates = %d, want 1", f.store.updates)
	}

	got, _ := f.store.ReadPolicies(context.Background())
	if !reflect.DeepEqual(policy.IDs(got), []string{"p1"}) {
		t.Errorf("store holds %v", policy.IDs(got))
	}

	infos := f.handler.atLevel(slog.LevelInfo)
	if len(infos) != 1 {
		t.Fatalf("info records = %d, want 1", len(infos))
	}
	if !strings.Contains(infos[0].Message, path) || !strings.Contains(infos[0].Message, "1 policies") {
		t.Errorf("info message = %q", infos[0].Message)
	}
	if v, ok := attr(infos[0], "count"); !ok || v.Int64() != 1 {
		t.Errorf("count attr = %v", v)
	}
	if n := len(f.handler.atLevel(slog.LevelError)); n != 0 {
		t.Errorf("error records = %d, want 0", n)
	}
}

func TestOrchestrator_PreservesFileOrder(t *testing.T) {
	f := newFixture(t)
	path := writeFile(t, "policies.json", `[
		{"id":"c","effect":"deny"},
		{"id":"a","effect":"allow"},
		{"id":"b","effect":"allow"}
	]`)

	out := f.orch.Run(context.Background(), path)
	if out.State != StateApplied || out.Applied != 3 {
		t.Fatalf("outcome = %+v", out)
	}

	got, _ := f.store.ReadPolicies(context.Background())
	if ids := policy.IDs(got); !reflect.DeepEqual(ids, []string{"c", "a", "b"}) {
		t.Errorf("order = %v", ids)
	}
}

func TestOrchestrator_Disabled(t *testing.T) {
	f := newFixture(t)

	out := f.orch.Run(context.Background(), "")

	if out.State != StateDisabled {
		t.Errorf("state = %s, want disabled", out.State)
	}
	if out.Err != nil {
		t.Errorf("unexpected error: %v", out.Err)
	}
	if f.loader.calls != 0 {
		t.Errorf("loader calls = %d, want 0", f.loader.calls)
	}
	if f.store.updates != 0 {
		t.Errorf("store updates = %d, want 0", f.store.updates)
	}
	if n := len(f.handler.atLevel(slog.LevelError)); n != 0 {
		t.Errorf("error records = %d, want 0", n)
	}
	if n := len(f.handler.atLevel(slog.LevelInfo)); n != 0 {
		t.Errorf("info records = %d, want 0", n)
	}
}

func TestOrchestrator_LoadFailures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    func(t *testing.T) string
		kind    error
		wantLog string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(dir, "missing.json") },
			kind: policy.ErrNotFound,
		},
		{
			name: "wrong extension",
			path: func(t *testing.T) string { return writeFile(t, "rules.txt", `[{"id":"p1","effect":"allow"}]`) },
			kind: policy.ErrUnsupportedFormat,
		},
		{
			name:    "malformed json",
			path:    func(t *testing.T) string { return writeFile(t, "policies.json", "not json") },
			kind:    policy.ErrDecodeFailure,
			wantLog: "decode JSON",
		},
		{
			name:    "missing id",
			path:    func(t *testing.T) string { return writeFile(t, "policies.json", `[{"effect":"allow"}]`) },
			kind:    policy.ErrDecodeFailure,
			wantLog: "has no id",
		},
		{
			name: "object instead of array",
			path: func(t *testing.T) string { return writeFile(t, "policies.json", `{"id":"p1"}`) },
			kind: policy.ErrDecodeFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			seed := []policy.Policy{{ID: "existing", Effect: policy.EffectAllow}}
			if _, err := f.store.Store.UpdatePolicies(ctx, seed); err != nil {
				t.Fatal(err)
			}

			out := f.orch.Run(ctx, tt.path(t))

			if out.State != StateLoadFailed {
				t.Errorf("state = %s, want load_failed", out.State)
			}
			if !errors.Is(out.Err, tt.kind) {
				t.Errorf("error = %v, want kind %v", out.Err, tt.kind)
			}
			if f.store.updates != 0 {
				t.Errorf("store updates = %d, want 0", f.store.updates)
			}

			errs := f.handler.atLevel(slog.LevelError)
			if len(errs) != 1 {
				t.Fatalf("error records = %d, want 1", len(errs))
			}
			if tt.wantLog != "" {
				v, _ := attr(errs[0], "error")
				if !strings.Contains(v.String(), tt.wantLog) {
					t.Errorf("error attr %q does not mention %q", v.String(), tt.wantLog)
				}
			}

			got, _ := f.store.ReadPolicies(ctx)
			if !reflect.DeepEqual(got, seed) {
				t.Errorf("store changed to %v", policy.IDs(got))
			}
		})
	}
}

func TestOrchestrator_ApplyFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("backend offline")
	path := writeFile(t, "policies.json", `[{"id":"p1","effect":"allow"}]`)

	out := f.orch.Run(context.Background(), path)

	if out.State != StateApplyFailed {
		t.Errorf("state = %s, want apply_failed", out.State)
	}
	if !errors.Is(out.Err, policy.ErrStoreApplyFailure) {
		t.Errorf("error = %v, want store apply failure", out.Err)
	}
	if !errors.Is(out.Err, f.store.err) {
		t.Error("store error not wrapped")
	}
	if f.store.updates != 1 {
		t.Errorf("store updates = %d, want exactly 1 (no retry)", f.store.updates)
	}
	if n := len(f.handler.atLevel(slog.LevelError)); n != 1 {
		t.Errorf("error records = %d, want 1", n)
	}
}

func TestOrchestrator_StoreRejectsDuplicateIDs(t *testing.T) {
	f := newFixture(t)
	path := writeFile(t, "policies.json", `[{"id":"p1","effect":"allow"},{"id":"p1","effect":"deny"}]`)

	out := f.orch.Run(context.Background(), path)

	if out.State != StateApplyFailed {
		t.Fatalf("state = %s, want apply_failed", out.State)
	}
	var serr *store.Error
	if !errors.As(out.Err, &serr) {
		t.Errorf("expected *store.Error in chain, got %v", out.Err)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:        "idle",
		StateDisabled:    "disabled",
		StateLoadFailed:  "load_failed",
		StateApplyFailed: "apply_failed",
		StateApplied:     "applied",
		State(42):        "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
