package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/policyd/pkg/bootstrap"
	"mercator-hq/policyd/pkg/cli"
	"mercator-hq/policyd/pkg/config"
	"mercator-hq/policyd/pkg/policy"
	"mercator-hq/policyd/pkg/policy/store"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("POLICYD_POLICY_FILE", "")
	os.Unsetenv("POLICYD_POLICY_FILE")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const twoPolicies = `[{"id":"p1","effect":"allow","actions":["read"]},{"id":"p2","effect":"deny"}]`

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "policyd "+Version) {
		t.Errorf("version output = %q", out)
	}
}

func TestValidateCommand_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policies.json", twoPolicies)

	out, _, err := execute(t, "validate", "--file", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2 policies valid") {
		t.Errorf("output = %q", out)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		wantKind string
	}{
		{name: "malformed", path: writeFile(t, dir, "bad.json", "not json"), wantKind: "decode_failure"},
		{name: "extension", path: writeFile(t, dir, "rules.txt", twoPolicies), wantKind: "unsupported_format"},
		{name: "missing", path: filepath.Join(dir, "missing.json"), wantKind: "not_found"},
		{name: "missing id", path: writeFile(t, dir, "noid.json", `[{"effect":"allow"}]`), wantKind: "decode_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "validate", "--file", tt.path, "--output", "json")

			if code := cli.ExitCode(err); code != 1 {
				t.Errorf("exit code = %d, want 1 (err %v)", code, err)
			}
			var report validateReport
			if err := json.Unmarshal([]byte(out), &report); err != nil {
				t.Fatalf("output is not JSON: %v (%q)", err, out)
			}
			if report.Valid || report.Kind != tt.wantKind {
				t.Errorf("report = %+v", report)
			}
		})
	}
}

func TestValidateCommand_NoFile(t *testing.T) {
	_, _, err := execute(t, "validate")

	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestSeedCommand_Applied(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policies.json", twoPolicies)

	out, stderr, err := execute(t, "seed", "--policy-file", path, "--output", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report seedReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, out)
	}
	if report.State != "applied" || report.Applied != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.Snapshot == nil || report.Snapshot.Count != 2 {
		t.Errorf("snapshot = %+v", report.Snapshot)
	}
	if !strings.Contains(stderr, "2 policies") {
		t.Errorf("expected info log with count, got %q", stderr)
	}
}

func TestSeedCommand_FailureExitsZero(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "policies.json", "not json")

	out, stderr, err := execute(t, "seed", "--policy-file", path, "--output", "json")
	if err != nil {
		t.Fatalf("seed failure must not fail the command: %v", err)
	}

	var report seedReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.State != "load_failed" || !strings.Contains(report.Error, "decode JSON") {
		t.Errorf("report = %+v", report)
	}
	if n := strings.Count(stderr, `"level":"ERROR"`); n != 1 {
		t.Errorf("error log lines = %d, want 1:\n%s", n, stderr)
	}
}

func TestSeedCommand_Disabled(t *testing.T) {
	out, stderr, err := execute(t, "seed")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "nothing seeded") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(stderr, `"level":"ERROR"`) {
		t.Errorf("unexpected error log: %s", stderr)
	}
}

func TestSeedCommand_SQLitePersists(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "policies.db")
	policyPath := writeFile(t, dir, "policies.json", twoPolicies)
	cfgPath := writeFile(t, dir, "policyd.yaml", `
policy:
  file: "`+policyPath+`"
store:
  backend: sqlite
  sqlite:
    path: "`+dbPath+`"
telemetry:
  logging:
    level: error
`)

	if _, _, err := execute(t, "seed", "--config", cfgPath); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	st, err := store.NewSQLiteStore(&store.SQLiteConfig{Path: dbPath}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	got, err := st.ReadPolicies(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ids := policy.IDs(got); len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Errorf("persisted ids = %v", ids)
	}
}

func TestRunCommand_DryRun(t *testing.T) {
	out, _, err := execute(t, "run", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("output = %q", out)
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, _, err := execute(t, "run", "--dry-run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	if _, _, err := execute(t, "validate", "--file", "x.json", "--output", "yaml"); err == nil {
		t.Fatal("expected error for unsupported output format")
	}
}

func TestService_SeedIsNotCountedAsStoreUpdate(t *testing.T) {
	cfg := config.Defaults()
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Policy.File = writeFile(t, t.TempDir(), "policies.json", twoPolicies)

	svc, err := newService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	var outcome bootstrap.Outcome
	results := svc.startup(func(o bootstrap.Outcome) { outcome = o }).Run(context.Background())
	if err := results.Err(); err != nil {
		t.Fatal(err)
	}
	if outcome.State != bootstrap.StateApplied {
		t.Fatalf("seed state = %s, want applied", outcome.State)
	}

	n, err := testutil.GatherAndCount(svc.collector.Registry(), "policyd_store_updates_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("store update samples after seed = %d, want 0", n)
	}

	got, err := svc.store.ReadPolicies(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("store holds %d policies after seed, want 2", len(got))
	}

	if _, err := svc.store.UpdatePolicies(context.Background(), got[:1]); err != nil {
		t.Fatal(err)
	}
	n, err = testutil.GatherAndCount(svc.collector.Registry(), "policyd_store_updates_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("store update samples after replace = %d, want 1", n)
	}
}
