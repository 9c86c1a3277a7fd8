package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/policyd/pkg/bootstrap"
	"mercator-hq/policyd/pkg/cli"
	"mercator-hq/policyd/pkg/policy/store"
)

// seedReport is the printed result of the seed command.
type seedReport struct {
	State      string          `json:"state"`
	Path       string          `json:"path,omitempty"`
	Applied    int             `json:"applied"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Snapshot   *store.Snapshot `json:"snapshot,omitempty"`
}

func (r seedReport) String() string {
	var b strings.Builder
	switch r.State {
	case bootstrap.StateApplied.String():
		fmt.Fprintf(&b, "✓ Seeded %d policies from %s", r.Applied, r.Path)
		if r.Snapshot != nil {
			fmt.Fprintf(&b, " (revision %s, version %s)", r.Snapshot.Revision, r.Snapshot.Version)
		}
	case bootstrap.StateDisabled.String():
		b.WriteString("- No policy file configured, nothing seeded")
	default:
		fmt.Fprintf(&b, "✗ Seed %s: %s", r.State, r.Error)
	}
	return b.String()
}

func newSeedCmd(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the configured store once and print the outcome",
		Long: `Run the startup policy seed against the configured store without serving.

The outcome is printed; a failed seed is reported but still exits 0, exactly
as the service would continue starting. Only an unreachable store or invalid
configuration exits non-zero.

Examples:
  policyd seed --policy-file policies.json
  policyd seed --config /etc/policyd/policyd.yaml --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, flags, cli.OutputFormat(output))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json")
	return cmd
}

func runSeed(cmd *cobra.Command, flags *globalFlags, format cli.OutputFormat) error {
	formatter, err := cli.NewFormatter(format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return cli.NewCommandError("seed", err)
	}
	defer svc.Close()

	var outcome bootstrap.Outcome
	results := svc.startup(func(o bootstrap.Outcome) { outcome = o }).Run(cmd.Context())
	if err := results.Err(); err != nil {
		return cli.NewCommandError("seed", err)
	}

	report := seedReport{
		State:      outcome.State.String(),
		Path:       outcome.Path,
		Applied:    outcome.Applied,
		Error:      outcome.Error(),
		DurationMS: outcome.Duration.Milliseconds(),
	}
	if outcome.State == bootstrap.StateApplied {
		if snap, err := svc.store.Snapshot(cmd.Context()); err == nil {
			report.Snapshot = &snap
		}
	}

	return formatter.FormatTo(cmd.OutOrStdout(), report)
}
