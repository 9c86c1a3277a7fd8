package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/policyd/pkg/cli"
	"mercator-hq/policyd/pkg/policy"
	"mercator-hq/policyd/pkg/policy/loader"
)

// validateReport is the printed result of the validate command.
type validateReport struct {
	Path  string   `json:"path"`
	Valid bool     `json:"valid"`
	Count int      `json:"count"`
	IDs   []string `json:"ids,omitempty"`
	Kind  string   `json:"kind,omitempty"`
	Error string   `json:"error,omitempty"`
}

func (r validateReport) String() string {
	if r.Valid {
		return fmt.Sprintf("✓ %s: %d policies valid", r.Path, r.Count)
	}
	return fmt.Sprintf("✗ %s: %s", r.Path, r.Error)
}

func newValidateCmd(flags *globalFlags) *cobra.Command {
	var (
		file   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a policy file without touching any store",
		Long: `Run the policy file checks used by the startup seed and report the result.

The file must exist, have a .json extension, be readable UTF-8 and decode as
a JSON array of policies. Exits 1 when the file is rejected.

Examples:
  policyd validate --file policies.json
  policyd validate                     # uses policy.file from config
  policyd validate --file policies.json --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, flags, file, cli.OutputFormat(output))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "policy file to validate (defaults to policy.file)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json")
	return cmd
}

func runValidate(cmd *cobra.Command, flags *globalFlags, file string, format cli.OutputFormat) error {
	formatter, err := cli.NewFormatter(format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	path := file
	if path == "" {
		path = cfg.Policy.File
	}
	if path == "" {
		return cli.NewConfigError("policy.file", "no policy file given (use --file or set policy.file)")
	}

	l := loader.New(&loader.Config{MaxFileSize: cfg.Policy.MaxFileSize})
	policies, loadErr := l.Load(path)

	report := validateReport{Path: path, Valid: loadErr == nil}
	if loadErr != nil {
		report.Kind = policy.KindOf(loadErr).String()
		report.Error = loadErr.Error()
	} else {
		report.Count = len(policies)
		report.IDs = policy.IDs(policies)
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if loadErr != nil {
		return &cli.ExitError{Code: 1, Err: loadErr, Silent: true}
	}
	return nil
}
