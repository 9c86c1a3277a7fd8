package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/policyd/pkg/cli"
	"mercator-hq/policyd/pkg/config"
	"mercator-hq/policyd/pkg/telemetry/logging"
)

// defaultConfigPath is read when --config is not given. Its absence is not
// an error.
const defaultConfigPath = "policyd.yaml"

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile string
	policyFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "policyd",
		Short: "policyd - policy store service with startup seeding",
		Long: `policyd holds the active policy set of a service and exposes it over HTTP.

At startup it can seed the store from an operator-supplied JSON file:
  - the file path comes from policy.file, POLICYD_POLICY_FILE or --policy-file
  - an empty path disables seeding
  - a missing, unreadable or malformed file is logged and the service
    starts with the store unchanged`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().StringVar(&flags.policyFile, "policy-file", "", "policy file to seed at startup (overrides policy.file)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output (debug logging)")

	root.AddCommand(
		newRunCmd(flags),
		newSeedCmd(flags),
		newValidateCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the configuration named by --config, applies environment
// and flag overrides. The result is passed explicitly to every component.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.LoadConfigWithEnvOverrides(flags.configFile, allowMissing)
	if err != nil {
		return nil, cli.NewConfigError(flags.configFile, err.Error())
	}

	if cmd.Flags().Changed("policy-file") {
		cfg.Policy.File = flags.policyFile
	}
	if flags.verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	lc := logging.FromConfig(cfg.Telemetry.Logging)
	lc.Writer = cmd.ErrOrStderr()

	logger, err := logging.New(lc)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}
