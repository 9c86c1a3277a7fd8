package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/policyd/pkg/bootstrap"
	"mercator-hq/policyd/pkg/cli"
	"mercator-hq/policyd/pkg/config"
	"mercator-hq/policyd/pkg/policy/loader"
	"mercator-hq/policyd/pkg/policy/store"
	"mercator-hq/policyd/pkg/server"
	"mercator-hq/policyd/pkg/telemetry/health"
	"mercator-hq/policyd/pkg/telemetry/metrics"
)

type runOptions struct {
	listenAddress string
	dryRun        bool
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Seed the policy store and start the HTTP server",
		Long: `Start policyd with the specified configuration.

Startup runs these steps in order:
  1. store-ping   the configured store must be reachable (aborts on failure)
  2. policy-seed  replace the store contents from the policy file, if one is
                  configured (failures are logged, startup continues)

The HTTP server then serves the store until SIGINT or SIGTERM.

Examples:
  # Start with defaults (in-memory store, no seed)
  policyd run

  # Seed from a file
  policyd run --policy-file /etc/policyd/policies.json

  # Validate config without starting
  policyd run --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, flags, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

// service holds the components assembled from configuration.
type service struct {
	cfg    *config.Config
	logger *slog.Logger

	// backend is the store as opened; store wraps it with metrics when
	// they are enabled. Startup seeding goes to backend so it is not
	// counted as a store update.
	backend   store.Store
	store     store.Store
	collector *metrics.Collector
	checker   *health.Checker
}

// newService opens the store and builds telemetry for cfg.
func newService(cfg *config.Config, logger *slog.Logger) (*service, error) {
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	backend, err := store.Open(&cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	st := backend
	if collector != nil {
		st = store.NewInstrumented(backend, cfg.Store.Backend, collector)
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("store", st.Ping)

	return &service{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		store:     st,
		collector: collector,
		checker:   checker,
	}, nil
}

// startup builds the ordered startup steps. The store check is required;
// the policy seed fails open.
func (s *service) startup(report func(bootstrap.Outcome)) *bootstrap.Sequence {
	orch := bootstrap.NewOrchestrator(
		loader.New(&loader.Config{MaxFileSize: s.cfg.Policy.MaxFileSize}),
		s.backend,
		s.logger,
	)
	return bootstrap.NewSequence(s.logger,
		bootstrap.Required(bootstrap.StoreCheckStep(s.backend)),
		bootstrap.PolicySeedStep(orch, s.cfg.Policy.File, report),
	)
}

func (s *service) Close() error {
	return s.backend.Close()
}

func runServer(cmd *cobra.Command, flags *globalFlags, opts *runOptions) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	if opts.listenAddress != "" {
		cfg.Server.ListenAddress = opts.listenAddress
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	svc, err := newService(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer svc.Close()

	results := svc.startup(func(o bootstrap.Outcome) {
		svc.checker.SetInfo("policy_seed", o.State.String())
	}).Run(ctx)
	if err := results.Err(); err != nil {
		return cli.NewCommandError("run", err)
	}

	logger.Info("startup complete",
		"store", cfg.Store.Backend,
		"readiness_checks", svc.checker.ListChecks(),
	)

	serverOpts := server.Options{
		Server:    &cfg.Server,
		Telemetry: &cfg.Telemetry,
		Store:     svc.store,
		Health:    svc.checker,
		Version:   versionInfo(),
		Logger:    logger,
	}
	if svc.collector != nil {
		serverOpts.Metrics = svc.collector
	}

	if err := server.New(serverOpts).Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}
