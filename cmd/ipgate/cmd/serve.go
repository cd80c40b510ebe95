package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexsphere/ipgate/internal/config"
	"github.com/plexsphere/ipgate/internal/metrics"
	"github.com/plexsphere/ipgate/internal/router"
	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/server"
)

var serveDryRun bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ipgate service",
	Long: "Run the ipgate HTTP service until SIGINT or SIGTERM. The configuration file is\n" +
		"optional when the default path is used.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "log replace commands instead of running them")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("ipgate serve: %w", err)
	}

	// Apply CLI flag overrides.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Listen = addr
	}
	if serveDryRun {
		cfg.Firewall.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("ipgate serve: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)

	privileged := rules.Privileged()
	logger.Info("starting ipgate",
		"version", buildVersion,
		"privileged", privileged,
		"dry_run", cfg.Firewall.DryRun,
	)
	if !privileged {
		logger.Warn("not running as root, serving sample rules and logging changes only")
	}

	reg := metrics.New()
	store := rules.NewStore(cfg.Firewall, nil, privileged, logger)
	store.SetObserver(reg)
	rt := router.New(cfg.API, store, logger)
	srv := server.NewServer(cfg.Server, rt, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ipgate serve: %w", err)
	}

	st := srv.Stats()
	logger.Info("ipgate stopped",
		"connections", st.Connections,
		"requests", st.Requests,
		"malformed", st.Malformed,
		"panics", st.Panics,
	)
	return nil
}
