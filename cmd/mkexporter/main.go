package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mkexporter/internal/app"
	"mkexporter/internal/config"
	"mkexporter/internal/exporter"
	"mkexporter/internal/logging"
)

const (
	exitCodeFailure = 1
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// run executes the command line.
// Params: none.
// Returns: process exit code.
func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeFailure
	}
	return 0
}

// newRootCmd builds the command tree; running without subcommand exports.
// Params: none.
// Returns: root cobra command.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mkexporter",
		Short:         "Prometheus exporter for RouterOS devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), configPath)
		},
	}
	addConfigFlag(root.PersistentFlags(), &configPath)

	root.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Serve metrics over HTTP (SIGHUP reloads config)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runExport(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "print",
			Short: "Collect once and print metrics in text exposition format",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPrint(cmd.Context(), configPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "mkexporter version=%s commit=%s date=%s\n", version, commit, date)
			},
		},
	)

	return root
}

// addConfigFlag registers the shared --config flag.
// Params: flags target flag set; target receives the path.
// Returns: none.
func addConfigFlag(flags *pflag.FlagSet, target *string) {
	flags.StringVarP(target, "config", "c", "config.toml", "path to TOML config file or directory")
}

// runExport serves metrics until SIGINT/SIGTERM, reloading on SIGHUP.
// Params: parent context from cobra; configPath config file or directory.
// Returns: runtime error.
func runExport(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloadSignal := make(chan os.Signal, 1)
	signal.Notify(reloadSignal, syscall.SIGHUP)
	defer signal.Stop(reloadSignal)

	reload := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reloadSignal:
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		}
	}()

	return app.Run(ctx, app.Runtime{ConfigPath: configPath, Reload: reload})
}

// runPrint performs one collection pass and writes text exposition.
// Params: parent context; configPath config location; out exposition destination; logOut log destination.
// Returns: config, build or write error.
func runPrint(parent context.Context, configPath string, out, logOut io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: logging.ParseLevel(cfg.Log.Console.Level),
	}))

	exp, err := exporter.NewExporterFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build exporter: %w", err)
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(exp); err != nil {
		return fmt.Errorf("register exporter: %w", err)
	}

	if err := exporter.WriteText(registry, out); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func main() {
	os.Exit(run())
}
