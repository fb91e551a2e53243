// Command poolstress drives a blockpool with concurrent workloads and verifies
// that every object is destroyed exactly once.
//
// Usage:
//
//	poolstress run --scenario iterate --workers 8 --duration 30s
//	poolstress config > poolstress.yaml
//	poolstress run --config poolstress.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/blockpool"
	"github.com/hupe1980/blockpool/promcollector"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "poolstress",
		Short:         "Stress test a blockpool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a stress scenario",
		Long: `Run a stress scenario against a fresh pool and print a YAML report.

Scenarios:
  churn    workers emplace objects, others drop them
  iterate  churn while a parallel walk is running
  weak     race weak upgrades against the final drop
  reserve  reserve up front and check that the pool never grows`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStress(ctx, cmd, cfg)
		},
	}
	bindFlags(runCmd.Flags())

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return writeYAML(cmd, cfg)
		},
	}
	bindFlags(configCmd.Flags())

	root.AddCommand(runCmd, configCmd, &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("poolstress v%s\n", version)
			cmd.Printf("Go version: %s\n", runtime.Version())
			cmd.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	return root
}

func runStress(ctx context.Context, cmd *cobra.Command, cfg Config) error {
	logger := cfg.logger()

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		logger.Warn("setting GOMAXPROCS failed", "error", err)
	}

	var opts []blockpool.Option
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		opts = append(opts, blockpool.WithMetricsCollector(promcollector.New(promcollector.WithRegisterer(reg))))

		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	logger.Info("starting stress run",
		"scenario", cfg.Scenario,
		"workers", cfg.Workers,
		"objects", cfg.Objects,
		"duration", cfg.Duration,
	)

	report, err := newStress(cfg, opts...).run(ctx)
	if werr := writeYAML(cmd, report); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
