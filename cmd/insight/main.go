// Command insight is the operator CLI: run scanners, ingest their reports,
// clear the store and talk to the findings assistant.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/scan-insight/internal/bootstrap"
	"github.com/bryanwahyu/scan-insight/internal/config"
	"github.com/bryanwahyu/scan-insight/internal/infra/logging"
)

var (
	configPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:          "insight",
	Short:        "Scan-to-insight pipeline for security scanner findings",
	SilenceUsage: true,
	Long: `insight runs Trivy-based scanners, normalizes and scores their reports
into a finding store, and answers questions about the stored findings.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.Path(), "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.AddCommand(scanCmd, ingestCmd, refreshCmd, askCmd)
}

// loadApp wires the services for one command run.
func loadApp(ctx context.Context, requireLLM bool) (*bootstrap.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}
	// console output for humans
	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		return nil, err
	}
	app, err := bootstrap.Build(ctx, cfg, logger, requireLLM)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

func closeApp(app *bootstrap.App) {
	app.Close()
	_ = app.Log.Sync()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
