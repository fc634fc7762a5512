// Package main is the entry point for the venuesearch CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/venue-search-service/internal/app"
	"github.com/helixir/venue-search-service/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// components is built once the root command's pre-run has loaded config.
var components *app.Components

// rootCmd is the base command for the venuesearch CLI.
var rootCmd = &cobra.Command{
	Use:   "venuesearch",
	Short: "Search top AI conference papers",
	Long: `venuesearch searches ICLR, NeurIPS, ICML, CVPR, ECCV, ICCV and AAAI papers.

The search subcommand runs one keyword against one or more venues. The assist
subcommand turns a research intent into keywords, scans them and reranks
the merged candidates with a language model.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		applyLogFlags(cmd, cfg)

		logger := app.NewLogger(cfg.Logging)
		built, err := app.Build(cfg, logger, nil)
		if err != nil {
			return err
		}
		components = built
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides logging.level")
}

// applyLogFlags sends logs to stderr in console form. The level flag wins
// over the configured level only when it was set.
func applyLogFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		cfg.Logging.Level = level
	}
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "console"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
