package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/config"
	"github.com/quotient-labs/quotient/internal/home"
	"github.com/quotient-labs/quotient/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "quotient",
	Short: "Hardware-aware extraction of inventory items from documents",
	Long: `Quotient turns invoices, quotes and parts lists into structured
inventory items.

It detects the machine's hardware, picks a model configuration that fits,
and runs:
  - Document ingest (txt, md, csv, xlsx, pdf)
  - Preprocessing (normalize, canonicalize, segment)
  - Model extraction with a rule-based fallback
  - Normalization and export (json, yaml, csv, xlsx)`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.quotient/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "quotient home directory (default: ~/.quotient)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// env is the configuration shared by commands that run locally.
type env struct {
	home   *home.Dir
	config *config.Manager
	logger *slog.Logger
}

// loadEnv resolves the home directory, loads the config file and builds a
// logger at the configured level.
func loadEnv() (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: mgr.Get().Level(),
	}))
	mgr.SetLogger(logger)
	if used := mgr.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "path", used)
	}

	return &env{home: h, config: mgr, logger: logger}, nil
}
