package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/babbage"
	"github.com/quotient-labs/quotient/internal/batch"
	"github.com/quotient-labs/quotient/internal/extraction"
	"github.com/quotient-labs/quotient/internal/hardware"
	"github.com/quotient-labs/quotient/internal/inference"
	"github.com/quotient-labs/quotient/internal/inventory"
	"github.com/quotient-labs/quotient/internal/preprocess"
	"github.com/quotient-labs/quotient/internal/prompts"
	"github.com/quotient-labs/quotient/internal/providers"
	"github.com/quotient-labs/quotient/internal/server/endpoints"
)

// local is an in-process service stack for commands that run without a
// server.
type local struct {
	*env
	service   *babbage.Service
	inference *inference.Manager
}

func newLocal() (*local, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, err
	}
	c := e.config.Get()

	registry := providers.NewRegistry()
	registry.SetLogger(e.logger)
	registry.Reload(c.ToProviderRegistryConfig())

	resolver := newResolver(e)
	inf := inference.NewManager(inference.ManagerConfig{
		Loader: c.ProviderLoader(registry, nil, e.logger),
		Logger: e.logger,
	})
	cache := hardware.NewCache(hardware.NewDetector(c.HardwareConfig(e.logger)), 0)

	return &local{
		env:       e,
		service:   babbage.NewService(c.ServiceConfig(cache, inf, resolver, e.logger)),
		inference: inf,
	}, nil
}

// Close releases loaded models.
func (l *local) Close() {
	if err := l.inference.Close(); err != nil {
		l.logger.Warn("failed to unload models", "error", err)
	}
}

func newResolver(e *env) *prompts.Resolver {
	resolver := prompts.NewResolver(e.home.PromptsPath(), e.logger)
	preprocess.RegisterPrompts(resolver)
	extraction.RegisterPrompts(resolver)
	return resolver
}

// readArg returns the text argument, the file it names with a leading @,
// or stdin for "-".
func readArg(arg string) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return "", fmt.Errorf("read %s: %w", arg[1:], err)
		}
		return string(data), nil
	}
	return arg, nil
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect this machine's hardware",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		detector := hardware.NewDetector(e.config.Get().HardwareConfig(e.logger))
		profile, err := detector.Detect(cmd.Context())
		if err != nil {
			return err
		}
		e.logger.Info("detected hardware", "profile", hardware.Describe(profile))
		return api.Output(profile)
	},
}

var selectMaxMemory float64

var selectCmd = &cobra.Command{
	Use:   "select [model]",
	Short: "Choose a model configuration for this machine",
	Long: `Select detects the hardware and picks a quantization, device and
memory limit for the model (model.id from config when omitted).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLocal()
		if err != nil {
			return err
		}
		defer l.Close()

		var model string
		if len(args) == 1 {
			model = args[0]
		}
		var maxMemory *float64
		if cmd.Flags().Changed("max-memory") {
			maxMemory = &selectMaxMemory
		}
		cfg, err := l.service.SelectModel(cmd.Context(), model, maxMemory)
		if err != nil {
			return err
		}
		return api.Output(cfg)
	},
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess <text|@file|->",
	Short: "Normalize, canonicalize and segment text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readArg(args[0])
		if err != nil {
			return err
		}
		l, err := newLocal()
		if err != nil {
			return err
		}
		defer l.Close()

		res, cfg := l.service.Preprocess(cmd.Context(), text)
		return api.Output(endpoints.PreprocessResponse{
			Result:       res,
			Passthroughs: res.Passthroughs(),
			Segments:     preprocess.Segments(res.Segmented),
			Model:        cfg,
		})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <text|@file|->",
	Short: "Extract items from text without normalization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readArg(args[0])
		if err != nil {
			return err
		}
		l, err := newLocal()
		if err != nil {
			return err
		}
		defer l.Close()

		items, cfg, err := l.service.Extract(cmd.Context(), text)
		if err != nil {
			return err
		}
		resp := endpoints.ExtractResponse{Items: items, Model: cfg}
		for _, it := range items {
			if it.Tier == extraction.TierRules {
				resp.Fallback = true
				break
			}
		}
		return api.Output(resp)
	},
}

var (
	processText     bool
	processSource   string
	processMaxItems int
	processExport   string
	processOut      string
)

var processCmd = &cobra.Command{
	Use:   "process <path|text> [path...]",
	Short: "Extract inventory items from documents",
	Long: `Process reads documents (txt, md, csv, xlsx, pdf), extracts their
items and normalizes them into inventory records. Several paths are
processed concurrently, ingest.batch_size at a time.

Examples:
  quotient process invoice.pdf
  quotient process quote.xlsx --export csv
  quotient process invoices/*.pdf --export
  quotient process --text "Qty: 100 pcs - Resistor 10kΩ - $0.05 each"
  cat order.txt | quotient process --text - --source order.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if processMaxItems < 0 {
			return fmt.Errorf("--max-items must not be negative")
		}
		if len(args) > 1 && processText {
			return fmt.Errorf("--text takes a single argument")
		}
		if len(args) > 1 && processOut != "" {
			return fmt.Errorf("--out takes a single document; use --export to write one file per document")
		}
		l, err := newLocal()
		if err != nil {
			return err
		}
		defer l.Close()

		exporting := cmd.Flags().Changed("export") || processOut != ""
		if len(args) > 1 {
			return l.processBatch(cmd.Context(), args, exporting)
		}

		var res *inventory.Result
		if processText {
			text, err := readArg(args[0])
			if err != nil {
				return err
			}
			res, err = l.service.Process(cmd.Context(), babbage.Request{
				Text:     text,
				Source:   processSource,
				MaxItems: processMaxItems,
			})
			if err != nil {
				return err
			}
		} else {
			res, err = l.service.ProcessPath(cmd.Context(), args[0], processMaxItems)
			if err != nil {
				return err
			}
		}

		if exporting {
			return l.export(res)
		}
		return api.Output(res)
	},
}

// processBatch runs paths through a worker pool. Per-document failures are
// reported, and the command fails only when every document failed.
func (l *local) processBatch(ctx context.Context, paths []string, exporting bool) error {
	pool := batch.New(l.service, batch.Config{
		Workers:  l.config.Get().Ingest.BatchSize,
		MaxItems: processMaxItems,
		Logger:   l.logger,
	})
	report, err := pool.Run(ctx, paths)
	if err != nil {
		return err
	}

	if exporting {
		for _, o := range report.Outcomes {
			if o.Result == nil {
				continue
			}
			if err := l.export(o.Result); err != nil {
				return err
			}
		}
		for _, o := range report.Outcomes {
			if o.Error != "" {
				fmt.Fprintf(os.Stderr, "%s: %s\n", o.Path, o.Error)
			}
		}
	} else if err := api.Output(report); err != nil {
		return err
	}

	if report.Succeeded == 0 {
		return fmt.Errorf("all %d documents failed", report.Failed)
	}
	return nil
}

// export writes res to --out, or a timestamped file in the output dir.
// The format is --export, then the --out extension, then output.format.
func (l *local) export(res *inventory.Result) error {
	c := l.config.Get()
	name := strings.TrimSpace(processExport)
	if name == "" && processOut != "" {
		name = filepath.Ext(processOut)
	}
	if name == "" {
		name = c.Output.Format
	}
	format, err := inventory.ParseFormat(name)
	if err != nil {
		return err
	}

	path := processOut
	if path == "" {
		path = l.home.ExportPath(c.Output.Dir, res.Source, string(format), time.Now())
	}
	if err := inventory.ExportFile(path, res, format); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d items to %s\n", len(res.Items), path)
	return nil
}

func init() {
	selectCmd.Flags().Float64Var(&selectMaxMemory, "max-memory", 0, "Memory ceiling in GB (default: 80% of available)")

	processCmd.Flags().BoolVar(&processText, "text", false, "Treat the argument as text (@file and - are accepted)")
	processCmd.Flags().StringVar(&processSource, "source", "", "Source name recorded for --text input")
	processCmd.Flags().IntVar(&processMaxItems, "max-items", 0, "Maximum items to return (0 = no limit)")
	processCmd.Flags().StringVar(&processExport, "export", "", "Export to a file: json, yaml, csv or xlsx (default: output.format)")
	processCmd.Flags().Lookup("export").NoOptDefVal = " "
	processCmd.Flags().StringVar(&processOut, "out", "", "Export file path (format from its extension unless --export is set)")

	rootCmd.AddCommand(detectCmd, selectCmd, preprocessCmd, extractCmd, processCmd)
}
