// Package babbage chains ingestion, preprocessing, extraction and
// normalization into a single document processing service.
package babbage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quotient-labs/quotient/internal/extraction"
	"github.com/quotient-labs/quotient/internal/hardware"
	"github.com/quotient-labs/quotient/internal/inference"
	"github.com/quotient-labs/quotient/internal/ingest"
	"github.com/quotient-labs/quotient/internal/inventory"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/preprocess"
	"github.com/quotient-labs/quotient/internal/prompts"
)

// Config configures a Service. Nil components get defaults: a reader
// with default limits, a hardware cache over the system detector, and the
// default model selector.
type Config struct {
	Reader   *ingest.Reader
	Hardware *hardware.Cache
	Selector *modelcfg.Selector

	// Model is the requested model ID; empty uses the selector default.
	Model       string
	MaxMemoryGB *float64

	// Inferencer runs the model-assisted stages. Nil leaves only the
	// rule tier, so every item is low confidence.
	Inferencer inference.Inferencer
	Prompts    *prompts.Resolver

	Preprocess preprocess.Options
	// Extraction tunes the extraction engine. Its Inferencer, Prompts and
	// Logger are replaced by the Service's own.
	Extraction extraction.Config

	Deduplicate bool
	Logger      *slog.Logger
}

// Request is one unit of work.
type Request struct {
	Text   string
	Source string
	// SourceType is the ingest format, or "text" for raw text.
	SourceType string
	// MaxItems caps the returned items; zero means no cap.
	MaxItems int
}

// Service processes documents into inventory results. It is safe for
// concurrent use.
type Service struct {
	reader     *ingest.Reader
	hardware   *hardware.Cache
	selector   *modelcfg.Selector
	model      string
	maxMemory  *float64
	inferencer inference.Inferencer
	prompts    *prompts.Resolver
	preprocess preprocess.Options
	extraction extraction.Config
	dedupe     bool
	logger     *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Reader == nil {
		cfg.Reader = ingest.NewReader(ingest.Config{Logger: logger})
	}
	if cfg.Hardware == nil {
		cfg.Hardware = hardware.NewCache(hardware.NewDetector(hardware.Config{Logger: logger}), 0)
	}
	if cfg.Selector == nil {
		cfg.Selector = modelcfg.NewSelector(modelcfg.Options{Logger: logger})
	}
	return &Service{
		reader:     cfg.Reader,
		hardware:   cfg.Hardware,
		selector:   cfg.Selector,
		model:      cfg.Model,
		maxMemory:  cfg.MaxMemoryGB,
		inferencer: cfg.Inferencer,
		prompts:    cfg.Prompts,
		preprocess: cfg.Preprocess,
		extraction: cfg.Extraction,
		dedupe:     cfg.Deduplicate,
		logger:     logger.With("component", "babbage"),
		stats:      Stats{StartedAt: time.Now()},
	}
}

// Reader returns the service's document reader.
func (s *Service) Reader() *ingest.Reader { return s.reader }

// Hardware returns the hardware profile, detecting it on first use.
func (s *Service) Hardware(ctx context.Context, refresh bool) (hardware.Profile, error) {
	if refresh {
		return s.hardware.Refresh(ctx)
	}
	return s.hardware.Get(ctx)
}

// ModelConfig selects the model configuration for the current hardware.
func (s *Service) ModelConfig(ctx context.Context) (modelcfg.Config, error) {
	return s.SelectModel(ctx, "", nil)
}

// SelectModel selects a configuration for model on the current hardware.
// An empty model or nil ceiling uses the service's configured values.
func (s *Service) SelectModel(ctx context.Context, model string, maxMemoryGB *float64) (modelcfg.Config, error) {
	profile, err := s.hardware.Get(ctx)
	if err != nil {
		return modelcfg.Config{}, err
	}
	if model == "" {
		model = s.model
	}
	if maxMemoryGB == nil {
		maxMemoryGB = s.maxMemory
	}
	return s.selector.Select(profile, model, maxMemoryGB)
}

// Preprocess runs the preprocessing pipeline over text.
func (s *Service) Preprocess(ctx context.Context, text string) (preprocess.Result, modelcfg.Config) {
	cfg, inf, _ := s.plan(ctx)
	return s.pipeline(cfg, inf).Run(ctx, text), cfg
}

// Extract runs the extraction engine directly on text, without
// preprocessing or normalization.
func (s *Service) Extract(ctx context.Context, text string) ([]extraction.Item, modelcfg.Config, error) {
	cfg, inf, err := s.plan(ctx)
	if err != nil {
		return nil, cfg, selectionFailed(err)
	}
	items, err := s.engine(inf).Extract(ctx, text, cfg)
	return items, cfg, err
}

// ProcessDocument reads the file at path and processes its text.
func (s *Service) ProcessDocument(ctx context.Context, path string) (*inventory.Result, error) {
	return s.ProcessPath(ctx, path, 0)
}

// ProcessPath is ProcessDocument keeping at most maxItems items.
func (s *Service) ProcessPath(ctx context.Context, path string, maxItems int) (*inventory.Result, error) {
	doc, err := s.reader.Read(ctx, path)
	if err != nil {
		s.count(func(st *Stats) { st.Failures++ })
		return nil, err
	}
	s.count(func(st *Stats) { st.Documents++ })
	return s.Process(ctx, Request{Text: doc.Text, Source: path, SourceType: doc.Format, MaxItems: maxItems})
}

// ProcessUpload decodes an uploaded file and processes its text.
func (s *Service) ProcessUpload(ctx context.Context, name string, data []byte, maxItems int) (*inventory.Result, error) {
	doc, err := s.reader.Decode(ctx, name, data)
	if err != nil {
		s.count(func(st *Stats) { st.Failures++ })
		return nil, err
	}
	s.count(func(st *Stats) { st.Documents++ })
	return s.Process(ctx, Request{Text: doc.Text, Source: name, SourceType: doc.Format, MaxItems: maxItems})
}

// ProcessText processes raw text attributed to source.
func (s *Service) ProcessText(ctx context.Context, text, source string) (*inventory.Result, error) {
	return s.Process(ctx, Request{Text: text, Source: source})
}

// Process runs preprocessing, extraction and normalization. Model tier
// failures that the rules recover from are reported as warnings. A model
// that cannot be selected, or extraction that yields nothing at all, is
// returned as an error, as is ctx being done.
func (s *Service) Process(ctx context.Context, req Request) (*inventory.Result, error) {
	start := time.Now()
	if req.SourceType == "" {
		req.SourceType = "text"
	}
	res := inventory.NewResult(req.Source, req.SourceType)

	cfg, inf, err := s.plan(ctx)
	if err != nil {
		s.count(func(st *Stats) { st.Failures++ })
		return nil, selectionFailed(err)
	}

	pre := s.pipeline(cfg, inf).Run(ctx, req.Text)
	for _, rep := range pre.Reports {
		if rep.Status == preprocess.StatusPassthrough && inf != nil {
			res.AddWarning(fmt.Sprintf("preprocess %s stage passed its input through: %s", rep.Stage, rep.Error))
		}
	}

	items, err := s.engine(inf).ExtractFrom(ctx, extraction.Input{Text: pre.Segmented, RawText: req.Text}, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.count(func(st *Stats) { st.Failures++ })
		s.logger.Warn("no items extracted", "source", req.Source, "error", err)
		return nil, err
	}

	fallback := false
	for _, it := range items {
		if it.LowConfidence {
			fallback = true
		}
		res.Items = append(res.Items, inventory.FromExtracted(it, req.Source))
	}
	if fallback {
		res.AddWarning("model extraction unavailable; items were extracted by rules and are low confidence")
	}
	if s.dedupe {
		res.Items = inventory.Deduplicate(res.Items)
	}
	if req.MaxItems > 0 && len(res.Items) > req.MaxItems {
		res.AddWarning(fmt.Sprintf("truncated %d items to %d", len(res.Items), req.MaxItems))
		res.Items = res.Items[:req.MaxItems]
	}
	res.Finish(time.Since(start))

	s.count(func(st *Stats) {
		st.Processed++
		st.Items += len(res.Items)
		st.LowConfidenceItems += res.Summary.LowConfidence
		st.Passthroughs += len(pre.Passthroughs())
		st.TotalTime += res.Duration
		if fallback {
			st.Fallbacks++
		}
	})
	s.logger.Info("processed",
		"id", res.ID,
		"source", req.Source,
		"items", len(res.Items),
		"confidence", res.Confidence,
		"duration", res.Duration)
	return res, nil
}

// plan resolves the model config and the inferencer to use with it. When
// selection fails the returned inferencer reports a load failure, so the
// preprocessing stages pass their input through.
func (s *Service) plan(ctx context.Context) (modelcfg.Config, inference.Inferencer, error) {
	cfg, err := s.ModelConfig(ctx)
	if err != nil {
		s.logger.Warn("model selection failed", "model", s.model, "error", err)
		modelID := s.model
		if modelID == "" {
			modelID = modelcfg.DefaultModel
		}
		loadErr := &inference.ModelLoadError{ModelID: modelID, Err: err}
		unavailable := inference.InferencerFunc(func(context.Context, string, modelcfg.Config) (string, error) {
			return "", loadErr
		})
		return modelcfg.Config{ModelID: modelID}, unavailable, err
	}
	return cfg, s.inferencer, nil
}

// selectionFailed attaches the remediation hint carried by err, if any.
func selectionFailed(err error) error {
	var h interface{ Hint() string }
	if errors.As(err, &h) {
		return fmt.Errorf("model selection failed: %w (%s)", err, h.Hint())
	}
	return fmt.Errorf("model selection failed: %w", err)
}

func (s *Service) pipeline(cfg modelcfg.Config, inf inference.Inferencer) *preprocess.Pipeline {
	return preprocess.NewPipeline(preprocess.Config{
		Inferencer: inf,
		Model:      cfg,
		Prompts:    s.prompts,
		Options:    s.preprocess,
		Logger:     s.logger,
	})
}

func (s *Service) engine(inf inference.Inferencer) *extraction.Engine {
	ec := s.extraction
	ec.Inferencer = inf
	ec.Prompts = s.prompts
	ec.Logger = s.logger
	return extraction.NewEngine(ec)
}

// IsRequestError reports whether err comes from an invalid input document
// rather than from processing.
func IsRequestError(err error) bool {
	var (
		notFound    *ingest.FileNotFoundError
		tooLarge    *ingest.FileTooLargeError
		unsupported *ingest.UnsupportedFormatError
	)
	return errors.As(err, &notFound) || errors.As(err, &tooLarge) || errors.As(err, &unsupported)
}

// Stats are running totals since the service started.
type Stats struct {
	StartedAt          time.Time     `json:"started_at" yaml:"started_at"`
	Documents          int           `json:"documents" yaml:"documents"`
	Processed          int           `json:"processed" yaml:"processed"`
	Items              int           `json:"items" yaml:"items"`
	LowConfidenceItems int           `json:"low_confidence_items" yaml:"low_confidence_items"`
	Fallbacks          int           `json:"fallbacks" yaml:"fallbacks"`
	Passthroughs       int           `json:"passthroughs" yaml:"passthroughs"`
	Failures           int           `json:"failures" yaml:"failures"`
	TotalTime          time.Duration `json:"total_time" yaml:"total_time"`
}

// AverageTime is the mean processing time per request.
func (st Stats) AverageTime() time.Duration {
	if st.Processed == 0 {
		return 0
	}
	return st.TotalTime / time.Duration(st.Processed)
}

// Stats returns a snapshot of the running totals.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Service) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// Summary renders stats as a short human-readable block.
func (st Stats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed:       %d (%d documents)\n", st.Processed, st.Documents)
	fmt.Fprintf(&b, "Items:           %d (%d low confidence)\n", st.Items, st.LowConfidenceItems)
	fmt.Fprintf(&b, "Rule fallbacks:  %d\n", st.Fallbacks)
	fmt.Fprintf(&b, "Failures:        %d\n", st.Failures)
	fmt.Fprintf(&b, "Average time:    %s\n", st.AverageTime().Round(time.Millisecond))
	return b.String()
}
