// Package preprocess refines raw document text before extraction.
//
// The pipeline runs three stages in order. Normalize lowercases letters.
// Canonicalize asks a model to rewrite quantity and identifier synonyms
// to canonical labels. Segment asks a model to separate items with
// ItemBoundary marker lines. A stage that fails passes its input through
// unchanged, so Run always returns all three layers.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quotient-labs/quotient/internal/inference"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/prompts"
)

// Defaults for model-assisted stages.
const (
	DefaultStageTimeout = 60 * time.Second
	DefaultMaxTokens    = 2000
	DefaultTemperature  = 0.1
)

// Status is the outcome of one stage.
type Status string

const (
	StatusOK          Status = "ok"
	StatusSkipped     Status = "skipped"
	StatusPassthrough Status = "passthrough"
)

// Options selects stages and bounds model calls.
type Options struct {
	SkipNormalize    bool
	SkipCanonicalize bool
	SkipSegment      bool

	StageTimeout time.Duration
	MaxTokens    int
	// Temperature nil uses DefaultTemperature.
	Temperature *float64
}

// Config configures a Pipeline.
type Config struct {
	Inferencer inference.Inferencer
	Model      modelcfg.Config
	Prompts    *prompts.Resolver
	Options    Options
	Logger     *slog.Logger
}

// StageReport records what a stage did.
type StageReport struct {
	Stage    string        `json:"stage" yaml:"stage"`
	Status   Status        `json:"status" yaml:"status"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Result holds the output of every stage.
type Result struct {
	Normalized    string        `json:"normalized" yaml:"normalized"`
	Canonicalized string        `json:"canonicalized" yaml:"canonicalized"`
	Segmented     string        `json:"segmented" yaml:"segmented"`
	Reports       []StageReport `json:"reports" yaml:"reports"`
}

// Passthroughs returns the stages that fell back to their input.
func (r Result) Passthroughs() []string {
	var out []string
	for _, rep := range r.Reports {
		if rep.Status == StatusPassthrough {
			out = append(out, rep.Stage)
		}
	}
	return out
}

// Pipeline runs the preprocessing stages.
type Pipeline struct {
	normalize    Stage
	canonicalize Stage
	segment      Stage
	opts         Options
	logger       *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg Config) *Pipeline {
	opts := cfg.Options
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	llm := func(name, key, tmpl string) *llmStage {
		return &llmStage{
			name:        name,
			promptKey:   key,
			promptTmpl:  tmpl,
			inferencer:  cfg.Inferencer,
			model:       cfg.Model,
			resolver:    cfg.Prompts,
			temperature: temperature,
			maxTokens:   opts.MaxTokens,
		}
	}
	segment := llm(StageSegment, SegmentPromptKey, segmentTmpl)
	segment.extra = map[string]any{"Boundary": ItemBoundary}
	segment.clean = cleanSegments

	return &Pipeline{
		normalize:    normalizeStage{},
		canonicalize: llm(StageCanonicalize, CanonicalizePromptKey, canonicalizeTmpl),
		segment:      segment,
		opts:         opts,
		logger:       logger.With("component", "preprocess"),
	}
}

// Run applies the stages in order. It never fails: a stage that errors,
// times out, panics, or returns empty output passes its input through.
func (p *Pipeline) Run(ctx context.Context, text string) Result {
	var res Result

	res.Normalized = p.run(ctx, p.normalize, p.opts.SkipNormalize, text, &res.Reports)
	res.Canonicalized = p.run(ctx, p.canonicalize, p.opts.SkipCanonicalize, res.Normalized, &res.Reports)
	res.Segmented = p.run(ctx, p.segment, p.opts.SkipSegment, res.Canonicalized, &res.Reports)

	if pt := res.Passthroughs(); len(pt) > 0 {
		p.logger.Warn("preprocessing stages passed input through", "stages", strings.Join(pt, ","))
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, stage Stage, skip bool, input string, reports *[]StageReport) string {
	report := StageReport{Stage: stage.Name(), Status: StatusOK}
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		*reports = append(*reports, report)
	}()

	if skip {
		report.Status = StatusSkipped
		return input
	}

	out, err := p.apply(ctx, stage, input)
	if err == nil && strings.TrimSpace(out) == "" && strings.TrimSpace(input) != "" {
		err = fmt.Errorf("stage returned empty output")
	}
	if err != nil {
		report.Status = StatusPassthrough
		report.Error = err.Error()
		p.logger.Debug("stage passthrough", "stage", stage.Name(), "error", err)
		return input
	}
	return out
}

// apply runs stage under the stage timeout. A stage that ignores its
// context is abandoned when the timeout fires; its late output is discarded.
func (p *Pipeline) apply(ctx context.Context, stage Stage, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.StageTimeout)
	defer cancel()

	type reply struct {
		out string
		err error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("stage panicked: %v", r)}
			}
		}()
		out, err := stage.Apply(ctx, input)
		done <- reply{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("stage timed out after %s: %w", p.opts.StageTimeout, ctx.Err())
		}
		return "", ctx.Err()
	}
}
