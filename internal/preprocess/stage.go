package preprocess

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/quotient-labs/quotient/internal/inference"
	"github.com/quotient-labs/quotient/internal/metrics"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/prompts"
)

// ItemBoundary is the marker line the segment stage places between items.
const ItemBoundary = "<<ITEM>>"

// Stage names.
const (
	StageNormalize    = "normalize"
	StageCanonicalize = "canonicalize"
	StageSegment      = "segment"
)

//go:embed canonicalize.tmpl
var canonicalizeTmpl string

//go:embed segment.tmpl
var segmentTmpl string

// Prompt keys
const (
	CanonicalizePromptKey = "stages.preprocess.canonicalize"
	SegmentPromptKey      = "stages.preprocess.segment"
)

// RegisterPrompts registers the preprocessing prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         CanonicalizePromptKey,
		Text:        canonicalizeTmpl,
		Description: "Rewrites quantity and identifier synonyms to canonical labels",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         SegmentPromptKey,
		Text:        segmentTmpl,
		Description: "Splits text into items separated by boundary marker lines",
	})
}

// Stage transforms text.
type Stage interface {
	Name() string
	Apply(ctx context.Context, text string) (string, error)
}

// Normalize lowercases letters and leaves every other rune untouched.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return r
	}, text)
}

type normalizeStage struct{}

func (normalizeStage) Name() string { return StageNormalize }

func (normalizeStage) Apply(_ context.Context, text string) (string, error) {
	return Normalize(text), nil
}

var errNoInferencer = errors.New("no inferencer configured")

// llmStage renders a prompt over its input and returns the model output.
type llmStage struct {
	name       string
	promptKey  string
	promptTmpl string
	extra      map[string]any
	clean      func(string) string

	inferencer  inference.Inferencer
	model       modelcfg.Config
	resolver    *prompts.Resolver
	temperature float64
	maxTokens   int
}

func (s *llmStage) Name() string { return s.name }

func (s *llmStage) Apply(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if s.inferencer == nil {
		return "", errNoInferencer
	}
	maxChars, maxTokens := s.model.FitContext(math.MaxInt, s.maxTokens)
	if len(text) > maxChars {
		return "", fmt.Errorf("input of %d chars does not fit the %d-token context window", len(text), s.model.MaxContextLength)
	}

	data := map[string]any{"Text": text}
	for k, v := range s.extra {
		data[k] = v
	}

	var (
		prompt string
		err    error
	)
	if s.resolver != nil {
		prompt, err = s.resolver.Render(s.promptKey, data)
	}
	if s.resolver == nil || err != nil {
		prompt, err = prompts.Render(s.promptKey, s.promptTmpl, data)
		if err != nil {
			return "", err
		}
	}

	ctx = metrics.WithStage(ctx, s.name)
	ctx = inference.WithGeneration(ctx, inference.Generation{
		Temperature: s.temperature,
		MaxTokens:   maxTokens,
	})
	out, err := s.inferencer.Infer(ctx, prompt, s.model)
	if err != nil {
		return "", err
	}
	out = stripFences(out)
	if s.clean != nil {
		out = s.clean(out)
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// cleanSegments puts every boundary marker on its own line and drops
// leading, trailing, and repeated markers.
func cleanSegments(s string) string {
	s = strings.ReplaceAll(s, ItemBoundary, "\n"+ItemBoundary+"\n")

	var out []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == ItemBoundary {
			if len(out) == 0 || out[len(out)-1] == ItemBoundary {
				continue
			}
			out = append(out, ItemBoundary)
			continue
		}
		if trimmed == "" {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	for len(out) > 0 && out[len(out)-1] == ItemBoundary {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// Segments splits segmented text on boundary markers.
func Segments(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ItemBoundary) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
