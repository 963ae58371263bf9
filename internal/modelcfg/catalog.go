package modelcfg

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// DefaultContextLength is used for models without catalog metadata.
const DefaultContextLength = 4096

// overheadFactor covers KV cache, activations and runtime buffers on top of
// raw weight storage.
const overheadFactor = 1.2

// ModelInfo is declared size metadata for a model.
type ModelInfo struct {
	ID            string  `json:"id" yaml:"id"`
	ParamsB       float64 `json:"params_b" yaml:"params_b"`
	ContextLength int     `json:"context_length,omitempty" yaml:"context_length,omitempty"`
}

// Catalog is a lookup of known model sizes, keyed case-insensitively by ID
// and by the base name after the last "/".
type Catalog struct {
	mu     sync.RWMutex
	models map[string]ModelInfo
}

// NewCatalog returns a catalog seeded with the given models.
func NewCatalog(models ...ModelInfo) *Catalog {
	c := &Catalog{models: make(map[string]ModelInfo)}
	for _, m := range models {
		c.Register(m)
	}
	return c
}

// DefaultCatalog returns the built-in model table.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		ModelInfo{ID: "meta-llama/Llama-2-7b-chat-hf", ParamsB: 6.74, ContextLength: 4096},
		ModelInfo{ID: "meta-llama/Llama-2-13b-chat-hf", ParamsB: 13.0, ContextLength: 4096},
		ModelInfo{ID: "meta-llama/Llama-2-70b-chat-hf", ParamsB: 69.0, ContextLength: 4096},
		ModelInfo{ID: "meta-llama/Meta-Llama-3-8B-Instruct", ParamsB: 8.03, ContextLength: 8192},
		ModelInfo{ID: "mistralai/Mistral-7B-Instruct-v0.2", ParamsB: 7.24, ContextLength: 32768},
		ModelInfo{ID: "mistralai/Mixtral-8x7B-Instruct-v0.1", ParamsB: 46.7, ContextLength: 32768},
		ModelInfo{ID: "microsoft/phi-2", ParamsB: 2.78, ContextLength: 2048},
		ModelInfo{ID: "microsoft/Phi-3-mini-4k-instruct", ParamsB: 3.82, ContextLength: 4096},
		ModelInfo{ID: "google/gemma-2b-it", ParamsB: 2.51, ContextLength: 8192},
		ModelInfo{ID: "TinyLlama/TinyLlama-1.1B-Chat-v1.0", ParamsB: 1.1, ContextLength: 2048},
		ModelInfo{ID: "Qwen/Qwen2.5-0.5B-Instruct", ParamsB: 0.49, ContextLength: 32768},
	)
}

// Register adds or replaces a model entry.
func (c *Catalog) Register(m ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[catalogKey(m.ID)] = m
	if base := baseName(m.ID); base != "" {
		if _, exists := c.models[base]; !exists {
			c.models[base] = m
		}
	}
}

// Lookup returns catalog metadata, or a name-heuristic estimate when the
// model is not registered. ok is false when the size is unknown.
func (c *Catalog) Lookup(modelID string) (ModelInfo, bool) {
	c.mu.RLock()
	m, found := c.models[catalogKey(modelID)]
	if !found {
		m, found = c.models[baseName(modelID)]
	}
	c.mu.RUnlock()
	if found {
		return m, true
	}

	if params, ok := ParamsFromName(modelID); ok {
		return ModelInfo{ID: modelID, ParamsB: params}, true
	}
	return ModelInfo{ID: modelID}, false
}

var paramPattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9.])(\d+(?:\.\d+)?)\s*([bm])(?:$|[^a-z0-9])`)

// ParamsFromName estimates the parameter count in billions from names like
// "llama-2-7b-chat", "Qwen2.5-0.5B" or "smollm-360m".
func ParamsFromName(name string) (float64, bool) {
	name = baseName(name)
	var best float64
	for _, m := range paramPattern.FindAllStringSubmatch(name, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 {
			continue
		}
		if strings.EqualFold(m[2], "m") {
			v /= 1000
		}
		if v > best {
			best = v
		}
	}
	return best, best > 0
}

// EstimateFootprintGB returns the estimated resident size of a model.
func EstimateFootprintGB(paramsB float64, q Quantization, p Precision) float64 {
	var bytesPerWeight float64
	switch q {
	case Quantization8Bit:
		bytesPerWeight = 1
	case Quantization4Bit:
		bytesPerWeight = 0.5
	default:
		bytesPerWeight = p.BytesPerWeight()
	}
	return paramsB * bytesPerWeight * overheadFactor
}

func catalogKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// baseName strips any repo prefix and a .gguf file suffix.
func baseName(id string) string {
	id = catalogKey(id)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if strings.HasSuffix(id, ".gguf") {
		id = strings.TrimSuffix(filepath.Base(id), ".gguf")
	}
	return id
}
