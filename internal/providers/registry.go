package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Provider types accepted in config.
const (
	TypeOpenAI           = "openai"
	TypeOpenAICompatible = "openai-compatible"
)

// Registry holds named LLM clients. It supports config-driven
// instantiation and hot-reload, with thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: make(map[string]LLMClient),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// UnregisterLLM removes an LLM client by name.
func (r *Registry) UnregisterLLM(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.llmClients, name)
	if r.logger != nil {
		r.logger.Info("unregistered LLM client", "name", name)
	}
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// LLMProviderConfig matches config.LLMProviderCfg with the API key resolved.
type LLMProviderConfig struct {
	Type      string // "openai" or "openai-compatible"
	BaseURL   string
	Model     string
	APIKey    string
	RateLimit int // Requests per minute
	Timeout   time.Duration
	Enabled   bool
}

// usable reports whether a provider should be instantiated. The hosted
// OpenAI type needs a key; compatible servers need a base URL.
func (c LLMProviderConfig) usable() bool {
	if !c.Enabled {
		return false
	}
	switch c.Type {
	case TypeOpenAI:
		return c.APIKey != ""
	case TypeOpenAICompatible:
		return c.BaseURL != ""
	default:
		return false
	}
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration. Providers that
// are no longer configured are unregistered; changed ones are recreated.
// Clients registered directly with RegisterLLM that are not OpenAI clients
// are left alone.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.usable() {
			continue
		}
		want[name] = true

		existing, hasExisting := r.llmClients[name]
		if hasExisting && !needsLLMUpdate(existing, provCfg) {
			continue
		}
		r.llmClients[name] = createLLMClient(name, provCfg)
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name, client := range r.llmClients {
		if _, managed := client.(*OpenAIClient); !managed || want[name] {
			continue
		}
		delete(r.llmClients, name)
		if r.logger != nil {
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
}

func createLLMClient(name string, cfg LLMProviderConfig) LLMClient {
	return NewOpenAIClient(OpenAIConfig{
		Name:         name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		RPM:          cfg.RateLimit,
		Timeout:      cfg.Timeout,
	})
}

// needsLLMUpdate checks if an LLM client needs to be recreated.
func needsLLMUpdate(client LLMClient, cfg LLMProviderConfig) bool {
	switch c := client.(type) {
	case *OpenAIClient:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = OpenAIBaseURL
		}
		rpm := cfg.RateLimit
		if rpm <= 0 {
			rpm = DefaultRequestsPerMinute
		}
		return c.apiKey != cfg.APIKey ||
			c.baseURL != baseURL ||
			(cfg.Model != "" && c.defaultModel != cfg.Model) ||
			c.rpm != rpm
	default:
		return true
	}
}
