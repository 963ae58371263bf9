package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Model.ID == "" {
		t.Error("expected a default model")
	}
	if cfg.LLMProviders["huggingface"].APIKey != "${HF_TOKEN}" {
		t.Error("expected huggingface API key placeholder")
	}
	if !cfg.Extraction.Fallback {
		t.Error("rule fallback should be on by default")
	}
	if cfg.MaxMemory() != nil {
		t.Error("default memory ceiling should be automatic")
	}
	if name, ok := cfg.ModelProvider(); !ok || name != "local" {
		t.Errorf("ModelProvider() = %q, %v, want local", name, ok)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})

	t.Run("expands inside a longer value", func(t *testing.T) {
		t.Setenv("TEST_HOST", "gpu-box")
		result := ResolveEnvVars("http://${TEST_HOST}:8081/v1")
		if result != "http://gpu-box:8081/v1" {
			t.Errorf("expected expanded URL, got %s", result)
		}
	})
}

func TestToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_HF_KEY", "hf-123")

	cfg := DefaultConfig()
	cfg.LLMProviders["huggingface"] = LLMProviderCfg{
		Type:    "openai-compatible",
		BaseURL: "https://router.huggingface.co/v1",
		APIKey:  "${TEST_HF_KEY}",
		Timeout: 30,
		Enabled: true,
	}

	reg := cfg.ToProviderRegistryConfig()
	hf, ok := reg.LLMProviders["huggingface"]
	if !ok {
		t.Fatal("huggingface provider missing")
	}
	if hf.APIKey != "hf-123" {
		t.Errorf("APIKey = %q, want resolved value", hf.APIKey)
	}
	if hf.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", hf.Timeout)
	}
	if len(reg.LLMProviders) != len(cfg.LLMProviders) {
		t.Errorf("got %d providers, want %d", len(reg.LLMProviders), len(cfg.LLMProviders))
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
model:
  id: "mistralai/Mistral-7B-Instruct-v0.2"
hardware:
  max_memory_gb: 12
extraction:
  fallback: false
  temperature: 0
`)

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Model.ID != "mistralai/Mistral-7B-Instruct-v0.2" {
			t.Errorf("Model.ID = %s", cfg.Model.ID)
		}
		if m := cfg.MaxMemory(); m == nil || *m != 12 {
			t.Errorf("MaxMemory() = %v, want 12", m)
		}
		ec := cfg.ExtractionConfig()
		if !ec.DisableFallback {
			t.Error("fallback: false should disable the fallback")
		}
		if ec.Temperature == nil || *ec.Temperature != 0 {
			t.Errorf("Temperature = %v, want an explicit 0", ec.Temperature)
		}
		// Unset keys keep their defaults.
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want default 8080", cfg.Server.Port)
		}
		if mgr.ConfigFileUsed() != configFile {
			t.Errorf("ConfigFileUsed() = %s", mgr.ConfigFileUsed())
		}
	})

	t.Run("defaults without a config file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.Model.ID != DefaultConfig().Model.ID {
			t.Errorf("Model.ID = %s", cfg.Model.ID)
		}
		if len(cfg.Ingest.SupportedFormats) == 0 {
			t.Error("expected default formats")
		}
		if mgr.ConfigFileUsed() != "" {
			t.Errorf("ConfigFileUsed() = %s, want none", mgr.ConfigFileUsed())
		}
	})

	t.Run("finds config in search dir", func(t *testing.T) {
		t.Chdir(t.TempDir())
		home := t.TempDir()
		if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("log_level: debug\n"), 0644); err != nil {
			t.Fatal(err)
		}
		mgr, err := NewManager("", home)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Level() != slog.LevelDebug {
			t.Errorf("Level() = %v, want debug", mgr.Get().Level())
		}
	})

	t.Run("environment overrides nested keys", func(t *testing.T) {
		t.Setenv("QUOTIENT_MODEL_ID", "env/model")
		t.Setenv("QUOTIENT_HARDWARE_USE_CUDA", "false")
		t.Setenv("QUOTIENT_SERVER_PORT", "9090")

		mgr, err := NewManager(writeConfig(t, "log_level: info\n"))
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.Model.ID != "env/model" {
			t.Errorf("Model.ID = %s, want env/model", cfg.Model.ID)
		}
		if !cfg.HardwareConfig(nil).DisableCUDA {
			t.Error("QUOTIENT_HARDWARE_USE_CUDA=false should disable CUDA")
		}
		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{"log level", "log_level: loud\n"},
			{"output format", "output:\n  format: docx\n"},
			{"provider type", "llm_providers:\n  x:\n    type: grpc\n"},
			{"unknown model provider", "model:\n  provider: nowhere\n"},
			{"negative memory", "hardware:\n  max_memory_gb: -1\n"},
			{"negative batch size", "ingest:\n  batch_size: -2\n"},
			{"temperature out of range", "extraction:\n  temperature: 3\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := NewManager(writeConfig(t, tt.content)); err == nil {
					t.Error("expected error")
				}
			})
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "model: [unclosed\n")); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	got := mgr.Get()
	want := DefaultConfig()
	if got.Model.ID != want.Model.ID {
		t.Errorf("Model.ID = %s, want %s", got.Model.ID, want.Model.ID)
	}
	if len(got.LLMProviders) != len(want.LLMProviders) {
		t.Errorf("got %d providers, want %d", len(got.LLMProviders), len(want.LLMProviders))
	}
	if got.LLMProviders["local"].BaseURL != want.LLMProviders["local"].BaseURL {
		t.Errorf("local base_url = %s", got.LLMProviders["local"].BaseURL)
	}
	if got.Extraction.MaxTokens != want.Extraction.MaxTokens {
		t.Errorf("Extraction.MaxTokens = %d, want %d", got.Extraction.MaxTokens, want.Extraction.MaxTokens)
	}
}

func TestConfigConverters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Provider = "openai"
	cfg.Preprocess.SkipSegment = true
	cfg.Ingest.SupportedFormats = []string{"txt"}

	loader := cfg.ProviderLoader(nil, nil, nil)
	if loader.Provider != "openai" || loader.Model != "gpt-4o-mini" {
		t.Errorf("loader = %+v", loader)
	}
	if loader.Timeout != 60*time.Second {
		t.Errorf("loader.Timeout = %v", loader.Timeout)
	}

	opts := cfg.PreprocessOptions()
	if !opts.SkipSegment || opts.StageTimeout != seconds(cfg.Preprocess.Timeout) {
		t.Errorf("PreprocessOptions() = %+v", opts)
	}

	ing := cfg.IngestConfig(nil)
	if len(ing.SupportedFormats) != 1 || ing.MaxFileSizeMB != cfg.Ingest.MaxFileSizeMB {
		t.Errorf("IngestConfig() = %+v", ing)
	}

	sel := cfg.SelectorOptions(nil)
	if sel.DefaultModel != cfg.Model.ID {
		t.Errorf("SelectorOptions().DefaultModel = %s", sel.DefaultModel)
	}

	cfg.Hardware.MaxMemoryGB = 6
	cfg.Extraction.Deduplicate = true
	svc := cfg.ServiceConfig(nil, nil, nil, nil)
	if svc.Model != cfg.Model.ID || svc.MaxMemoryGB == nil || *svc.MaxMemoryGB != 6 || !svc.Deduplicate {
		t.Errorf("ServiceConfig() = %+v", svc)
	}
	if svc.Reader == nil || svc.Selector == nil || !svc.Preprocess.SkipSegment {
		t.Errorf("ServiceConfig() components = %+v", svc)
	}

	cfg.LLMProviders = map[string]LLMProviderCfg{}
	if _, ok := cfg.ModelProvider(); ok {
		t.Error("no providers should yield no model provider")
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log_level: info\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log_level: info\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Model.ID
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
model:
  id: "initial/model"
`)

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Model.ID; got != "initial/model" {
		t.Errorf("initial value mismatch: expected initial/model, got %s", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Model.ID)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
model:
  id: "updated/model"
`
	if err := os.WriteFile(configFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}

	if got := mgr.Get().Model.ID; got != "updated/model" {
		t.Errorf("config not updated: expected updated/model, got %s", got)
	}
	if v := lastValue.Load(); v != "updated/model" {
		t.Errorf("callback received wrong value: expected updated/model, got %v", v)
	}
}
