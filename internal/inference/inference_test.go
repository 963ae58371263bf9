package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quotient-labs/quotient/internal/metrics"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/providers"
)

type fakeModel struct {
	delay    time.Duration
	active   *atomic.Int32
	peak     *atomic.Int32
	closed   atomic.Bool
	lastGen  Generation
	mu       sync.Mutex
	response string
}

func (f *fakeModel) Generate(ctx context.Context, prompt string, gen Generation) (string, error) {
	if f.active != nil {
		n := f.active.Add(1)
		defer f.active.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	f.mu.Lock()
	f.lastGen = gen
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return f.response + prompt, nil
}

func (f *fakeModel) Close() error {
	f.closed.Store(true)
	return nil
}

func testConfig(id string) modelcfg.Config {
	return modelcfg.Config{
		ModelID:      id,
		Device:       "cpu",
		Precision:    modelcfg.PrecisionFloat32,
		Quantization: modelcfg.Quantization4Bit,
	}
}

func TestManager_LazyLoad(t *testing.T) {
	var loads atomic.Int32
	model := &fakeModel{response: "echo:"}
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			loads.Add(1)
			return model, nil
		}),
	})
	defer m.Close()

	if len(m.Loaded()) != 0 {
		t.Fatal("no model should be loaded before first use")
	}

	for i := 0; i < 3; i++ {
		out, err := m.Infer(context.Background(), "hi", testConfig("a"))
		if err != nil {
			t.Fatalf("Infer() error = %v", err)
		}
		if out != "echo:hi" {
			t.Errorf("Infer() = %q", out)
		}
	}
	if loads.Load() != 1 {
		t.Errorf("loads = %d, want 1", loads.Load())
	}

	if _, err := m.Infer(context.Background(), "hi", testConfig("b")); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if loads.Load() != 2 {
		t.Errorf("loads = %d, want 2 after a second config", loads.Load())
	}

	loaded := m.Loaded()
	if len(loaded) != 2 || loaded[0].ModelID != "a" || loaded[0].Calls != 3 {
		t.Errorf("Loaded() = %+v", loaded)
	}
}

func TestManager_SerializesPerModel(t *testing.T) {
	var active, peak atomic.Int32
	model := &fakeModel{delay: 20 * time.Millisecond, active: &active, peak: &peak}
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			return model, nil
		}),
	})
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Infer(context.Background(), "x", testConfig("a")); err != nil {
				t.Errorf("Infer() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestManager_WaitRespectsContext(t *testing.T) {
	model := &fakeModel{delay: 500 * time.Millisecond}
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			return model, nil
		}),
	})
	defer m.Close()

	go func() {
		_, _ = m.Infer(context.Background(), "slow", testConfig("a"))
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := m.Infer(ctx, "queued", testConfig("a"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Infer() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Errorf("waiting ignored the deadline, took %v", time.Since(start))
	}
}

func TestManager_LoadFailure(t *testing.T) {
	var attempts atomic.Int32
	loadErr := errors.New("weights not found")
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			attempts.Add(1)
			return nil, loadErr
		}),
		LoadAttempts: 2,
		LoadDelay:    time.Millisecond,
	})
	defer m.Close()

	_, err := m.Infer(context.Background(), "x", testConfig("a"))
	var mle *ModelLoadError
	if !errors.As(err, &mle) {
		t.Fatalf("Infer() error = %v, want ModelLoadError", err)
	}
	if mle.ModelID != "a" {
		t.Errorf("ModelID = %q", mle.ModelID)
	}
	if !errors.Is(err, loadErr) {
		t.Errorf("error should wrap the loader error: %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}

	// Failed loads are retried on the next call.
	_, _ = m.Infer(context.Background(), "x", testConfig("a"))
	if attempts.Load() != 4 {
		t.Errorf("attempts = %d, want 4 after second call", attempts.Load())
	}
}

func TestManager_NoBackend(t *testing.T) {
	m := NewManager(ManagerConfig{})
	_, err := m.Infer(context.Background(), "x", testConfig("a"))
	if !IsModelLoadError(err) {
		t.Fatalf("Infer() error = %v, want ModelLoadError", err)
	}
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("error should wrap ErrNoBackend: %v", err)
	}
}

func TestManager_Close(t *testing.T) {
	model := &fakeModel{}
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			return model, nil
		}),
	})
	if _, err := m.Infer(context.Background(), "x", testConfig("a")); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !model.closed.Load() {
		t.Error("Close() should close loaded models")
	}
	if _, err := m.Infer(context.Background(), "x", testConfig("a")); !errors.Is(err, ErrClosed) {
		t.Errorf("Infer() after Close error = %v, want ErrClosed", err)
	}
}

func TestManager_Unload(t *testing.T) {
	model := &fakeModel{}
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			return model, nil
		}),
	})
	defer m.Close()

	_, _ = m.Infer(context.Background(), "x", testConfig("a"))
	if err := m.Unload(testConfig("a")); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if !model.closed.Load() || len(m.Loaded()) != 0 {
		t.Error("Unload() should close and forget the model")
	}
}

type gatedModel struct {
	gate       chan struct{}
	started    chan struct{}
	closed     atomic.Bool
	afterClose *atomic.Int32
}

func (g *gatedModel) Generate(ctx context.Context, prompt string, gen Generation) (string, error) {
	if g.closed.Load() {
		g.afterClose.Add(1)
		return "", errors.New("generate on closed model")
	}
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.gate
	return "ok", nil
}

func (g *gatedModel) Close() error {
	g.closed.Store(true)
	return nil
}

func TestManager_UnloadWhileWaiting(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	var afterClose atomic.Int32
	var loads atomic.Int32
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			loads.Add(1)
			return &gatedModel{gate: gate, started: started, afterClose: &afterClose}, nil
		}),
	})
	defer m.Close()

	errs := make(chan error, 2)
	go func() {
		_, err := m.Infer(context.Background(), "first", testConfig("a"))
		errs <- err
	}()
	<-started

	// The second call holds the handle and waits for the first to finish.
	go func() {
		_, err := m.Infer(context.Background(), "second", testConfig("a"))
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)

	unloaded := make(chan error, 1)
	go func() { unloaded <- m.Unload(testConfig("a")) }()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	for range 2 {
		if err := <-errs; err != nil {
			t.Errorf("Infer() error = %v", err)
		}
	}
	if err := <-unloaded; err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if n := afterClose.Load(); n != 0 {
		t.Errorf("Generate called %d times on a closed model", n)
	}
	if n := loads.Load(); n < 1 || n > 2 {
		t.Errorf("loads = %d, want 1 or 2", n)
	}
}

func TestManager_PassesGeneration(t *testing.T) {
	model := &fakeModel{}
	m := NewManager(ManagerConfig{
		Loader: LoaderFunc(func(ctx context.Context, cfg modelcfg.Config) (Model, error) {
			return model, nil
		}),
	})
	defer m.Close()

	ctx := WithGeneration(context.Background(), Generation{Temperature: 0.1, MaxTokens: 2000})
	if _, err := m.Infer(ctx, "x", testConfig("a")); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	model.mu.Lock()
	defer model.mu.Unlock()
	if model.lastGen.Temperature != 0.1 || model.lastGen.MaxTokens != 2000 {
		t.Errorf("generation = %+v", model.lastGen)
	}
}

func TestProviderLoader(t *testing.T) {
	t.Run("generates through the provider", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseText = "[]"
		reg := providers.NewRegistry()
		reg.RegisterLLM("local", mock)
		rec := metrics.NewRecorder(0)

		m := NewManager(ManagerConfig{Loader: &ProviderLoader{Registry: reg, HealthCheck: true, Recorder: rec}})
		defer m.Close()

		ctx := metrics.WithStage(context.Background(), "extract")
		ctx = WithGeneration(ctx, Generation{System: "sys", Temperature: 0.1, MaxTokens: 2000})
		out, err := m.Infer(ctx, "prompt", testConfig("llama-7b"))
		if err != nil {
			t.Fatalf("Infer() error = %v", err)
		}
		if out != "[]" {
			t.Errorf("Infer() = %q", out)
		}

		req := mock.LastRequest()
		if req.Model != "llama-7b" || req.Temperature == nil || *req.Temperature != 0.1 || req.MaxTokens != 2000 {
			t.Errorf("request = %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Content != "sys" || req.Messages[1].Content != "prompt" {
			t.Errorf("messages = %+v", req.Messages)
		}

		list := rec.List(metrics.Filter{Stage: "extract"}, 0)
		if len(list) != 1 || !list[0].Success {
			t.Errorf("metrics = %+v", list)
		}
	})

	t.Run("model override", func(t *testing.T) {
		mock := providers.NewMockClient()
		reg := providers.NewRegistry()
		reg.RegisterLLM("local", mock)

		model, err := (&ProviderLoader{Registry: reg, Provider: "local", Model: "served.gguf"}).Load(context.Background(), testConfig("a"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if _, err := model.Generate(context.Background(), "x", Generation{}); err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if mock.LastRequest().Model != "served.gguf" {
			t.Errorf("Model = %q, want served.gguf", mock.LastRequest().Model)
		}
	})

	t.Run("local gguf source", func(t *testing.T) {
		mock := providers.NewMockClient()
		reg := providers.NewRegistry()
		reg.RegisterLLM("local", mock)

		cfg := testConfig("a")
		cfg.Source = modelcfg.Source{Kind: modelcfg.SourceLocal, Path: "/models/widget-7b.Q4_K_M.gguf"}
		model, err := (&ProviderLoader{Registry: reg, Model: "served.gguf"}).Load(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if _, err := model.Generate(context.Background(), "x", Generation{}); err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got := mock.LastRequest().Model; got != cfg.Source.Path {
			t.Errorf("Model = %q, want the local file %q", got, cfg.Source.Path)
		}

		cfg.Source = modelcfg.Source{Kind: modelcfg.SourceLocalMissing, Path: cfg.Source.Path, Reason: "file does not exist"}
		model, err = (&ProviderLoader{Registry: reg}).Load(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		model.Generate(context.Background(), "x", Generation{})
		if got := mock.LastRequest().Model; got != "a" {
			t.Errorf("Model = %q, want the remote id for an unusable local file", got)
		}
	})

	t.Run("empty registry", func(t *testing.T) {
		_, err := (&ProviderLoader{Registry: providers.NewRegistry()}).Load(context.Background(), testConfig("a"))
		if !errors.Is(err, ErrNoBackend) {
			t.Errorf("Load() error = %v, want ErrNoBackend", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := (&ProviderLoader{Registry: providers.NewRegistry(), Provider: "nope"}).Load(context.Background(), testConfig("a"))
		if !errors.Is(err, ErrNoBackend) {
			t.Errorf("Load() error = %v, want ErrNoBackend", err)
		}
	})

	t.Run("failed health check", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ShouldFail = true
		reg := providers.NewRegistry()
		reg.RegisterLLM("local", mock)

		if _, err := (&ProviderLoader{Registry: reg, HealthCheck: true}).Load(context.Background(), testConfig("a")); err == nil {
			t.Error("Load() expected health check error")
		}
	})

	t.Run("failed chat is recorded", func(t *testing.T) {
		mock := providers.NewMockClient()
		reg := providers.NewRegistry()
		reg.RegisterLLM("local", mock)
		rec := metrics.NewRecorder(0)

		model, err := (&ProviderLoader{Registry: reg, Recorder: rec}).Load(context.Background(), testConfig("a"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		mock.ShouldFail = true
		if _, err := model.Generate(context.Background(), "x", Generation{}); err == nil {
			t.Fatal("Generate() expected error")
		}
		if rec.GetSummary(metrics.Filter{}).ErrorCount != 1 {
			t.Error("failed call should be recorded")
		}
	})
}
