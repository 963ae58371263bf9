package inference

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/quotient-labs/quotient/internal/modelcfg"
)

// Defaults for model loading.
const (
	DefaultLoadAttempts = 3
	DefaultLoadDelay    = 500 * time.Millisecond
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Loader loads models. A nil loader makes every Infer fail with a
	// ModelLoadError wrapping ErrNoBackend.
	Loader Loader

	LoadAttempts uint
	LoadDelay    time.Duration
	Logger       *slog.Logger
}

// Manager lazily loads models and serializes inference per model.
type Manager struct {
	loader   Loader
	attempts uint
	delay    time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
}

type handle struct {
	cfg   modelcfg.Config
	ready chan struct{}
	sem   chan struct{}
	model Model
	err   error
	// closed is set under sem once the model is closed.
	closed bool

	loadedAt time.Time
	calls    int64
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.LoadAttempts == 0 {
		cfg.LoadAttempts = DefaultLoadAttempts
	}
	if cfg.LoadDelay == 0 {
		cfg.LoadDelay = DefaultLoadDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:   cfg.Loader,
		attempts: cfg.LoadAttempts,
		delay:    cfg.LoadDelay,
		logger:   logger.With("component", "inference"),
		handles:  make(map[string]*handle),
	}
}

// Infer runs prompt on the model described by cfg, loading it if needed.
// A call that was waiting on a model unloaded in the meantime loads it
// again.
func (m *Manager) Infer(ctx context.Context, prompt string, cfg modelcfg.Config) (string, error) {
	h, err := m.lock(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer func() { <-h.sem }()

	m.mu.Lock()
	h.calls++
	m.mu.Unlock()

	gen, _ := GenerationFrom(ctx)
	return h.model.Generate(ctx, prompt, gen)
}

// lock returns an open handle for cfg with its semaphore held.
func (m *Manager) lock(ctx context.Context, cfg modelcfg.Config) (*handle, error) {
	for {
		h, err := m.acquire(ctx, cfg)
		if err != nil {
			return nil, err
		}
		select {
		case h.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if !h.closed {
			return h, nil
		}
		<-h.sem
	}
}

func (m *Manager) acquire(ctx context.Context, cfg modelcfg.Config) (*handle, error) {
	key := cfg.Key()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	h, ok := m.handles[key]
	if !ok {
		h = &handle{
			cfg:   cfg,
			ready: make(chan struct{}),
			sem:   make(chan struct{}, 1),
		}
		m.handles[key] = h
	}
	m.mu.Unlock()

	if !ok {
		m.load(ctx, h, key)
	}

	select {
	case <-h.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if h.err != nil {
		return nil, h.err
	}
	return h, nil
}

func (m *Manager) load(ctx context.Context, h *handle, key string) {
	defer close(h.ready)

	var (
		model Model
		err   error
	)
	start := time.Now()
	if m.loader == nil {
		err = ErrNoBackend
	} else {
		err = retry.Do(
			func() error {
				loaded, err := m.loader.Load(ctx, h.cfg)
				if err != nil {
					return err
				}
				model = loaded
				return nil
			},
			retry.Context(ctx),
			retry.Attempts(m.attempts),
			retry.Delay(m.delay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool { return !errors.Is(err, ErrNoBackend) }),
			retry.OnRetry(func(n uint, err error) {
				m.logger.Warn("model load failed, retrying", "model", h.cfg.ModelID, "attempt", n+1, "error", err)
			}),
		)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		h.err = &ModelLoadError{ModelID: h.cfg.ModelID, Key: key, Err: err}
		m.logger.Warn("model unavailable", "model", h.cfg.ModelID, "error", err)
		// Failed loads are not cached; the next call tries again.
		if m.handles[key] == h {
			delete(m.handles, key)
		}
		return
	}
	h.model = model
	h.loadedAt = time.Now()
	m.logger.Info("model loaded",
		"model", h.cfg.ModelID,
		"device", h.cfg.Device,
		"quantization", h.cfg.Quantization,
		"duration", time.Since(start))
}

// Unload closes and forgets the model for cfg, if loaded.
func (m *Manager) Unload(cfg modelcfg.Config) error {
	key := cfg.Key()
	m.mu.Lock()
	h, ok := m.handles[key]
	delete(m.handles, key)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return closeHandle(h)
}

// Close unloads every model. Infer fails with ErrClosed afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	handles := m.handles
	m.handles = make(map[string]*handle)
	m.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := closeHandle(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeHandle(h *handle) error {
	<-h.ready
	if h.model == nil {
		return nil
	}
	// Wait for an in-flight generation to finish.
	h.sem <- struct{}{}
	defer func() { <-h.sem }()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.model.Close()
}

// LoadedModel describes a loaded handle.
type LoadedModel struct {
	Key      string    `json:"key"`
	ModelID  string    `json:"model_id"`
	Device   string    `json:"device"`
	LoadedAt time.Time `json:"loaded_at"`
	Calls    int64     `json:"calls"`
}

// Loaded lists loaded models sorted by key.
func (m *Manager) Loaded() []LoadedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []LoadedModel
	for key, h := range m.handles {
		if h.model == nil {
			continue
		}
		out = append(out, LoadedModel{
			Key:      key,
			ModelID:  h.cfg.ModelID,
			Device:   h.cfg.Device,
			LoadedAt: h.loadedAt,
			Calls:    h.calls,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

var _ Inferencer = (*Manager)(nil)
