package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/babbage"
	"github.com/quotient-labs/quotient/internal/config"
	"github.com/quotient-labs/quotient/internal/extraction"
	"github.com/quotient-labs/quotient/internal/hardware"
	"github.com/quotient-labs/quotient/internal/home"
	"github.com/quotient-labs/quotient/internal/inference"
	"github.com/quotient-labs/quotient/internal/metrics"
	"github.com/quotient-labs/quotient/internal/modelcfg"
	"github.com/quotient-labs/quotient/internal/preprocess"
	"github.com/quotient-labs/quotient/internal/prompts"
	"github.com/quotient-labs/quotient/internal/providers"
	"github.com/quotient-labs/quotient/internal/server/endpoints"
	"github.com/quotient-labs/quotient/internal/svcctx"
)

// metricsCapacity bounds the in-memory LLM call history.
const metricsCapacity = 10000

// Server is the main Quotient HTTP server.
// It owns the provider registry and the inference manager; loaded models
// are released on shutdown.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	recorder   *metrics.Recorder
	inference  *inference.Manager
	hardware   *hardware.Cache
	prompts    *prompts.Resolver
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu       sync.RWMutex
	running  bool
	listener net.Listener
	// services holds all core services for context enrichment. It is
	// rebuilt when the config file changes.
	services *svcctx.Services
	loader   *inference.ProviderLoader
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host from config, then 127.0.0.1)
	Host string
	// Port is the port to listen on (default: server.port from config, then 8080).
	// "0" picks a free port; Addr reports it once Start is listening.
	Port string
	// ConfigManager provides configuration with hot-reload support.
	// Nil uses the built-in defaults.
	ConfigManager *config.Manager
	// Home is the quotient home directory; nil uses ~/.quotient.
	Home *home.Dir
	// Prober overrides hardware detection. Nil uses the system detector.
	Prober hardware.Prober
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}

	var c *config.Config
	if cfg.ConfigManager != nil {
		c = cfg.ConfigManager.Get()
	} else {
		c = config.DefaultConfig()
	}
	if cfg.Host == "" {
		cfg.Host = c.Server.Host
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = c.Server.Port
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)
	registry.Reload(c.ToProviderRegistryConfig())

	resolver := prompts.NewResolver(cfg.Home.PromptsPath(), cfg.Logger)
	preprocess.RegisterPrompts(resolver)
	extraction.RegisterPrompts(resolver)

	prober := cfg.Prober
	if prober == nil {
		prober = hardware.NewDetector(c.HardwareConfig(cfg.Logger))
	}

	s := &Server{
		registry:  registry,
		recorder:  metrics.NewRecorder(metricsCapacity),
		hardware:  hardware.NewCache(prober, 0),
		prompts:   resolver,
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
	}

	// Models are loaded through the current provider loader, so a config
	// reload applies to the next load without dropping loaded models.
	s.inference = inference.NewManager(inference.ManagerConfig{
		Loader: inference.LoaderFunc(func(ctx context.Context, mc modelcfg.Config) (inference.Model, error) {
			s.mu.RLock()
			loader := s.loader
			s.mu.RUnlock()
			return loader.Load(ctx, mc)
		}),
		Logger: cfg.Logger,
	})
	s.apply(c)

	// Watch for config changes
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			s.apply(c)
			cfg.Logger.Info("services reloaded from config")
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{MaxUploadBytes: uploadLimit(c)}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(c),
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// apply builds the services for c and swaps them in.
func (s *Server) apply(c *config.Config) {
	loader := c.ProviderLoader(s.registry, s.recorder, s.logger)
	svc := babbage.NewService(c.ServiceConfig(s.hardware, s.inference, s.prompts, s.logger))

	s.mu.Lock()
	s.loader = loader
	s.services = &svcctx.Services{
		Babbage:   svc,
		Inference: s.inference,
		Registry:  s.registry,
		Recorder:  s.recorder,
		Prompts:   s.prompts,
		Config:    s.configMgr,
		Logger:    s.logger,
		Home:      s.home,
	}
	s.mu.Unlock()
}

// uploadLimit is the multipart body bound derived from the ingest file limit.
func uploadLimit(c *config.Config) int64 {
	mb := c.Ingest.MaxFileSizeMB
	if mb <= 0 {
		return 0
	}
	// Headroom for the multipart envelope.
	return int64(mb)<<20 + 1<<20
}

// writeTimeout covers the slowest request: a full extraction plus retries.
func writeTimeout(c *config.Config) time.Duration {
	d := 30 * time.Second
	if t := time.Duration(c.Extraction.Timeout) * time.Second * 3; t > d {
		d = t
	}
	return d
}

// Start starts the server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.configMgr != nil && s.configMgr.ConfigFileUsed() != "" {
		s.configMgr.WatchConfig()
		s.logger.Info("watching config file", "path", s.configMgr.ConfigFileUsed())
	}

	// Warm the hardware cache so the first request does not pay for probing.
	if _, err := s.hardware.Get(ctx); err != nil {
		s.logger.Warn("hardware detection failed", "error", err)
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server and releases loaded models.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.logger.Info("unloading models")
	if err := s.inference.Close(); err != nil {
		s.logger.Error("inference manager close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address. Once Start is listening it is
// the bound address, so a "0" port reports the port actually chosen.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Services returns the services currently attached to requests.
func (s *Server) Services() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// Handler returns the HTTP handler, for serving without Start.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if services := s.Services(); services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the services aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if services := svcctx.ServicesFrom(r.Context()); services == nil || services.Babbage == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
