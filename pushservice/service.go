// Package pushservice assembles the token registry, dispatch engine and HTTP
// surface into one runnable service.
package pushservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rockfish84/kakaotalk-server-backend/internal/api"
	"github.com/rockfish84/kakaotalk-server-backend/internal/metrics"
	"github.com/rockfish84/kakaotalk-server-backend/internal/pipeline"
	"github.com/rockfish84/kakaotalk-server-backend/internal/storage/memory"
	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
	"github.com/rockfish84/kakaotalk-server-backend/pushservice/config"
)

type Wrapper struct {
	server   *http.Server
	handler  http.Handler
	registry *memory.TokenStore
	engine   *pipeline.Engine
	ready    atomic.Bool
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New assembles the service. The token registry is created here and lives
// as long as the Wrapper. reg may be nil, in which case a fresh Prometheus
// registry is used.
func New(
	cfg *config.Config,
	provider dispatch.Provider,
	reg *prometheus.Registry,
	logger *slog.Logger,
) (*Wrapper, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	// 1. Registry
	registry := memory.NewTokenStore()

	// 2. Metrics
	collector := metrics.NewCollector(reg, registry.Len)

	// 3. Engine
	strategy, err := pipeline.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	engine, err := pipeline.NewEngine(
		registry,
		provider,
		pipeline.EngineConfig{Strategy: strategy, MaxInFlight: cfg.MaxInFlight},
		collector,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch engine: %w", err)
	}

	w := &Wrapper{
		registry: registry,
		engine:   engine,
		logger:   logger,
	}

	// 4. API
	tokenAPI := api.NewTokenAPI(registry, logger)
	sendAPI := api.NewSendAPI(engine, logger)

	// Register Routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register-token", tokenAPI.RegisterToken)
	mux.HandleFunc("GET /tokens", tokenAPI.ListTokens)
	mux.HandleFunc("POST /send", sendAPI.Send)
	mux.HandleFunc("GET /healthz", api.Healthz)
	mux.Handle("GET /readyz", api.Readyz(w.ready.Load))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	corsMiddleware := api.NewCorsMiddleware(cfg.CorsConfig.AllowedOrigins)
	w.handler = corsMiddleware(api.RequestID(api.Recoverer(logger)(mux)))

	w.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Service assembled",
		"listen_addr", cfg.ListenAddr,
		"provider", provider.Name(),
		"strategy", string(engine.Strategy()),
	)
	return w, nil
}

// Handler is the fully wrapped HTTP handler, for tests and embedding.
func (w *Wrapper) Handler() http.Handler {
	return w.handler
}

// Registry exposes the token registry owned by the service.
func (w *Wrapper) Registry() *memory.TokenStore {
	return w.registry
}

// SetReady flips the flag reported by /readyz.
func (w *Wrapper) SetReady(ready bool) {
	w.ready.Store(ready)
}

// IsReady reports whether the service accepts traffic.
func (w *Wrapper) IsReady() bool {
	return w.ready.Load()
}

// Addr returns the bound listen address once Start has opened the listener.
func (w *Wrapper) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return ""
	}
	return w.listener.Addr().String()
}

// Start opens the listener, marks the service ready and serves until
// Shutdown. It returns nil after a clean shutdown.
func (w *Wrapper) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.server.Addr, err)
	}
	w.mu.Lock()
	w.listener = ln
	w.mu.Unlock()

	w.server.BaseContext = func(net.Listener) context.Context { return ctx }

	w.SetReady(true)
	w.logger.Info("Service is now ready.", "addr", ln.Addr().String())

	if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		w.SetReady(false)
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	w.SetReady(false)
	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	w.logger.Info("Service shutdown complete.")
	return nil
}
