package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/policyd/pkg/config"
	"mercator-hq/policyd/pkg/policy/store"
	"mercator-hq/policyd/pkg/telemetry/health"
)

// MetricsProvider serves the metrics endpoint and records request metrics.
// *metrics.Collector implements it.
type MetricsProvider interface {
	HTTPRecorder
	Handler() http.Handler
}

// Options configures a Server.
type Options struct {
	Server    *config.ServerConfig
	Telemetry *config.TelemetryConfig
	Store     store.Store
	Health    *health.Checker

	// Metrics is optional. When nil, /metrics is not served.
	Metrics MetricsProvider

	Version health.VersionInfo
	Logger  *slog.Logger
}

// Server is the policyd HTTP server.
type Server struct {
	config     *config.ServerConfig
	telemetry  *config.TelemetryConfig
	store      store.Store
	health     *health.Checker
	metrics    MetricsProvider
	version    health.VersionInfo
	logger     *slog.Logger
	httpServer *http.Server

	mu        sync.Mutex
	isRunning bool
	addr      net.Addr
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Server == nil {
		opts.Server = &config.Defaults().Server
	}
	if opts.Telemetry == nil {
		opts.Telemetry = &config.Defaults().Telemetry
	}
	if opts.Health == nil {
		opts.Health = health.New(opts.Telemetry.Health.CheckTimeout)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Server{
		config:    opts.Server,
		telemetry: opts.Telemetry,
		store:     opts.Store,
		health:    opts.Health,
		metrics:   opts.Metrics,
		version:   opts.Version,
		logger:    opts.Logger,
		ready:     make(chan struct{}),
	}
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var recorder HTTPRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(recorder, route, h))
	}

	ph := &policyHandlers{
		store:        s.store,
		maxBodyBytes: s.config.MaxBodyBytes,
		logger:       s.logger,
	}
	handle("GET /v1/policies", "/v1/policies", ph.list)
	handle("PUT /v1/policies", "/v1/policies", ph.replace)
	handle("GET /v1/policies/snapshot", "/v1/policies/snapshot", ph.snapshot)

	hc := s.telemetry.Health
	handle(hc.LivenessPath, hc.LivenessPath, s.health.LivenessHandler())
	handle(hc.ReadinessPath, hc.ReadinessPath, s.health.ReadinessHandler())
	handle("/version", "/version", health.VersionHandler(s.version))

	if s.metrics != nil && s.telemetry.Metrics.Enabled {
		mux.Handle(s.telemetry.Metrics.Path, s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting policy server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	}
}

// Addr blocks until Start has tried to bind and returns the bound address,
// or nil if binding failed.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) shutdown() error {
	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		shutdownErr = fmt.Errorf("server shutdown error: %w", err)
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	s.logger.Info("policy server stopped")
	return shutdownErr
}
