// Package gateway serves payment gated routes over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitwit/x402-gateway/logger"
	"github.com/vitwit/x402-gateway/metrics"
	"github.com/vitwit/x402-gateway/types"
)

// State is the lifecycle position of a Gateway.
type State int32

const (
	StateStarting State = iota
	StateServing
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateServing:
		return "serving"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the listener settings.
type Config struct {
	Addr          string
	ShutdownGrace time.Duration
}

// PaidRoute describes one gated route for discovery.
type PaidRoute struct {
	Path        string                     `json:"route"`
	Price       string                     `json:"price"`
	Requirement *types.PaymentRequirements `json:"requirement"`
}

// Gateway routes requests through the payment gate and owns the listener.
type Gateway struct {
	cfg      Config
	router   *mux.Router
	verifier PaymentVerifier
	settler  Settler

	logger   logger.Logger
	metrics  metrics.Recorder
	errorLog *log.Logger

	state atomic.Int32
	ready chan struct{}

	mu     sync.RWMutex
	addr   string
	routes []PaidRoute
}

type Option func(*Gateway)

func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithMetricsHandler exposes h on /metrics without payment.
func WithMetricsHandler(h http.Handler) Option {
	return func(g *Gateway) {
		g.router.Handle("/metrics", h).Methods(http.MethodGet)
	}
}

// WithPaymentSettler settles every gated route after its handler succeeds.
func WithPaymentSettler(s Settler) Option {
	return func(g *Gateway) {
		g.settler = s
	}
}

// WithErrorLog sets the logger used by http.Server for connection errors.
func WithErrorLog(l *log.Logger) Option {
	return func(g *Gateway) {
		g.errorLog = l
	}
}

// New builds a gateway. Routes are added with Handle and HandlePaid before Run.
func New(cfg Config, verifier PaymentVerifier, opts ...Option) *Gateway {
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	g := &Gateway{
		cfg:      cfg,
		router:   mux.NewRouter(),
		verifier: verifier,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		ready:    make(chan struct{}),
	}
	g.state.Store(int32(StateStarting))

	for _, opt := range opts {
		opt(g)
	}

	g.router.Use(requestIDMiddleware, g.accessLogMiddleware, g.recoveryMiddleware)
	g.router.Handle("/health", g.healthHandler()).Methods(http.MethodGet)
	g.router.Handle("/supported", g.supportedHandler()).Methods(http.MethodGet)

	// Router level fallbacks skip the route middleware, so wrap them here.
	g.router.NotFoundHandler = requestIDMiddleware(g.accessLogMiddleware(notFoundHandler()))
	g.router.MethodNotAllowedHandler = requestIDMiddleware(g.accessLogMiddleware(methodNotAllowedHandler()))

	return g
}

// Handle mounts h on path without a payment gate.
func (g *Gateway) Handle(path string, h http.Handler) {
	g.router.Handle(path, h)
}

// HandlePaid mounts h on path behind requirement.
func (g *Gateway) HandlePaid(path, price string, requirement *types.PaymentRequirements, h http.Handler) {
	opts := []GateOption{
		WithRouteName(path),
		WithGateLogger(g.logger),
		WithGateMetrics(g.metrics),
	}
	if g.settler != nil {
		opts = append(opts, WithSettler(g.settler))
	}

	g.router.Handle(path, Gate(requirement, g.verifier, h, opts...)).Methods(http.MethodGet, http.MethodPost)

	g.mu.Lock()
	g.routes = append(g.routes, PaidRoute{Path: path, Price: price, Requirement: requirement})
	g.mu.Unlock()
}

// Routes lists the gated routes.
func (g *Gateway) Routes() []PaidRoute {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]PaidRoute, len(g.routes))
	copy(out, g.routes)
	return out
}

// ServeHTTP dispatches r through the router. It does not require Run.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Ready is closed once the listener is bound.
func (g *Gateway) Ready() <-chan struct{} {
	return g.ready
}

// Addr returns the bound listener address, empty before Run binds it.
func (g *Gateway) Addr() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.addr
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown grace period and releases the listener.
func (g *Gateway) Run(ctx context.Context) error {
	if st := g.State(); st != StateStarting {
		return fmt.Errorf("gateway already %s", st)
	}

	ln, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("listen on %s: %w", g.cfg.Addr, err)
	}

	g.mu.Lock()
	g.addr = ln.Addr().String()
	g.mu.Unlock()

	srv := &http.Server{
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          g.errorLog,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	g.state.Store(int32(StateServing))
	close(g.ready)
	g.logger.Info("gateway serving", map[string]any{"addr": g.Addr()})

	select {
	case <-ctx.Done():
	case err := <-errCh:
		g.state.Store(int32(StateStopped))
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}

	g.state.Store(int32(StateDraining))
	g.logger.Info("gateway draining", map[string]any{"grace": g.cfg.ShutdownGrace.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.ShutdownGrace)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		_ = srv.Close()
	}
	<-errCh

	g.state.Store(int32(StateStopped))
	g.logger.Info("gateway stopped", nil)

	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return nil
}
