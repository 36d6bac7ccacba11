// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/saytube/internal/config"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/rs/zerolog"
)

const detachedShutdownTimeout = 30 * time.Second

// ShutdownHook releases a resource during shutdown. Hooks run newest first,
// after the listeners have drained.
type ShutdownHook func(ctx context.Context) error

// Manager owns the API and metrics listeners of saytubed.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type namedHook struct {
	name string
	run  ShutdownHook
}

type manager struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger

	api     *http.Server
	metrics *http.Server
	apiAddr net.Addr
	ready   chan struct{}

	mu       sync.Mutex
	hooks    []namedHook
	started  bool
	stopping bool
}

// NewManager validates deps and returns a Manager that has not bound
// anything yet.
func NewManager(cfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("daemon deps: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	return &manager{
		cfg:    cfg,
		deps:   deps,
		ready:  make(chan struct{}),
		logger: deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger(),
	}, nil
}

// Start binds the listeners, serves until ctx is cancelled or a server
// fails, then shuts down.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("daemon: manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.cfg.ListenAddr).
		Dur("write_timeout", m.cfg.WriteTimeout).
		Msg("starting listeners")

	failures := make(chan error, 2)

	if m.deps.metricsEnabled() {
		if err := m.startMetricsServer(failures); err != nil {
			return m.failStart(ctx, fmt.Errorf("failed to start metrics server: %w", err))
		}
	}
	if err := m.startAPIServer(failures); err != nil {
		return m.failStart(ctx, fmt.Errorf("failed to start API server: %w", err))
	}
	close(m.ready)

	select {
	case err := <-failures:
		m.logger.Error().Err(err).Msg("server error, initiating shutdown")
		return m.failStart(ctx, err)
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		return m.shutdownDetached(ctx)
	}
}

// shutdownDetached runs Shutdown on a context that outlives ctx's
// cancellation.
func (m *manager) shutdownDetached(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedShutdownTimeout)
	defer cancel()
	return m.Shutdown(shutdownCtx)
}

// failStart still runs the shutdown hooks so resources opened during
// bootstrap are released.
func (m *manager) failStart(ctx context.Context, err error) error {
	if shutdownErr := m.shutdownDetached(ctx); shutdownErr != nil {
		return errors.Join(err, shutdownErr)
	}
	return err
}

func (m *manager) startAPIServer(errChan chan<- error) error {
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return err
	}
	m.apiAddr = ln.Addr()
	m.api = &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
		MaxHeaderBytes:    m.cfg.MaxHeaderBytes,
	}
	go m.serve("api", m.api, ln, errChan)
	return nil
}

func (m *manager) startMetricsServer(errChan chan<- error) error {
	ln, err := net.Listen("tcp", m.deps.MetricsAddr)
	if err != nil {
		return err
	}
	m.metrics = &http.Server{
		Handler:           m.deps.MetricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go m.serve("metrics", m.metrics, ln, errChan)
	return nil
}

// serve runs srv on ln and reports anything but a clean close on errChan.
func (m *manager) serve(name string, srv *http.Server, ln net.Listener, errChan chan<- error) {
	m.logger.Info().Str("server", name).Str("addr", ln.Addr().String()).Msg("listening")
	err := srv.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	m.logger.Error().
		Err(err).
		Str("server", name).
		Str(xglog.FieldEvent, name+".server.failed").
		Msg("server failed")
	errChan <- fmt.Errorf("%s server: %w", name, err)
}

// Shutdown drains the listeners, then runs the hooks newest first. Calls
// after the first are no-ops.
func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	m.logger.Info().Msg("stopping listeners")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for name, srv := range map[string]*http.Server{"api": m.api, "metrics": m.metrics} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server: %w", name, err))
		}
	}
	slices.Reverse(hooks)
	for _, h := range hooks {
		began := time.Now()
		err := h.run(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("took", time.Since(began)).Msg("shutdown hook finished")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	m.logger.Info().Msg("daemon stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, namedHook{name: name, run: hook})
	m.mu.Unlock()
}

// waitReady blocks until the API listener is bound and returns its address.
func (m *manager) waitReady(ctx context.Context) (net.Addr, error) {
	select {
	case <-m.ready:
		return m.apiAddr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
