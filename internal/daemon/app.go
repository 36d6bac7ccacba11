// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/saytube/internal/config"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/ratelimit"
	"github.com/ManuGH/saytube/internal/tempmedia"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const janitorInterval = time.Minute

// App owns the long-lived runtime (config reload wiring, the deferred
// deletion worker, the limiter janitor) and delegates servers to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	limiter      *ratelimit.Limiter
	memStore     *ratelimit.MemoryStore
	media        *tempmedia.Manager
	apiHandler   http.Handler
	reloadSignal os.Signal
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("config watcher not running")
		}
		if a.limiter != nil {
			updates := make(chan config.AppConfig, 1)
			a.cfgHolder.RegisterListener(updates)
			g.Go(func() error { return a.applyRateLimits(ctx, updates) })
		}
		if a.reloadSignal != nil {
			g.Go(func() error { return a.reloadOnSignal(ctx) })
		}
	}
	if a.media != nil {
		g.Go(func() error {
			a.media.Run(ctx)
			return nil
		})
	}
	if a.memStore != nil && a.limiter != nil {
		g.Go(func() error {
			// Buckets idle for a full window carry no state worth keeping.
			idle := func() time.Duration { return max(a.limiter.Settings().Window, time.Minute) }
			a.memStore.Run(ctx, janitorInterval, idle, nil)
			return nil
		})
	}
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})
	return g.Wait()
}

func (a *App) applyRateLimits(ctx context.Context, updates <-chan config.AppConfig) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-updates:
			a.limiter.Update(RateLimitSettings(cfg.RateLimit))
		}
	}
}

func (a *App) reloadOnSignal(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, a.reloadSignal)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			log := a.logger.With().Str("signal", sig.String()).Logger()
			log.Info().Str(xglog.FieldEvent, "config.reload_signal").Msg("reloading config")
			if err := a.cfgHolder.Reload(ctx); err != nil {
				log.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed, keeping previous settings")
			}
		}
	}
}

// APIHandler returns the routed API handler.
func (a *App) APIHandler() http.Handler { return a.apiHandler }

// RateLimitSettings maps configuration onto limiter settings.
func RateLimitSettings(cfg config.RateLimitConfig) ratelimit.Settings {
	return ratelimit.Settings{Enabled: cfg.Enabled, Limit: cfg.Requests, Window: cfg.Window}
}

func defaultReloadSignal() os.Signal { return syscall.SIGHUP }
