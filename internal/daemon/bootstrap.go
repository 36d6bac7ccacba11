// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/saytube/internal/api"
	"github.com/ManuGH/saytube/internal/audiobuf"
	"github.com/ManuGH/saytube/internal/config"
	"github.com/ManuGH/saytube/internal/hardware"
	"github.com/ManuGH/saytube/internal/health"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/persistence/sqlite"
	"github.com/ManuGH/saytube/internal/ratelimit"
	"github.com/ManuGH/saytube/internal/resilience"
	"github.com/ManuGH/saytube/internal/telemetry"
	"github.com/ManuGH/saytube/internal/tempmedia"
	"github.com/ManuGH/saytube/internal/transcribe"
	"github.com/ManuGH/saytube/internal/transcribe/whispercmd"
	"github.com/ManuGH/saytube/internal/transcribe/whisperhttp"
	"github.com/ManuGH/saytube/internal/video"
	"github.com/ManuGH/saytube/internal/video/youtube"
	"github.com/ManuGH/saytube/internal/video/ytdlp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	searchBreakerThreshold = 3
	searchBreakerReset     = 5 * time.Minute
)

// Build wires every daemon component from the holder's current config.
// Resources opened here are released by the manager's shutdown hooks; on a
// build error they are released before returning.
func Build(ctx context.Context, holder *config.Holder, logger zerolog.Logger) (_ *App, err error) {
	cfg := holder.Get()

	var undo []func()
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	undo = append(undo, func() { _ = tp.Shutdown(context.Background()) })

	db, ledger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	undo = append(undo, func() { _ = db.Close() })

	media, err := tempmedia.New(tempmedia.Options{
		Dir:           cfg.TempMedia.Dir,
		DeleteDelay:   cfg.TempMedia.DeleteDelay,
		ShutdownGrace: cfg.TempMedia.ShutdownGrace,
		Ledger:        ledger,
		Logger:        logger.With().Str(xglog.FieldComponent, "tempmedia").Logger(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := media.RecoverOrphans(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "tempmedia.recover_failed").Msg("orphan sweep failed")
	}

	engine, err := newEngine(cfg.Transcribe)
	if err != nil {
		return nil, err
	}
	gateway := transcribe.NewGateway(engine, cfg.Transcribe.Timeout, logger.With().Str(xglog.FieldComponent, "transcribe").Logger())

	extractor := ytdlp.New(cfg.Video.YtDlpBin)
	searcher, err := newSearcher(ctx, cfg.Video, extractor, xglog.WithComponent("video"))
	if err != nil {
		return nil, err
	}
	resolver := video.NewResolver(video.Config{
		Searcher:        searcher,
		Extractor:       extractor,
		Media:           media,
		Profiles:        video.NewProfiles(cfg.Video.LowHeight),
		Timeout:         cfg.Video.Timeout,
		DownloadTimeout: cfg.Video.DownloadTimeout,
		Logger:          logger.With().Str(xglog.FieldComponent, "video").Logger(),
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewDirWritableChecker("temp_media", media.Dir()))
	hm.RegisterChecker(health.NewPingChecker("media_ledger", media.Ping))

	store, redisStore, err := newLimiterStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if redisStore != nil {
		undo = append(undo, func() { _ = redisStore.Close() })
		// The limiter fails open, so a Redis outage only degrades.
		hm.RegisterChecker(health.NewPingChecker("ratelimit_redis", redisStore.Ping).Optional())
	}
	limiter := ratelimit.New(store, RateLimitSettings(cfg.RateLimit),
		ratelimit.WithLogger(logger.With().Str(xglog.FieldComponent, "ratelimit").Logger()))

	trusted, err := ratelimit.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("rateLimit.trustedProxies: %w", err)
	}

	srv := api.New(api.Deps{
		Audio:          audiobuf.NewStore(),
		Transcriber:    gateway,
		Videos:         resolver,
		Media:          media,
		Limiter:        limiter,
		TrustedProxies: trusted,
		Health:         hm,
		ServiceName:    cfg.LogService,
		MaxDuration:    cfg.Video.MaxDuration,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		GPUAvailable:   hardware.HasGPU,
		Tracing:        cfg.Telemetry.Enabled,
		Logger:         logger.With().Str(xglog.FieldComponent, "api").Logger(),
	})
	handler := srv.Handler()

	serverCfg, err := config.ParseServerConfigForApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	deps := Deps{Logger: logger, APIHandler: handler}
	if cfg.MetricsListen != "" {
		deps.MetricsAddr = cfg.MetricsListen
		deps.MetricsHandler = promhttp.Handler()
	}
	mgr, err := NewManager(serverCfg, deps)
	if err != nil {
		return nil, err
	}

	// LIFO: media sweep runs before the ledger closes.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("media_ledger", func(context.Context) error { return db.Close() })
	if redisStore != nil {
		mgr.RegisterShutdownHook("ratelimit_redis", func(context.Context) error { return redisStore.Close() })
	}
	mgr.RegisterShutdownHook("config_watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})
	mgr.RegisterShutdownHook("tempmedia", func(ctx context.Context) error {
		media.CleanupAll(ctx)
		return nil
	})

	app := &App{
		logger:       logger,
		manager:      mgr,
		cfgHolder:    holder,
		limiter:      limiter,
		media:        media,
		apiHandler:   handler,
		reloadSignal: defaultReloadSignal(),
	}
	if ms, ok := store.(*ratelimit.MemoryStore); ok {
		app.memStore = ms
	}
	return app, nil
}

func openLedger(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*sql.DB, *tempmedia.SQLLedger, error) {
	db, quarantined, err := sqlite.OpenVerified(cfg.TempMedia.LedgerPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open media ledger: %w", err)
	}
	if quarantined != "" {
		logger.Warn().
			Str(xglog.FieldEvent, "tempmedia.ledger_quarantined").
			Str(xglog.FieldPath, quarantined).
			Msg("media ledger was corrupt and has been replaced; orphans from the previous run are not recoverable")
	}
	ledger, err := tempmedia.NewSQLLedger(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("init media ledger: %w", err)
	}
	return db, ledger, nil
}

func newEngine(cfg config.TranscribeConfig) (transcribe.Engine, error) {
	switch cfg.Engine {
	case "", "http":
		return whisperhttp.New(whisperhttp.Config{
			BaseURL:      cfg.URL,
			Model:        cfg.Model,
			APIKey:       cfg.APIKey,
			Timeout:      cfg.Timeout,
			SendBeamSize: cfg.SendBeamSize,
		}), nil
	case "command":
		return whispercmd.New(whispercmd.Config{
			Command: cfg.Command,
			Model:   cfg.Model,
			Device:  hardware.ResolveDevice(cfg.Device),
		})
	default:
		return nil, fmt.Errorf("unknown transcribe engine %q", cfg.Engine)
	}
}

// newSearcher prefers the Data API and falls back to yt-dlp search when no
// API key is configured or while the API keeps failing (quota exhausted).
func newSearcher(ctx context.Context, cfg config.VideoConfig, fallback video.Searcher, logger zerolog.Logger) (video.Searcher, error) {
	if cfg.YouTubeAPIKey == "" {
		return fallback, nil
	}
	s, err := youtube.New(ctx, youtube.Config{APIKey: cfg.YouTubeAPIKey, QPS: cfg.SearchQPS})
	if err != nil {
		return nil, err
	}
	cb := resilience.NewCircuitBreaker("youtube_search", searchBreakerThreshold, searchBreakerReset,
		resilience.WithFailureFilter(video.SearchFailureCounts))
	return video.NewBreakerSearcher(s, fallback, cb, logger), nil
}

func newLimiterStore(ctx context.Context, cfg config.AppConfig) (ratelimit.Store, *ratelimit.RedisStore, error) {
	switch cfg.RateLimit.Store {
	case "", "memory":
		return ratelimit.NewMemoryStore(), nil, nil
	case "redis":
		rs, err := ratelimit.NewRedisStore(ctx, ratelimit.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, rs, nil
	default:
		return nil, nil, errors.New("unknown rate limit store " + cfg.RateLimit.Store)
	}
}
