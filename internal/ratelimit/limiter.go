// SPDX-License-Identifier: MIT

// Package ratelimit admits or rejects requests per client with a sliding
// window log: every admitted request is timestamped, entries older than the
// window are pruned on each check, and a request is admitted only while the
// remaining entries are below the ceiling. There is no burst credit.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/metrics"
	"github.com/rs/zerolog"
)

// Settings are the runtime-adjustable limiter parameters.
type Settings struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// StoreResult is what a window store reports for one check.
type StoreResult struct {
	Allowed bool
	// Count is the number of entries in the window after the check.
	Count int
	// Oldest is the earliest entry still inside the window.
	Oldest time.Time
}

// Store holds the per-client window logs. Admit must prune, count and
// conditionally record atomically.
type Store interface {
	Admit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (StoreResult, error)
	Name() string
}

// Limiter applies Settings over a Store.
type Limiter struct {
	store    Store
	now      func() time.Time
	logger   zerolog.Logger
	settings atomic.Pointer[Settings]
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for store failures and setting changes.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter.
func New(store Store, s Settings, opts ...Option) *Limiter {
	l := &Limiter{store: store, now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	l.settings.Store(&s)
	return l
}

// Settings returns the active settings.
func (l *Limiter) Settings() Settings {
	return *l.settings.Load()
}

// Update replaces the settings. Existing window entries are kept and judged
// against the new window and ceiling.
func (l *Limiter) Update(s Settings) {
	old := l.settings.Swap(&s)
	if *old != s {
		l.logger.Info().
			Str(xglog.FieldEvent, "ratelimit.settings_updated").
			Bool("enabled", s.Enabled).
			Int("limit", s.Limit).
			Dur("window", s.Window).
			Msg("rate limit settings updated")
	}
}

// Admit checks clientID against the window. A disabled limiter admits
// everything. Store failures admit the request and are logged.
func (l *Limiter) Admit(ctx context.Context, clientID string) Decision {
	s := l.Settings()
	if !s.Enabled || s.Limit <= 0 || s.Window <= 0 {
		return Decision{Allowed: true, Limit: s.Limit, Remaining: s.Limit}
	}

	now := l.now()
	res, err := l.store.Admit(ctx, clientID, now, s.Window, s.Limit)
	if err != nil {
		metrics.IncRateLimitStoreError(l.store.Name())
		logger := xglog.WithContext(ctx, l.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "ratelimit.store_failed").
			Str(xglog.FieldClientID, clientID).
			Msg("rate limit store failed, admitting request")
		return Decision{Allowed: true, Limit: s.Limit, Remaining: s.Limit}
	}

	d := Decision{Allowed: res.Allowed, Limit: s.Limit, Remaining: max(s.Limit-res.Count, 0)}
	if !res.Allowed {
		d.RetryAfter = max(res.Oldest.Add(s.Window).Sub(now), 0)
	}
	return d
}
