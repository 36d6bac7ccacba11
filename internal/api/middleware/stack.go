// SPDX-License-Identifier: MIT

// Package middleware holds the HTTP ingress stack shared by every daemon
// route.
package middleware

import (
	"net/http"

	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the ingress stack.
type StackConfig struct {
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool
}

// Stack returns the ingress middlewares outermost first. Recoverer always
// leads so a panic in any later layer still becomes a 500, and RequestID
// runs before anything that logs.
func Stack(cfg StackConfig) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{Recoverer, RequestID}
	if cfg.EnableMetrics {
		mws = append(mws, Metrics())
	}
	if cfg.TracingService != "" {
		mws = append(mws, Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		mws = append(mws, xglog.Middleware())
	}
	return mws
}

// ApplyStack installs Stack(cfg) on r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Stack(cfg)...)
}
