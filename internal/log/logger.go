// SPDX-License-Identifier: MIT

// Package log owns the process-wide zerolog logger. Components derive child
// loggers from it with WithComponent; request-scoped code adds correlation
// fields with WithContext.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the global logger. Zero values fall back to info level,
// JSON on stdout and the service name "saytube".
type Config struct {
	Level   string
	Output  io.Writer
	Service string
	Version string
	// Pretty switches to zerolog's console writer (the interactive client).
	Pretty bool
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

// Configure replaces the global logger. Binaries call it twice: with safe
// defaults at start and again once the config is loaded.
func Configure(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	if cfg.Service == "" {
		cfg.Service = "saytube"
	}

	zctx := zerolog.New(out).With().Timestamp().Str(FieldService, cfg.Service)
	if cfg.Version != "" {
		zctx = zctx.Str(FieldVersion, cfg.Version)
	}

	mu.Lock()
	base = zctx.Logger()
	mu.Unlock()
}

// Base returns the global logger.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

func init() {
	Configure(Config{})
}
