// SPDX-License-Identifier: MIT

package daemon

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingAPIHandler = errors.New("daemon: API handler is required")
	ErrMissingManager    = errors.New("daemon: manager is required")

	// ErrManagerNotStarted is returned by Shutdown before Start has run.
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)

// Deps is what the Manager serves. The metrics listener only starts when
// both MetricsAddr and MetricsHandler are set.
type Deps struct {
	Logger         zerolog.Logger
	APIHandler     http.Handler
	MetricsAddr    string
	MetricsHandler http.Handler
}

func (d *Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}

func (d *Deps) metricsEnabled() bool {
	return d.MetricsAddr != "" && d.MetricsHandler != nil
}
