// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/saytube/internal/ratelimit"
)

// Validate checks the daemon configuration for values that would make the
// pipeline unusable. All problems are reported together.
func Validate(cfg AppConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		errs = append(errs, errors.New("server.listenAddr must not be empty"))
	}
	if cfg.RateLimit.Requests <= 0 {
		errs = append(errs, fmt.Errorf("rateLimit.requests must be positive, got %d", cfg.RateLimit.Requests))
	}
	if cfg.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rateLimit.window must be positive, got %s", cfg.RateLimit.Window))
	}
	switch cfg.RateLimit.Store {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required when rateLimit.store is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("rateLimit.store must be memory or redis, got %q", cfg.RateLimit.Store))
	}
	if _, err := ratelimit.ParseTrustedProxies(cfg.RateLimit.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("rateLimit.trustedProxies: %w", err))
	}

	switch cfg.Transcribe.Engine {
	case "http":
		if _, err := url.ParseRequestURI(cfg.Transcribe.URL); err != nil {
			errs = append(errs, fmt.Errorf("transcribe.url is invalid: %w", err))
		}
	case "command":
		if len(cfg.Transcribe.Command) == 0 {
			errs = append(errs, errors.New("transcribe.command is required when transcribe.engine is command"))
		}
	default:
		errs = append(errs, fmt.Errorf("transcribe.engine must be http or command, got %q", cfg.Transcribe.Engine))
	}
	if cfg.Transcribe.Timeout <= 0 {
		errs = append(errs, errors.New("transcribe.timeout must be positive"))
	}

	if cfg.Video.YtDlpBin == "" {
		errs = append(errs, errors.New("video.ytDlpBin must not be empty"))
	}
	if cfg.Video.Timeout <= 0 || cfg.Video.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("video timeouts must be positive"))
	}
	if cfg.Video.LowHeight <= 0 {
		errs = append(errs, fmt.Errorf("video.lowHeight must be positive, got %d", cfg.Video.LowHeight))
	}
	if cfg.Video.MaxDuration <= 0 {
		errs = append(errs, errors.New("video.maxDuration must be positive"))
	}

	if cfg.TempMedia.DeleteDelay < 0 || cfg.TempMedia.ShutdownGrace < 0 {
		errs = append(errs, errors.New("tempMedia delays must not be negative"))
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("telemetry.exporter must be grpc or http, got %q", cfg.Telemetry.Exporter))
		}
	}

	return errors.Join(errs...)
}

// ValidateClient checks the client configuration.
func ValidateClient(cfg ClientConfig) error {
	var errs []error

	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("serverUrl %q is not an absolute URL", cfg.ServerURL))
	}
	if cfg.RecordDuration <= 0 {
		errs = append(errs, errors.New("recordDuration must be positive"))
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		errs = append(errs, errors.New("sampleRate and channels must be positive"))
	}
	switch cfg.PlayMode {
	case "stream", "low", "merged":
	default:
		errs = append(errs, fmt.Errorf("playMode must be stream, low or merged, got %q", cfg.PlayMode))
	}
	if len(cfg.PlayerCommand) == 0 {
		errs = append(errs, errors.New("playerCommand must not be empty"))
	}
	if cfg.DeleteDelay < 0 {
		errs = append(errs, errors.New("deleteDelay must not be negative"))
	}

	return errors.Join(errs...)
}
