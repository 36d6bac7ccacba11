// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	defaultListenAddr      = ":8000"
	defaultReadTimeout     = 60 * time.Second
	defaultWriteTimeout    = 0 // downloads stream for as long as they need
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultShutdownTimeout = 15 * time.Second
	defaultMaxUploadBytes  = 32 << 20

	defaultRateLimitRequests = 60
	defaultRateLimitWindow   = 60 * time.Second

	defaultWhisperModel      = "turbo"
	defaultTranscribeTimeout = 120 * time.Second

	defaultVideoTimeout    = 60 * time.Second
	defaultDownloadTimeout = 10 * time.Minute
	defaultLowHeight       = 480
	defaultMaxDuration     = 10 * time.Minute
	defaultSearchQPS       = 5

	defaultDeleteDelay   = 5 * time.Second
	defaultShutdownGrace = 1 * time.Second

	defaultRecordDuration = 7 * time.Second
	defaultSampleRate     = 44100
	defaultRequestTimeout = 120 * time.Second
)

// DefaultAppConfig returns the daemon defaults.
func DefaultAppConfig() AppConfig {
	dataDir := filepath.Join(os.TempDir(), "saytube")
	return AppConfig{
		LogLevel:   "info",
		LogService: "saytubed",
		DataDir:    dataDir,
		Server: ServerRuntimeConfig{
			ListenAddr:      defaultListenAddr,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			MaxHeaderBytes:  defaultMaxHeaderBytes,
			ShutdownTimeout: defaultShutdownTimeout,
			MaxUploadBytes:  defaultMaxUploadBytes,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: defaultRateLimitRequests,
			Window:   defaultRateLimitWindow,
			Store:    "memory",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Transcribe: TranscribeConfig{
			Engine:  "http",
			URL:     "http://localhost:9000",
			Model:   defaultWhisperModel,
			Device:  "auto",
			Timeout: defaultTranscribeTimeout,
		},
		Video: VideoConfig{
			YtDlpBin:        "yt-dlp",
			Timeout:         defaultVideoTimeout,
			DownloadTimeout: defaultDownloadTimeout,
			LowHeight:       defaultLowHeight,
			MaxDuration:     defaultMaxDuration,
			SearchQPS:       defaultSearchQPS,
		},
		TempMedia: TempMediaConfig{
			DeleteDelay:   defaultDeleteDelay,
			ShutdownGrace: defaultShutdownGrace,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:       "http://localhost:8000",
		LogLevel:        "info",
		RecordDuration:  defaultRecordDuration,
		SampleRate:      defaultSampleRate,
		Channels:        1,
		PlayMode:        "low",
		Preflight:       true,
		MaxDuration:     defaultMaxDuration,
		RequestTimeout:  defaultRequestTimeout,
		DownloadTimeout: defaultDownloadTimeout,
		MediaDir:        filepath.Join(os.TempDir(), "saytube-client"),
		DeleteDelay:     defaultDeleteDelay,
		ShutdownGrace:   defaultShutdownGrace,
		PlayerCommand:   []string{"mpv", "--really-quiet", "--force-window=yes"},
	}
}
