// SPDX-License-Identifier: MIT

package config

import "time"

// AppConfig is the daemon configuration. It is loaded once at startup and
// replaced as a whole by Holder on reload.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	DataDir    string `yaml:"dataDir"`

	Server        ServerRuntimeConfig `yaml:"server"`
	MetricsListen string              `yaml:"metricsListen"`

	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Redis      RedisConfig      `yaml:"redis"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Video      VideoConfig      `yaml:"video"`
	TempMedia  TempMediaConfig  `yaml:"tempMedia"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerRuntimeConfig holds the HTTP listener settings from file/env.
type ServerRuntimeConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes  int           `yaml:"maxHeaderBytes"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

// RateLimitConfig configures the per-client sliding window.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Store    string        `yaml:"store"` // memory|redis
	// TrustedProxies lists CIDRs whose X-Forwarded-For is believed. Empty
	// means clients are keyed by their TCP peer address only.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// RedisConfig is used when RateLimit.Store is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TranscribeConfig selects and configures the speech-recognition engine.
type TranscribeConfig struct {
	Engine  string        `yaml:"engine"` // http|command
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"apiKey"`
	Command []string      `yaml:"command"`
	Device  string        `yaml:"device"` // auto|cpu|cuda
	Timeout time.Duration `yaml:"timeout"`

	// SendBeamSize forwards the per-pass beam size to the HTTP engine.
	SendBeamSize bool `yaml:"sendBeamSize"`
}

// VideoConfig configures search and extraction against the video platform.
type VideoConfig struct {
	YouTubeAPIKey   string        `yaml:"youtubeApiKey"`
	YtDlpBin        string        `yaml:"ytDlpBin"`
	Timeout         time.Duration `yaml:"timeout"`
	DownloadTimeout time.Duration `yaml:"downloadTimeout"`
	LowHeight       int           `yaml:"lowHeight"`
	MaxDuration     time.Duration `yaml:"maxDuration"`
	SearchQPS       float64       `yaml:"searchQps"`
}

// TempMediaConfig configures the temp media lifecycle manager.
type TempMediaConfig struct {
	Dir           string        `yaml:"dir"`
	DeleteDelay   time.Duration `yaml:"deleteDelay"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`
	LedgerPath    string        `yaml:"ledgerPath"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// ClientConfig configures the interactive client.
type ClientConfig struct {
	ServerURL string `yaml:"serverUrl"`
	LogLevel  string `yaml:"logLevel"`

	RecordDuration time.Duration `yaml:"recordDuration"`
	SampleRate     int           `yaml:"sampleRate"`
	Channels       int           `yaml:"channels"`

	PlayMode    string        `yaml:"playMode"` // stream|low|merged
	Preflight   bool          `yaml:"preflight"`
	MaxDuration time.Duration `yaml:"maxDuration"`

	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	DownloadTimeout time.Duration `yaml:"downloadTimeout"`

	MediaDir      string        `yaml:"mediaDir"`
	DeleteDelay   time.Duration `yaml:"deleteDelay"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`

	PlayerCommand []string `yaml:"playerCommand"`
}
