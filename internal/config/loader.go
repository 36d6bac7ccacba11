// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty path skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path, empty when running from ENV only.
func (l *Loader) Path() string { return l.configPath }

// Load loads the daemon configuration: defaults, then the YAML file (strict),
// then environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := DefaultAppConfig()

	if l.configPath != "" {
		if err := decodeFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)
	cfg.Version = l.version

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.TempMedia.Dir == "" {
		cfg.TempMedia.Dir = filepath.Join(cfg.DataDir, "media")
	}
	if cfg.TempMedia.LedgerPath == "" {
		cfg.TempMedia.LedgerPath = filepath.Join(cfg.DataDir, "media.db")
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadClient loads the client configuration with the same precedence rules.
func LoadClient(configPath string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if configPath != "" {
		if err := decodeFile(configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load client config file: %w", err)
		}
	}
	mergeClientEnv(&cfg)
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if err := ValidateClient(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString("SAYTUBE_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = ParseString("SAYTUBE_DATA_DIR", cfg.DataDir)
	cfg.MetricsListen = ParseString("SAYTUBE_METRICS_LISTEN", cfg.MetricsListen)

	cfg.Server.ListenAddr = ParseString("SAYTUBE_LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = ParseDuration("SAYTUBE_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration("SAYTUBE_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = ParseDuration("SAYTUBE_SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.RateLimit.Enabled = ParseBool("SAYTUBE_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = ParseInt("SAYTUBE_RATE_LIMIT_REQUESTS", cfg.RateLimit.Requests)
	cfg.RateLimit.Window = ParseDuration("SAYTUBE_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.Store = ParseString("SAYTUBE_RATE_LIMIT_STORE", cfg.RateLimit.Store)
	cfg.RateLimit.TrustedProxies = ParseList("SAYTUBE_TRUSTED_PROXIES", cfg.RateLimit.TrustedProxies)
	cfg.Redis.Addr = ParseString("SAYTUBE_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("SAYTUBE_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("SAYTUBE_REDIS_DB", cfg.Redis.DB)

	cfg.Transcribe.Engine = ParseString("SAYTUBE_WHISPER_ENGINE", cfg.Transcribe.Engine)
	cfg.Transcribe.URL = ParseString("SAYTUBE_WHISPER_URL", cfg.Transcribe.URL)
	cfg.Transcribe.Model = ParseString("SAYTUBE_WHISPER_MODEL", cfg.Transcribe.Model)
	cfg.Transcribe.APIKey = ParseString("SAYTUBE_WHISPER_API_KEY", cfg.Transcribe.APIKey)
	cfg.Transcribe.Command = ParseList("SAYTUBE_WHISPER_COMMAND", cfg.Transcribe.Command)
	cfg.Transcribe.Device = ParseString("SAYTUBE_WHISPER_DEVICE", cfg.Transcribe.Device)
	cfg.Transcribe.Timeout = ParseDuration("SAYTUBE_TRANSCRIBE_TIMEOUT", cfg.Transcribe.Timeout)
	cfg.Transcribe.SendBeamSize = ParseBool("SAYTUBE_WHISPER_SEND_BEAM_SIZE", cfg.Transcribe.SendBeamSize)

	// YOUTUBE_API_KEY is the name operators already export for the Data API.
	cfg.Video.YouTubeAPIKey = ParseString("YOUTUBE_API_KEY", cfg.Video.YouTubeAPIKey)
	cfg.Video.YtDlpBin = ParseString("SAYTUBE_YTDLP_BIN", cfg.Video.YtDlpBin)
	cfg.Video.Timeout = ParseDuration("SAYTUBE_VIDEO_TIMEOUT", cfg.Video.Timeout)
	cfg.Video.DownloadTimeout = ParseDuration("SAYTUBE_DOWNLOAD_TIMEOUT", cfg.Video.DownloadTimeout)
	cfg.Video.LowHeight = ParseInt("SAYTUBE_LOW_HEIGHT", cfg.Video.LowHeight)
	cfg.Video.MaxDuration = ParseDuration("SAYTUBE_MAX_DURATION", cfg.Video.MaxDuration)
	cfg.Video.SearchQPS = ParseFloat("SAYTUBE_SEARCH_QPS", cfg.Video.SearchQPS)

	cfg.TempMedia.Dir = ParseString("SAYTUBE_MEDIA_DIR", cfg.TempMedia.Dir)
	cfg.TempMedia.DeleteDelay = ParseDuration("SAYTUBE_DELETE_DELAY", cfg.TempMedia.DeleteDelay)
	cfg.TempMedia.ShutdownGrace = ParseDuration("SAYTUBE_SHUTDOWN_GRACE", cfg.TempMedia.ShutdownGrace)
	cfg.TempMedia.LedgerPath = ParseString("SAYTUBE_LEDGER_PATH", cfg.TempMedia.LedgerPath)

	cfg.Telemetry.Enabled = ParseBool("SAYTUBE_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("SAYTUBE_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("SAYTUBE_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("SAYTUBE_OTEL_SAMPLING", cfg.Telemetry.SamplingRate)
}

func mergeClientEnv(cfg *ClientConfig) {
	// SERVER_IP is the bare-host form used by older client setups.
	if ip := ParseString("SERVER_IP", ""); ip != "" {
		if _, _, err := net.SplitHostPort(ip); err != nil {
			ip = net.JoinHostPort(ip, "8000")
		}
		cfg.ServerURL = "http://" + ip
	}
	cfg.ServerURL = ParseString("SAYTUBE_SERVER_URL", cfg.ServerURL)
	cfg.LogLevel = ParseString("SAYTUBE_LOG_LEVEL", cfg.LogLevel)
	cfg.RecordDuration = ParseDuration("SAYTUBE_RECORD_DURATION", cfg.RecordDuration)
	cfg.SampleRate = ParseInt("SAYTUBE_SAMPLE_RATE", cfg.SampleRate)
	cfg.PlayMode = ParseString("SAYTUBE_PLAY_MODE", cfg.PlayMode)
	cfg.Preflight = ParseBool("SAYTUBE_PREFLIGHT", cfg.Preflight)
	cfg.MaxDuration = ParseDuration("SAYTUBE_MAX_DURATION", cfg.MaxDuration)
	cfg.RequestTimeout = ParseDuration("SAYTUBE_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.DownloadTimeout = ParseDuration("SAYTUBE_DOWNLOAD_TIMEOUT", cfg.DownloadTimeout)
	cfg.MediaDir = ParseString("SAYTUBE_MEDIA_DIR", cfg.MediaDir)
	cfg.DeleteDelay = ParseDuration("SAYTUBE_DELETE_DELAY", cfg.DeleteDelay)
	cfg.PlayerCommand = ParseList("SAYTUBE_PLAYER", cfg.PlayerCommand)
}
