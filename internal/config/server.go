// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"time"
)

// BindListenAddr replaces the host part of a listen address when it is of the
// form ":PORT" or empty. Explicit host:port values are left untouched.
func BindListenAddr(listenAddr, bind string) (string, error) {
	if bind == "" {
		return listenAddr, nil
	}
	if listenAddr != "" && listenAddr[0] != ':' {
		return listenAddr, nil
	}
	port := "0"
	if len(listenAddr) > 1 {
		port = listenAddr[1:]
	}
	if ip := net.ParseIP(bind); ip == nil {
		if _, err := net.LookupHost(bind); err != nil {
			return "", fmt.Errorf("resolve bind host %q: %w", bind, err)
		}
	}
	return net.JoinHostPort(bind, port), nil
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the uploaded audio body.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero disables it, which video downloads rely on.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes controls the maximum number of bytes the server will read
	MaxHeaderBytes int

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration
}

// ParseServerConfigForApp derives the HTTP server settings from the loaded
// application config, honouring SAYTUBE_BIND_HOST.
func ParseServerConfigForApp(cfg AppConfig) (ServerConfig, error) {
	addr, err := BindListenAddr(cfg.Server.ListenAddr, ParseString("SAYTUBE_BIND_HOST", ""))
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxHeaderBytes:  cfg.Server.MaxHeaderBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}
