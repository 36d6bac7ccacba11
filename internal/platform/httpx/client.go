// SPDX-License-Identifier: MIT

// Package httpx builds the hardened outbound HTTP clients used for the
// speech engine, the backend API and health probes.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

type options struct {
	responseHeaderTimeout time.Duration
	traced                bool
}

// Option tunes a client built by NewClient.
type Option func(*options)

// WithResponseHeaderTimeout overrides the time allowed until response headers
// arrive. Endpoints that compute before answering (recognition, downloads)
// need more than the probe default.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(o *options) { o.responseHeaderTimeout = d }
}

// WithTracing wraps the transport with otelhttp so outbound calls carry the
// trace context.
func WithTracing() Option {
	return func(o *options) { o.traced = true }
}

// NewClient returns a hardened HTTP client. A zero timeout means the default
// probe timeout; a negative timeout disables the overall deadline and leaves
// it to per-request contexts (streaming downloads).
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	clientTimeout := timeout
	switch {
	case timeout == 0:
		clientTimeout = defaultClientTimeout
	case timeout < 0:
		clientTimeout = 0
	}

	dialTimeout := defaultDialTimeout
	if clientTimeout > 0 && clientTimeout < dialTimeout {
		dialTimeout = clientTimeout
	}

	o := options{responseHeaderTimeout: defaultResponseHeaderTimeout}
	if clientTimeout > 0 && clientTimeout < o.responseHeaderTimeout {
		o.responseHeaderTimeout = clientTimeout
	}
	for _, opt := range opts {
		opt(&o)
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: o.responseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if o.traced {
		transport = otelhttp.NewTransport(transport)
	}

	return &http.Client{Timeout: clientTimeout, Transport: transport}
}
