// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "saytubed", ExporterType: "grpc"})
	require.NoError(t, err)
	assert.False(t, provider.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNilProviderShutdown(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderInvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "saytubed", ExporterType: "zipkin"})
	require.Error(t, err)
	assert.Equal(t, `telemetry: exporter "zipkin" not supported (want grpc or http)`, err.Error())
}

func TestRootSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), rootSampler(1.5).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), rootSampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), rootSampler(0.25).Description())
}

func TestVideoAttributesOmitsEmptyProfile(t *testing.T) {
	assert.Len(t, VideoAttributes("abc", ""), 1)
	assert.Len(t, VideoAttributes("abc", "low"), 2)
}

func TestTranscribeAttributes(t *testing.T) {
	attrs := TranscribeAttributes(2, "de", 5)
	require.Len(t, attrs, 3)
	assert.Equal(t, int64(2), attrs[0].Value.AsInt64())
	assert.Equal(t, "de", attrs[1].Value.AsString())
}
