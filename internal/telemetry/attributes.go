// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the pipeline spans.
const (
	VideoIDKey      = "video.id"
	VideoProfileKey = "video.profile"
	VideoUpstream   = "video.upstream"

	TranscribePassKey     = "transcribe.pass"
	TranscribeLanguageKey = "transcribe.language"
	TranscribeBeamKey     = "transcribe.beam_size"
	AudioBytesKey         = "audio.bytes"

	ErrorKindKey = "error.kind"
)

// VideoAttributes describes a resolver call.
func VideoAttributes(id, profile string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(VideoIDKey, id)}
	if profile != "" {
		attrs = append(attrs, attribute.String(VideoProfileKey, profile))
	}
	return attrs
}

// TranscribeAttributes describes one recognition pass.
func TranscribeAttributes(pass int, language string, beam int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(TranscribePassKey, pass),
		attribute.String(TranscribeLanguageKey, language),
		attribute.Int(TranscribeBeamKey, beam),
	}
}
