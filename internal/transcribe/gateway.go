// SPDX-License-Identifier: MIT

package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/apperr"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/metrics"
	"github.com/ManuGH/saytube/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
)

const (
	detectBeamSize = 2
	decodeBeamSize = 5

	defaultTimeout = 120 * time.Second
)

// Result is the outcome of a transcription.
type Result struct {
	Language string
	Text     string
}

// Gateway runs the two-pass policy: a cheap pass without a language hint to
// detect the language, then a wider-beam pass pinned to it. Only the second
// pass produces text.
type Gateway struct {
	engine  Engine
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGateway wraps engine. A non-positive timeout falls back to 120s.
func NewGateway(engine Engine, timeout time.Duration, logger zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{engine: engine, timeout: timeout, logger: logger}
}

// Transcribe recognizes audio. Engine failures come back as
// KindRecognitionFailed; an empty transcript is a valid result.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte) (res Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ctx, span := telemetry.Tracer("saytube/transcribe").Start(ctx, "transcribe")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "recognition failed")
			metrics.IncStage("transcribe", "failure")
		} else {
			metrics.IncStage("transcribe", "success")
		}
		span.End()
	}()

	first, err := g.pass(ctx, 1, audio, Options{BeamSize: detectBeamSize})
	if err != nil {
		return Result{}, err
	}
	language := NormalizeLanguage(first.Language)

	second, err := g.pass(ctx, 2, audio, Options{Language: language, BeamSize: decodeBeamSize})
	if err != nil {
		return Result{}, err
	}

	res = Result{Language: language, Text: JoinSegments(second.Segments)}
	logger := xglog.WithContext(ctx, g.logger)
	logger.Info().
		Str(xglog.FieldEvent, "transcribe.done").
		Str(xglog.FieldLanguage, res.Language).
		Int("chars", len(res.Text)).
		Msg("transcription complete")
	return res, nil
}

func (g *Gateway) pass(ctx context.Context, n int, audio []byte, opts Options) (Recognition, error) {
	ctx, span := telemetry.Tracer("saytube/transcribe").Start(ctx, fmt.Sprintf("transcribe.pass%d", n))
	span.SetAttributes(telemetry.TranscribeAttributes(n, opts.Language, opts.BeamSize)...)
	defer span.End()

	start := time.Now()
	rec, err := g.engine.Recognize(ctx, audio, opts)
	metrics.ObserveUpstream("whisper", fmt.Sprintf("pass%d", n), start, err)
	if err != nil {
		return Recognition{}, apperr.Wrap(apperr.KindRecognitionFailed, fmt.Sprintf("transcribe.pass%d", n), "Transcription failed", err)
	}
	return rec, nil
}

// JoinSegments trims every segment, drops blank ones and joins the rest with
// a single space.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
