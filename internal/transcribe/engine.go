// SPDX-License-Identifier: MIT

// Package transcribe turns uploaded audio into text with a fixed two-pass
// policy over a pluggable speech-recognition engine.
package transcribe

import "context"

// Segment is one recognized span of speech.
type Segment struct {
	StartSec float64
	EndSec   float64
	Text     string
}

// Recognition is what an engine returns for one pass.
type Recognition struct {
	Language string
	Segments []Segment
}

// Options tune a single pass. An empty Language lets the engine detect it.
type Options struct {
	Language string
	BeamSize int
}

// Engine is a speech-recognition backend.
type Engine interface {
	Recognize(ctx context.Context, audio []byte, opts Options) (Recognition, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, audio []byte, opts Options) (Recognition, error)

// Recognize calls f.
func (f EngineFunc) Recognize(ctx context.Context, audio []byte, opts Options) (Recognition, error) {
	return f(ctx, audio, opts)
}
