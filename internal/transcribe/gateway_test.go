// SPDX-License-Identifier: MIT

package transcribe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEngine struct {
	mu    sync.Mutex
	calls []Options
	fn    func(opts Options) (Recognition, error)
}

func (e *recordingEngine) Recognize(_ context.Context, _ []byte, opts Options) (Recognition, error) {
	e.mu.Lock()
	e.calls = append(e.calls, opts)
	e.mu.Unlock()
	return e.fn(opts)
}

func TestTranscribeTwoPassPolicy(t *testing.T) {
	eng := &recordingEngine{fn: func(opts Options) (Recognition, error) {
		if opts.Language == "" {
			return Recognition{Language: "korean", Segments: []Segment{{Text: "draft"}}}, nil
		}
		return Recognition{Language: opts.Language, Segments: []Segment{
			{Text: "  lofi  "}, {Text: "   "}, {Text: "hip hop radio"},
		}}, nil
	}}

	g := NewGateway(eng, time.Second, zerolog.Nop())
	res, err := g.Transcribe(context.Background(), []byte("wav"))
	require.NoError(t, err)

	assert.Equal(t, Result{Language: "ko", Text: "lofi hip hop radio"}, res)
	require.Len(t, eng.calls, 2)
	assert.Equal(t, Options{BeamSize: 2}, eng.calls[0])
	assert.Equal(t, Options{Language: "ko", BeamSize: 5}, eng.calls[1])
}

func TestTranscribeEmptyTextIsValid(t *testing.T) {
	eng := EngineFunc(func(context.Context, []byte, Options) (Recognition, error) {
		return Recognition{Language: "en"}, nil
	})
	res, err := NewGateway(eng, time.Second, zerolog.Nop()).Transcribe(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, "en", res.Language)
}

func TestTranscribeEngineFailure(t *testing.T) {
	for _, failPass := range []int{1, 2} {
		calls := 0
		eng := EngineFunc(func(context.Context, []byte, Options) (Recognition, error) {
			calls++
			if calls == failPass {
				return Recognition{}, errors.New("model crashed")
			}
			return Recognition{Language: "en"}, nil
		})
		_, err := NewGateway(eng, time.Second, zerolog.Nop()).Transcribe(context.Background(), []byte("x"))
		require.Error(t, err)
		assert.Equal(t, apperr.KindRecognitionFailed, apperr.KindOf(err))
		assert.Contains(t, apperr.DetailOf(err), "model crashed")
		assert.Equal(t, failPass, calls, "no retry after failure")
	}
}

func TestTranscribeIsDeterministic(t *testing.T) {
	eng := EngineFunc(func(_ context.Context, audio []byte, opts Options) (Recognition, error) {
		return Recognition{Language: "en", Segments: []Segment{{Text: string(audio)}}}, nil
	})
	g := NewGateway(eng, time.Second, zerolog.Nop())

	a, err := g.Transcribe(context.Background(), []byte("same bytes"))
	require.NoError(t, err)
	b, err := g.Transcribe(context.Background(), []byte("same bytes"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTranscribeHonoursTimeout(t *testing.T) {
	eng := EngineFunc(func(ctx context.Context, _ []byte, _ Options) (Recognition, error) {
		<-ctx.Done()
		return Recognition{}, ctx.Err()
	})
	_, err := NewGateway(eng, 20*time.Millisecond, zerolog.Nop()).Transcribe(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en", NormalizeLanguage("English"))
	assert.Equal(t, "ko", NormalizeLanguage("ko"))
	assert.Equal(t, "yue", NormalizeLanguage("cantonese"))
	assert.Equal(t, "klingon", NormalizeLanguage("Klingon"))
}
