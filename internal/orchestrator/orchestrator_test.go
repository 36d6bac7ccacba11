// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/saytube/internal/apiclient"
	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/ManuGH/saytube/internal/tempmedia"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	err error
}

func (r fakeRecorder) Record(_ context.Context, _ time.Duration) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("RIFF....WAVE"), nil
}

type fakeBackend struct {
	mu          sync.Mutex
	uploadErr   error
	text        string
	searchGate  chan struct{}
	size        apiclient.VideoSize
	stream      apiclient.StreamInfo
	downloads   int
	merged      int
	downloadErr error
}

func (b *fakeBackend) Upload(context.Context, []byte) error { return b.uploadErr }

func (b *fakeBackend) Transcribe(context.Context) (apiclient.Transcript, error) {
	return apiclient.Transcript{Language: "en", Text: b.text}, nil
}

func (b *fakeBackend) Search(ctx context.Context, _ string) (string, error) {
	if b.searchGate != nil {
		select {
		case <-b.searchGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "XYZ", nil
}

func (b *fakeBackend) CheckVideoSize(context.Context, string) (apiclient.VideoSize, error) {
	return b.size, nil
}

func (b *fakeBackend) StreamURL(context.Context, string) (apiclient.StreamInfo, error) {
	return b.stream, nil
}

func (b *fakeBackend) Download(context.Context, string) (*apiclient.Download, error) {
	b.mu.Lock()
	b.downloads++
	b.mu.Unlock()
	if b.downloadErr != nil {
		return nil, b.downloadErr
	}
	return &apiclient.Download{Title: "Lofi Radio", Body: io.NopCloser(strings.NewReader("video bytes"))}, nil
}

func (b *fakeBackend) DownloadMerged(ctx context.Context, id string) (*apiclient.Download, error) {
	b.mu.Lock()
	b.merged++
	b.mu.Unlock()
	return &apiclient.Download{Title: "Lofi Radio HD", Body: io.NopCloser(strings.NewReader("merged bytes"))}, nil
}

type fakePlayer struct {
	mu      sync.Mutex
	source  string
	playing bool
	calls   []string
}

func (p *fakePlayer) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *fakePlayer) Load(_ context.Context, source string) error {
	p.mu.Lock()
	p.source = source
	p.playing = false
	p.mu.Unlock()
	p.record("load")
	return nil
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	p.record("play")
	return nil
}

func (p *fakePlayer) Pause() error { p.record("pause"); return nil }

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.record("stop")
	return nil
}

func (p *fakePlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (l *statusLog) Status(s Status) {
	l.mu.Lock()
	l.statuses = append(l.statuses, s)
	l.mu.Unlock()
}

func (l *statusLog) States() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]State, 0, len(l.statuses))
	for _, s := range l.statuses {
		out = append(out, s.State)
	}
	return out
}

func (l *statusLog) Last() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statuses[len(l.statuses)-1]
}

type fixture struct {
	orch    *Orchestrator
	backend *fakeBackend
	player  *fakePlayer
	media   *tempmedia.Manager
	sink    *statusLog
}

func newFixture(t *testing.T, cfg Config, rec fakeRecorder, delay time.Duration) *fixture {
	t.Helper()
	media, err := tempmedia.New(tempmedia.Options{
		Dir:         t.TempDir(),
		DeleteDelay: delay,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	f := &fixture{
		backend: &fakeBackend{text: "lofi hip hop radio", size: apiclient.VideoSize{Title: "Lofi Radio", Duration: 600, IsSingleSong: true}},
		player:  &fakePlayer{},
		media:   media,
		sink:    &statusLog{},
	}
	f.orch, err = New(Deps{
		Recorder: rec,
		Backend:  f.backend,
		Player:   f.player,
		Media:    media,
		Sink:     f.sink,
		Logger:   zerolog.Nop(),
		Config:   cfg,
	})
	require.NoError(t, err)
	return f
}

func TestStartDownloadsAndPlays(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeLow, Preflight: true}, fakeRecorder{}, 0)

	require.NoError(t, f.orch.Start(context.Background()))

	assert.Equal(t, []State{Recording, Transcribing, Searching, Resolving, Playing}, f.sink.States())
	assert.Equal(t, "Playing: Lofi Radio", f.sink.Last().Message)
	assert.Equal(t, Playing, f.orch.State())

	s := f.orch.Session()
	require.Len(t, s.DownloadedVideos, 1)
	assert.Equal(t, s.DownloadedVideos[0], s.CurrentVideoPath)
	assert.Equal(t, s.CurrentVideoPath, f.player.Source())

	data, err := os.ReadFile(s.CurrentVideoPath)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))
}

func TestNewRequestSweepsPreviousVideo(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeLow}, fakeRecorder{}, 0)

	require.NoError(t, f.orch.Start(context.Background()))
	first := f.orch.Session().CurrentVideoPath

	require.NoError(t, f.orch.Start(context.Background()))
	s := f.orch.Session()

	assert.NotEqual(t, first, s.CurrentVideoPath)
	assert.Equal(t, []string{s.CurrentVideoPath}, s.DownloadedVideos)
	_, err := os.Stat(first)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, f.player.calls, "pause")
}

func TestNewRequestSchedulesPreviousVideo(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeLow}, fakeRecorder{}, time.Hour)

	require.NoError(t, f.orch.Start(context.Background()))
	require.NoError(t, f.orch.Start(context.Background()))

	assert.Len(t, f.orch.Session().DownloadedVideos, 2)
	assert.Equal(t, 1, f.media.Pending())
}

func TestMergedMode(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeMerged}, fakeRecorder{}, 0)

	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, 1, f.backend.merged)
	assert.Zero(t, f.backend.downloads)
	assert.Equal(t, "Playing: Lofi Radio HD", f.sink.Last().Message)
}

func TestStreamModeKeepsDiskClean(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeStream}, fakeRecorder{}, 0)
	f.backend.stream = apiclient.StreamInfo{StreamURL: "https://cdn.example/v.mp4", Title: "Lofi Radio", Duration: 600}

	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, "https://cdn.example/v.mp4", f.player.Source())
	assert.Empty(t, f.orch.Session().DownloadedVideos)
	assert.Zero(t, f.backend.downloads)
}

func TestStartWhileSearchingIsRejected(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeLow}, fakeRecorder{}, 0)
	f.backend.searchGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.orch.Start(context.Background()) }()

	require.Eventually(t, func() bool { return f.orch.State() == Searching }, 5*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, f.orch.Start(context.Background()), ErrBusy)

	close(f.backend.searchGate)
	require.NoError(t, <-done)
	assert.Equal(t, Playing, f.orch.State())
}

func TestFailuresReportStageAndReturnToIdle(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(f *fixture)
		rec     fakeRecorder
		kind    apperr.Kind
		message string
	}{
		{
			name:    "backend unreachable",
			setup:   func(f *fixture) { f.backend.uploadErr = apperr.New(apperr.KindConnectionFailed, "apiclient.upload", "Backend unreachable") },
			kind:    apperr.KindConnectionFailed,
			message: "Transcription: backend unreachable",
		},
		{
			name:    "rate limited",
			setup:   func(f *fixture) { f.backend.uploadErr = apperr.New(apperr.KindRateLimited, "apiclient.upload", "Rate limit exceeded") },
			kind:    apperr.KindRateLimited,
			message: "Transcription: too many requests",
		},
		{
			name:    "nothing recognized",
			setup:   func(f *fixture) { f.backend.text = "   " },
			kind:    apperr.KindInputMissing,
			message: "Transcription: nothing recognized",
		},
		{
			name:    "too long",
			setup:   func(f *fixture) { f.backend.size = apiclient.VideoSize{Title: "Mix", Duration: 1500, TooLong: true} },
			kind:    apperr.KindInvalidInput,
			message: `Video: "Mix" is too long (25m0s)`,
		},
		{
			name:    "download failed",
			setup:   func(f *fixture) { f.backend.downloadErr = apperr.New(apperr.KindResolutionFailed, "apiclient.download", "Download failed") },
			kind:    apperr.KindResolutionFailed,
			message: "Video: Download failed",
		},
		{
			name:    "microphone",
			setup:   func(*fixture) {},
			rec:     fakeRecorder{err: errors.New("no input device")},
			kind:    apperr.KindIOFailure,
			message: "Recording: microphone capture failed: no input device",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Config{Mode: ModeLow, Preflight: true}, tc.rec, 0)
			tc.setup(f)

			err := f.orch.Start(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Equal(t, Idle, f.orch.State())

			last := f.sink.Last()
			assert.Equal(t, Idle, last.State)
			assert.Equal(t, tc.message, last.Message)
			assert.Equal(t, err, last.Err)

			// A failed attempt never blocks the next one.
			assert.NotErrorIs(t, f.orch.Start(context.Background()), ErrBusy)
		})
	}
}

func TestPreflightCeilingAppliesWithoutVerdict(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeLow, Preflight: true, MaxDuration: 5 * time.Minute}, fakeRecorder{}, 0)

	err := f.orch.Start(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.backend.downloads)
}

func TestTransportControls(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeLow}, fakeRecorder{}, 0)

	// Nothing loaded yet: all no-ops.
	require.NoError(t, f.orch.Play())
	require.NoError(t, f.orch.Pause())
	require.NoError(t, f.orch.Stop())
	assert.Empty(t, f.player.calls)
	assert.Equal(t, Idle, f.orch.State())

	require.NoError(t, f.orch.Start(context.Background()))
	require.NoError(t, f.orch.Stop())
	assert.Equal(t, Idle, f.orch.State())

	require.NoError(t, f.orch.Play())
	assert.Equal(t, Playing, f.orch.State())
	require.NoError(t, f.orch.Pause())
	assert.Equal(t, []string{"load", "play", "stop", "play", "pause"}, f.player.calls)
}

func TestShutdownRemovesEverything(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeLow}, fakeRecorder{}, time.Hour)

	require.NoError(t, f.orch.Start(context.Background()))
	path := f.orch.Session().CurrentVideoPath

	f.orch.Shutdown(context.Background())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, f.media.Files())
	assert.ErrorIs(t, f.orch.Start(context.Background()), ErrClosed)
}

func TestParsePlayMode(t *testing.T) {
	m, err := ParsePlayMode(" Merged ")
	require.NoError(t, err)
	assert.Equal(t, ModeMerged, m)

	_, err = ParsePlayMode("hd")
	assert.Error(t, err)
}
