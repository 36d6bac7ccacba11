// SPDX-License-Identifier: MIT

// Package orchestrator runs the client pipeline: record, upload, transcribe,
// search, resolve and play. One run at a time; transport controls may come
// from any goroutine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/saytube/internal/apiclient"
	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/ManuGH/saytube/internal/audio"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/tempmedia"
	"github.com/rs/zerolog"
)

const (
	defaultRecordDuration = 7 * time.Second
	defaultMaxDuration    = 10 * time.Minute
)

var (
	// ErrBusy rejects Start while a run is in progress.
	ErrBusy = errors.New("orchestrator: a request is already in progress")
	// ErrClosed rejects Start after Shutdown.
	ErrClosed = errors.New("orchestrator: shut down")
)

// Backend is the daemon API as seen by the pipeline.
type Backend interface {
	Upload(ctx context.Context, wav []byte) error
	Transcribe(ctx context.Context) (apiclient.Transcript, error)
	Search(ctx context.Context, query string) (string, error)
	CheckVideoSize(ctx context.Context, id string) (apiclient.VideoSize, error)
	StreamURL(ctx context.Context, id string) (apiclient.StreamInfo, error)
	Download(ctx context.Context, id string) (*apiclient.Download, error)
	DownloadMerged(ctx context.Context, id string) (*apiclient.Download, error)
}

// Player plays a file path or URL.
type Player interface {
	Load(ctx context.Context, source string) error
	Play() error
	Pause() error
	Stop() error
}

// Media owns downloaded files on the client.
type Media interface {
	Materialize(ctx context.Context, id, title string, r io.Reader) (tempmedia.File, error)
	MarkCurrent(ctx context.Context, path string) (string, error)
	ScheduleDelete(path string, delay time.Duration) error
	CleanupSuperseded(ctx context.Context) int
	CleanupAll(ctx context.Context)
	Current() (tempmedia.File, bool)
	Files() []tempmedia.File
	DeleteDelay() time.Duration
}

// Config tunes a run.
type Config struct {
	RecordDuration time.Duration
	Mode           PlayMode
	// Preflight asks the daemon for the duration verdict before downloading
	// and refuses videos over MaxDuration.
	Preflight   bool
	MaxDuration time.Duration
}

// Deps wires an Orchestrator.
type Deps struct {
	Recorder audio.Recorder
	Backend  Backend
	Player   Player
	Media    Media
	Sink     StatusSink
	Logger   zerolog.Logger
	Config   Config
	Now      func() time.Time
}

// Orchestrator is the client state machine.
type Orchestrator struct {
	recorder audio.Recorder
	backend  Backend
	player   Player
	media    Media
	sink     StatusSink
	logger   zerolog.Logger
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	state  State
	status Status
	loaded bool
	closed bool
}

// New validates deps and returns an idle Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Recorder == nil:
		return nil, errors.New("orchestrator: recorder is required")
	case deps.Backend == nil:
		return nil, errors.New("orchestrator: backend is required")
	case deps.Player == nil:
		return nil, errors.New("orchestrator: player is required")
	case deps.Media == nil:
		return nil, errors.New("orchestrator: media manager is required")
	}
	cfg := deps.Config
	if cfg.RecordDuration <= 0 {
		cfg.RecordDuration = defaultRecordDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeLow
	}
	if deps.Sink == nil {
		deps.Sink = SinkFunc(func(Status) {})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	o := &Orchestrator{
		recorder: deps.Recorder,
		backend:  deps.Backend,
		player:   deps.Player,
		media:    deps.Media,
		sink:     deps.Sink,
		logger:   deps.Logger,
		cfg:      cfg,
		now:      deps.Now,
	}
	o.status = Status{State: Idle, Message: "Ready", At: o.now()}
	return o, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a snapshot of the session.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	s := Session{State: o.state, Status: o.status}
	o.mu.Unlock()

	if f, ok := o.media.Current(); ok {
		s.CurrentVideoPath = f.Path
	}
	for _, f := range o.media.Files() {
		s.DownloadedVideos = append(s.DownloadedVideos, f.Path)
	}
	return s
}

// Start runs one full request synchronously. It is accepted from Idle and
// Playing; anything else returns ErrBusy. A failed run returns its error
// after reporting it and leaves the orchestrator Idle.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if !o.state.acceptsStart() {
		state := o.state
		o.mu.Unlock()
		o.logger.Debug().Str("event", "orchestrator.busy").Str("state", state.String()).Msg("start rejected")
		return ErrBusy
	}
	wasPlaying := o.state == Playing
	o.state = Recording
	o.mu.Unlock()

	if wasPlaying {
		// The microphone would pick the video up.
		if err := o.player.Pause(); err != nil {
			o.logger.Warn().Err(err).Str("event", "orchestrator.pause_failed").Msg("pause before recording failed")
		}
	}

	title, err := o.run(ctx)
	if err != nil {
		o.fail(err)
		return err
	}
	o.transition(Playing, "Playing: "+title)
	return nil
}

func (o *Orchestrator) run(ctx context.Context) (string, error) {
	o.transition(Recording, "Recording...")
	wav, err := o.recorder.Record(ctx, o.cfg.RecordDuration)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperr.Wrap(apperr.KindInternal, "orchestrator.record", "recording cancelled", err)
		}
		return "", apperr.Wrap(apperr.KindIOFailure, "orchestrator.record", "microphone capture failed", err)
	}

	o.transition(Transcribing, "Transcribing...")
	if err := o.backend.Upload(ctx, wav); err != nil {
		return "", err
	}
	tr, err := o.backend.Transcribe(ctx)
	if err != nil {
		return "", err
	}
	query := strings.TrimSpace(tr.Text)
	if query == "" {
		return "", apperr.New(apperr.KindInputMissing, "orchestrator.transcribe", "nothing recognized")
	}
	o.logger.Info().
		Str(xglog.FieldEvent, "orchestrator.transcribed").
		Str(xglog.FieldLanguage, tr.Language).
		Str("query", query).
		Msg("speech recognized")

	o.transition(Searching, "Searching: "+query)
	id, err := o.backend.Search(ctx, query)
	if err != nil {
		return "", err
	}

	o.transition(Resolving, "Loading video "+id)
	if o.cfg.Mode == ModeStream {
		return o.playStream(ctx, id)
	}
	return o.playDownload(ctx, id)
}

func (o *Orchestrator) playStream(ctx context.Context, id string) (string, error) {
	info, err := o.backend.StreamURL(ctx, id)
	if err != nil {
		return "", err
	}
	if o.cfg.Preflight && info.Duration > 0 && time.Duration(info.Duration)*time.Second > o.cfg.MaxDuration {
		return "", tooLong(info.Title, info.Duration)
	}
	if err := o.load(ctx, info.StreamURL); err != nil {
		return "", err
	}
	return titleOr(info.Title, id), nil
}

func (o *Orchestrator) playDownload(ctx context.Context, id string) (string, error) {
	if o.cfg.Preflight {
		size, err := o.backend.CheckVideoSize(ctx, id)
		if err != nil {
			return "", err
		}
		if size.TooLong || time.Duration(size.Duration)*time.Second > o.cfg.MaxDuration {
			return "", tooLong(size.Title, size.Duration)
		}
	}

	fetch := o.backend.Download
	if o.cfg.Mode == ModeMerged {
		fetch = o.backend.DownloadMerged
	}
	dl, err := fetch(ctx, id)
	if err != nil {
		return "", err
	}
	defer func() { _ = dl.Body.Close() }()

	f, err := o.media.Materialize(ctx, id, dl.Title, dl.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, "orchestrator.download", "saving video failed", err)
	}
	prev, err := o.media.MarkCurrent(ctx, f.Path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, "orchestrator.download", "tracking video failed", err)
	}
	if err := o.load(ctx, f.Path); err != nil {
		return "", err
	}
	o.retire(ctx, prev)

	return titleOr(dl.Title, id), nil
}

// retire releases the previously current file now that the player has
// moved on.
func (o *Orchestrator) retire(ctx context.Context, prev string) {
	if prev == "" {
		return
	}
	delay := o.media.DeleteDelay()
	if delay <= 0 {
		n := o.media.CleanupSuperseded(ctx)
		o.logger.Debug().Str("event", "orchestrator.superseded_swept").Int("deleted", n).Msg("old videos removed")
		return
	}
	if err := o.media.ScheduleDelete(prev, delay); err != nil {
		o.logger.Warn().Err(err).Str("event", "orchestrator.schedule_failed").Str("path", prev).Msg("could not schedule deletion")
	}
}

func (o *Orchestrator) load(ctx context.Context, source string) error {
	if err := o.player.Load(ctx, source); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, "orchestrator.play", "player failed to load video", err)
	}
	o.mu.Lock()
	o.loaded = true
	o.mu.Unlock()
	if err := o.player.Play(); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, "orchestrator.play", "player failed to start", err)
	}
	return nil
}

// Play starts or resumes the loaded video. No-op when nothing is loaded.
func (o *Orchestrator) Play() error {
	if !o.hasLoaded() {
		return nil
	}
	if err := o.player.Play(); err != nil {
		return err
	}
	o.mu.Lock()
	if o.state == Idle {
		o.state = Playing
	}
	o.mu.Unlock()
	return nil
}

// Pause pauses playback.
func (o *Orchestrator) Pause() error {
	if !o.hasLoaded() {
		return nil
	}
	return o.player.Pause()
}

// Stop stops playback; a stopped video can be replayed with Play.
func (o *Orchestrator) Stop() error {
	if !o.hasLoaded() {
		return nil
	}
	if err := o.player.Stop(); err != nil {
		return err
	}
	o.mu.Lock()
	if o.state == Playing {
		o.state = Idle
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) hasLoaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded
}

// Shutdown stops playback and removes every managed file. Further Start
// calls fail with ErrClosed.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	if err := o.player.Stop(); err != nil {
		o.logger.Warn().Err(err).Str("event", "orchestrator.stop_failed").Msg("stopping player failed")
	}
	o.media.CleanupAll(ctx)
	o.logger.Info().Str("event", "orchestrator.shutdown").Msg("client shut down")
}

func (o *Orchestrator) transition(s State, msg string) {
	o.mu.Lock()
	old := o.state
	o.state = s
	o.status = Status{State: s, Message: msg, At: o.now()}
	st := o.status
	o.mu.Unlock()

	o.logger.Info().
		Str(xglog.FieldEvent, "orchestrator.state").
		Str(xglog.FieldOldState, old.String()).
		Str(xglog.FieldNewState, s.String()).
		Msg(msg)
	o.sink.Status(st)
}

// fail reports err under the stage it happened in and returns to Idle.
func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	stage := o.state.stage()
	o.state = Idle
	o.status = Status{State: Idle, Message: stage + ": " + message(err), Err: err, At: o.now()}
	st := o.status
	o.mu.Unlock()

	o.logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "orchestrator.failed").
		Str(xglog.FieldStage, stage).
		Str("kind", apperr.KindOf(err).String()).
		Msg(st.Message)
	o.sink.Status(st)
}

func message(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindConnectionFailed:
		return "backend unreachable"
	case apperr.KindRateLimited:
		if after := apiclient.RetryAfterOf(err); after > 0 {
			return fmt.Sprintf("too many requests, retry in %s", after.Round(time.Second))
		}
		return "too many requests"
	default:
		return apperr.DetailOf(err)
	}
}

func tooLong(title string, seconds int) error {
	return apperr.New(apperr.KindInvalidInput, "orchestrator.preflight",
		fmt.Sprintf("%q is too long (%s)", title, time.Duration(seconds)*time.Second))
}

func titleOr(title, id string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	return id
}
