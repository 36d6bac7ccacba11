// SPDX-License-Identifier: MIT

// Package api exposes the voice-to-video pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/saytube/internal/api/middleware"
	"github.com/ManuGH/saytube/internal/audiobuf"
	"github.com/ManuGH/saytube/internal/health"
	"github.com/ManuGH/saytube/internal/ratelimit"
	"github.com/ManuGH/saytube/internal/transcribe"
	"github.com/ManuGH/saytube/internal/video"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultMaxUploadBytes = 32 << 20

// Transcriber turns uploaded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (transcribe.Result, error)
}

// VideoResolver locates videos and fetches their media.
type VideoResolver interface {
	Search(ctx context.Context, query string) (video.ID, error)
	Probe(ctx context.Context, id video.ID) (video.Metadata, error)
	ResolveStreamURL(ctx context.Context, id video.ID) (video.StreamInfo, error)
	Download(ctx context.Context, id video.ID, tier video.Tier) (video.Downloaded, error)
}

// MediaScheduler defers removal of served downloads.
type MediaScheduler interface {
	ScheduleDelete(path string, delay time.Duration) error
	DeleteDelay() time.Duration
}

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Audio       *audiobuf.Store
	Transcriber Transcriber
	Videos      VideoResolver
	Media       MediaScheduler
	// Limiter guards every pipeline route; nil disables limiting.
	Limiter *ratelimit.Limiter
	// TrustedProxies may name the client in forwarding headers.
	TrustedProxies ratelimit.TrustedProxies
	Health         *health.Manager

	ServiceName    string
	MaxDuration    time.Duration
	MaxUploadBytes int64
	GPUAvailable   func() bool
	Tracing        bool

	Logger zerolog.Logger
	Now    func() time.Time
}

// Server holds the pipeline handlers.
type Server struct {
	audio       *audiobuf.Store
	transcriber Transcriber
	videos      VideoResolver
	media       MediaScheduler
	limiter     *ratelimit.Limiter
	trusted     ratelimit.TrustedProxies
	health      *health.Manager

	serviceName    string
	maxDuration    time.Duration
	maxUploadBytes int64
	gpuAvailable   func() bool
	tracing        bool

	logger zerolog.Logger
	now    func() time.Time
}

// New builds a Server from deps.
func New(deps Deps) *Server {
	s := &Server{
		audio:          deps.Audio,
		transcriber:    deps.Transcriber,
		videos:         deps.Videos,
		media:          deps.Media,
		limiter:        deps.Limiter,
		trusted:        deps.TrustedProxies,
		health:         deps.Health,
		serviceName:    deps.ServiceName,
		maxDuration:    deps.MaxDuration,
		maxUploadBytes: deps.MaxUploadBytes,
		gpuAvailable:   deps.GPUAvailable,
		tracing:        deps.Tracing,
		logger:         deps.Logger,
		now:            deps.Now,
	}
	if s.audio == nil {
		s.audio = audiobuf.NewStore()
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	if s.serviceName == "" {
		s.serviceName = "saytube"
	}
	if s.maxDuration <= 0 {
		s.maxDuration = 10 * time.Minute
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}
	if s.gpuAvailable == nil {
		s.gpuAvailable = func() bool { return false }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed handler with the ingress stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	stack := middleware.StackConfig{EnableMetrics: true, EnableLogging: true}
	if s.tracing {
		stack.TracingService = s.serviceName
	}
	middleware.ApplyStack(r, stack)

	r.Get("/", s.handleStatus)
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, s.trusted))
		}
		r.Post("/record/", s.handleRecord)
		r.Post("/transcribe/", s.handleTranscribe)
		r.Post("/search_youtube/", s.handleSearch)
		r.Post("/check_video_size/", s.handleCheckVideoSize)
		r.Post("/get_stream_url/", s.handleStreamURL)
		r.Post("/download_video/", s.handleDownload(video.TierLow))
		r.Post("/download_merged_video/", s.handleDownload(video.TierMerged))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}
