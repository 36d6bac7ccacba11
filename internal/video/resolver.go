// SPDX-License-Identifier: MIT

package video

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/apperr"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/metrics"
	"github.com/ManuGH/saytube/internal/telemetry"
	"github.com/ManuGH/saytube/internal/tempmedia"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// MediaStore is the part of the temp media manager the resolver needs.
type MediaStore interface {
	Dir() string
	FileName(id, title string) string
	Track(ctx context.Context, id, path string) (tempmedia.File, error)
}

// Config configures a Resolver.
type Config struct {
	Searcher        Searcher
	Extractor       Extractor
	Media           MediaStore
	Profiles        Profiles
	Timeout         time.Duration
	DownloadTimeout time.Duration
	Logger          zerolog.Logger
}

// Resolver maps queries and ids to playable media.
type Resolver struct {
	searcher        Searcher
	extractor       Extractor
	media           MediaStore
	profiles        Profiles
	timeout         time.Duration
	downloadTimeout time.Duration
	logger          zerolog.Logger

	probes singleflight.Group
}

// NewResolver builds a Resolver.
func NewResolver(cfg Config) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 10 * time.Minute
	}
	return &Resolver{
		searcher:        cfg.Searcher,
		extractor:       cfg.Extractor,
		media:           cfg.Media,
		profiles:        cfg.Profiles,
		timeout:         cfg.Timeout,
		downloadTimeout: cfg.DownloadTimeout,
		logger:          cfg.Logger,
	}
}

var tracer = telemetry.Tracer("saytube/video")

// Search returns the first result for query.
func (r *Resolver) Search(ctx context.Context, query string) (id ID, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apperr.New(apperr.KindInvalidInput, "video.search", "query must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "video.search")
	defer func() { endSpan(span, "search", err) }()

	start := time.Now()
	id, err = r.searcher.Search(ctx, query)
	metrics.ObserveUpstream("search", "search", start, err)
	switch {
	case errors.Is(err, ErrNoResults):
		return "", apperr.Wrap(apperr.KindNoSearchResults, "video.search", "YouTube search failed", err)
	case err != nil:
		return "", apperr.Wrap(apperr.KindResolutionFailed, "video.search", "YouTube search failed", err)
	case id == "":
		return "", apperr.Wrap(apperr.KindNoSearchResults, "video.search", "YouTube search failed", ErrNoResults)
	}

	span.SetAttributes(attribute.String(telemetry.VideoIDKey, string(id)))
	logger := xglog.WithContext(ctx, r.logger)
	logger.Info().
		Str(xglog.FieldEvent, "video.search").
		Str(xglog.FieldVideoID, string(id)).
		Msg("search matched")
	return id, nil
}

// Probe fetches metadata with the probe profile. Concurrent probes of the
// same id share one upstream call; nothing outlives that call.
func (r *Resolver) Probe(ctx context.Context, id ID) (Metadata, error) {
	if !id.Valid() {
		return Metadata{}, invalidID(id)
	}

	ch := r.probes.DoChan(string(id), func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.extract(pctx, "probe", id, r.profiles.Probe)
	})

	select {
	case <-ctx.Done():
		return Metadata{}, apperr.Wrap(apperr.KindResolutionFailed, "video.probe", "Failed to get video info", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Metadata{}, res.Err
		}
		return res.Val.(Metadata), nil
	}
}

// ResolveStreamURL returns a directly playable URL with the stream profile.
func (r *Resolver) ResolveStreamURL(ctx context.Context, id ID) (StreamInfo, error) {
	if !id.Valid() {
		return StreamInfo{}, invalidID(id)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	meta, err := r.extract(ctx, "stream", id, r.profiles.Stream)
	if err != nil {
		return StreamInfo{}, err
	}
	if meta.StreamURL == "" {
		return StreamInfo{}, apperr.New(apperr.KindResolutionFailed, "video.stream", "Failed to get stream URL: no playable format")
	}
	return StreamInfo{
		URL:             meta.StreamURL,
		Title:           meta.Title,
		DurationSeconds: meta.DurationSeconds,
		Format:          meta.Format,
	}, nil
}

// Downloaded is a fetched video now owned by the temp media manager.
type Downloaded struct {
	File tempmedia.File
	Meta Metadata
}

// Download fetches id at the given tier into the managed directory and hands
// the file to the temp media manager.
func (r *Resolver) Download(ctx context.Context, id ID, tier Tier) (d Downloaded, err error) {
	if !id.Valid() {
		return Downloaded{}, invalidID(id)
	}
	profile, err := r.profiles.ForTier(tier)
	if err != nil {
		return Downloaded{}, apperr.Wrap(apperr.KindInvalidInput, "video.download", "unknown download tier", err)
	}

	meta, err := r.Probe(ctx, id)
	if err != nil {
		return Downloaded{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.downloadTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "video.download", trace.WithAttributes(telemetry.VideoAttributes(string(id), profile.Name)...))
	defer func() { endSpan(span, "download", err) }()

	dst := filepath.Join(r.media.Dir(), r.media.FileName(string(id), meta.Title))
	start := time.Now()
	written, err := r.extractor.Download(ctx, id, profile, dst)
	metrics.ObserveUpstream("extractor", "download_"+profile.Name, start, err)
	logger := xglog.WithContext(ctx, r.logger)
	if err != nil {
		removeLeftovers(logger, dst, written)
		return Downloaded{}, apperr.Wrap(apperr.KindResolutionFailed, "video.download", "Failed to download video", err)
	}

	f, err := r.media.Track(ctx, string(id), written)
	if err != nil {
		removeLeftovers(logger, dst, written)
		return Downloaded{}, apperr.Wrap(apperr.KindIOFailure, "video.download", "Failed to store downloaded video", err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "video.downloaded").
		Str(xglog.FieldVideoID, string(id)).
		Str(xglog.FieldProfile, profile.Name).
		Str(xglog.FieldPath, f.Path).
		Dur("took", time.Since(start)).
		Msg("video downloaded")
	return Downloaded{File: f, Meta: meta}, nil
}

func (r *Resolver) extract(ctx context.Context, stage string, id ID, p Profile) (meta Metadata, err error) {
	ctx, span := tracer.Start(ctx, "video."+stage, trace.WithAttributes(telemetry.VideoAttributes(string(id), p.Name)...))
	defer func() { endSpan(span, stage, err) }()

	start := time.Now()
	meta, err = r.extractor.Extract(ctx, id, p)
	metrics.ObserveUpstream("extractor", "extract_"+p.Name, start, err)
	if err != nil {
		msg := "Failed to get video info"
		if stage == "stream" {
			msg = "Failed to get stream URL"
		}
		return Metadata{}, apperr.Wrap(apperr.KindResolutionFailed, "video."+stage, msg, err)
	}
	if meta.ID == "" {
		meta.ID = id
	}
	return meta, nil
}

func endSpan(span trace.Span, stage string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
		metrics.IncStage(stage, "failure")
	} else {
		metrics.IncStage(stage, "success")
	}
	span.End()
}

// removeLeftovers deletes whatever a failed download left behind: the target
// itself, the file the extractor reported, and siblings sharing the target's
// stem such as ".part" or per-format fragments. Names are unique per download,
// so nothing tracked can match.
func removeLeftovers(logger zerolog.Logger, dst, written string) {
	dir := filepath.Dir(dst)
	stem := strings.TrimSuffix(filepath.Base(dst), filepath.Ext(dst))
	paths := []string{dst}
	if written != "" && written != dst && filepath.Dir(written) == dir {
		paths = append(paths, written)
	}
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), stem+".") {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "video.cleanup_failed").Str(xglog.FieldPath, p).Msg("could not remove partial download")
		}
	}
}

func invalidID(id ID) error {
	return apperr.New(apperr.KindInvalidInput, "video", "invalid video_id "+strconv.Quote(string(id)))
}
