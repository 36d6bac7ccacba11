// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/ManuGH/saytube/internal/fsutil"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/video"
)

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	VideoID string `json:"video_id"`
}

type videoRequest struct {
	VideoID string `json:"video_id"`
}

type videoSizeResponse struct {
	Title        string `json:"title"`
	Duration     int    `json:"duration"`
	Filesize     int64  `json:"filesize"`
	URL          string `json:"url"`
	Format       string `json:"format"`
	Height       int    `json:"height"`
	Width        int    `json:"width"`
	IsSingleSong bool   `json:"is_single_song"`
	TooLong      bool   `json:"too_long"`
}

type streamURLResponse struct {
	StreamURL string `json:"stream_url"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Format    string `json:"format"`
}

// HeaderVideoTitle carries the sanitized title of a downloaded video.
const HeaderVideoTitle = "X-Video-Title"

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, "search", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.videos.Search(r.Context(), req.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{VideoID: string(id)})
}

func (s *Server) decodeVideoID(w http.ResponseWriter, r *http.Request, op string) (video.ID, bool) {
	var req videoRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	return video.ID(req.VideoID), true
}

func (s *Server) handleCheckVideoSize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeVideoID(w, r, "check_video_size")
	if !ok {
		return
	}
	meta, err := s.videos.Probe(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	verdict := video.Preflight(meta, s.maxDuration)
	writeJSON(w, http.StatusOK, videoSizeResponse{
		Title:        meta.Title,
		Duration:     meta.DurationSeconds,
		Filesize:     meta.FilesizeBytes,
		URL:          meta.StreamURL,
		Format:       meta.Format,
		Height:       meta.Height,
		Width:        meta.Width,
		IsSingleSong: verdict.IsSingleSong,
		TooLong:      verdict.TooLong,
	})
}

func (s *Server) handleStreamURL(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeVideoID(w, r, "get_stream_url")
	if !ok {
		return
	}
	info, err := s.videos.ResolveStreamURL(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streamURLResponse{
		StreamURL: info.URL,
		Title:     info.Title,
		Duration:  info.DurationSeconds,
		Format:    info.Format,
	})
}

// handleDownload fetches the video at tier, serves the file and schedules
// it for deletion once the response has been written.
func (s *Server) handleDownload(tier video.Tier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.decodeVideoID(w, r, "download")
		if !ok {
			return
		}
		d, err := s.videos.Download(r.Context(), id, tier)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer s.scheduleDelete(r.Context(), d.File.Path)

		f, err := os.Open(d.File.Path)
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.KindIOFailure, "download", "Failed to open downloaded video", err))
			return
		}
		defer func() { _ = f.Close() }()
		info, err := f.Stat()
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.KindIOFailure, "download", "Failed to stat downloaded video", err))
			return
		}

		title := fsutil.SanitizeTitle(d.Meta.Title, string(id))
		w.Header().Set(HeaderVideoTitle, title)
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": title + ".mp4"}))
		http.ServeContent(w, r, filepath.Base(d.File.Path), info.ModTime(), f)
	}
}

func (s *Server) scheduleDelete(ctx context.Context, path string) {
	if s.media == nil {
		return
	}
	if err := s.media.ScheduleDelete(path, s.media.DeleteDelay()); err != nil {
		logger := xglog.WithContext(ctx, s.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "tempmedia.schedule_failed").
			Str(xglog.FieldPath, path).
			Msg("could not schedule served video for deletion")
	}
}
