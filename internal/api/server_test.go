// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/ManuGH/saytube/internal/audiobuf"
	"github.com/ManuGH/saytube/internal/ratelimit"
	"github.com/ManuGH/saytube/internal/tempmedia"
	"github.com/ManuGH/saytube/internal/transcribe"
	"github.com/ManuGH/saytube/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	got []byte
	res transcribe.Result
	err error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte) (transcribe.Result, error) {
	f.got = audio
	return f.res, f.err
}

type fakeVideos struct {
	ids      map[string]video.ID
	meta     map[video.ID]video.Metadata
	download video.Downloaded
	tier     video.Tier
}

func (f *fakeVideos) Search(_ context.Context, q string) (video.ID, error) {
	if strings.TrimSpace(q) == "" {
		return "", apperr.New(apperr.KindInvalidInput, "video.search", "query must not be empty")
	}
	id, ok := f.ids[q]
	if !ok {
		return "", apperr.Wrap(apperr.KindNoSearchResults, "video.search", "No videos found", video.ErrNoResults)
	}
	return id, nil
}

func (f *fakeVideos) Probe(_ context.Context, id video.ID) (video.Metadata, error) {
	m, ok := f.meta[id]
	if !ok {
		return video.Metadata{}, apperr.Wrap(apperr.KindResolutionFailed, "video.probe", "Failed to get video info", errors.New("unavailable"))
	}
	return m, nil
}

func (f *fakeVideos) ResolveStreamURL(ctx context.Context, id video.ID) (video.StreamInfo, error) {
	m, err := f.Probe(ctx, id)
	if err != nil {
		return video.StreamInfo{}, err
	}
	return video.StreamInfo{URL: m.StreamURL, Title: m.Title, DurationSeconds: m.DurationSeconds, Format: m.Format}, nil
}

func (f *fakeVideos) Download(_ context.Context, _ video.ID, tier video.Tier) (video.Downloaded, error) {
	f.tier = tier
	return f.download, nil
}

type fakeMedia struct {
	mu        sync.Mutex
	scheduled []string
}

func (f *fakeMedia) ScheduleDelete(path string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, path)
	return nil
}

func (f *fakeMedia) DeleteDelay() time.Duration { return 5 * time.Second }

func newTestServer(t *testing.T, mutate func(*Deps)) (http.Handler, *Deps) {
	t.Helper()
	deps := &Deps{
		Audio:       audiobuf.NewStore(),
		Transcriber: &fakeTranscriber{res: transcribe.Result{Language: "en", Text: "lofi hip hop radio"}},
		Videos: &fakeVideos{
			ids: map[string]video.ID{"lofi hip hop radio": "XYZ"},
			meta: map[video.ID]video.Metadata{
				"XYZ":  {ID: "XYZ", Title: "Lofi Radio", DurationSeconds: 600, FilesizeBytes: 1024, StreamURL: "https://cdn/x", Format: "18 - 640x360", Width: 640, Height: 360},
				"LONG": {ID: "LONG", Title: "Mix", DurationSeconds: 1500},
			},
		},
		Media:        &fakeMedia{},
		MaxDuration:  10 * time.Minute,
		GPUAvailable: func() bool { return true },
		Now:          func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(deps)
	}
	return New(*deps).Handler(), deps
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadAudio(t *testing.T, h http.Handler, field string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "audio.wav")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/record/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestStatusEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"online","service":"saytube","gpu_available":true,"timestamp":"2025-03-01T10:00:00Z"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecordThenTranscribe(t *testing.T) {
	h, deps := newTestServer(t, nil)

	rec := postJSON(t, h, "/transcribe/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no audio uploaded", detailOf(t, rec))

	rec = uploadAudio(t, h, "audio", []byte("first"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = uploadAudio(t, h, "audio", []byte("second"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h, "/transcribe/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"language":"en","text":"lofi hip hop radio"}`, rec.Body.String())
	assert.Equal(t, []byte("second"), deps.Transcriber.(*fakeTranscriber).got)
}

func TestRecordMissingField(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := uploadAudio(t, h, "file", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detailOf(t, rec), "No audio file provided")
}

func TestRecordTooLarge(t *testing.T) {
	h, _ := newTestServer(t, func(d *Deps) { d.MaxUploadBytes = 1024 })
	rec := uploadAudio(t, h, "audio", bytes.Repeat([]byte("a"), 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTranscribeEngineFailure(t *testing.T) {
	h, _ := newTestServer(t, func(d *Deps) {
		d.Transcriber = &fakeTranscriber{err: apperr.Wrap(apperr.KindRecognitionFailed, "transcribe", "Transcription failed", errors.New("model crashed"))}
	})
	require.Equal(t, http.StatusOK, uploadAudio(t, h, "audio", []byte("pcm")).Code)

	rec := postJSON(t, h, "/transcribe/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Transcription failed: model crashed", detailOf(t, rec))
}

func TestSearch(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := postJSON(t, h, "/search_youtube/", `{"query":"lofi hip hop radio"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"video_id":"XYZ"}`, rec.Body.String())

	rec = postJSON(t, h, "/search_youtube/", `{"query":"nothing matches"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, detailOf(t, rec), "No videos found")
	assert.Equal(t, "no_search_results", rec.Header().Get(HeaderErrorKind))

	rec = postJSON(t, h, "/search_youtube/", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detailOf(t, rec), "Invalid JSON body")

	rec = postJSON(t, h, "/search_youtube/", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckVideoSizeVerdicts(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := postJSON(t, h, "/check_video_size/", `{"video_id":"XYZ"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got videoSizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, videoSizeResponse{
		Title: "Lofi Radio", Duration: 600, Filesize: 1024, URL: "https://cdn/x",
		Format: "18 - 640x360", Height: 360, Width: 640, IsSingleSong: true,
	}, got)

	rec = postJSON(t, h, "/check_video_size/", `{"video_id":"LONG"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.TooLong)
	assert.False(t, got.IsSingleSong)

	rec = postJSON(t, h, "/check_video_size/", `{"video_id":"GONE"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetStreamURL(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := postJSON(t, h, "/get_stream_url/", `{"video_id":"XYZ"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stream_url":"https://cdn/x","title":"Lofi Radio","duration":600,"format":"18 - 640x360"}`, rec.Body.String())
}

func TestDownloadServesFileAndSchedulesDeletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Lofi_XYZ_1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4 bytes"), 0o600))

	h, deps := newTestServer(t, func(d *Deps) {
		d.Videos.(*fakeVideos).download = video.Downloaded{
			File: tempmedia.File{ID: "XYZ", Path: path},
			Meta: video.Metadata{ID: "XYZ", Title: "Lofi – Radio 🎵"},
		}
	})

	for _, tc := range []struct {
		path string
		tier video.Tier
	}{
		{"/download_video/", video.TierLow},
		{"/download_merged_video/", video.TierMerged},
	} {
		rec := postJSON(t, h, tc.path, `{"video_id":"XYZ"}`)
		require.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.Equal(t, "mp4 bytes", rec.Body.String())
		assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
		assert.Equal(t, "Lofi  Radio", rec.Header().Get(HeaderVideoTitle))
		assert.Equal(t, tc.tier, deps.Videos.(*fakeVideos).tier)
	}
	assert.Equal(t, []string{path, path}, deps.Media.(*fakeMedia).scheduled)
}

func TestRateLimitGuardsPipelineRoutesOnly(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Settings{Enabled: true, Limit: 3, Window: time.Minute})
	h, _ := newTestServer(t, func(d *Deps) { d.Limiter = limiter })

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postJSON(t, h, "/search_youtube/", `{"query":"lofi hip hop radio"}`).Code)
	}
	rec := postJSON(t, h, "/search_youtube/", `{"query":"lofi hip hop radio"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	status := httptest.NewRecorder()
	h.ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, status.Code)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search_youtube/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
