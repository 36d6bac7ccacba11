// SPDX-License-Identifier: MIT

// Package apiclient talks to the saytube daemon. Every failure comes back as
// an *apperr.Error so the client can report it per stage.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/ManuGH/saytube/internal/platform/httpx"
)

const (
	headerErrorKind  = "X-Error-Kind"
	headerVideoTitle = "X-Video-Title"

	statusTimeout = 5 * time.Second
	maxErrorBody  = 64 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds JSON calls, including recognition on the daemon.
	Timeout time.Duration
	// DownloadTimeout bounds a whole video download.
	DownloadTimeout time.Duration
}

// Client is a typed client for the daemon API.
type Client struct {
	base            string
	http            *http.Client
	probe           *http.Client
	stream          *http.Client
	downloadTimeout time.Duration
}

// New builds a Client. Transports are traced.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	downloadTimeout := cfg.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = 10 * time.Minute
	}
	return &Client{
		base:            strings.TrimRight(cfg.BaseURL, "/"),
		http:            httpx.NewClient(timeout, httpx.WithResponseHeaderTimeout(timeout), httpx.WithTracing()),
		probe:           httpx.NewClient(statusTimeout, httpx.WithTracing()),
		stream:          httpx.NewClient(-1, httpx.WithResponseHeaderTimeout(downloadTimeout), httpx.WithTracing()),
		downloadTimeout: downloadTimeout,
	}
}

// Status is the daemon's answer to the connectivity check.
type Status struct {
	Status       string    `json:"status"`
	Service      string    `json:"service"`
	GPUAvailable bool      `json:"gpu_available"`
	Timestamp    time.Time `json:"timestamp"`
}

// Transcript is the recognized text of the last upload.
type Transcript struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// VideoSize is the preflight metadata of a video.
type VideoSize struct {
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

// StreamInfo is a directly playable source.
type StreamInfo struct {
	StreamURL string `json:"stream_url"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Format    string `json:"format"`
}

// Download is a video body being received. The caller must Close it.
type Download struct {
	Title string
	Size  int64
	Body  io.ReadCloser
}

// Status performs the connectivity check against GET /.
func (c *Client) Status(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/", nil)
	if err != nil {
		return Status{}, apperr.Wrap(apperr.KindInternal, "status", "Invalid server URL", err)
	}
	var out Status
	if err := c.do(c.probe, req, "status", &out); err != nil {
		return Status{}, err
	}
	return out, nil
}

// Upload sends WAV bytes as the multipart "audio" field.
func (c *Client) Upload(ctx context.Context, wav []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "record", "Failed to build upload", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return apperr.Wrap(apperr.KindInternal, "record", "Failed to build upload", err)
	}
	if err := mw.Close(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "record", "Failed to build upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/record/", &body)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "record", "Invalid server URL", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(c.http, req, "record", nil)
}

// Transcribe recognizes the last uploaded audio.
func (c *Client) Transcribe(ctx context.Context) (Transcript, error) {
	var out Transcript
	err := c.postJSON(ctx, "/transcribe/", "transcribe", nil, &out)
	return out, err
}

// Search returns the best matching video id for query.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	var out struct {
		VideoID string `json:"video_id"`
	}
	if err := c.postJSON(ctx, "/search_youtube/", "search", map[string]string{"query": query}, &out); err != nil {
		return "", err
	}
	if out.VideoID == "" {
		return "", apperr.New(apperr.KindNoSearchResults, "search", "No videos found")
	}
	return out.VideoID, nil
}

// CheckVideoSize fetches preflight metadata for id.
func (c *Client) CheckVideoSize(ctx context.Context, id string) (VideoSize, error) {
	var out VideoSize
	err := c.postJSON(ctx, "/check_video_size/", "check_video_size", map[string]string{"video_id": id}, &out)
	return out, err
}

// StreamURL resolves a directly playable URL for id.
func (c *Client) StreamURL(ctx context.Context, id string) (StreamInfo, error) {
	var out StreamInfo
	err := c.postJSON(ctx, "/get_stream_url/", "get_stream_url", map[string]string{"video_id": id}, &out)
	return out, err
}

// Download fetches id in the low profile.
func (c *Client) Download(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/download_video/", id)
}

// DownloadMerged fetches id in the merged best-quality profile.
func (c *Client) DownloadMerged(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/download_merged_video/", id)
}

func (c *Client) download(ctx context.Context, path, id string) (*Download, error) {
	const op = "download"
	payload, err := json.Marshal(map[string]string{"video_id": id})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "Failed to encode request", err)
	}

	// The deadline must outlive this call, so it is released when the body
	// is closed.
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, apperr.Wrap(apperr.KindInternal, op, "Invalid server URL", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, transportError(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer func() { _ = resp.Body.Close() }()
		return nil, responseError(op, resp)
	}
	return &Download{
		Title: resp.Header.Get(headerVideoTitle),
		Size:  resp.ContentLength,
		Body:  &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (c *Client) postJSON(ctx context.Context, path, op string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, op, "Failed to encode request", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, "Invalid server URL", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(c.http, req, op, out)
}

func (c *Client) do(hc *http.Client, req *http.Request, op string, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return responseError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindInternal, op, "Malformed response from server", err)
	}
	return nil
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindInternal, op, "Cancelled", err)
	}
	return apperr.Wrap(apperr.KindConnectionFailed, op, "Backend unreachable", err)
}

// RetryAfter extracts the server's back-off hint from a rate-limited error.
type RetryAfter interface {
	RetryAfter() time.Duration
}

type rateLimitedCause struct {
	after time.Duration
}

func (r rateLimitedCause) Error() string {
	return fmt.Sprintf("retry after %s", r.after)
}

func (r rateLimitedCause) RetryAfter() time.Duration { return r.after }

// RetryAfterOf returns the back-off hint carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	var ra RetryAfter
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}

type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// responseError maps a non-200 response to a kind: the server's
// X-Error-Kind header when present, otherwise what the endpoint implies.
func responseError(op string, resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return apperr.Wrap(apperr.KindRateLimited, op, "Too many requests", rateLimitedCause{after: time.Duration(secs) * time.Second})
	}

	msg := body.Detail
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("server returned %s", resp.Status)
	}

	kind, ok := apperr.ParseKind(resp.Header.Get(headerErrorKind))
	if !ok {
		kind = kindForEndpoint(op, resp.StatusCode)
	}
	return apperr.New(kind, op, msg)
}

func kindForEndpoint(op string, status int) apperr.Kind {
	if status >= 400 && status < 500 {
		if op == "record" || op == "transcribe" {
			return apperr.KindInputMissing
		}
		return apperr.KindInvalidInput
	}
	switch op {
	case "transcribe":
		return apperr.KindRecognitionFailed
	case "search", "check_video_size", "get_stream_url", "download":
		return apperr.KindResolutionFailed
	case "record":
		return apperr.KindIOFailure
	default:
		return apperr.KindInternal
	}
}
