// SPDX-License-Identifier: MIT

// Package whisperhttp talks to an OpenAI-compatible speech-to-text server
// (faster-whisper-server, whisper.cpp server, the OpenAI API itself).
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/platform/httpx"
	"github.com/ManuGH/saytube/internal/transcribe"
)

const transcriptionsPath = "/v1/audio/transcriptions"

// Config configures the client.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration

	// SendBeamSize adds a beam_size form field. The OpenAI API rejects
	// unknown fields, self-hosted servers generally honour it.
	SendBeamSize bool
}

// Client implements transcribe.Engine over HTTP.
type Client struct {
	endpoint     string
	model        string
	apiKey       string
	sendBeamSize bool
	hc           *http.Client
}

// New builds a client. The HTTP client carries no overall deadline; each
// call is bounded by the caller's context.
func New(cfg Config) *Client {
	return &Client{
		endpoint:     strings.TrimRight(cfg.BaseURL, "/") + transcriptionsPath,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		sendBeamSize: cfg.SendBeamSize,
		hc:           httpx.NewClient(-1, httpx.WithResponseHeaderTimeout(cfg.Timeout), httpx.WithTracing()),
	}
}

type verboseResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Recognize uploads audio and returns the verbose transcription.
func (c *Client) Recognize(ctx context.Context, audio []byte, opts transcribe.Options) (transcribe.Recognition, error) {
	body, contentType, err := c.buildForm(audio, opts)
	if err != nil {
		return transcribe.Recognition{}, fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return transcribe.Recognition{}, err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return transcribe.Recognition{}, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return transcribe.Recognition{}, fmt.Errorf("whisper http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return transcribe.Recognition{}, fmt.Errorf("decode whisper response: %w", err)
	}
	return toRecognition(vr), nil
}

func (c *Client) buildForm(audio []byte, opts transcribe.Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"model", c.model},
		{"response_format", "verbose_json"},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	if c.sendBeamSize && opts.BeamSize > 0 {
		fields = append(fields, [2]string{"beam_size", strconv.Itoa(opts.BeamSize)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// toRecognition falls back to the flat text as a single segment for servers
// that ignore verbose_json.
func toRecognition(vr verboseResponse) transcribe.Recognition {
	rec := transcribe.Recognition{Language: vr.Language}
	for _, s := range vr.Segments {
		rec.Segments = append(rec.Segments, transcribe.Segment{StartSec: s.Start, EndSec: s.End, Text: s.Text})
	}
	if len(rec.Segments) == 0 && strings.TrimSpace(vr.Text) != "" {
		rec.Segments = []transcribe.Segment{{Text: vr.Text}}
	}
	return rec
}
