// SPDX-License-Identifier: MIT

// Package ytdlp drives the yt-dlp command line tool for metadata extraction,
// downloads and (without an API key) search.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/procgroup"
	"github.com/ManuGH/saytube/internal/video"
)

const (
	stderrLines = 20
	waitDelay   = 2 * time.Second
)

// Client implements video.Extractor and video.Searcher.
type Client struct {
	bin string
}

// New returns a client running bin (usually "yt-dlp").
func New(bin string) *Client {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &Client{bin: bin}
}

// Extract dumps the metadata of id with profile's format selection applied.
func (c *Client) Extract(ctx context.Context, id video.ID, p video.Profile) (video.Metadata, error) {
	out, err := c.run(ctx, extractArgs(id, p))
	if err != nil {
		return video.Metadata{}, err
	}
	return parseInfo(out)
}

// Download writes the media to dst and returns the final path reported by
// yt-dlp.
func (c *Client) Download(ctx context.Context, id video.ID, p video.Profile, dst string) (string, error) {
	out, err := c.run(ctx, downloadArgs(id, p, dst))
	if err != nil {
		return "", err
	}
	if path := lastLine(out); path != "" {
		return path, nil
	}
	return dst, nil
}

// Search returns the first hit of a ytsearch query.
func (c *Client) Search(ctx context.Context, query string) (video.ID, error) {
	out, err := c.run(ctx, searchArgs(query))
	if err != nil {
		return "", err
	}
	id := lastLine(out)
	if id == "" {
		return "", video.ErrNoResults
	}
	return video.ID(id), nil
}

func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	procgroup.Bind(cmd, waitDelay)

	var stdout bytes.Buffer
	stderr := procgroup.NewLineRing(stderrLines)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp: %w", ctx.Err())
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("yt-dlp exited %d: %s", ee.ExitCode(), errorLine(stderr))
		}
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}
	return stdout.Bytes(), nil
}

func baseArgs() []string {
	return []string{"--no-playlist", "--no-warnings", "--no-progress"}
}

func extractArgs(id video.ID, p video.Profile) []string {
	args := append(baseArgs(), "-J", "-f", p.Format)
	return append(args, "--", id.WatchURL())
}

func downloadArgs(id video.ID, p video.Profile, dst string) []string {
	args := append(baseArgs(), "-f", p.Format, "-o", dst, "--print", "after_move:filepath")
	if p.MergeFormat != "" {
		args = append(args, "--merge-output-format", p.MergeFormat)
	}
	return append(args, "--", id.WatchURL())
}

func searchArgs(query string) []string {
	return append(baseArgs(), "--flat-playlist", "--print", "id", "--", "ytsearch1:"+query)
}

// errorLine prefers the last "ERROR:" line, which carries yt-dlp's reason.
func errorLine(r *procgroup.LineRing) string {
	lines := r.LastN(stderrLines)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], "ERROR:") {
			return lines[i]
		}
	}
	return strings.Join(lines, "; ")
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type infoJSON struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Duration       float64 `json:"duration"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	URL            string  `json:"url"`
	Format         string  `json:"format"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`

	RequestedFormats []struct {
		URL      string `json:"url"`
		Filesize int64  `json:"filesize"`
		Approx   int64  `json:"filesize_approx"`
	} `json:"requested_formats"`
}

// parseInfo maps yt-dlp's info JSON. For merged selections the top-level url
// is absent; the size is summed over the requested formats and the stream
// URL stays empty since no single URL plays both.
func parseInfo(out []byte) (video.Metadata, error) {
	var info infoJSON
	if err := json.Unmarshal(out, &info); err != nil {
		return video.Metadata{}, fmt.Errorf("parse yt-dlp info: %w", err)
	}

	size := info.Filesize
	if size == 0 {
		size = info.FilesizeApprox
	}
	if size == 0 {
		for _, f := range info.RequestedFormats {
			if f.Filesize > 0 {
				size += f.Filesize
			} else {
				size += f.Approx
			}
		}
	}

	return video.Metadata{
		ID:              video.ID(info.ID),
		Title:           info.Title,
		DurationSeconds: int(info.Duration),
		FilesizeBytes:   size,
		StreamURL:       info.URL,
		Format:          info.Format,
		Width:           info.Width,
		Height:          info.Height,
	}, nil
}
