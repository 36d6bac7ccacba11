// SPDX-License-Identifier: MIT

// Package video resolves spoken queries to platform videos: search, metadata
// probes, stream URLs and downloads into managed temp storage.
package video

import (
	"context"
	"errors"
	"regexp"
)

// ID is an opaque platform video identifier.
type ID string

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Valid reports whether id looks like a platform identifier. It keeps
// anything that could be mistaken for a flag or a URL away from extractors.
func (id ID) Valid() bool { return idPattern.MatchString(string(id)) }

// WatchURL returns the canonical page URL for id.
func (id ID) WatchURL() string { return "https://www.youtube.com/watch?v=" + string(id) }

// Metadata is a point-in-time snapshot of a video. It is never cached.
type Metadata struct {
	ID              ID
	Title           string
	DurationSeconds int
	FilesizeBytes   int64
	StreamURL       string
	Format          string
	Width           int
	Height          int
}

// StreamInfo is what a player needs to stream without downloading.
type StreamInfo struct {
	URL             string
	Title           string
	DurationSeconds int
	Format          string
}

// DurationVerdict is the result of the duration preflight.
type DurationVerdict struct {
	IsSingleSong bool
	TooLong      bool
}

// ErrNoResults is returned by searchers when a query matches nothing.
var ErrNoResults = errors.New("no search results")

// Searcher finds the best matching video for a query.
type Searcher interface {
	Search(ctx context.Context, query string) (ID, error)
}

// Extractor reads metadata and fetches media for a video.
type Extractor interface {
	Extract(ctx context.Context, id ID, p Profile) (Metadata, error)
	// Download writes the media to dstPath and returns the path actually
	// written, which may differ in extension.
	Download(ctx context.Context, id ID, p Profile, dstPath string) (string, error)
}
