// SPDX-License-Identifier: MIT

package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// State is the client pipeline state. Errors are not a state: a failed
// attempt reports a status message and falls back to Idle.
type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Searching
	Resolving
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Searching:
		return "searching"
	case Resolving:
		return "resolving"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// stage is the label failures are reported under.
func (s State) stage() string {
	switch s {
	case Recording:
		return "Recording"
	case Transcribing:
		return "Transcription"
	case Searching:
		return "Search"
	case Resolving:
		return "Video"
	case Playing:
		return "Playback"
	default:
		return "Error"
	}
}

// acceptsStart reports whether a new request may begin from s.
func (s State) acceptsStart() bool {
	return s == Idle || s == Playing
}

// PlayMode selects how a found video reaches the player.
type PlayMode string

const (
	// ModeStream plays the direct stream URL without touching disk.
	ModeStream PlayMode = "stream"
	// ModeLow downloads the progressive low-resolution rendition.
	ModeLow PlayMode = "low"
	// ModeMerged downloads best video and audio muxed together.
	ModeMerged PlayMode = "merged"
)

// ParsePlayMode accepts stream, low and merged (case-insensitive).
func ParsePlayMode(s string) (PlayMode, error) {
	switch m := PlayMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeStream, ModeLow, ModeMerged:
		return m, nil
	default:
		return "", fmt.Errorf("unknown play mode %q", s)
	}
}

// Status is what the presentation layer shows.
type Status struct {
	State   State
	Message string
	// Err is set when the status reports a failed attempt.
	Err error
	At  time.Time
}

// StatusSink receives every status change.
type StatusSink interface {
	Status(Status)
}

// SinkFunc adapts a function to StatusSink.
type SinkFunc func(Status)

// Status implements StatusSink.
func (f SinkFunc) Status(s Status) { f(s) }

// Session is a snapshot of the client's media state.
type Session struct {
	State            State
	CurrentVideoPath string
	// DownloadedVideos lists managed files, oldest first.
	DownloadedVideos []string
	Status           Status
}
