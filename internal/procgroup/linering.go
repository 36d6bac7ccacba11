// SPDX-License-Identifier: MIT

package procgroup

import (
	"bytes"
	"strings"
	"sync"
)

const defaultRingLines = 50

// LineRing is an io.Writer that remembers the last lines written to it.
// Helpers point their stderr here so a failure can quote the tail.
type LineRing struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	pending []byte
}

// NewLineRing keeps up to limit complete lines (50 when limit < 1).
func NewLineRing(limit int) *LineRing {
	if limit < 1 {
		limit = defaultRingLines
	}
	return &LineRing{limit: limit, lines: make([]string, 0, limit)}
}

// Write never fails. Text after the last newline is held back until the
// line completes.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, p...)
	for {
		nl := bytes.IndexByte(r.pending, '\n')
		if nl < 0 {
			break
		}
		r.keep(string(r.pending[:nl]))
		r.pending = r.pending[nl+1:]
	}
	if len(r.pending) == 0 {
		r.pending = nil
	}
	return len(p), nil
}

// keep appends a non-blank line, evicting the oldest one when full.
func (r *LineRing) keep(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(r.lines) == r.limit {
		copy(r.lines, r.lines[1:])
		r.lines = r.lines[:r.limit-1]
	}
	r.lines = append(r.lines, line)
}

// LastN returns at most n lines, oldest first. An unterminated trailing
// line counts as the newest.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]string(nil), r.lines...)
	if tail := string(r.pending); strings.TrimSpace(tail) != "" {
		out = append(out, tail)
	}
	if n >= 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func (r *LineRing) String() string {
	return strings.Join(r.LastN(-1), "\n")
}
