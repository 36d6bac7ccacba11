// SPDX-License-Identifier: MIT

// Package tempmedia owns downloaded media files from the moment they land on
// disk until they are deleted. Exactly one tracked file may be current (the
// one being played); everything else is eligible for deletion.
package tempmedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/saytube/internal/fsutil"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/metrics"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

const (
	defaultDeleteDelay   = 5 * time.Second
	defaultShutdownGrace = time.Second
)

// ErrNotTracked is returned when an operation names a path the manager does
// not own.
var ErrNotTracked = errors.New("file is not tracked")

// ErrClosed is returned by Track after the shutdown sweep has run.
var ErrClosed = errors.New("tempmedia: manager is closed")

// File is one managed media file.
type File struct {
	ID        string
	Path      string
	CreatedAt time.Time
}

// Options configures a Manager.
type Options struct {
	Dir           string
	DeleteDelay   time.Duration
	ShutdownGrace time.Duration
	// Ledger persists tracked files for crash recovery. Nil keeps the
	// manager purely in memory.
	Ledger Ledger
	Logger zerolog.Logger
	Now    func() time.Time
}

// Manager tracks temp media files. It is safe for concurrent use.
type Manager struct {
	dir           string
	deleteDelay   time.Duration
	shutdownGrace time.Duration
	ledger        Ledger
	logger        zerolog.Logger
	now           func() time.Time

	mu      sync.Mutex
	files   map[string]File
	current string
	queue   []task
	closed  bool
	wake    chan struct{}
}

// New creates the managed directory if needed and returns a Manager.
func New(opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, errors.New("tempmedia: directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("tempmedia: create dir: %w", err)
	}
	if opts.DeleteDelay < 0 {
		opts.DeleteDelay = defaultDeleteDelay
	}
	if opts.ShutdownGrace < 0 {
		opts.ShutdownGrace = defaultShutdownGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		dir:           opts.Dir,
		deleteDelay:   opts.DeleteDelay,
		shutdownGrace: opts.ShutdownGrace,
		ledger:        opts.Ledger,
		logger:        opts.Logger,
		now:           opts.Now,
		files:         make(map[string]File),
		wake:          make(chan struct{}, 1),
	}, nil
}

// Dir returns the managed directory.
func (m *Manager) Dir() string { return m.dir }

// DeleteDelay returns the configured deferred-deletion delay.
func (m *Manager) DeleteDelay() time.Duration { return m.deleteDelay }

// FileName builds the on-disk name for a video: sanitized title, id and a
// nanosecond timestamp so repeated downloads never collide.
func (m *Manager) FileName(id, title string) string {
	return fsutil.SanitizeTitle(title, id) + "_" + id + "_" + strconv.FormatInt(m.now().UnixNano(), 10) + ".mp4"
}

// Materialize writes r into a new file in the managed directory and tracks
// it. The file appears atomically: readers never observe a partial write.
func (m *Manager) Materialize(ctx context.Context, id, title string, r io.Reader) (File, error) {
	path, err := fsutil.ConfineRelPath(m.dir, m.FileName(id, title))
	if err != nil {
		return File{}, fmt.Errorf("tempmedia: %w", err)
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithTempDir(m.dir), renameio.WithPermissions(0o640))
	if err != nil {
		return File{}, fmt.Errorf("tempmedia: create pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	n, err := io.Copy(pf, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return File{}, fmt.Errorf("tempmedia: write %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return File{}, fmt.Errorf("tempmedia: commit %s: %w", path, err)
	}

	m.logger.Debug().
		Str(xglog.FieldEvent, "tempmedia.materialized").
		Str(xglog.FieldPath, path).
		Int64(xglog.FieldBytes, n).
		Msg("media written")
	return m.Track(ctx, id, path)
}

// Track takes ownership of a file written by someone else (the extractor).
// The path must be a regular file inside the managed directory.
func (m *Manager) Track(ctx context.Context, id, path string) (File, error) {
	resolved, err := fsutil.ConfineAbsPath(m.dir, path)
	if err != nil {
		return File{}, fmt.Errorf("tempmedia: %w", err)
	}
	if err := fsutil.IsRegularFile(resolved); err != nil {
		return File{}, fmt.Errorf("tempmedia: %w", err)
	}

	f := File{ID: id, Path: resolved, CreatedAt: m.now()}
	m.mu.Lock()
	if m.closed {
		// The sweep has already run; nothing would ever delete this file.
		m.mu.Unlock()
		if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "tempmedia.delete_failed").
				Str(xglog.FieldPath, resolved).
				Msg("failed to delete file arriving after shutdown")
		}
		return File{}, ErrClosed
	}
	if existing, ok := m.files[resolved]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.files[resolved] = f
	n := len(m.files)
	m.mu.Unlock()

	metrics.SetTempFilesTracked(n)
	if m.ledger != nil {
		if err := m.ledger.Record(ctx, f); err != nil {
			m.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "tempmedia.ledger_record_failed").
				Str(xglog.FieldPath, resolved).
				Msg("failed to record file in ledger")
		}
	}
	return f, nil
}

// MarkCurrent makes path the single current file, tracking it first when
// needed, and returns the previous current path (empty if none).
func (m *Manager) MarkCurrent(ctx context.Context, path string) (string, error) {
	f, err := m.Track(ctx, "", path)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	prev := m.current
	m.current = f.Path
	m.mu.Unlock()
	if prev == f.Path {
		prev = ""
	}
	return prev, nil
}

// Current returns the current file, if any.
func (m *Manager) Current() (File, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[m.current]
	return f, ok && m.current != ""
}

// Files returns all tracked files, oldest first.
func (m *Manager) Files() []File {
	m.mu.Lock()
	out := make([]File, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, f)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Path < out[j].Path
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CleanupSuperseded deletes every tracked file except the current one and
// returns how many were removed. Files that fail to delete stay tracked.
func (m *Manager) CleanupSuperseded(ctx context.Context) int {
	m.mu.Lock()
	var victims []string
	for p := range m.files {
		if p != m.current {
			victims = append(victims, p)
		}
	}
	m.mu.Unlock()

	deleted := 0
	for _, p := range victims {
		if m.remove(ctx, p, "superseded") {
			deleted++
		}
	}
	return deleted
}

// remove deletes a tracked file from disk and forgets it. A file that is
// already gone counts as removed.
func (m *Manager) remove(ctx context.Context, path, trigger string) bool {
	err := os.Remove(path)
	result := "deleted"
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		result = "missing"
	default:
		metrics.IncTempDeletion(trigger, "error")
		m.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "tempmedia.delete_failed").
			Str(xglog.FieldPath, path).
			Str("trigger", trigger).
			Msg("failed to delete temp media, will retry later")
		return false
	}

	m.mu.Lock()
	delete(m.files, path)
	if m.current == path {
		m.current = ""
	}
	n := len(m.files)
	m.mu.Unlock()

	metrics.IncTempDeletion(trigger, result)
	metrics.SetTempFilesTracked(n)
	if m.ledger != nil {
		if err := m.ledger.Forget(ctx, path); err != nil {
			m.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "tempmedia.ledger_forget_failed").
				Str(xglog.FieldPath, path).
				Msg("failed to remove file from ledger")
		}
	}
	m.logger.Debug().
		Str(xglog.FieldEvent, "tempmedia.deleted").
		Str(xglog.FieldPath, path).
		Str("trigger", trigger).
		Str("result", result).
		Msg("temp media removed")
	return true
}

// ctxReader aborts a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
