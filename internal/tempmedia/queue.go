// SPDX-License-Identifier: MIT

package tempmedia

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/saytube/internal/fsutil"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/metrics"
)

type task struct {
	path string
	due  time.Time
}

// ScheduleDelete queues path for deletion after delay. The worker started
// with Run performs it; a path that is current when its task comes due is
// left alone.
func (m *Manager) ScheduleDelete(path string, delay time.Duration) error {
	// Tracked files are keyed by their resolved path.
	resolved, err := fsutil.ConfineAbsPath(m.dir, path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotTracked, err)
	}
	path = resolved
	m.mu.Lock()
	if _, ok := m.files[path]; !ok {
		m.mu.Unlock()
		return ErrNotTracked
	}
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.queue = append(m.queue, task{path: path, due: m.now().Add(delay)})
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued deletions.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Run processes the deletion queue until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := m.processDue(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		case <-timer.C:
		}
	}
}

// processDue runs every task that is due and returns how long to sleep until
// the next one.
func (m *Manager) processDue(ctx context.Context) time.Duration {
	now := m.now()

	m.mu.Lock()
	var due []task
	rest := m.queue[:0]
	next := time.Hour
	for _, t := range m.queue {
		if !t.due.After(now) {
			due = append(due, t)
			continue
		}
		rest = append(rest, t)
		if d := t.due.Sub(now); d < next {
			next = d
		}
	}
	m.queue = rest
	m.mu.Unlock()

	for _, t := range due {
		m.runTask(ctx, t)
	}
	return next
}

func (m *Manager) runTask(ctx context.Context, t task) {
	m.mu.Lock()
	_, tracked := m.files[t.path]
	isCurrent := m.current == t.path
	m.mu.Unlock()

	switch {
	case !tracked:
		return
	case isCurrent:
		metrics.IncTempDeletion("scheduled", "skipped")
		m.logger.Debug().
			Str(xglog.FieldEvent, "tempmedia.delete_skipped").
			Str(xglog.FieldPath, t.path).
			Msg("scheduled deletion skipped, file is current")
	default:
		m.remove(ctx, t.path, "scheduled")
	}
}

// CleanupAll is the shutdown sweep: it waits the grace period so in-flight
// readers can finish, drops the deferred queue and deletes every tracked
// file, current included. Best effort and idempotent.
func (m *Manager) CleanupAll(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	if m.shutdownGrace > 0 {
		t := time.NewTimer(m.shutdownGrace)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}

	m.mu.Lock()
	m.queue = nil
	m.current = ""
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	m.mu.Unlock()

	// Deletion ignores ctx cancellation: an expired shutdown deadline must
	// not leave files behind.
	sweepCtx := context.WithoutCancel(ctx)
	failed := 0
	for _, p := range paths {
		if !m.remove(sweepCtx, p, "shutdown") {
			failed++
		}
	}
	m.logger.Info().
		Str(xglog.FieldEvent, "tempmedia.cleanup_all").
		Int("files", len(paths)).
		Int("failed", failed).
		Msg("temp media swept")
}
