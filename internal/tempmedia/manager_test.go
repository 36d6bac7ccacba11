// SPDX-License-Identifier: MIT

package tempmedia

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is advanced by tests; the worker still uses real timers, so
// tests that rely on Run use short real delays instead.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	opts.Logger = zerolog.Nop()
	m, err := New(opts)
	require.NoError(t, err)
	return m
}

func writeMedia(t *testing.T, m *Manager, name string) string {
	t.Helper()
	p := filepath.Join(m.Dir(), name)
	require.NoError(t, os.WriteFile(p, []byte("mp4"), 0o600))
	return p
}

func TestMaterializeWritesAndTracks(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 42)}
	m := newTestManager(t, Options{Now: clock.Now})

	f, err := m.Materialize(context.Background(), "abc123", "Official Music Video – 로파이 🎵", strings.NewReader("video-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "Official Music Video_abc123_1700000000000000042.mp4", filepath.Base(f.Path))
	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
	assert.Equal(t, []File{f}, m.Files())

	entries, err := os.ReadDir(m.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no pending temp files left behind")
}

func TestMaterializeCancelledLeavesNothing(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Materialize(ctx, "abc", "t", strings.NewReader("x"))
	require.Error(t, err)
	entries, _ := os.ReadDir(m.Dir())
	assert.Empty(t, entries)
	assert.Empty(t, m.Files())
}

func TestTrackRejectsOutsidePaths(t *testing.T) {
	m := newTestManager(t, Options{})
	outside := filepath.Join(t.TempDir(), "x.mp4")
	require.NoError(t, os.WriteFile(outside, nil, 0o600))

	_, err := m.Track(context.Background(), "x", outside)
	assert.Error(t, err)

	_, err = m.Track(context.Background(), "x", filepath.Join(m.Dir(), "missing.mp4"))
	assert.Error(t, err)
}

func TestCleanupSupersededKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{})
	a := writeMedia(t, m, "a.mp4")
	b := writeMedia(t, m, "b.mp4")

	prev, err := m.MarkCurrent(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = m.MarkCurrent(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, a, prev)

	assert.Equal(t, 1, m.CleanupSuperseded(ctx))
	assert.NoFileExists(t, a)
	assert.FileExists(t, b)

	files := m.Files()
	require.Len(t, files, 1)
	assert.Equal(t, b, files[0].Path)
	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, b, cur.Path)
}

func TestCleanupSupersededMissingFileIsForgotten(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{})
	a := writeMedia(t, m, "a.mp4")
	_, err := m.Track(ctx, "a", a)
	require.NoError(t, err)
	require.NoError(t, os.Remove(a))

	assert.Equal(t, 1, m.CleanupSuperseded(ctx))
	assert.Empty(t, m.Files())
}

func TestScheduleDeleteRequiresTracking(t *testing.T) {
	m := newTestManager(t, Options{})
	assert.ErrorIs(t, m.ScheduleDelete(filepath.Join(m.Dir(), "nope.mp4"), 0), ErrNotTracked)
}

func TestProcessDueHonoursDelayAndCurrent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := newTestManager(t, Options{Now: clock.Now})

	old := writeMedia(t, m, "old.mp4")
	cur := writeMedia(t, m, "cur.mp4")
	_, err := m.Track(ctx, "old", old)
	require.NoError(t, err)
	_, err = m.MarkCurrent(ctx, cur)
	require.NoError(t, err)

	require.NoError(t, m.ScheduleDelete(old, 5*time.Second))
	require.NoError(t, m.ScheduleDelete(cur, 5*time.Second))

	wait := m.processDue(ctx)
	assert.Equal(t, 5*time.Second, wait)
	assert.FileExists(t, old)

	clock.Advance(5 * time.Second)
	m.processDue(ctx)
	assert.NoFileExists(t, old)
	assert.FileExists(t, cur, "current file is skipped")
	assert.Len(t, m.Files(), 1)
	assert.Zero(t, m.Pending())
}

func TestRunDeletesScheduledFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newTestManager(t, Options{})

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	p := writeMedia(t, m, "served.mp4")
	_, err := m.Track(ctx, "served", p)
	require.NoError(t, err)
	require.NoError(t, m.ScheduleDelete(p, 20*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, m.Files())
}

func TestCleanupAllDeletesEverythingOnce(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{ShutdownGrace: 10 * time.Millisecond})
	a := writeMedia(t, m, "a.mp4")
	b := writeMedia(t, m, "b.mp4")
	_, err := m.Track(ctx, "a", a)
	require.NoError(t, err)
	_, err = m.MarkCurrent(ctx, b)
	require.NoError(t, err)
	require.NoError(t, m.ScheduleDelete(a, time.Hour))

	start := time.Now()
	m.CleanupAll(ctx)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "grace period observed")

	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)
	assert.Empty(t, m.Files())
	assert.Zero(t, m.Pending())
	_, ok := m.Current()
	assert.False(t, ok)

	m.CleanupAll(ctx)
	assert.Empty(t, m.Files())
}

func TestCleanupAllSurvivesExpiredContext(t *testing.T) {
	m := newTestManager(t, Options{ShutdownGrace: time.Hour})
	a := writeMedia(t, m, "a.mp4")
	_, err := m.Track(context.Background(), "a", a)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.CleanupAll(ctx)
	assert.NoFileExists(t, a)
}

func TestCleanupSupersededDeleteFailureKeepsTracking(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	m, err := New(Options{Dir: t.TempDir(), Logger: zerolog.New(&buf)})
	require.NoError(t, err)
	a := writeMedia(t, m, "a.mp4")
	b := writeMedia(t, m, "b.mp4")
	_, err = m.Track(ctx, "a", a)
	require.NoError(t, err)
	_, err = m.MarkCurrent(ctx, b)
	require.NoError(t, err)

	// A non-empty directory in place of the file makes os.Remove fail.
	require.NoError(t, os.Remove(a))
	require.NoError(t, os.Mkdir(a, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(a, "x"), nil, 0o600))

	assert.Zero(t, m.CleanupSuperseded(ctx))
	assert.Len(t, m.Files(), 2)
	assert.Contains(t, buf.String(), `"event":"tempmedia.delete_failed"`)
	assert.Contains(t, buf.String(), `"trigger":"superseded"`)
	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, b, cur.Path)
}

func TestTrackAfterCleanupAllRefusesAndDeletes(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{})
	m.CleanupAll(ctx)

	late := writeMedia(t, m, "late.mp4")
	_, err := m.Track(ctx, "late", late)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoFileExists(t, late)
	assert.Empty(t, m.Files())
}

func TestScheduleDeleteThroughSymlinkedDir(t *testing.T) {
	ctx := context.Background()
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "media")
	require.NoError(t, os.Symlink(target, link))
	m := newTestManager(t, Options{Dir: link})

	p := writeMedia(t, m, "a.mp4")
	f, err := m.Track(ctx, "a", p)
	require.NoError(t, err)
	assert.NotEqual(t, p, f.Path, "tracked under the resolved path")

	require.NoError(t, m.ScheduleDelete(p, 0))
	assert.Equal(t, 1, m.Pending())

	m.processDue(ctx)
	assert.NoFileExists(t, filepath.Join(target, "a.mp4"))
	assert.Empty(t, m.Files())
}
