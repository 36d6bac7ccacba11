// SPDX-License-Identifier: MIT

//go:build unix

package player

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestNewRequiresCommand(t *testing.T) {
	_, err := New(nil, zerolog.Nop())
	require.Error(t, err)
	_, err = New([]string{""}, zerolog.Nop())
	require.Error(t, err)
}

func TestPlayWithoutSource(t *testing.T) {
	p, err := New([]string{"sleep"}, zerolog.Nop())
	require.NoError(t, err)
	assert.ErrorIs(t, p.Play(), ErrNothingLoaded)
	assert.NoError(t, p.Pause())
	assert.NoError(t, p.Stop())
	assert.Equal(t, Stopped, p.State())
}

func TestTransportLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireBinary(t, "sleep")

	p, err := New([]string{"sleep"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, p.Load(context.Background(), "30"))
	assert.Equal(t, Stopped, p.State())

	require.NoError(t, p.Play())
	assert.Equal(t, Playing, p.State())

	require.NoError(t, p.Pause())
	assert.Equal(t, Paused, p.State())

	require.NoError(t, p.Play())
	assert.Equal(t, Playing, p.State())

	require.NoError(t, p.Pause())
	require.NoError(t, p.Stop())
	assert.Equal(t, Stopped, p.State())

	// Load replaces the source and stops a running process.
	require.NoError(t, p.Play())
	require.NoError(t, p.Load(context.Background(), "20"))
	assert.Equal(t, Stopped, p.State())
}

func TestProcessExitMarksStopped(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireBinary(t, "true")

	p, err := New([]string{"true"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, p.Load(context.Background(), "ignored"))
	require.NoError(t, p.Play())

	assert.Eventually(t, func() bool { return p.State() == Stopped }, 5*time.Second, 10*time.Millisecond)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "playing", Playing.String())
	assert.Equal(t, "paused", Paused.String())
	assert.Equal(t, "stopped", Stopped.String())
}
