// SPDX-License-Identifier: MIT

//go:build linux

package procgroup

import (
	"context"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireGroupGone waits until no process in the group led by pid is left.
func requireGroupGone(t *testing.T, pid int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return syscall.Kill(-pid, 0) != nil
	}, 2*time.Second, 20*time.Millisecond, "process group %d still alive", pid)
}

// startGroup runs a shell that forks a background sleeper, so the group has
// a member besides the leader.
func startGroup(t *testing.T) (*exec.Cmd, <-chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", "sleep 10 & sleep 10")
	Set(cmd)
	require.NoError(t, cmd.Start())
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	return cmd, done
}

func TestTerminateKillsGroup(t *testing.T) {
	cmd, done := startGroup(t)
	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, pgid, "helper leads its own group")

	began := time.Now()
	_ = Terminate(cmd, done, 2*time.Second)
	assert.Less(t, time.Since(began), 3*time.Second)

	requireGroupGone(t, pid)
}

func TestBindKillsGroupOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "sh", "-c", "sleep 10 & wait")
	Bind(cmd, time.Second)
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	cancel()
	err := cmd.Wait()
	require.Error(t, err)

	requireGroupGone(t, pid)
}

func TestSuspendResume(t *testing.T) {
	cmd := exec.Command("sleep", "10")
	Set(cmd)
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	assert.NoError(t, Suspend(cmd))
	assert.NoError(t, Resume(cmd))
	assert.ErrorIs(t, Suspend(&exec.Cmd{}), ErrNotStarted)
}
