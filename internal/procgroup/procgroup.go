// SPDX-License-Identifier: MIT

// Package procgroup runs helper processes (yt-dlp, the whisper helper, the
// media player) in their own process group so the whole tree can be
// signalled at once.
package procgroup

import (
	"errors"
	"os/exec"
	"time"

	"github.com/ManuGH/saytube/internal/metrics"
)

// ErrNotStarted is returned when signalling a command that has no process.
var ErrNotStarted = errors.New("process not started")

// Set configures the command to start in a new process group.
// Mandatory for the group signals below to reach children.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Bind prepares a command created with exec.CommandContext: it starts in its
// own group, context cancellation kills the whole group, and Wait gives up on
// inherited pipes after grace.
func Bind(cmd *exec.Cmd, grace time.Duration) {
	set(cmd)
	cmd.Cancel = func() error {
		err := signalGroup(cmd, sigKill)
		recordSignal("SIGKILL", err)
		return err
	}
	cmd.WaitDelay = grace
}

// Terminate stops a process group: SIGTERM, then SIGKILL when the process has
// not exited within grace. It consumes waitCh and returns the Wait error.
// Safe to call on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	recordSignal("SIGTERM", signalGroup(cmd, sigTerm))

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
		recordSignal("SIGKILL", signalGroup(cmd, sigKill))
		return <-waitCh
	}
}

// Suspend stops every process in the group (SIGSTOP).
func Suspend(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}
	return signalGroup(cmd, sigStop)
}

// Resume continues a suspended group (SIGCONT).
func Resume(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}
	return signalGroup(cmd, sigCont)
}

func recordSignal(sig string, err error) {
	switch {
	case err == nil:
		metrics.IncProcTerminate(sig, "sent")
	case isGone(err):
		metrics.IncProcTerminate(sig, "esrch")
	default:
		metrics.IncProcTerminate(sig, "error")
	}
}
