// SPDX-License-Identifier: MIT

//go:build !unix

package procgroup

import (
	"errors"
	"os"
	"os/exec"
)

type groupSignal int

const (
	sigTerm groupSignal = iota
	sigKill
	sigStop
	sigCont
)

func set(*exec.Cmd) {}

// Without process groups only the leader can be killed; suspend is unsupported.
func signalGroup(cmd *exec.Cmd, sig groupSignal) error {
	if cmd.Process == nil {
		return ErrNotStarted
	}
	switch sig {
	case sigTerm, sigKill:
		return cmd.Process.Kill()
	default:
		return errors.ErrUnsupported
	}
}

func isGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
