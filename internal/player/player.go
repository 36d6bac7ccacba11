// SPDX-License-Identifier: MIT

// Package player drives an external media player process. Pause and resume
// are group signals, so any player that tolerates SIGSTOP works.
package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ManuGH/saytube/internal/procgroup"
	"github.com/rs/zerolog"
)

const stopGrace = 2 * time.Second

// ErrNothingLoaded is returned by Play when no source was loaded.
var ErrNothingLoaded = errors.New("player: nothing loaded")

// State of the player process.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Exec runs "command... source" in its own process group.
type Exec struct {
	command []string
	logger  zerolog.Logger
	start   func(name string, args ...string) *exec.Cmd

	mu     sync.Mutex
	source string
	cmd    *exec.Cmd
	waitCh chan error
	state  State
}

// New returns a player for command. command[0] is the executable.
func New(command []string, logger zerolog.Logger) (*Exec, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("player: command is required")
	}
	return &Exec{
		command: append([]string(nil), command...),
		logger:  logger,
		start:   exec.Command,
	}, nil
}

// Load stops whatever is running and remembers source for Play.
func (p *Exec) Load(_ context.Context, source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.source = source
	p.logger.Debug().Str("event", "player.loaded").Str("source", source).Msg("source loaded")
	return nil
}

// Play starts the loaded source, or resumes it when paused.
func (p *Exec) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Playing:
		return nil
	case Paused:
		if err := procgroup.Resume(p.cmd); err != nil {
			return fmt.Errorf("player: resume: %w", err)
		}
		p.state = Playing
		return nil
	}

	if p.source == "" {
		return ErrNothingLoaded
	}

	args := append(append([]string(nil), p.command[1:]...), p.source)
	cmd := p.start(p.command[0], args...)
	procgroup.Set(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("player: start %s: %w", p.command[0], err)
	}

	waitCh := make(chan error, 1)
	p.cmd = cmd
	p.waitCh = waitCh
	p.state = Playing
	go p.reap(cmd, waitCh)

	p.logger.Info().
		Str("event", "player.started").
		Int("pid", cmd.Process.Pid).
		Str("source", p.source).
		Msg("playback started")
	return nil
}

// reap waits for the process and marks the player stopped when it exited
// on its own. waitCh is buffered so Stop can collect the result while it
// holds the lock.
func (p *Exec) reap(cmd *exec.Cmd, waitCh chan error) {
	err := cmd.Wait()
	waitCh <- err
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != cmd {
		return
	}
	p.cmd = nil
	p.waitCh = nil
	p.state = Stopped
	p.logger.Debug().Err(err).Str("event", "player.exited").Msg("player exited")
}

// Pause suspends playback. No-op unless playing.
func (p *Exec) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Playing {
		return nil
	}
	if err := procgroup.Suspend(p.cmd); err != nil {
		return fmt.Errorf("player: pause: %w", err)
	}
	p.state = Paused
	return nil
}

// Stop terminates playback. The source stays loaded.
func (p *Exec) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

// State reports the process state.
func (p *Exec) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Exec) stopLocked() {
	if p.cmd == nil {
		p.state = Stopped
		return
	}
	cmd, waitCh := p.cmd, p.waitCh
	p.cmd, p.waitCh = nil, nil
	if p.state == Paused {
		// A stopped group ignores SIGTERM until continued.
		_ = procgroup.Resume(cmd)
	}
	p.state = Stopped
	if err := procgroup.Terminate(cmd, waitCh, stopGrace); err != nil {
		p.logger.Debug().Err(err).Str("event", "player.stopped").Msg("player terminated")
	}
}
