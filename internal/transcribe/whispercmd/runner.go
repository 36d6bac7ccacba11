// SPDX-License-Identifier: MIT

// Package whispercmd runs a local speech-recognition helper process, such as
// a faster-whisper script, once per pass.
//
// Protocol: audio bytes on stdin, one JSON document on stdout:
//
//	{"language": "en", "segments": [{"start": 0.0, "end": 1.2, "text": "..."}]}
//
// Flags appended to the configured command: --model, --device, --beam-size
// and, when pinned, --language.
package whispercmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/procgroup"
	"github.com/ManuGH/saytube/internal/transcribe"
)

const (
	stderrLines = 20
	waitDelay   = 2 * time.Second
)

// Config configures the helper.
type Config struct {
	// Command is the helper argv prefix, e.g. ["python3", "/opt/whisper/helper.py"].
	Command []string
	Model   string
	Device  string
}

// Runner implements transcribe.Engine by spawning the helper.
type Runner struct {
	cfg Config
}

// New returns a Runner. Command must not be empty.
func New(cfg Config) (*Runner, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("whisper helper command is empty")
	}
	return &Runner{cfg: cfg}, nil
}

// Recognize runs one pass. Cancelling ctx kills the helper's process group.
func (r *Runner) Recognize(ctx context.Context, audio []byte, opts transcribe.Options) (transcribe.Recognition, error) {
	argv := r.buildArgs(opts)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	procgroup.Bind(cmd, waitDelay)

	var stdout bytes.Buffer
	stderr := procgroup.NewLineRing(stderrLines)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return transcribe.Recognition{}, fmt.Errorf("whisper helper: %w", ctx.Err())
		}
		return transcribe.Recognition{}, fmt.Errorf("whisper helper failed: %w: %s", err, stderr.String())
	}
	return parseOutput(stdout.Bytes())
}

func (r *Runner) buildArgs(opts transcribe.Options) []string {
	argv := append([]string{}, r.cfg.Command...)
	if r.cfg.Model != "" {
		argv = append(argv, "--model", r.cfg.Model)
	}
	if r.cfg.Device != "" {
		argv = append(argv, "--device", r.cfg.Device)
	}
	if opts.BeamSize > 0 {
		argv = append(argv, "--beam-size", strconv.Itoa(opts.BeamSize))
	}
	if opts.Language != "" {
		argv = append(argv, "--language", opts.Language)
	}
	return argv
}

type helperOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// parseOutput reads the last non-empty stdout line as JSON; helpers that
// print progress before the result still parse.
func parseOutput(out []byte) (transcribe.Recognition, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return transcribe.Recognition{}, fmt.Errorf("whisper helper produced no output")
	}

	var parsed helperOutput
	if err := json.Unmarshal([]byte(last), &parsed); err != nil {
		return transcribe.Recognition{}, fmt.Errorf("parse helper output: %w", err)
	}
	rec := transcribe.Recognition{Language: parsed.Language}
	for _, s := range parsed.Segments {
		rec.Segments = append(rec.Segments, transcribe.Segment{StartSec: s.Start, EndSec: s.End, Text: s.Text})
	}
	return rec, nil
}
