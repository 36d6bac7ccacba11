// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/saytube/internal/apiclient"
	"github.com/ManuGH/saytube/internal/audio/mic"
	"github.com/ManuGH/saytube/internal/config"
	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/orchestrator"
	"github.com/ManuGH/saytube/internal/player"
	"github.com/ManuGH/saytube/internal/tempmedia"
	"github.com/ManuGH/saytube/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient(*configPath)
			if err != nil {
				return err
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			return runClient(parent, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "record one request immediately, then keep playing until q")
	return cmd
}

func runClient(parent context.Context, cfg config.ClientConfig, in io.Reader, out io.Writer, once bool) error {
	// Logs go to stderr so status lines stay readable.
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Output: os.Stderr, Service: "saytube", Version: version.Version})
	logger := xglog.WithComponent("client")
	out = &syncWriter{w: out}

	mode, err := orchestrator.ParsePlayMode(cfg.PlayMode)
	if err != nil {
		return err
	}

	media, err := tempmedia.New(tempmedia.Options{
		Dir:           cfg.MediaDir,
		DeleteDelay:   cfg.DeleteDelay,
		ShutdownGrace: cfg.ShutdownGrace,
		Logger:        xglog.WithComponent("tempmedia"),
	})
	if err != nil {
		return err
	}

	pl, err := player.New(cfg.PlayerCommand, xglog.WithComponent("player"))
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Recorder: mic.New(mic.Config{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Logger:     xglog.WithComponent("mic"),
		}),
		Backend: apiclient.New(apiclient.Config{
			BaseURL:         cfg.ServerURL,
			Timeout:         cfg.RequestTimeout,
			DownloadTimeout: cfg.DownloadTimeout,
		}),
		Player: pl,
		Media:  media,
		Sink:   printSink(out),
		Logger: logger,
		Config: orchestrator.Config{
			RecordDuration: cfg.RecordDuration,
			Mode:           mode,
			Preflight:      cfg.Preflight,
			MaxDuration:    cfg.MaxDuration,
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "saytube %s -> %s (%s mode)\n%s\n", version.Version, cfg.ServerURL, mode, keyHelp)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		media.Run(gctx)
		return nil
	})

	// Unbuffered: a record key is only accepted while the pipeline loop is
	// waiting, so a press during a run is refused instead of queued.
	records := make(chan struct{})
	quit := make(chan struct{})
	go readKeys(in, orch, records, quit, func() { fmt.Fprintln(out, busyMessage) }, logger)

	g.Go(func() error {
		start := func() {
			// Failures are already on the status line.
			if err := orch.Start(gctx); errors.Is(err, orchestrator.ErrBusy) {
				fmt.Fprintln(out, busyMessage)
			}
		}
		if once {
			start()
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-quit:
				return errQuit
			case <-records:
				start()
			}
		}
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), shutdownTimeout)
	defer cancel()
	orch.Shutdown(shutdownCtx)

	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

var errQuit = errors.New("quit")

const busyMessage = "busy, try again when the current request finishes"

// transport is the part of the orchestrator the key loop drives directly.
type transport interface {
	Play() error
	Pause() error
	Stop() error
}

// syncWriter serialises status lines from the key loop and the pipeline.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// readKeys handles transport keys directly and hands record presses to the
// pipeline goroutine. A press while a request is running calls busy and is
// dropped. EOF on input counts as quit.
func readKeys(in io.Reader, ctl transport, records chan<- struct{}, quit chan<- struct{}, busy func(), logger zerolog.Logger) {
	defer close(quit)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		var err error
		switch parseKey(sc.Text()) {
		case actionRecord:
			select {
			case records <- struct{}{}:
			default:
				busy()
			}
		case actionPlay:
			err = ctl.Play()
		case actionPause:
			err = ctl.Pause()
		case actionStop:
			err = ctl.Stop()
		case actionQuit:
			return
		}
		if err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "client.transport_failed").Msg("transport control failed")
		}
	}
}

func printSink(out io.Writer) orchestrator.StatusSink {
	return orchestrator.SinkFunc(func(s orchestrator.Status) {
		fmt.Fprintf(out, "[%s] %s\n", s.At.Format("15:04:05"), s.Message)
	})
}
