// SPDX-License-Identifier: MIT

// Package mic captures microphone input through PortAudio.
package mic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/saytube/internal/audio"
	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

const framesPerBuffer = 1024

// Config configures a Recorder.
type Config struct {
	SampleRate int
	Channels   int
	// DeviceName selects an input device by name; empty uses the default.
	DeviceName string
	Logger     zerolog.Logger
}

// Recorder records fixed-length clips from an input device.
type Recorder struct {
	cfg Config
}

var _ audio.Recorder = (*Recorder)(nil)

// New returns a Recorder. PortAudio is initialized per recording so the
// device list is fresh each time.
func New(cfg Config) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &Recorder{cfg: cfg}
}

// Record blocks until d of audio has been captured or ctx is done. A
// cancelled recording returns ctx.Err() and no payload.
func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	want := audio.FrameCount(d, r.cfg.SampleRate) * r.cfg.Channels
	if want == 0 {
		return nil, errors.New("mic: recording duration must be positive")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("mic: initialize portaudio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	dev, err := r.inputDevice()
	if err != nil {
		return nil, err
	}

	buf := make([]float32, framesPerBuffer*r.cfg.Channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: r.cfg.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(r.cfg.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buf)
	if err != nil {
		return nil, fmt.Errorf("mic: open stream on %q: %w", dev.Name, err)
	}
	defer func() { _ = stream.Close() }()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("mic: start stream: %w", err)
	}
	defer func() { _ = stream.Stop() }()

	r.cfg.Logger.Info().
		Str("event", "mic.record_start").
		Str("device", dev.Name).
		Int("sample_rate", r.cfg.SampleRate).
		Dur("duration", d).
		Msg("recording")

	captured := make([]float32, 0, want)
	for len(captured) < want {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			// Overflow drops a buffer; the clip is still usable.
			if errors.Is(err, portaudio.InputOverflowed) {
				r.cfg.Logger.Warn().Str("event", "mic.input_overflow").Msg("input overflowed")
				continue
			}
			return nil, fmt.Errorf("mic: read: %w", err)
		}
		n := min(len(buf), want-len(captured))
		captured = append(captured, buf[:n]...)
	}

	r.cfg.Logger.Info().
		Str("event", "mic.record_done").
		Int("samples", len(captured)).
		Msg("recording finished")

	return audio.EncodeWAV(audio.FloatToPCM16(captured), r.cfg.SampleRate, r.cfg.Channels), nil
}

func (r *Recorder) inputDevice() (*portaudio.DeviceInfo, error) {
	if r.cfg.DeviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("mic: default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("mic: list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == r.cfg.DeviceName && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("mic: input device %q not found", r.cfg.DeviceName)
}
