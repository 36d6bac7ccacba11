// SPDX-License-Identifier: MIT

// Package audio holds the client-side capture contract and the WAV framing
// used to ship captured samples to the daemon.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"time"
)

const (
	// DefaultSampleRate is the capture rate the recognizer expects.
	DefaultSampleRate = 44100
	bitsPerSample     = 16
	wavHeaderSize     = 44
)

// Recorder captures a fixed-length clip and returns it as a WAV payload.
type Recorder interface {
	Record(ctx context.Context, d time.Duration) ([]byte, error)
}

// FloatToPCM16 converts normalized float samples to signed 16-bit PCM,
// clipping anything outside [-1, 1].
func FloatToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		v := float64(s)
		switch {
		case math.IsNaN(v):
			v = 0
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		out[i] = int16(math.Round(v * math.MaxInt16))
	}
	return out
}

// EncodeWAV frames interleaved PCM16 samples as a canonical 44-byte-header
// RIFF/WAVE file.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataSize := len(samples) * 2
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + dataSize)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// FrameCount returns how many frames cover d at the given rate, rounded up.
func FrameCount(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds() * float64(sampleRate)))
}
