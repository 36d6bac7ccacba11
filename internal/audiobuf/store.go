// SPDX-License-Identifier: MIT

// Package audiobuf holds the single most recent audio upload.
package audiobuf

import (
	"sync"
	"time"

	"github.com/ManuGH/saytube/internal/apperr"
)

// Payload is one uploaded recording. SampleRate and Channels are filled from
// the WAV header when the bytes carry one and are zero otherwise.
type Payload struct {
	Data       []byte
	SampleRate int
	Channels   int
	ReceivedAt time.Time
}

// Store keeps exactly one payload. A Put replaces whatever was there; there
// is no queue and no history.
type Store struct {
	mu      sync.RWMutex
	payload Payload
	set     bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Put overwrites the live payload.
func (s *Store) Put(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = p
	s.set = true
}

// Take returns the live payload without consuming it; repeated calls see the
// same bytes until the next Put. It fails with KindInputMissing when nothing
// has been uploaded yet.
func (s *Store) Take() (Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Payload{}, apperr.New(apperr.KindInputMissing, "audiobuf.take", "no audio uploaded")
	}
	return s.payload, nil
}

// NewPayload builds a payload from raw upload bytes, reading format details
// from the WAV header when present.
func NewPayload(data []byte, now time.Time) Payload {
	p := Payload{Data: data, ReceivedAt: now}
	if h, ok := ParseWAV(data); ok {
		p.SampleRate = h.SampleRate
		p.Channels = h.Channels
	}
	return p
}
