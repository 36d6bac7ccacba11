// SPDX-License-Identifier: MIT

package audiobuf

import (
	"bytes"
	"encoding/binary"
)

// WAVHeader is the subset of the RIFF "fmt " chunk the pipeline cares about.
type WAVHeader struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// ParseWAV reads the format chunk of a RIFF/WAVE byte stream. It walks the
// chunk list so files with LIST or fact chunks before "fmt " still parse.
func ParseWAV(data []byte) (WAVHeader, bool) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return WAVHeader{}, false
	}
	off := 12
	for off+8 <= len(data) {
		id := data[off : off+4]
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if bytes.Equal(id, []byte("fmt ")) {
			if size < 16 || body+16 > len(data) {
				return WAVHeader{}, false
			}
			return WAVHeader{
				Format:        binary.LittleEndian.Uint16(data[body : body+2]),
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}, true
		}
		// Chunks are word aligned.
		off = body + size + size%2
	}
	return WAVHeader{}, false
}
