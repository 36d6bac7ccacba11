// SPDX-License-Identifier: MIT

package fsutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// reservedChars are rejected by at least one mainstream filesystem.
const reservedChars = `<>:"/\|?*`

var unsafeRunes = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII ||
		r < 0x20 || r == 0x7f ||
		strings.ContainsRune(reservedChars, r)
}))

// SanitizeTitle turns a platform title into a string that is safe as a file
// name stem and as an HTTP header value: ASCII only, no reserved or control
// characters, trimmed. When nothing survives it falls back to "video_<id>".
func SanitizeTitle(title, id string) string {
	out, _, err := transform.String(unsafeRunes, title)
	if err != nil {
		out = ""
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "video_" + id
	}
	return out
}
