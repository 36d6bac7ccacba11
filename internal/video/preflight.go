// SPDX-License-Identifier: MIT

package video

import "time"

// Preflight classifies a video by duration against ceiling. A video longer
// than the ceiling is too long; anything else with a known duration counts
// as a single song. Unknown (zero) durations are neither.
func Preflight(meta Metadata, ceiling time.Duration) DurationVerdict {
	d := time.Duration(meta.DurationSeconds) * time.Second
	tooLong := d > ceiling
	return DurationVerdict{
		TooLong:      tooLong,
		IsSingleSong: !tooLong && meta.DurationSeconds > 0,
	}
}
