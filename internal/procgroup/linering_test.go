// SPDX-License-Identifier: MIT

package procgroup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRingKeepsLastLines(t *testing.T) {
	r := NewLineRing(3)
	for i := 1; i <= 5; i++ {
		_, _ = fmt.Fprintf(r, "line %d\n", i)
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, r.LastN(10))
	assert.Equal(t, []string{"line 5"}, r.LastN(1))
}

func TestLineRingJoinsPartialWrites(t *testing.T) {
	r := NewLineRing(5)
	_, _ = r.Write([]byte("ERROR: Unsup"))
	_, _ = r.Write([]byte("ported URL\nnext"))

	assert.Equal(t, []string{"ERROR: Unsupported URL", "next"}, r.LastN(5))
	assert.Equal(t, "ERROR: Unsupported URL\nnext", r.String())
}

func TestLineRingSkipsBlankLines(t *testing.T) {
	r := NewLineRing(2)
	_, _ = r.Write([]byte("\n\r\n  \nok\r\n"))
	assert.Equal(t, []string{"ok"}, r.LastN(2))
}

func TestLineRingDefaultLimit(t *testing.T) {
	r := NewLineRing(0)
	for i := 0; i < defaultRingLines+7; i++ {
		_, _ = fmt.Fprintf(r, "%d\n", i)
	}
	lines := r.LastN(-1)
	assert.Len(t, lines, defaultRingLines)
	assert.Equal(t, "7", lines[0])
}
