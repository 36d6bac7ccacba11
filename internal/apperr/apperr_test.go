// SPDX-License-Identifier: MIT

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInputMissing, http.StatusBadRequest},
		{KindInvalidInput, http.StatusBadRequest},
		{KindRecognitionFailed, http.StatusInternalServerError},
		{KindNoSearchResults, http.StatusInternalServerError},
		{KindResolutionFailed, http.StatusInternalServerError},
		{KindIOFailure, http.StatusInternalServerError},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindConnectionFailed, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := Wrap(KindResolutionFailed, "video.probe", "extraction failed", errors.New("exit status 1"))
	wrapped := fmt.Errorf("handler: %w", base)

	assert.Equal(t, KindResolutionFailed, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindResolutionFailed))
	assert.True(t, errors.Is(wrapped, Sentinel(KindResolutionFailed)))
	assert.False(t, errors.Is(wrapped, Sentinel(KindIOFailure)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "no audio uploaded", DetailOf(New(KindInputMissing, "audiobuf.take", "no audio uploaded")))
	assert.Equal(t, "search failed: quota", DetailOf(Wrap(KindResolutionFailed, "", "search failed", errors.New("quota"))))
	assert.Nil(t, Wrap(KindIOFailure, "x", "y", nil))
}

func TestParseKindRoundTrip(t *testing.T) {
	for k := KindInternal; k <= KindConnectionFailed; k++ {
		got, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("bogus")
	assert.False(t, ok)
}
