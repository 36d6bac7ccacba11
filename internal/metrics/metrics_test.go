// SPDX-License-Identifier: MIT

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIncTempDeletion(t *testing.T) {
	before := testutil.ToFloat64(tempDeletions.WithLabelValues("superseded", "deleted"))
	IncTempDeletion("superseded", "deleted")
	assert.Equal(t, before+1, testutil.ToFloat64(tempDeletions.WithLabelValues("superseded", "deleted")))
}

func TestObserveUpstreamLabelsFailure(t *testing.T) {
	ObserveUpstream("whisper", "recognize", time.Now(), errors.New("boom"))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(upstreamDuration, "saytube_upstream_duration_seconds"), 1)
}

func TestSetTempFilesTracked(t *testing.T) {
	SetTempFilesTracked(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(tempFilesTracked))
	SetTempFilesTracked(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(tempFilesTracked))
}

func TestCircuitBreakerStateIsOneHot(t *testing.T) {
	SetCircuitBreakerState("search_test", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("search_test", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("search_test", "closed")))

	SetCircuitBreakerState("search_test", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("search_test", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("search_test", "closed")))
}

func TestRecordCircuitBreakerTrip(t *testing.T) {
	RecordCircuitBreakerTrip("search_test", "threshold_exceeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerTrips.WithLabelValues("search_test", "threshold_exceeded")))
}
