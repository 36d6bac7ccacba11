// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saytube_pipeline_stage_total",
		Help: "Pipeline stage executions by outcome",
	}, []string{"stage", "outcome"}) // stage=record|transcribe|search|probe|stream|download; outcome=success|failure|rejected

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saytube_upstream_duration_seconds",
		Help:    "Latency of calls to external collaborators",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"upstream", "op", "outcome"}) // upstream=whisper|youtube|ytdlp

	tempFilesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "saytube_tempmedia_tracked_files",
		Help: "Number of temp media files currently tracked",
	})

	tempDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saytube_tempmedia_deletions_total",
		Help: "Temp media deletions by trigger and result",
	}, []string{"trigger", "result"}) // trigger=superseded|scheduled|shutdown|orphan; result=deleted|missing|error|skipped

	procTerminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saytube_proc_terminate_total",
		Help: "Signals sent to child process groups by result",
	}, []string{"signal", "result"})
)

// IncStage counts one execution of a pipeline stage.
func IncStage(stage, outcome string) {
	stageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// ObserveUpstream records the latency of an upstream call.
func ObserveUpstream(upstream, op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	upstreamDuration.WithLabelValues(upstream, op, outcome).Observe(time.Since(start).Seconds())
}

// SetTempFilesTracked sets the tracked-files gauge.
func SetTempFilesTracked(n int) { tempFilesTracked.Set(float64(n)) }

// IncTempDeletion counts a deletion attempt.
func IncTempDeletion(trigger, result string) {
	tempDeletions.WithLabelValues(trigger, result).Inc()
}

// IncProcTerminate counts a signal sent to a process group.
func IncProcTerminate(signal, result string) {
	procTerminations.WithLabelValues(signal, result).Inc()
}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "saytube_circuit_breaker_state",
		Help: "Circuit breaker state by component (1 for the active state)",
	}, []string{"component", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saytube_circuit_breaker_trips_total",
		Help: "Transitions of a circuit breaker to open",
	}, []string{"component", "reason"})
)

// SetCircuitBreakerState marks state as the active one for component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range []string{"closed", "half-open", "open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(component, s).Set(v)
	}
}

// RecordCircuitBreakerTrip counts a breaker opening.
func RecordCircuitBreakerTrip(component, reason string) {
	breakerTrips.WithLabelValues(component, reason).Inc()
}
