package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry aggregates the Prometheus collectors shared by the gateway, the
// LLM provider and the research pipeline.
type Telemetry struct {
	searches     *prometheus.CounterVec
	llmCalls     *prometheus.CounterVec
	pollAttempts prometheus.Counter
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// New registers all collectors on the supplied registerer. Tests pass a
// private prometheus.NewRegistry so parallel tests never collide.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospector_searches_total",
			Help: "Search-engine requests by engine and outcome.",
		}, []string{"engine", "outcome"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospector_llm_calls_total",
			Help: "LLM invocations by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		pollAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospector_snapshot_poll_attempts_total",
			Help: "Snapshot progress checks issued against the provider.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospector_runs_total",
			Help: "Completed research runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prospector_run_duration_seconds",
			Help:    "Wall-clock duration of a full research run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(t.searches, t.llmCalls, t.pollAttempts, t.runs, t.runDuration)
	return t
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordSearch counts one search-engine request.
func (t *Telemetry) RecordSearch(engine string, ok bool) {
	if t == nil {
		return
	}
	t.searches.WithLabelValues(engine, outcome(ok)).Inc()
}

// RecordLLMCall counts one model invocation for a pipeline stage.
func (t *Telemetry) RecordLLMCall(stage string, ok bool) {
	if t == nil {
		return
	}
	t.llmCalls.WithLabelValues(stage, outcome(ok)).Inc()
}

// RecordPollAttempt counts one snapshot progress check.
func (t *Telemetry) RecordPollAttempt() {
	if t == nil {
		return
	}
	t.pollAttempts.Inc()
}

// RecordRun counts a finished research run and observes its duration.
func (t *Telemetry) RecordRun(d time.Duration, ok bool) {
	if t == nil {
		return
	}
	t.runs.WithLabelValues(outcome(ok)).Inc()
	t.runDuration.Observe(d.Seconds())
}
