// Package metrics provides Prometheus metrics for the warble core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	EventsTotal     *prometheus.CounterVec
	CandidatesTotal *prometheus.CounterVec
	SkillRunsTotal  *prometheus.CounterVec
	ResponsesTotal  prometheus.Counter
	ResponseSeconds prometheus.Histogram
	ParserErrors    *prometheus.CounterVec
	ConnectorsUp    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warble_events_total",
				Help: "Inbound events by connector and event kind.",
			},
			[]string{"connector", "kind"},
		),
		CandidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warble_candidates_total",
				Help: "Skill candidates produced, by parser.",
			},
			[]string{"parser"},
		),
		SkillRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warble_skill_runs_total",
				Help: "Skill invocations by skill and outcome.",
			},
			[]string{"skill", "status"},
		),
		ResponsesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warble_responses_total",
				Help: "Events that received at least one response.",
			},
		),
		ResponseSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warble_response_seconds",
				Help:    "Latency from event creation to first response.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ParserErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warble_parser_errors_total",
				Help: "Parser failures by parser name.",
			},
			[]string{"parser"},
		),
		ConnectorsUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warble_connectors_up",
				Help: "Number of currently connected connectors.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.EventsTotal)
	reg.MustRegister(m.CandidatesTotal)
	reg.MustRegister(m.SkillRunsTotal)
	reg.MustRegister(m.ResponsesTotal)
	reg.MustRegister(m.ResponseSeconds)
	reg.MustRegister(m.ParserErrors)
	reg.MustRegister(m.ConnectorsUp)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvent counts an inbound event.
func (m *Metrics) RecordEvent(connector, kind string) {
	m.EventsTotal.WithLabelValues(connector, kind).Inc()
}

// RecordCandidates counts candidates from a parser.
func (m *Metrics) RecordCandidates(parser string, n int) {
	if n > 0 {
		m.CandidatesTotal.WithLabelValues(parser).Add(float64(n))
	}
}

// RecordSkillRun counts a skill invocation outcome.
func (m *Metrics) RecordSkillRun(skill, status string) {
	m.SkillRunsTotal.WithLabelValues(skill, status).Inc()
}

// RecordResponse counts a first response and its latency.
func (m *Metrics) RecordResponse(latency time.Duration) {
	m.ResponsesTotal.Inc()
	m.ResponseSeconds.Observe(latency.Seconds())
}

// RecordParserError counts a parser failure.
func (m *Metrics) RecordParserError(parser string) {
	m.ParserErrors.WithLabelValues(parser).Inc()
}
