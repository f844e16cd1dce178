// Package metrics exposes Prometheus counters for the helper's core paths.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters recorded across the message and scheduling paths.
type Metrics struct {
	registry prometheus.Registerer

	messagesTotal  *prometheus.CounterVec
	toolExecutions *prometheus.CounterVec
	llmCalls       *prometheus.CounterVec
	llmDuration    prometheus.Histogram
	parseFallbacks *prometheus.CounterVec
	jobsFired      prometheus.Counter
	jobsDropped    prometheus.Counter
	eventsActive   prometheus.Gauge
}

// New creates and registers the helper metrics. A nil registerer uses the
// process default.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of processed inbound messages",
			},
			[]string{"source"},
		),
		toolExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_executions_total",
				Help:      "Total number of tool executions",
			},
			[]string{"tool", "status"},
		),
		llmCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_calls_total",
				Help:      "Total number of LLM calls",
			},
			[]string{"status"},
		),
		llmDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_call_duration_seconds",
				Help:      "Duration of LLM calls",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		parseFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_fallbacks_total",
				Help:      "Tool call extractions by parser stage",
			},
			[]string{"stage"},
		),
		jobsFired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_fired_total",
				Help:      "Total number of scheduled job firings",
			},
		),
		jobsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_dropped_total",
				Help:      "Job firings dropped because the fires channel was full",
			},
		),
		eventsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "recurring_events_active",
				Help:      "Number of recurring events currently scheduled",
			},
		),
	}

	reg.MustRegister(
		m.messagesTotal,
		m.toolExecutions,
		m.llmCalls,
		m.llmDuration,
		m.parseFallbacks,
		m.jobsFired,
		m.jobsDropped,
		m.eventsActive,
	)

	return m
}

// RecordMessage counts one inbound message by source (telegram, schedule).
func (m *Metrics) RecordMessage(source string) {
	m.messagesTotal.WithLabelValues(source).Inc()
}

// RecordToolExecution counts one tool execution result.
func (m *Metrics) RecordToolExecution(tool, status string) {
	m.toolExecutions.WithLabelValues(tool, status).Inc()
}

// RecordLLMCall counts one LLM call and its duration.
func (m *Metrics) RecordLLMCall(status string, duration time.Duration) {
	m.llmCalls.WithLabelValues(status).Inc()
	m.llmDuration.Observe(duration.Seconds())
}

// RecordParseStage counts which parser stage produced the invocations.
func (m *Metrics) RecordParseStage(stage string) {
	m.parseFallbacks.WithLabelValues(stage).Inc()
}

// RecordJobFired counts one scheduled job firing.
func (m *Metrics) RecordJobFired() {
	m.jobsFired.Inc()
}

// RecordJobDropped counts one firing dropped on a full channel.
func (m *Metrics) RecordJobDropped() {
	m.jobsDropped.Inc()
}

// SetActiveEvents records the current number of scheduled recurring events.
func (m *Metrics) SetActiveEvents(n int) {
	m.eventsActive.Set(float64(n))
}

// Serve starts an HTTP listener exposing /metrics until the context is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
