// Package telemetry tracks request and stage metrics for the workflow.
package telemetry

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ebahrami/underthreat/config"
)

// Telemetry provides monitoring for workflow runs. Each instance owns its
// registry so tests can create as many as they need.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry

	requestsTotal   prometheus.Counter
	requestsFailed  prometheus.Counter
	requestDuration prometheus.Histogram
	stageRuns       *prometheus.CounterVec
	stageErrors     *prometheus.CounterVec
}

// NewTelemetry creates a telemetry instance with all collectors registered.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	reg := prometheus.NewRegistry()

	t := &Telemetry{
		config:   cfg,
		logger:   log.New(os.Stdout, "[TELEMETRY] ", log.LstdFlags),
		registry: reg,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "underthreat_requests_total",
			Help: "Total workflow runs started.",
		}),
		requestsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "underthreat_requests_failed_total",
			Help: "Workflow runs rejected before any stage executed.",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "underthreat_request_duration_seconds",
			Help:    "End-to-end workflow run duration.",
			Buckets: prometheus.DefBuckets,
		}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "underthreat_stage_runs_total",
			Help: "Stage executions by stage id.",
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "underthreat_stage_errors_total",
			Help: "Stage executions that appended errors, by stage id.",
		}, []string{"stage"}),
	}

	reg.MustRegister(t.requestsTotal, t.requestsFailed, t.requestDuration, t.stageRuns, t.stageErrors)
	return t
}

// RecordRequest records one completed (or rejected) workflow run.
func (t *Telemetry) RecordRequest(d time.Duration, failed bool) {
	t.requestsTotal.Inc()
	if failed {
		t.requestsFailed.Inc()
		return
	}
	t.requestDuration.Observe(d.Seconds())
}

// RecordStage records one stage execution.
func (t *Telemetry) RecordStage(stage string, errored bool) {
	t.stageRuns.WithLabelValues(stage).Inc()
	if errored {
		t.stageErrors.WithLabelValues(stage).Inc()
	}
}

// Handler exposes the metrics endpoint for this instance's registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
