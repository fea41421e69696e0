// Package metrics defines the Prometheus collectors for the submission
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	StageInvocationsTotal *prometheus.CounterVec
	StageDuration         *prometheus.HistogramVec
	ConditionsTotal       *prometheus.CounterVec
	IntakeUploadsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers the pipeline metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		StageInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_invocations_total",
				Help: "Stage invocations by stage and outcome (advanced, halted, noop, retry).",
			},
			[]string{"stage", "outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Stage invocation latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		ConditionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "validation_conditions_total",
				Help: "Validation conditions raised by category and code.",
			},
			[]string{"category", "code"},
		),
		IntakeUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_uploads_total",
				Help: "Uploads received at intake by category and parse result.",
			},
			[]string{"category", "result"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.StageInvocationsTotal,
		m.StageDuration,
		m.ConditionsTotal,
		m.IntakeUploadsTotal,
	)
	return m
}

// Handler returns the scrape handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records one stage invocation.
func (m *Metrics) ObserveStage(stage string, outcome string, elapsed time.Duration) {
	m.StageInvocationsTotal.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// Serve runs a scrape endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Default().Error("metrics server shutdown", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
