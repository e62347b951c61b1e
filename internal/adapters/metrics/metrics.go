// Package metrics records resolution and install metrics with Prometheus
// and exports them in the node_exporter textfile format.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
)

// Metrics implements ports.Metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	InstallsTotal   *prometheus.CounterVec
	InstallDuration *prometheus.HistogramVec
	ResolvesTotal   *prometheus.CounterVec
	ResolveSteps    prometheus.Histogram
}

// New creates and registers all metrics on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		InstallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundle_installs_total",
				Help: "Total number of gems processed by outcome",
			},
			[]string{"outcome"},
		),
		InstallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundle_install_duration_seconds",
				Help:    "Time spent materializing one gem",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		ResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundle_resolves_total",
				Help: "Total number of resolutions by path",
			},
			[]string{"path"},
		),
		ResolveSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bundle_resolve_steps",
				Help:    "Search steps taken by a full resolution",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
	}

	registry.MustRegister(m.InstallsTotal, m.InstallDuration, m.ResolvesTotal, m.ResolveSteps)
	return m
}

// ObserveInstall records the outcome of one gem.
func (m *Metrics) ObserveInstall(outcome ports.InstallOutcome, elapsed time.Duration) {
	m.InstallsTotal.WithLabelValues(string(outcome)).Inc()
	if outcome != ports.OutcomeSkipped {
		m.InstallDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
	}
}

// ObserveResolve records one resolution. Fast-path resolutions take no steps.
func (m *Metrics) ObserveResolve(fastPath bool, steps int) {
	if fastPath {
		m.ResolvesTotal.WithLabelValues("fast").Inc()
		return
	}
	m.ResolvesTotal.WithLabelValues("full").Inc()
	m.ResolveSteps.Observe(float64(steps))
}

// Flush writes every metric to path in the textfile format. An empty path
// does nothing.
func (m *Metrics) Flush(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create metrics directory"), "path", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write metrics"), "path", path)
	}
	return nil
}
