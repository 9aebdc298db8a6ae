// Package metrics exports scan results in the Prometheus text format, for
// node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ja7ad/procs-need-restart/pkg/restart"
)

// Recorder holds the gauges of one scan in a private registry.
type Recorder struct {
	reg *prometheus.Registry

	stale    prometheus.Gauge
	scanned  prometheus.Gauge
	skipped  prometheus.Gauge
	failed   prometheus.Gauge
	lastScan prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		stale: f.NewGauge(prometheus.GaugeOpts{
			Name: "procs_need_restart_processes",
			Help: "Number of processes running deleted or replaced files",
		}),
		scanned: f.NewGauge(prometheus.GaugeOpts{
			Name: "procs_need_restart_scanned_processes",
			Help: "Number of processes inspected by the last scan",
		}),
		skipped: f.NewGauge(prometheus.GaugeOpts{
			Name: "procs_need_restart_skipped_processes",
			Help: "Number of kernel threads skipped by the last scan",
		}),
		failed: f.NewGauge(prometheus.GaugeOpts{
			Name: "procs_need_restart_failed_processes",
			Help: "Number of processes that could not be inspected",
		}),
		lastScan: f.NewGauge(prometheus.GaugeOpts{
			Name: "procs_need_restart_last_scan_timestamp_seconds",
			Help: "Unix time the last scan finished",
		}),
	}
}

// Observe sets the gauges from a finished scan.
func (r *Recorder) Observe(sum restart.Summary, at time.Time) {
	r.stale.Set(float64(sum.Stale))
	r.scanned.Set(float64(sum.Scanned))
	r.skipped.Set(float64(sum.Skipped))
	r.failed.Set(float64(sum.Failed))
	r.lastScan.Set(float64(at.UnixNano()) / 1e9)
}

// Gatherer exposes the registry, e.g. for promhttp or tests.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile atomically replaces path with the current values.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
