// Package metrics records import statistics with Prometheus collectors.
//
// The collectors live on a private registry; batch runs write them to a node
// exporter textfile instead of serving them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"schemamap/internal/diagnostic"
	"schemamap/internal/layout"
)

// Recorder holds the import collectors.
type Recorder struct {
	registry *prometheus.Registry

	ImportsTotal   *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	LayoutChanges  *prometheus.CounterVec
	WarningsTotal  *prometheus.CounterVec
	PoolOverflow   *prometheus.GaugeVec
	SharedPoolSize *prometheus.GaugeVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ImportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemamap_imports_total",
				Help: "Total number of schema imports",
			},
			[]string{"status"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schemamap_stage_duration_seconds",
				Help:    "Duration of each mapping stage in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"stage"},
		),
		LayoutChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemamap_layout_changes_total",
				Help: "Layout entries added by imports",
			},
			[]string{"kind"},
		),
		WarningsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemamap_warnings_total",
				Help: "Mapping warnings by code",
			},
			[]string{"code"},
		),
		PoolOverflow: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "schemamap_shared_pool_overflow_columns",
				Help: "Shared columns allocated beyond the declared SharedColumnCount",
			},
			[]string{"table"},
		),
		SharedPoolSize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "schemamap_shared_pool_columns",
				Help: "Materialized shared columns per table",
			},
			[]string{"table"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage records how long a pipeline stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ImportFinished counts an import by outcome: "applied", "unchanged", "planned" or "failed".
func (r *Recorder) ImportFinished(status string) {
	r.ImportsTotal.WithLabelValues(status).Inc()
}

// RecordDelta counts the entries of a delta and updates the pool gauges.
func (r *Recorder) RecordDelta(d *layout.Delta) {
	r.LayoutChanges.WithLabelValues("table").Add(float64(len(d.NewTables)))
	r.LayoutChanges.WithLabelValues("column").Add(float64(len(d.NewColumns)))
	r.LayoutChanges.WithLabelValues("index").Add(float64(len(d.NewIndexes) + len(d.ChangedIndexes)))
	r.LayoutChanges.WithLabelValues("class").Add(float64(len(d.NewClassMaps)))
	r.LayoutChanges.WithLabelValues("relationship").Add(float64(len(d.NewRelationships)))

	for _, p := range d.ChangedPools {
		r.SharedPoolSize.WithLabelValues(p.Table).Set(float64(len(p.Columns)))
		r.PoolOverflow.WithLabelValues(p.Table).Set(float64(p.Overflow()))
	}
}

// RecordWarnings counts warnings by code.
func (r *Recorder) RecordWarnings(diags diagnostic.Diagnostics) {
	for _, w := range diags.Warnings {
		r.WarningsTotal.WithLabelValues(w.Code).Inc()
	}
}

// WriteTextfile writes the current values in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
