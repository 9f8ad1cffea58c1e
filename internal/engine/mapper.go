package engine

import (
	"time"

	"schemamap/internal/allocate"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/index"
	"schemamap/internal/layout"
	"schemamap/internal/logging"
	"schemamap/internal/metrics"
	"schemamap/internal/relmap"
	"schemamap/internal/strategy"
)

// Options tune the mapping pipeline.
type Options struct {
	// LinkTableWithoutNavigation maps foreign-key-capable relationships
	// without a navigation property to link tables.
	LinkTableWithoutNavigation bool
}

// Result is the outcome of one mapping run.
type Result struct {
	// Layout is the complete layout after the import.
	Layout *layout.Layout
	// Delta is what the import adds to the prior layout.
	Delta       *layout.Delta
	Resolution  *strategy.Resolution
	Diagnostics diagnostic.Diagnostics
}

// StrategyInfo returns how a class is stored: strategy, tables and key columns.
func (r *Result) StrategyInfo(id ecschema.ClassID) (*layout.ClassMap, bool) {
	cm := r.Layout.ClassMap(id)

	return cm, cm != nil
}

// Mapper runs the pure mapping pipeline: resolve, allocate, map
// relationships, build indexes and diff against the prior layout. It
// performs no I/O.
type Mapper struct {
	opts    Options
	metrics *metrics.Recorder
}

// NewMapper creates a Mapper. rec may be nil.
func NewMapper(opts Options, rec *metrics.Recorder) *Mapper {
	return &Mapper{opts: opts, metrics: rec}
}

// Map maps graph on top of prior. A nil prior is an empty store. The prior
// layout is never modified; on error no partial result is returned.
func (m *Mapper) Map(graph *ecschema.Graph, prior *layout.Layout, catalog layout.Catalog) (*Result, error) {
	if prior == nil {
		prior = layout.New()
	}

	var (
		res   *strategy.Resolution
		diags diagnostic.Diagnostics
		err   error
	)

	err = m.stage("resolve", func() error {
		res, err = strategy.NewResolver(graph, prior).Resolve()
		return err
	})
	if err != nil {
		return nil, err
	}

	working := prior.Clone()
	alloc := allocate.NewAllocator(graph, res, working, catalog)

	if err := m.stage("allocate", alloc.Allocate); err != nil {
		return nil, err
	}

	rels := relmap.NewMapper(graph, res, alloc, relmap.Options{
		LinkTableWithoutNavigation: m.opts.LinkTableWithoutNavigation,
	})

	if err := m.stage("relationships", rels.MapAll); err != nil {
		return nil, err
	}

	indexes := index.NewBuilder(graph, res, working)

	if err := m.stage("indexes", indexes.Build); err != nil {
		return nil, err
	}

	var delta *layout.Delta

	err = m.stage("diff", func() error {
		delta, err = layout.Diff(prior, working)
		return err
	})
	if err != nil {
		return nil, err
	}

	diags.Merge(alloc.Diagnostics())
	diags.Merge(rels.Diagnostics())
	diags.Merge(indexes.Diagnostics())

	for _, w := range diags.Warnings {
		logging.WithClass(w.Subject).Warn(w.Message, "code", w.Code, "property", w.Property)
	}

	for _, n := range diags.Infos {
		logging.WithClass(n.Subject).Debug(n.Message, "code", n.Code, "property", n.Property)
	}

	if m.metrics != nil {
		m.metrics.RecordWarnings(diags)
	}

	return &Result{Layout: working, Delta: delta, Resolution: res, Diagnostics: diags}, nil
}

func (m *Mapper) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if m.metrics != nil {
		m.metrics.ObserveStage(name, elapsed)
	}

	log := logging.WithStage(name)
	if err != nil {
		log.Debug("stage failed", "error", err, "duration", elapsed)
		return err
	}

	log.Debug("stage done", "duration", elapsed)

	return nil
}
