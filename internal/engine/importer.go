package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schemamap/internal/ddl"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/logging"
	"schemamap/internal/metrics"
)

// Import outcomes reported to metrics.
const (
	StatusApplied   = "applied"
	StatusUnchanged = "unchanged"
	StatusPlanned   = "planned"
	StatusFailed    = "failed"
)

// Snapshot is one applied import: the DDL it ran and the layout it leaves.
type Snapshot struct {
	ImportID   uuid.UUID
	Schemas    []string
	CreatedAt  time.Time
	Layout     *layout.Layout
	Delta      *layout.Delta
	Statements []string
}

// Store persists layouts and applies DDL. Apply must run the statements and
// record the snapshot atomically where the database allows it.
type Store interface {
	Dialect() ddl.Dialect
	LoadLayout(ctx context.Context) (*layout.Layout, error)
	Catalog(ctx context.Context) (layout.Catalog, error)
	Apply(ctx context.Context, snap *Snapshot) error
}

// Plan is a mapped import with its DDL, not yet applied.
type Plan struct {
	*Result
	ImportID   uuid.UUID
	Schemas    []string
	Statements []string
}

// Importer maps schemas against a store's current layout and applies the result.
type Importer struct {
	store   Store
	mapper  *Mapper
	metrics *metrics.Recorder
}

// NewImporter creates an Importer. rec may be nil.
func NewImporter(store Store, opts Options, rec *metrics.Recorder) *Importer {
	return &Importer{
		store:   store,
		mapper:  NewMapper(opts, rec),
		metrics: rec,
	}
}

// Plan maps graph on top of the stored layout and renders the DDL without
// touching the database.
func (im *Importer) Plan(ctx context.Context, graph *ecschema.Graph) (*Plan, error) {
	importID := uuid.New()
	log := logging.WithImport(importID.String())

	prior, err := im.store.LoadLayout(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading layout: %w", err)
	}

	catalog, err := im.store.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	res, err := im.mapper.Map(graph, prior, catalog)
	if err != nil {
		log.Error("mapping failed", "error", err)
		return nil, err
	}

	dialect := im.store.Dialect()

	stmts, err := ddl.Generate(dialect, res.Delta, res.Layout)
	if err != nil {
		return nil, err
	}

	if dialect.Name() == ddl.NameMySQL {
		if err := ddl.ValidateMySQL(stmts); err != nil {
			return nil, fmt.Errorf("generated DDL: %w", err)
		}
	}

	schemas := schemaNames(graph)

	log.Info("import planned",
		"schemas", schemas,
		"statements", len(stmts),
		"warnings", len(res.Diagnostics.Warnings))

	return &Plan{
		Result:     res,
		ImportID:   importID,
		Schemas:    schemas,
		Statements: stmts,
	}, nil
}

// DryRun plans an import and counts it as planned.
func (im *Importer) DryRun(ctx context.Context, graph *ecschema.Graph) (*Plan, error) {
	p, err := im.Plan(ctx, graph)
	im.finish(p, err, StatusPlanned)

	return p, err
}

// Import plans and applies an import. An import that changes nothing is not
// recorded.
func (im *Importer) Import(ctx context.Context, graph *ecschema.Graph) (*Plan, error) {
	p, err := im.Plan(ctx, graph)
	if err != nil {
		im.finish(nil, err, "")
		return nil, err
	}

	if p.Delta.IsEmpty() {
		logging.WithImport(p.ImportID.String()).Info("layout unchanged")
		im.finish(p, nil, StatusUnchanged)

		return p, nil
	}

	err = im.store.Apply(ctx, &Snapshot{
		ImportID:   p.ImportID,
		Schemas:    p.Schemas,
		CreatedAt:  time.Now().UTC(),
		Layout:     p.Layout,
		Delta:      p.Delta,
		Statements: p.Statements,
	})
	if err != nil {
		err = fmt.Errorf("applying import %s: %w", p.ImportID, err)
		im.finish(nil, err, "")

		return nil, err
	}

	logging.WithImport(p.ImportID.String()).Info("import applied",
		"tables", len(p.Delta.NewTables),
		"columns", len(p.Delta.NewColumns),
		"indexes", len(p.Delta.NewIndexes)+len(p.Delta.ChangedIndexes))
	im.finish(p, nil, StatusApplied)

	return p, nil
}

func schemaNames(graph *ecschema.Graph) []string {
	schemas := graph.Schemas()

	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}

	return names
}

func (im *Importer) finish(p *Plan, err error, status string) {
	if im.metrics == nil {
		return
	}

	if err != nil {
		im.metrics.ImportFinished(StatusFailed)
		return
	}

	im.metrics.ImportFinished(status)

	if status == StatusApplied {
		im.metrics.RecordDelta(p.Delta)
	}
}
