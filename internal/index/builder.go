package index

import (
	"strings"

	"schemamap/internal/common"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/strategy"
)

// Builder derives the mandatory indexes of a layout and compiles the
// DbIndexList declarations of the graph.
type Builder struct {
	graph  *ecschema.Graph
	res    *strategy.Resolution
	layout *layout.Layout

	// built maps lowercased names of indexes produced by this run to their owner.
	built map[string]string
	diags diagnostic.Diagnostics
}

// NewBuilder creates a Builder over the working layout, after allocation and
// relationship mapping have run.
func NewBuilder(graph *ecschema.Graph, res *strategy.Resolution, working *layout.Layout) *Builder {
	return &Builder{
		graph:  graph,
		res:    res,
		layout: working,
		built:  make(map[string]string),
	}
}

// Diagnostics returns the warnings collected so far.
func (b *Builder) Diagnostics() diagnostic.Diagnostics {
	return b.diags
}

// Build adds every index to the layout. Indexes persisted by an earlier
// import are updated in place; a changed definition surfaces as an
// IncrementalLayoutViolation when the layout is diffed.
func (b *Builder) Build() error {
	if err := b.classIDIndexes(); err != nil {
		return err
	}

	if err := b.relationshipIndexes(); err != nil {
		return err
	}

	for _, c := range b.graph.TopologicalOrder() {
		for i := range c.DbIndexes {
			if err := b.userIndex(c, &c.DbIndexes[i]); err != nil {
				return err
			}
		}
	}

	return nil
}

// put registers an index, rejecting names already used by another owner.
func (b *Builder) put(ix *layout.Index) error {
	key := strings.ToLower(ix.Name)

	if owner, ok := b.built[key]; ok {
		return diagnostic.Newf(diagnostic.IndexDefinitionError, ix.Owner,
			"index name %s is already used by %s", ix.Name, owner)
	}

	b.built[key] = ix.Owner

	existing := b.layout.Index(ix.Name)
	if existing == nil {
		b.layout.AddIndex(ix)
		return nil
	}

	if existing.Owner != ix.Owner {
		return diagnostic.Newf(diagnostic.IndexDefinitionError, ix.Owner,
			"index name %s is already used by %s", ix.Name, existing.Owner)
	}

	*existing = *ix

	return nil
}

// indexable reports whether DDL can create indexes on the table.
func indexable(t *layout.Table) bool {
	return t != nil && !t.IsVirtual && !t.IsPreexisting
}

func indexName(parts ...string) string {
	return strings.Join(parts, "_")
}

// relationshipName is the table-style name of a relationship class used in
// its index names.
func (b *Builder) relationshipName(id ecschema.ClassID) string {
	return common.JoinName(b.graph.SchemaOf(id).Prefix(), id.Name)
}
