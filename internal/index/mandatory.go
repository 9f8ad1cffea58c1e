package index

import (
	"schemamap/internal/common"
	"schemamap/internal/layout"
)

// classIDIndexes indexes the class id column of every table storing more
// than one class.
func (b *Builder) classIDIndexes() error {
	for _, t := range b.layout.Tables {
		cid := t.ClassIDColumn()
		if !indexable(t) || cid == nil || cid.Virtual {
			continue
		}

		err := b.put(&layout.Index{
			Name:      indexName("ix", t.Name, "ecclassid"),
			Table:     t.Name,
			Columns:   []string{cid.Name},
			Mandatory: true,
			Owner:     t.Name,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// relationshipIndexes indexes foreign key columns and link table ends.
// Relationship subclasses share their root's mapping and its indexes.
func (b *Builder) relationshipIndexes() error {
	for _, m := range b.layout.Relationships {
		if s := b.res.Get(m.Relationship); s != nil && s.Root != m.Relationship {
			continue
		}

		var err error

		switch m.Kind {
		case layout.MappingForeignKey:
			err = b.foreignKeyIndexes(m)
		case layout.MappingLinkTable:
			err = b.linkTableIndexes(m)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) foreignKeyIndexes(m *layout.RelationshipMapping) error {
	if m.UsesInstanceID {
		return nil
	}

	ri := b.graph.Class(m.Relationship).Relationship
	rel := b.relationshipName(m.Relationship)
	owner := m.Relationship.String()
	unique := ri.Constraint(m.HolderEnd).Multiplicity.Upper == 1

	for _, name := range m.HolderTables {
		t := b.layout.Table(name)
		if !indexable(t) {
			continue
		}

		err := b.put(&layout.Index{
			Name:           indexName("ix", t.Name, "fk", rel, m.HolderEnd.String()),
			Table:          t.Name,
			Unique:         unique,
			Columns:        []string{m.Column},
			NotNullColumns: nullableColumns(t, m.Column),
			Mandatory:      true,
			Owner:          owner,
		})
		if err != nil {
			return err
		}

		if m.RelClassIDColumn == "" {
			continue
		}

		err = b.put(&layout.Index{
			Name:           indexName("ix", t.Name, "relecclassid", rel),
			Table:          t.Name,
			Columns:        []string{m.RelClassIDColumn},
			NotNullColumns: nullableColumns(t, m.RelClassIDColumn),
			Mandatory:      true,
			Owner:          owner,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) linkTableIndexes(m *layout.RelationshipMapping) error {
	t := b.layout.Table(m.Table)
	owner := m.Relationship.String()

	indexes := []*layout.Index{
		{Name: indexName("ix", t.Name, "source"), Columns: []string{m.SourceColumn}},
		{Name: indexName("ix", t.Name, "target"), Columns: []string{m.TargetColumn}},
	}

	if !m.AllowDuplicates {
		indexes = append(indexes, &layout.Index{
			Name:    indexName("uix", t.Name, "sourcetargetclassid"),
			Unique:  true,
			Columns: []string{m.SourceColumn, m.TargetColumn, common.ClassIDColumn},
		})
	}

	for _, ix := range indexes {
		ix.Table = t.Name
		ix.Mandatory = true
		ix.Owner = owner

		if err := b.put(ix); err != nil {
			return err
		}
	}

	return nil
}

// nullableColumns returns the named columns that allow NULL; a partial index
// over them skips rows without a value.
func nullableColumns(t *layout.Table, names ...string) []string {
	var out []string

	for _, n := range names {
		if c := t.Column(n); c != nil && c.Nullable {
			out = append(out, c.Name)
		}
	}

	return out
}
