package layout

import (
	"slices"

	"schemamap/internal/diagnostic"
)

// ColumnAddition is a column appended to an existing table.
type ColumnAddition struct {
	Table  string  `yaml:"table"`
	Column *Column `yaml:"column"`
}

// Delta is everything an import adds to a prior layout.
type Delta struct {
	NewTables  []*Table         `yaml:"newTables,omitempty"`
	NewColumns []ColumnAddition `yaml:"newColumns,omitempty"`
	NewIndexes []*Index         `yaml:"newIndexes,omitempty"`
	// ChangedIndexes are recreated because their class id scope grew.
	ChangedIndexes   []*Index               `yaml:"changedIndexes,omitempty"`
	NewClassMaps     []*ClassMap            `yaml:"newClassMaps,omitempty"`
	ChangedClassMaps []*ClassMap            `yaml:"changedClassMaps,omitempty"`
	NewRelationships []*RelationshipMapping `yaml:"newRelationships,omitempty"`
	ChangedPools     []*SharedPool          `yaml:"changedPools,omitempty"`
}

// IsEmpty reports whether the import changes nothing.
func (d *Delta) IsEmpty() bool {
	return len(d.NewTables) == 0 &&
		len(d.NewColumns) == 0 &&
		len(d.NewIndexes) == 0 &&
		len(d.ChangedIndexes) == 0 &&
		len(d.NewClassMaps) == 0 &&
		len(d.ChangedClassMaps) == 0 &&
		len(d.NewRelationships) == 0 &&
		len(d.ChangedPools) == 0
}

// DDLChanges counts the entries that require DDL.
func (d *Delta) DDLChanges() int {
	n := len(d.NewColumns) + len(d.NewIndexes) + len(d.ChangedIndexes)

	for _, t := range d.NewTables {
		if !t.IsVirtual && !t.IsPreexisting {
			n++
		}
	}

	return n
}

// Diff computes the delta from prior to next. Anything present in prior must
// survive unchanged in next; otherwise an IncrementalLayoutViolation is returned.
func Diff(prior, next *Layout) (*Delta, error) {
	d := &Delta{}

	if err := diffTables(prior, next, d); err != nil {
		return nil, err
	}

	if err := diffClassMaps(prior, next, d); err != nil {
		return nil, err
	}

	for _, r := range prior.Relationships {
		cur := next.Relationship(r.Relationship)
		if cur == nil {
			return nil, diagnostic.Newf(diagnostic.IncrementalLayoutViolation, r.Relationship.String(),
				"relationship mapping was removed")
		}

		if !cur.Extends(r) {
			return nil, diagnostic.Newf(diagnostic.IncrementalLayoutViolation, r.Relationship.String(),
				"relationship mapping changed from %s", r.Kind)
		}
	}

	for _, r := range next.Relationships {
		if prior.Relationship(r.Relationship) == nil {
			d.NewRelationships = append(d.NewRelationships, r)
		}
	}

	if err := diffIndexes(prior, next, d); err != nil {
		return nil, err
	}

	for _, p := range next.Pools {
		old := prior.Pool(p.Table)
		if old == nil || old.Capacity != p.Capacity || old.Declared != p.Declared || !slices.Equal(old.Columns, p.Columns) {
			d.ChangedPools = append(d.ChangedPools, p)
		}
	}

	return d, nil
}

func diffTables(prior, next *Layout, d *Delta) error {
	for _, t := range prior.Tables {
		cur := next.Table(t.Name)
		if cur == nil {
			return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, t.Name, "table was removed")
		}

		if len(cur.Columns) < len(t.Columns) {
			return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, t.Name, "columns were removed")
		}

		for i, c := range t.Columns {
			nc := cur.Columns[i]
			if nc.Name != c.Name || nc.Type != c.Type || nc.Kind != c.Kind || nc.Virtual != c.Virtual {
				return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, t.Name,
					"column %s at position %d was changed", c.Name, c.Position)
			}
		}

		for _, c := range cur.Columns[len(t.Columns):] {
			if !c.Virtual {
				d.NewColumns = append(d.NewColumns, ColumnAddition{Table: cur.Name, Column: c})
			}
		}
	}

	for _, t := range next.Tables {
		if prior.Table(t.Name) == nil {
			d.NewTables = append(d.NewTables, t)
		}
	}

	return nil
}

func diffClassMaps(prior, next *Layout, d *Delta) error {
	for _, cm := range prior.ClassMaps {
		cur := next.ClassMap(cm.Class)
		if cur == nil {
			return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, cm.Class.String(), "class mapping was removed")
		}

		if cur.Strategy != cm.Strategy || cur.Table != cm.Table || cur.NumericID != cm.NumericID {
			return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, cm.Class.String(),
				"class mapping changed from %s(%s)", cm.Strategy, cm.Table)
		}

		for _, p := range cm.Properties {
			np := cur.Property(p.AccessString)
			if np == nil {
				return diagnostic.NewPropertyf(diagnostic.IncrementalLayoutViolation, cm.Class.String(),
					p.AccessString, "property mapping was removed")
			}

			if np.Type != p.Type || np.Table != p.Table || !slices.Equal(np.Columns, p.Columns) {
				return diagnostic.NewPropertyf(diagnostic.IncrementalLayoutViolation, cm.Class.String(),
					p.AccessString, "property mapping changed")
			}
		}

		if len(cur.Properties) > len(cm.Properties) {
			d.ChangedClassMaps = append(d.ChangedClassMaps, cur)
		}
	}

	for _, cm := range next.ClassMaps {
		if prior.ClassMap(cm.Class) == nil {
			d.NewClassMaps = append(d.NewClassMaps, cm)
		}
	}

	return nil
}

func diffIndexes(prior, next *Layout, d *Delta) error {
	for _, ix := range prior.Indexes {
		cur := next.Index(ix.Name)
		if cur == nil {
			return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, ix.Name, "index was removed")
		}

		if !cur.SameDefinition(ix) {
			return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, ix.Name, "index definition changed")
		}

		if !slices.Equal(cur.Scope, ix.Scope) || !slices.Equal(cur.NotNullColumns, ix.NotNullColumns) {
			d.ChangedIndexes = append(d.ChangedIndexes, cur)
		}
	}

	for _, ix := range next.Indexes {
		if prior.Index(ix.Name) == nil {
			d.NewIndexes = append(d.NewIndexes, ix)
		}
	}

	return nil
}
