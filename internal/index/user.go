package index

import (
	"slices"
	"strings"

	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/match"
)

// userIndex compiles one DbIndexList entry of a class.
func (b *Builder) userIndex(c *ecschema.Class, ca *ecschema.DbIndexCA) error {
	subject := c.ID.String()

	if ca.Name == "" {
		return diagnostic.Newf(diagnostic.IndexDefinitionError, subject, "index without a name")
	}

	if len(ca.Properties) == 0 {
		return diagnostic.Newf(diagnostic.IndexDefinitionError, subject, "index %s lists no properties", ca.Name)
	}

	if ca.Where != "" && ca.Where != ecschema.WhereIndexedColumnsAreNotNull {
		return diagnostic.Newf(diagnostic.IndexDefinitionError, subject,
			"index %s has unsupported Where %q", ca.Name, ca.Where).
			WithSuggestions(match.Suggest(ca.Where, []string{ecschema.WhereIndexedColumnsAreNotNull}, 1))
	}

	cm := b.layout.ClassMap(c.ID)
	if cm == nil || !cm.IsMapped() {
		return diagnostic.Newf(diagnostic.IndexDefinitionError, subject,
			"index %s is declared on a class that is not mapped", ca.Name)
	}

	var (
		table   *layout.Table
		columns []string
	)

	for _, path := range ca.Properties {
		pm, err := b.indexedProperty(c, cm, ca.Name, path)
		if err != nil {
			return err
		}

		if table == nil {
			table = b.layout.Table(pm.Table)
		} else if !strings.EqualFold(table.Name, pm.Table) {
			return diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
				"index %s spans tables %s and %s", ca.Name, table.Name, pm.Table)
		}

		for _, col := range pm.Columns {
			if slices.Contains(columns, col) {
				return diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
					"index %s lists column %s twice", ca.Name, col)
			}

			columns = append(columns, col)
		}
	}

	switch {
	case table.IsPreexisting:
		return diagnostic.Newf(diagnostic.IndexDefinitionError, subject,
			"index %s targets preexisting table %s", ca.Name, table.Name)
	case table.IsVirtual:
		return diagnostic.Newf(diagnostic.IndexDefinitionError, subject,
			"index %s targets virtual table %s of an abstract class", ca.Name, table.Name)
	}

	ix := &layout.Index{
		Name:    ca.Name,
		Table:   table.Name,
		Unique:  ca.IsUnique,
		Columns: columns,
		Scope:   b.scope(c.ID, table),
		Owner:   subject,
	}

	if ca.Where == ecschema.WhereIndexedColumnsAreNotNull {
		ix.NotNullColumns = nullableColumns(table, columns...)
	}

	return b.put(ix)
}

// indexedProperty resolves an index property path to its property map. Only
// primitive values stored in columns can be indexed.
func (b *Builder) indexedProperty(c *ecschema.Class, cm *layout.ClassMap, name, path string) (*layout.PropertyMap, error) {
	subject := c.ID.String()

	parsed, err := ecschema.ParsePath(path)
	if err != nil {
		return nil, diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
			"index %s: %v", name, err)
	}

	owner := c.ID
	access := make([]string, 0, len(parsed.Segments))

	for i, seg := range parsed.Segments {
		ref, ok := b.graph.FindProperty(owner, seg.Name)
		if !ok {
			return nil, diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
				"index %s: %s has no property %s", name, owner, seg.Name).
				WithSuggestions(match.Suggest(seg.Name, b.propertyNames(owner), 3))
		}

		access = append(access, ref.Name)
		last := i == len(parsed.Segments)-1

		switch {
		case seg.IsArray || ref.Kind.IsArray():
			return nil, diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
				"index %s: %s is an array and is stored out of line", name, strings.Join(access, "."))
		case ref.Kind == ecschema.PropertyNavigation:
			return nil, diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
				"index %s: %s is a navigation property", name, ref.Name)
		case ref.Kind == ecschema.PropertyStruct && last:
			return nil, diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
				"index %s: %s is a struct, index its members instead", name, ref.Name)
		case ref.Kind == ecschema.PropertyStruct:
			owner = ref.StructType
		case !last:
			return nil, diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
				"index %s: %s is not a struct", name, ref.Name)
		}
	}

	pm := cm.Property(strings.Join(access, "."))
	if pm == nil || len(pm.Columns) == 0 {
		return nil, diagnostic.NewPropertyf(diagnostic.IndexDefinitionError, subject, path,
			"index %s: property has no column", name)
	}

	return pm, nil
}

func (b *Builder) propertyNames(id ecschema.ClassID) []string {
	refs := b.graph.Properties(id)
	out := make([]string, len(refs))

	for i, r := range refs {
		out[i] = r.Name
	}

	return out
}

// scope returns the numeric class ids an index on a shared table is limited
// to: the class and its descendants stored in the table. It is empty when
// those are the only classes in the table.
func (b *Builder) scope(id ecschema.ClassID, t *layout.Table) []int64 {
	cid := t.ClassIDColumn()
	if cid == nil || cid.Virtual {
		return nil
	}

	var (
		ids     []int64
		foreign bool
	)

	for _, owner := range t.OwningClasses {
		if owner != id && !b.graph.IsSubclassOf(owner, id) {
			foreign = true
			continue
		}

		if cm := b.layout.ClassMap(owner); cm != nil && cm.IsMapped() {
			ids = append(ids, cm.NumericID)
		}
	}

	if !foreign {
		return nil
	}

	slices.Sort(ids)

	return ids
}
