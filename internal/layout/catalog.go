package layout

import (
	"slices"
	"strings"

	"schemamap/internal/match"
)

// ExistingColumn is a column of a table the engine did not create.
type ExistingColumn struct {
	Name     string
	SQLType  string
	Nullable bool
}

// ExistingTable is a preexisting table as reported by store introspection.
type ExistingTable struct {
	Name    string
	Columns []ExistingColumn
}

// Catalog holds the preexisting tables ExistingTable classes may bind to.
type Catalog map[string]*ExistingTable

// NewCatalog indexes tables by lower-cased name.
func NewCatalog(tables ...*ExistingTable) Catalog {
	c := make(Catalog, len(tables))
	for _, t := range tables {
		c[strings.ToLower(t.Name)] = t
	}

	return c
}

// Lookup returns the named table, or nil.
func (c Catalog) Lookup(name string) *ExistingTable {
	return c[strings.ToLower(name)]
}

// Names returns the sorted table names.
func (c Catalog) Names() []string {
	out := make([]string, 0, len(c))
	for _, t := range c {
		out = append(out, t.Name)
	}

	slices.Sort(out)

	return out
}

// StorageTypeOfSQL maps a declared SQL column type to a storage type by affinity.
func StorageTypeOfSQL(sqlType string) StorageType {
	switch match.AffinityOf(sqlType) {
	case match.AffinityInteger:
		return StorageInteger
	case match.AffinityText:
		return StorageText
	case match.AffinityReal, match.AffinityNumeric:
		return StorageReal
	default:
		return StorageBlob
	}
}
