package layout

import (
	"fmt"
	"slices"
	"strings"

	"schemamap/internal/common"
	"schemamap/internal/ecschema"
)

// StorageType is the column storage class.
type StorageType int

const (
	// StorageAny is used by shared columns, which hold values of any type.
	StorageAny StorageType = iota
	StorageBlob
	StorageBoolean
	StorageInteger
	StorageReal
	StorageText
	StorageTimestamp
)

// String returns the storage type name.
func (t StorageType) String() string {
	switch t {
	case StorageAny:
		return "any"
	case StorageBlob:
		return "blob"
	case StorageBoolean:
		return "boolean"
	case StorageInteger:
		return "integer"
	case StorageReal:
		return "real"
	case StorageText:
		return "text"
	case StorageTimestamp:
		return "timestamp"
	default:
		return common.UnknownStr
	}
}

// SQLiteType returns the declared SQLite column type.
func (t StorageType) SQLiteType() string {
	switch t {
	case StorageBlob:
		return "BLOB"
	case StorageBoolean:
		return "BOOLEAN"
	case StorageInteger:
		return "INTEGER"
	case StorageReal:
		return "REAL"
	case StorageText:
		return "TEXT"
	case StorageTimestamp:
		return "TIMESTAMP"
	default:
		return ""
	}
}

// StorageTypeOf maps a primitive type to its column storage type.
// Points are stored one REAL column per coordinate.
func StorageTypeOf(t ecschema.PrimitiveType) StorageType {
	switch t {
	case ecschema.TypeBoolean:
		return StorageBoolean
	case ecschema.TypeDateTime:
		return StorageTimestamp
	case ecschema.TypeDouble, ecschema.TypePoint2d, ecschema.TypePoint3d:
		return StorageReal
	case ecschema.TypeInteger, ecschema.TypeLong:
		return StorageInteger
	case ecschema.TypeString:
		return StorageText
	default:
		return StorageBlob
	}
}

// Collation is a text collation of a dedicated column.
type Collation int

const (
	CollationUnset Collation = iota
	CollationBinary
	CollationNoCase
	CollationRTrim
)

// String returns the collation name.
func (c Collation) String() string {
	switch c {
	case CollationUnset:
		return "Unset"
	case CollationBinary:
		return "Binary"
	case CollationNoCase:
		return "NoCase"
	case CollationRTrim:
		return "RTrim"
	default:
		return common.UnknownStr
	}
}

// ParseCollation parses a collation name case-insensitively. An empty string is CollationUnset.
func ParseCollation(s string) (Collation, bool) {
	if s == "" {
		return CollationUnset, true
	}

	return common.ParseEnum(s, CollationRTrim)
}

// ColumnKind is the role of a column.
type ColumnKind int

const (
	ColumnDedicated ColumnKind = iota
	ColumnShared
	ColumnClassID
	ColumnInstanceID
)

// String returns the kind name.
func (k ColumnKind) String() string {
	switch k {
	case ColumnDedicated:
		return "Dedicated"
	case ColumnShared:
		return "Shared"
	case ColumnClassID:
		return "ClassId"
	case ColumnInstanceID:
		return "InstanceId"
	default:
		return common.UnknownStr
	}
}

// ForeignKeyRef is a physical foreign key constraint declared on a column.
type ForeignKeyRef struct {
	Table    string                  `yaml:"table"`
	Column   string                  `yaml:"column"`
	OnDelete ecschema.OnDeleteAction `yaml:"onDelete"`
}

// Column is one column of a table.
type Column struct {
	Name      string      `yaml:"name"`
	Type      StorageType `yaml:"type"`
	Nullable  bool        `yaml:"nullable"`
	Unique    bool        `yaml:"unique,omitempty"`
	Collation Collation   `yaml:"collation,omitempty"`
	Position  int         `yaml:"position"`
	Kind      ColumnKind  `yaml:"kind"`
	// Slot is the 1-based pool slot of a shared column.
	Slot int `yaml:"slot,omitempty"`
	// Virtual columns exist in the layout but not in DDL.
	Virtual bool `yaml:"virtual,omitempty"`
	// SQLType is the declared type of a preexisting column.
	SQLType    string         `yaml:"sqlType,omitempty"`
	References *ForeignKeyRef `yaml:"references,omitempty"`
}

// SharedColumnName returns the name of pool slot n.
func SharedColumnName(slot int) string {
	return fmt.Sprintf("sc%d", slot)
}

// TableType is the role of a table.
type TableType int

const (
	TablePrimary TableType = iota
	TableJoined
	TableExisting
	TableLink
)

// String returns the type name.
func (t TableType) String() string {
	switch t {
	case TablePrimary:
		return "Primary"
	case TableJoined:
		return "Joined"
	case TableExisting:
		return "Existing"
	case TableLink:
		return "Link"
	default:
		return common.UnknownStr
	}
}

// Table is a physical (or virtual) table.
type Table struct {
	Name          string             `yaml:"name"`
	Type          TableType          `yaml:"type"`
	Columns       []*Column          `yaml:"columns"`
	IsVirtual     bool               `yaml:"virtual,omitempty"`
	OwningClasses []ecschema.ClassID `yaml:"owningClasses,omitempty"`
	IsPreexisting bool               `yaml:"preexisting,omitempty"`
	// ParentTable is the table a joined table extends.
	ParentTable string `yaml:"parentTable,omitempty"`
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}

	return nil
}

// AddColumn appends a column and assigns its position.
func (t *Table) AddColumn(c *Column) *Column {
	c.Position = len(t.Columns)
	t.Columns = append(t.Columns, c)

	return c
}

// InstanceIDColumn returns the id column of the table.
func (t *Table) InstanceIDColumn() *Column {
	for _, c := range t.Columns {
		if c.Kind == ColumnInstanceID {
			return c
		}
	}

	return nil
}

// ClassIDColumn returns the class id column of the table, or nil.
func (t *Table) ClassIDColumn() *Column {
	for _, c := range t.Columns {
		if c.Kind == ColumnClassID {
			return c
		}
	}

	return nil
}

// PhysicalColumns returns the columns that appear in DDL.
func (t *Table) PhysicalColumns() []*Column {
	out := make([]*Column, 0, len(t.Columns))

	for _, c := range t.Columns {
		if !c.Virtual {
			out = append(out, c)
		}
	}

	return out
}

// AddOwner records a class as stored in this table.
func (t *Table) AddOwner(id ecschema.ClassID) {
	if !slices.Contains(t.OwningClasses, id) {
		t.OwningClasses = append(t.OwningClasses, id)
	}
}

// IsOwnedBy reports whether rows of the class are stored in the table.
func (t *Table) IsOwnedBy(id ecschema.ClassID) bool {
	return slices.Contains(t.OwningClasses, id)
}

// PropertyMap records the columns a property access string maps to.
type PropertyMap struct {
	AccessString string   `yaml:"accessString"`
	Table        string   `yaml:"table,omitempty"`
	Columns      []string `yaml:"columns,omitempty"`
	// Type is the declared type name, used to detect retyping on later imports.
	Type string `yaml:"type"`
	// OutOfLine marks array properties, which have no columns.
	OutOfLine bool `yaml:"outOfLine,omitempty"`
	Shared    bool `yaml:"shared,omitempty"`
}

// StrategyOptions are the options resolved together with a strategy.
type StrategyOptions struct {
	Implicit                     bool `yaml:"implicit,omitempty"`
	ShareColumns                 bool `yaml:"shareColumns,omitempty"`
	SharedColumnCount            int  `yaml:"sharedColumnCount,omitempty"`
	ApplyToSubclassesOnly        bool `yaml:"applyToSubclassesOnly,omitempty"`
	JoinedTablePerDirectSubclass bool `yaml:"joinedTablePerDirectSubclass,omitempty"`
}

// ClassMap is the queryable mapping of one class: strategy, owning table and key columns.
type ClassMap struct {
	Class     ecschema.ClassID     `yaml:"class"`
	NumericID int64                `yaml:"id"`
	Strategy  ecschema.MapStrategy `yaml:"strategy"`
	Options   StrategyOptions      `yaml:"options,omitempty"`
	// Table receives the class's own columns.
	Table string `yaml:"table,omitempty"`
	// PrimaryTable holds the id and class id columns; it differs from Table for joined tables.
	PrimaryTable  string        `yaml:"primaryTable,omitempty"`
	IDColumn      string        `yaml:"idColumn,omitempty"`
	ClassIDColumn string        `yaml:"classIdColumn,omitempty"`
	Properties    []PropertyMap `yaml:"properties,omitempty"`
}

// IsMapped reports whether the class is stored.
func (cm *ClassMap) IsMapped() bool {
	return cm.Strategy != ecschema.StrategyNotMapped
}

// Property returns the property map for an access string.
func (cm *ClassMap) Property(access string) *PropertyMap {
	for i := range cm.Properties {
		if cm.Properties[i].AccessString == access {
			return &cm.Properties[i]
		}
	}

	return nil
}

// MappingKind distinguishes foreign key and link table relationship mappings.
type MappingKind int

const (
	MappingForeignKey MappingKind = iota
	MappingLinkTable
)

// String returns the kind name.
func (k MappingKind) String() string {
	switch k {
	case MappingForeignKey:
		return "ForeignKey"
	case MappingLinkTable:
		return "LinkTable"
	default:
		return common.UnknownStr
	}
}

// RelationshipMapping is the persisted mapping of a relationship class.
type RelationshipMapping struct {
	Relationship ecschema.ClassID `yaml:"relationship"`
	Kind         MappingKind      `yaml:"kind"`

	// Foreign key mapping.
	HolderEnd ecschema.End `yaml:"holderEnd,omitempty"`
	// HolderTables are the tables carrying the FK column.
	HolderTables     []string `yaml:"holderTables,omitempty"`
	Column           string   `yaml:"column,omitempty"`
	RelClassIDColumn string   `yaml:"relClassIdColumn,omitempty"`
	ReferencedTable  string   `yaml:"referencedTable,omitempty"`
	UsesInstanceID   bool     `yaml:"usesInstanceId,omitempty"`
	// Physical reports whether a DDL foreign key constraint exists.
	Physical bool `yaml:"physical,omitempty"`

	// Link table mapping.
	Table           string `yaml:"table,omitempty"`
	SourceColumn    string `yaml:"sourceColumn,omitempty"`
	TargetColumn    string `yaml:"targetColumn,omitempty"`
	AllowDuplicates bool   `yaml:"allowDuplicates,omitempty"`

	OnDelete ecschema.OnDeleteAction `yaml:"onDelete"`
}

// Equal reports whether two mappings are identical.
func (m *RelationshipMapping) Equal(o *RelationshipMapping) bool {
	return m.Relationship == o.Relationship &&
		m.Kind == o.Kind &&
		m.HolderEnd == o.HolderEnd &&
		slices.Equal(m.HolderTables, o.HolderTables) &&
		m.Column == o.Column &&
		m.RelClassIDColumn == o.RelClassIDColumn &&
		m.ReferencedTable == o.ReferencedTable &&
		m.UsesInstanceID == o.UsesInstanceID &&
		m.Physical == o.Physical &&
		m.Table == o.Table &&
		m.SourceColumn == o.SourceColumn &&
		m.TargetColumn == o.TargetColumn &&
		m.AllowDuplicates == o.AllowDuplicates &&
		m.OnDelete == o.OnDelete
}

// Extends reports whether m equals prior except for holder tables appended
// by a later import.
func (m *RelationshipMapping) Extends(prior *RelationshipMapping) bool {
	if len(m.HolderTables) < len(prior.HolderTables) {
		return false
	}

	c := *m
	c.HolderTables = m.HolderTables[:len(prior.HolderTables)]

	return c.Equal(prior)
}

// Index is an index definition.
type Index struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table"`
	Unique  bool     `yaml:"unique,omitempty"`
	Columns []string `yaml:"columns"`
	// NotNullColumns compile to "col IS NOT NULL" conjuncts of the partial predicate.
	NotNullColumns []string `yaml:"notNullColumns,omitempty"`
	// Scope restricts the index to rows of these numeric class ids.
	Scope     []int64 `yaml:"scope,omitempty"`
	Mandatory bool    `yaml:"mandatory,omitempty"`
	// Owner names the class or relationship the index was derived from.
	Owner string `yaml:"owner"`
}

// Where compiles the partial index predicate, or "" for a full index.
func (ix *Index) Where(quote func(string) string) string {
	var conj []string

	if len(ix.Scope) > 0 {
		ids := make([]string, len(ix.Scope))
		for i, id := range ix.Scope {
			ids[i] = fmt.Sprintf("%d", id)
		}

		conj = append(conj, fmt.Sprintf("%s IN (%s)", quote(common.ClassIDColumn), strings.Join(ids, ",")))
	}

	for _, c := range ix.NotNullColumns {
		conj = append(conj, quote(c)+" IS NOT NULL")
	}

	return strings.Join(conj, " AND ")
}

// SameDefinition reports whether two indexes cover the same columns the same way,
// ignoring predicate scope.
func (ix *Index) SameDefinition(o *Index) bool {
	return ix.Name == o.Name && ix.Table == o.Table && ix.Unique == o.Unique && slices.Equal(ix.Columns, o.Columns)
}

// SharedPool is the shared column pool of one table.
type SharedPool struct {
	Table string `yaml:"table"`
	// Capacity is max(SharedColumnCount, slots required).
	Capacity int `yaml:"capacity"`
	// Declared is the SharedColumnCount in force, 0 when unbounded.
	Declared int      `yaml:"declared,omitempty"`
	Columns  []string `yaml:"columns,omitempty"`
}

// Overflow reports how many materialized slots exceed the declared count.
func (p *SharedPool) Overflow() int {
	if p.Declared == 0 || len(p.Columns) <= p.Declared {
		return 0
	}

	return len(p.Columns) - p.Declared
}
