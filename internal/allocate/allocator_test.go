package allocate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/strategy"
)

const header = `
schema: TestSchema
alias: ts
classes:
`

func run(t *testing.T, classes string, prior *layout.Layout, catalog layout.Catalog) (*layout.Layout, *Allocator, error) {
	t.Helper()

	g, err := ecschema.ParseGraph(header + classes)
	require.NoError(t, err)

	if prior == nil {
		prior = layout.New()
	}

	res, err := strategy.NewResolver(g, prior).Resolve()
	require.NoError(t, err)

	working := prior.Clone()
	a := NewAllocator(g, res, working, catalog)

	return working, a, a.Allocate()
}

func id(name string) ecschema.ClassID {
	return ecschema.ClassID{Schema: "TestSchema", Name: name}
}

func names(t *layout.Table) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}

	return out
}

func TestAllocate_SiblingsShareColumns(t *testing.T) {
	l, _, err := run(t, `
  - name: Parent
    classMap: {strategy: TablePerHierarchy}
    properties:
      - {name: P1, type: string}
  - name: Child1
    baseClasses: [Parent]
    properties:
      - {name: Price, type: double}
  - name: Child2
    baseClasses: [Parent]
    properties:
      - {name: Price, type: double}
`, nil, nil)
	require.NoError(t, err)

	table := l.Table("ts_Parent")
	require.NotNil(t, table)
	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "P1", "Price"}, names(table))
	assert.False(t, table.ClassIDColumn().Virtual)

	assert.Equal(t, []string{"Price"}, l.ClassMap(id("Child2")).Property("Price").Columns)
	assert.Equal(t, []string{"P1"}, l.ClassMap(id("Child1")).Property("P1").Columns)
}

func TestAllocate_SiblingsWithDifferentTypes(t *testing.T) {
	l, _, err := run(t, `
  - name: Parent
    classMap: {strategy: TablePerHierarchy}
  - name: Child1
    baseClasses: [Parent]
    properties:
      - {name: Price, type: double}
  - name: Child2
    baseClasses: [Parent]
    properties:
      - {name: Price, type: string}
`, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "Price", "Child2_Price"}, names(l.Table("ts_Parent")))
}

const poolSchema = `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    shareColumns: {sharedColumnCount: 5, applyToSubclassesOnly: true}
  - name: Sub1
    baseClasses: [Base]
    properties:
      - {name: A, type: int}
`

func TestAllocate_SharedColumnPoolGrowsAcrossImports(t *testing.T) {
	first, _, err := run(t, poolSchema, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "sc1"}, names(first.Table("ts_Base")))

	pool := first.Pool("ts_Base")
	require.NotNil(t, pool)
	assert.Equal(t, 5, pool.Capacity)
	assert.Equal(t, []string{"sc1"}, pool.Columns)

	second, _, err := run(t, poolSchema+`
  - name: Sub3
    baseClasses: [Base]
    properties:
      - {name: B, type: string}
      - {name: C, type: double}
`, first, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "sc1", "sc2"}, names(second.Table("ts_Base")))
	assert.Equal(t, []string{"sc1"}, second.ClassMap(id("Sub3")).Property("B").Columns)
	assert.Equal(t, []string{"sc2"}, second.ClassMap(id("Sub3")).Property("C").Columns)
	assert.True(t, second.ClassMap(id("Sub3")).Property("C").Shared)
	assert.Equal(t, 5, second.Pool("ts_Base").Capacity)

	d, err := layout.Diff(first, second)
	require.NoError(t, err)
	require.Len(t, d.NewColumns, 1)
	assert.Equal(t, "sc2", d.NewColumns[0].Column.Name)
}

func TestAllocate_PoolSlotsAvoidAncestorsAndDescendants(t *testing.T) {
	l, _, err := run(t, `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    shareColumns: {}
    properties:
      - {name: A, type: int}
  - name: Mid
    baseClasses: [Base]
    properties:
      - {name: B, type: int}
  - name: Leaf
    baseClasses: [Mid]
    properties:
      - {name: C, type: int}
  - name: Other
    baseClasses: [Base]
    properties:
      - {name: D, type: int}
`, nil, nil)
	require.NoError(t, err)

	leaf := l.ClassMap(id("Leaf"))
	assert.Equal(t, []string{"sc1"}, leaf.Property("A").Columns)
	assert.Equal(t, []string{"sc2"}, leaf.Property("B").Columns)
	assert.Equal(t, []string{"sc3"}, leaf.Property("C").Columns)
	assert.Equal(t, []string{"sc2"}, l.ClassMap(id("Other")).Property("D").Columns)

	pool := l.Pool("ts_Base")
	assert.Equal(t, 3, pool.Capacity)
	assert.Zero(t, pool.Overflow())
}

func TestAllocate_PoolOverflowWarns(t *testing.T) {
	l, a, err := run(t, `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    shareColumns: {sharedColumnCount: 1}
    properties:
      - name: A
        type: string
        propertyMap: {isUnique: true}
      - {name: B, type: int}
`, nil, nil)
	require.NoError(t, err)

	pool := l.Pool("ts_Base")
	assert.Equal(t, 2, pool.Capacity)
	assert.Equal(t, 1, pool.Overflow())

	diags := a.Diagnostics()
	require.Len(t, diags.Warnings, 2)
	assert.Equal(t, "shared_column_constraint_ignored", diags.Warnings[0].Code)
	assert.Equal(t, "shared_pool_overflow", diags.Warnings[1].Code)
	assert.False(t, l.Table("ts_Base").Column("sc1").Unique)
}

func TestAllocate_ApplyToSubclassesOnly(t *testing.T) {
	l, _, err := run(t, `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    shareColumns: {applyToSubclassesOnly: true}
    properties:
      - {name: Code, type: string}
  - name: Sub
    baseClasses: [Base]
    properties:
      - {name: Value, type: double}
`, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "Code", "sc1"}, names(l.Table("ts_Base")))
	assert.False(t, l.ClassMap(id("Sub")).Property("Code").Shared)
}

func TestAllocate_FlattensStructsPointsAndArrays(t *testing.T) {
	l, _, err := run(t, `
  - name: Address
    kind: struct
    properties:
      - {name: Street, type: string}
      - {name: Zip, type: int}
  - name: Site
    classMap: {strategy: OwnTable}
    properties:
      - {name: Location, type: Address}
      - {name: Origin, type: point3d}
      - {name: Tags, type: string, array: true}
      - {name: History, type: Address, array: true}
`, nil, nil)
	require.NoError(t, err)

	table := l.Table("ts_Site")
	assert.Equal(t, []string{
		"ECInstanceId", "ECClassId",
		"Location_Street", "Location_Zip",
		"Origin_X", "Origin_Y", "Origin_Z",
	}, names(table))
	assert.True(t, table.ClassIDColumn().Virtual)
	assert.Equal(t, layout.StorageReal, table.Column("Origin_Z").Type)

	cm := l.ClassMap(id("Site"))
	assert.Equal(t, []string{"Location_Zip"}, cm.Property("Location.Zip").Columns)
	assert.Equal(t, "point3d", cm.Property("Origin").Type)
	assert.True(t, cm.Property("Tags").OutOfLine)
	assert.Equal(t, "string[]", cm.Property("Tags").Type)
	assert.True(t, cm.Property("History").OutOfLine)
	assert.Empty(t, cm.Property("History").Columns)
}

func TestAllocate_AbstractOwnTableIsVirtual(t *testing.T) {
	l, _, err := run(t, `
  - name: Shape
    modifier: abstract
    classMap: {strategy: OwnTable}
    properties:
      - {name: Area, type: double}
  - name: Circle
    baseClasses: [Shape]
`, nil, nil)
	require.NoError(t, err)

	assert.True(t, l.Table("ts_Shape").IsVirtual)
	assert.False(t, l.Table("ts_Circle").IsVirtual)
	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "Area"}, names(l.Table("ts_Circle")))
}

func TestAllocate_JoinedTables(t *testing.T) {
	l, _, err := run(t, `
  - name: Root
    classMap: {strategy: TablePerHierarchy}
    joinedTablePerDirectSubclass: true
    properties:
      - {name: Code, type: string}
  - name: A
    baseClasses: [Root]
    properties:
      - {name: Width, type: double}
  - name: A1
    baseClasses: [A]
    properties:
      - {name: Depth, type: double}
`, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "Code"}, names(l.Table("ts_Root")))

	joined := l.Table("ts_A")
	require.NotNil(t, joined)
	assert.Equal(t, layout.TableJoined, joined.Type)
	assert.Equal(t, "ts_Root", joined.ParentTable)
	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "Width", "Depth"}, names(joined))

	ref := joined.InstanceIDColumn().References
	require.NotNil(t, ref)
	assert.Equal(t, "ts_Root", ref.Table)
	assert.Equal(t, ecschema.OnDeleteCascade, ref.OnDelete)

	a1 := l.ClassMap(id("A1"))
	assert.Equal(t, "ts_Root", a1.Property("Code").Table)
	assert.Equal(t, "ts_A", a1.Property("Depth").Table)
}

func TestAllocate_ExistingTable(t *testing.T) {
	catalog := layout.NewCatalog(&layout.ExistingTable{
		Name: "legacy_parts",
		Columns: []layout.ExistingColumn{
			{Name: "Id", SQLType: "INTEGER"},
			{Name: "PartName", SQLType: "VARCHAR(64)", Nullable: true},
			{Name: "Weight", SQLType: "NUMERIC", Nullable: true},
		},
	})

	classes := `
  - name: Part
    classMap: {strategy: ExistingTable, tableName: legacy_parts, ecInstanceIdColumn: Id}
    properties:
      - name: Name
        type: string
        propertyMap: {columnName: PartName}
      - {name: Weight, type: double}
`

	l, a, err := run(t, classes, nil, catalog)
	require.NoError(t, err)

	infos := a.Diagnostics().Infos
	require.Len(t, infos, 1)
	assert.Equal(t, "column_converted", infos[0].Code)
	assert.Equal(t, "Weight", infos[0].Property)

	table := l.Table("legacy_parts")
	require.NotNil(t, table)
	assert.True(t, table.IsPreexisting)
	assert.Equal(t, "Id", table.InstanceIDColumn().Name)
	assert.True(t, table.ClassIDColumn().Virtual)
	assert.Equal(t, []string{"PartName"}, l.ClassMap(id("Part")).Property("Name").Columns)
	assert.Equal(t, "Id", l.ClassMap(id("Part")).IDColumn)

	d, err := layout.Diff(layout.New(), l)
	require.NoError(t, err)
	assert.Zero(t, d.DDLChanges())

	tests := []struct {
		name       string
		properties string
		suggestion string
	}{
		{"missing column", "      - {name: PartNam, type: string}\n", "PartName"},
		{"incompatible type", "      - name: Weight\n        type: binary\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, `
  - name: Part
    classMap: {strategy: ExistingTable, tableName: legacy_parts, ecInstanceIdColumn: Id}
    properties:
`+tt.properties, nil, catalog)
			require.ErrorIs(t, err, diagnostic.ErrExistingTableMismatch)

			if tt.suggestion != "" {
				var me *diagnostic.MappingError
				require.ErrorAs(t, err, &me)
				assert.Contains(t, me.Suggestions, tt.suggestion)
			}
		})
	}

	_, _, err = run(t, `
  - name: Part
    classMap: {strategy: ExistingTable, tableName: legacy_part}
`, nil, catalog)
	assert.ErrorIs(t, err, diagnostic.ErrExistingTableMismatch)
}

func TestAllocate_PropertyMapOptions(t *testing.T) {
	_, _, err := run(t, `
  - name: Item
    properties:
      - name: Code
        type: string
        propertyMap: {columnName: item_code}
`, nil, nil)
	assert.ErrorIs(t, err, diagnostic.ErrInvalidOptionUsage)

	_, _, err = run(t, `
  - name: Item
    properties:
      - name: Code
        type: string
        propertyMap: {collation: NoCaseX}
`, nil, nil)
	assert.ErrorIs(t, err, diagnostic.ErrInvalidOptionUsage)

	l, a, err := run(t, `
  - name: Item
    classMap: {strategy: TablePerHierarchy}
    properties:
      - name: Code
        type: string
        propertyMap: {isNullable: false, isUnique: true, collation: nocase}
  - name: SubItem
    baseClasses: [Item]
    properties:
      - name: Extra
        type: string
        propertyMap: {isNullable: false}
`, nil, nil)
	require.NoError(t, err)

	code := l.Table("ts_Item").Column("Code")
	assert.False(t, code.Nullable)
	assert.True(t, code.Unique)
	assert.Equal(t, layout.CollationNoCase, code.Collation)

	assert.True(t, l.Table("ts_Item").Column("Extra").Nullable)
	require.Len(t, a.Diagnostics().Warnings, 1)
	assert.Equal(t, "not_null_relaxed", a.Diagnostics().Warnings[0].Code)
}

func TestAllocate_NumericClassIDsAreAppendOnly(t *testing.T) {
	classes := `
  - name: A
  - name: B
    classMap: {strategy: NotMapped}
  - name: C
`

	first, _, err := run(t, classes, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ClassMap(id("A")).NumericID)
	assert.Zero(t, first.ClassMap(id("B")).NumericID)
	assert.Equal(t, int64(2), first.ClassMap(id("C")).NumericID)

	second, _, err := run(t, `
  - name: Z
`+classes, first, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), second.ClassMap(id("A")).NumericID)
	assert.Equal(t, int64(3), second.ClassMap(id("Z")).NumericID)

	d, err := layout.Diff(first, second)
	require.NoError(t, err)
	require.Len(t, d.NewClassMaps, 1)
	assert.Equal(t, id("Z"), d.NewClassMaps[0].Class)
}
