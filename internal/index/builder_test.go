package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/allocate"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/relmap"
	"schemamap/internal/strategy"
)

const header = `
schema: TestSchema
alias: ts
classes:
`

func build(t *testing.T, classes string, prior *layout.Layout) (*layout.Layout, error) {
	t.Helper()

	g, err := ecschema.ParseGraph(header + classes)
	require.NoError(t, err)

	if prior == nil {
		prior = layout.New()
	}

	res, err := strategy.NewResolver(g, prior).Resolve()
	require.NoError(t, err)

	working := prior.Clone()
	a := allocate.NewAllocator(g, res, working, nil)
	require.NoError(t, a.Allocate())
	require.NoError(t, relmap.NewMapper(g, res, a, relmap.Options{}).MapAll())

	return working, NewBuilder(g, res, working).Build()
}

func indexNames(l *layout.Layout) []string {
	out := make([]string, len(l.Indexes))
	for i, ix := range l.Indexes {
		out[i] = ix.Name
	}

	return out
}

func TestBuild_MandatoryIndexes(t *testing.T) {
	l, err := build(t, `
  - name: Parent
    classMap: {strategy: OwnTable}
  - name: Child
    classMap: {strategy: TablePerHierarchy}
  - name: Tag
    classMap: {strategy: OwnTable}
  - name: ParentHasChild
    kind: relationship
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
  - name: ChildOwnsTag
    kind: relationship
    modifier: sealed
    relationship:
      direction: backward
      source: {multiplicity: "0..1", classes: [Child]}
      target: {multiplicity: "1..1", classes: [Tag]}
  - name: TagRefersToParent
    kind: relationship
    relationship:
      source: {multiplicity: "0..*", classes: [Tag]}
      target: {multiplicity: "0..*", classes: [Parent]}
`, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ix_ts_Child_ecclassid",
		"ix_ts_TagRefersToParent_ecclassid",
		"ix_ts_Child_fk_ts_ParentHasChild_target",
		"ix_ts_Child_relecclassid_ts_ParentHasChild",
		"ix_ts_Child_fk_ts_ChildOwnsTag_source",
		"ix_ts_TagRefersToParent_source",
		"ix_ts_TagRefersToParent_target",
		"uix_ts_TagRefersToParent_sourcetargetclassid",
	}, indexNames(l))

	fk := l.Index("ix_ts_Child_fk_ts_ParentHasChild_target")
	assert.False(t, fk.Unique)
	assert.Equal(t, []string{"ForeignECInstanceId_ts_ParentHasChild"}, fk.NotNullColumns)

	oneToOne := l.Index("ix_ts_Child_fk_ts_ChildOwnsTag_source")
	assert.True(t, oneToOne.Unique)
	assert.Empty(t, oneToOne.NotNullColumns)

	uix := l.Index("uix_ts_TagRefersToParent_sourcetargetclassid")
	assert.True(t, uix.Unique)
	assert.Equal(t, []string{"SourceECInstanceId", "TargetECInstanceId", "ECClassId"}, uix.Columns)
}

func TestBuild_LinkTableAllowingDuplicates(t *testing.T) {
	l, err := build(t, `
  - name: A
  - name: B
  - name: AToB
    kind: relationship
    relationship:
      source: {multiplicity: "0..*", classes: [A]}
      target: {multiplicity: "0..*", classes: [B]}
      linkTableRelationshipMap: {allowDuplicateRelationships: true}
`, nil)
	require.NoError(t, err)

	assert.NotNil(t, l.Index("ix_ts_AToB_source"))
	assert.Nil(t, l.Index("uix_ts_AToB_sourcetargetclassid"))
}

func TestBuild_UserIndexes(t *testing.T) {
	l, err := build(t, `
  - name: Address
    kind: struct
    properties:
      - {name: Street, type: string}
      - {name: Zip, type: int}
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    properties:
      - {name: Code, type: string}
  - name: Sub
    baseClasses: [Base]
    dbIndexes:
      - name: ix_sub_location
        properties: [Location.Zip, Position]
        where: IndexedColumnsAreNotNull
    properties:
      - {name: Location, type: Address}
      - {name: Position, type: point2d}
  - name: Other
    baseClasses: [Base]
  - name: Item
    dbIndexes:
      - name: uix_item_code
        isUnique: true
        properties: [Code]
    properties:
      - name: Code
        type: string
        propertyMap: {isNullable: false}
`, nil)
	require.NoError(t, err)

	ix := l.Index("ix_sub_location")
	require.NotNil(t, ix)
	assert.Equal(t, "ts_Base", ix.Table)
	assert.Equal(t, []string{"Location_Zip", "Position_X", "Position_Y"}, ix.Columns)
	assert.Equal(t, []string{"Location_Zip", "Position_X", "Position_Y"}, ix.NotNullColumns)
	assert.Equal(t, []int64{l.ClassMap(id("Sub")).NumericID}, ix.Scope)
	assert.False(t, ix.Mandatory)
	assert.Equal(t, "TestSchema:Sub", ix.Owner)

	uix := l.Index("uix_item_code")
	require.NotNil(t, uix)
	assert.True(t, uix.Unique)
	assert.Empty(t, uix.Scope)
	assert.Empty(t, uix.NotNullColumns)
}

func TestBuild_ScopeGrowsAcrossImports(t *testing.T) {
	first := `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
  - name: Sub
    baseClasses: [Base]
    dbIndexes:
      - {name: ix_sub_name, properties: [Name]}
    properties:
      - {name: Name, type: string}
  - name: Other
    baseClasses: [Base]
`

	prior, err := build(t, first, nil)
	require.NoError(t, err)
	assert.Len(t, prior.Index("ix_sub_name").Scope, 1)

	next, err := build(t, first+`
  - name: SubSub
    baseClasses: [Sub]
`, prior)
	require.NoError(t, err)

	ix := next.Index("ix_sub_name")
	assert.Equal(t, []int64{
		next.ClassMap(id("Sub")).NumericID,
		next.ClassMap(id("SubSub")).NumericID,
	}, ix.Scope)

	delta, err := layout.Diff(prior, next)
	require.NoError(t, err)
	require.Len(t, delta.ChangedIndexes, 1)
	assert.Equal(t, "ix_sub_name", delta.ChangedIndexes[0].Name)
	assert.Empty(t, delta.NewIndexes)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		classes string
	}{
		{"struct array member", `
  - name: Line
    kind: struct
    properties:
      - {name: Qty, type: int}
  - name: Order
    dbIndexes:
      - {name: ix_order_qty, properties: ["Lines[].Qty"]}
    properties:
      - {name: Lines, type: Line, array: true}
`},
		{"struct array without brackets", `
  - name: Line
    kind: struct
    properties:
      - {name: Qty, type: int}
  - name: Order
    dbIndexes:
      - {name: ix_order_qty, properties: [Lines.Qty]}
    properties:
      - {name: Lines, type: Line, array: true}
`},
		{"primitive array", `
  - name: Order
    dbIndexes:
      - {name: ix_order_tags, properties: [Tags]}
    properties:
      - {name: Tags, type: string, array: true}
`},
		{"whole struct", `
  - name: Address
    kind: struct
    properties:
      - {name: Zip, type: int}
  - name: Order
    dbIndexes:
      - {name: ix_order_address, properties: [Address]}
    properties:
      - {name: Address, type: Address}
`},
		{"navigation", `
  - name: Customer
  - name: Order
    dbIndexes:
      - {name: ix_order_customer, properties: [Customer]}
    properties:
      - name: Customer
        navigation: {relationship: CustomerHasOrders, direction: backward}
  - name: CustomerHasOrders
    kind: relationship
    relationship:
      source: {multiplicity: "0..1", classes: [Customer]}
      target: {multiplicity: "0..*", classes: [Order]}
`},
		{"spans joined tables", `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    joinedTablePerDirectSubclass: true
    properties:
      - {name: Code, type: string}
  - name: Sub
    baseClasses: [Base]
    dbIndexes:
      - {name: ix_sub_mixed, properties: [Code, Size]}
    properties:
      - {name: Size, type: int}
`},
		{"duplicate name", `
  - name: A
    dbIndexes:
      - {name: ix_dup, properties: [X]}
    properties:
      - {name: X, type: int}
  - name: B
    dbIndexes:
      - {name: IX_DUP, properties: [Y]}
    properties:
      - {name: Y, type: int}
`},
		{"unknown where", `
  - name: A
    dbIndexes:
      - {name: ix_a, properties: [X], where: IndexedColumnsNotNull}
    properties:
      - {name: X, type: int}
`},
		{"abstract own table", `
  - name: A
    modifier: abstract
    classMap: {strategy: OwnTable}
    dbIndexes:
      - {name: ix_a, properties: [X]}
    properties:
      - {name: X, type: int}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.classes, nil)
			assert.ErrorIs(t, err, diagnostic.ErrIndexDefinition)
		})
	}
}

func TestBuild_UnknownPropertySuggests(t *testing.T) {
	_, err := build(t, `
  - name: A
    dbIndexes:
      - {name: ix_a, properties: [Cod]}
    properties:
      - {name: Code, type: string}
`, nil)
	require.ErrorIs(t, err, diagnostic.ErrIndexDefinition)

	var me *diagnostic.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, []string{"Code"}, me.Suggestions)
	assert.Equal(t, "Cod", me.Property)
}

func TestBuild_Idempotent(t *testing.T) {
	classes := `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    dbIndexes:
      - {name: ix_base_code, properties: [Code]}
    properties:
      - {name: Code, type: string}
  - name: Sub
    baseClasses: [Base]
`

	prior, err := build(t, classes, nil)
	require.NoError(t, err)

	next, err := build(t, classes, prior)
	require.NoError(t, err)

	delta, err := layout.Diff(prior, next)
	require.NoError(t, err)
	assert.True(t, delta.IsEmpty())
	assert.Equal(t, indexNames(prior), indexNames(next))
}

func id(name string) ecschema.ClassID {
	return ecschema.ClassID{Schema: "TestSchema", Name: name}
}
