package relmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/allocate"
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

const endClasses = `
  - name: Parent
    classMap: {strategy: TablePerHierarchy}
    properties:
      - {name: Name, type: string}
  - name: Child
    properties:
      - {name: Code, type: string}
`

func run(t *testing.T, classes string, prior *layout.Layout, opts Options) (*layout.Layout, *Mapper, error) {
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

	m := NewMapper(g, res, a, opts)

	return working, m, m.MapAll()
}

func id(name string) ecschema.ClassID {
	return ecschema.ClassID{Schema: "TestSchema", Name: name}
}

func TestMapAll_EmbeddingForeignKey(t *testing.T) {
	l, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    modifier: sealed
    relationship:
      strength: embedding
      direction: forward
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
      foreignKeyConstraint: {onDeleteAction: Cascade}
`, nil, Options{})
	require.NoError(t, err)

	m := l.Relationship(id("Rel"))
	require.NotNil(t, m)
	assert.Equal(t, layout.MappingForeignKey, m.Kind)
	assert.Equal(t, ecschema.EndTarget, m.HolderEnd)
	assert.Equal(t, []string{"ts_Child"}, m.HolderTables)
	assert.Equal(t, "ForeignECInstanceId_ts_Rel", m.Column)
	assert.Empty(t, m.RelClassIDColumn)
	assert.Equal(t, "ts_Parent", m.ReferencedTable)
	assert.True(t, m.Physical)
	assert.Equal(t, ecschema.OnDeleteCascade, m.OnDelete)

	col := l.Table("ts_Child").Column("ForeignECInstanceId_ts_Rel")
	require.NotNil(t, col)
	assert.True(t, col.Nullable)
	require.NotNil(t, col.References)
	assert.Equal(t, layout.ForeignKeyRef{Table: "ts_Parent", Column: "ECInstanceId", OnDelete: ecschema.OnDeleteCascade}, *col.References)
}

func TestMapAll_DirectionContradictsMultiplicity(t *testing.T) {
	for _, strength := range []string{"referencing", "holding", "embedding"} {
		t.Run(strength, func(t *testing.T) {
			_, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    relationship:
      strength: `+strength+`
      direction: backward
      source: {multiplicity: "1..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
`, nil, Options{})
			assert.ErrorIs(t, err, diagnostic.ErrUnsupportedRelationshipShape)
		})
	}
}

func TestMapAll_ForeignKeyNullability(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		target    string
		direction string
		holder    string
		nullable  bool
	}{
		{"optional one to many", "0..1", "0..*", "forward", "ts_Child", true},
		{"mandatory one to many", "1..1", "0..*", "forward", "ts_Child", false},
		{"mandatory many to one", "0..*", "1..1", "backward", "ts_Parent", false},
		{"optional one to one forward", "0..1", "0..1", "forward", "ts_Child", true},
		{"mandatory one to one backward", "0..1", "1..1", "backward", "ts_Parent", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    modifier: sealed
    relationship:
      direction: `+tt.direction+`
      source: {multiplicity: "`+tt.source+`", classes: [Parent]}
      target: {multiplicity: "`+tt.target+`", classes: [Child]}
`, nil, Options{})
			require.NoError(t, err)

			col := l.Table(tt.holder).Column("ForeignECInstanceId_ts_Rel")
			require.NotNil(t, col)
			assert.Equal(t, tt.nullable, col.Nullable)
			assert.Nil(t, col.References)
		})
	}
}

func TestMapAll_NotNullRelaxedInSharedTable(t *testing.T) {
	l, m, err := run(t, `
  - name: Base
    classMap: {strategy: TablePerHierarchy}
  - name: Holder
    baseClasses: [Base]
  - name: Other
    baseClasses: [Base]
  - name: Target
  - name: Rel
    kind: relationship
    modifier: sealed
    relationship:
      direction: backward
      source: {multiplicity: "0..*", classes: [Holder]}
      target: {multiplicity: "1..1", classes: [Target]}
`, nil, Options{})
	require.NoError(t, err)

	col := l.Table("ts_Base").Column("ForeignECInstanceId_ts_Rel")
	require.NotNil(t, col)
	assert.True(t, col.Nullable)

	require.Len(t, m.Diagnostics().Warnings, 1)
	assert.Equal(t, "not_null_relaxed", m.Diagnostics().Warnings[0].Code)
}

func TestMapAll_NavigationProperty(t *testing.T) {
	l, _, err := run(t, `
  - name: Parent
  - name: Child
    properties:
      - name: Owner
        navigation: {relationship: ParentOwnsChild, direction: backward}
  - name: ParentOwnsChild
    kind: relationship
    relationship:
      strength: embedding
      direction: forward
      source: {multiplicity: "1..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
`, nil, Options{})
	require.NoError(t, err)

	m := l.Relationship(id("ParentOwnsChild"))
	assert.Equal(t, "OwnerId", m.Column)
	assert.Equal(t, "OwnerRelECClassId", m.RelClassIDColumn)

	child := l.Table("ts_Child")
	assert.False(t, child.Column("OwnerId").Nullable)
	assert.NotNil(t, child.Column("OwnerRelECClassId"))

	pm := l.ClassMap(id("Child")).Property("Owner")
	require.NotNil(t, pm)
	assert.Equal(t, []string{"OwnerId", "OwnerRelECClassId"}, pm.Columns)
	assert.Equal(t, "navigation", pm.Type)
}

func TestMapAll_NavigationErrors(t *testing.T) {
	tests := []struct {
		name    string
		classes string
	}{
		{"wrong end", `
  - name: Parent
    properties:
      - name: Children
        navigation: {relationship: Rel, direction: forward}
  - name: Child
  - name: Rel
    kind: relationship
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
`},
		{"wrong direction", `
  - name: Parent
  - name: Child
    properties:
      - name: Owner
        navigation: {relationship: Rel, direction: forward}
  - name: Rel
    kind: relationship
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
`},
		{"link table", `
  - name: Parent
  - name: Child
    properties:
      - name: Owner
        navigation: {relationship: Rel, direction: backward}
  - name: Rel
    kind: relationship
    relationship:
      source: {multiplicity: "0..*", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.classes, nil, Options{})
			require.ErrorIs(t, err, diagnostic.ErrUnsupportedRelationshipShape)

			var me *diagnostic.MappingError
			require.ErrorAs(t, err, &me)
			assert.NotEmpty(t, me.Property)
		})
	}
}

func TestMapAll_RejectedShapes(t *testing.T) {
	tests := []struct {
		name     string
		rel      string
		expected error
	}{
		{"cascade without embedding", `
      strength: holding
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
      foreignKeyConstraint: {onDeleteAction: Cascade}
`, diagnostic.ErrUnsupportedRelationshipShape},
		{"set null on mandatory end", `
      source: {multiplicity: "1..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
      foreignKeyConstraint: {onDeleteAction: SetNull}
`, diagnostic.ErrUnsupportedRelationshipShape},
		{"instance id on one to many", `
      source: {multiplicity: "1..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
      useECInstanceIdAsForeignKey: true
`, diagnostic.ErrUnsupportedRelationshipShape},
		{"instance id on optional end", `
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..1", classes: [Child]}
      useECInstanceIdAsForeignKey: true
`, diagnostic.ErrUnsupportedRelationshipShape},
		{"instance id with link table", `
      source: {multiplicity: "1..1", classes: [Parent]}
      target: {multiplicity: "0..1", classes: [Child]}
      useECInstanceIdAsForeignKey: true
      linkTableRelationshipMap: {}
`, diagnostic.ErrUnsupportedRelationshipShape},
		{"same link columns", `
      source: {multiplicity: "0..*", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
      linkTableRelationshipMap: {sourceECInstanceIdColumn: Id, targetECInstanceIdColumn: id}
`, diagnostic.ErrInvalidOptionUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    relationship:`+tt.rel, nil, Options{})
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestMapAll_EmbeddingIntoJoinedTable(t *testing.T) {
	_, _, err := run(t, `
  - name: Parent
  - name: Base
    classMap: {strategy: TablePerHierarchy}
    joinedTablePerDirectSubclass: true
  - name: Child
    baseClasses: [Base]
  - name: Rel
    kind: relationship
    relationship:
      strength: embedding
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
`, nil, Options{})
	assert.ErrorIs(t, err, diagnostic.ErrUnsupportedRelationshipShape)
}

func TestMapAll_InstanceIDAsForeignKey(t *testing.T) {
	l, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    modifier: sealed
    relationship:
      strength: embedding
      source: {multiplicity: "1..1", classes: [Parent]}
      target: {multiplicity: "0..1", classes: [Child]}
      useECInstanceIdAsForeignKey: true
      foreignKeyConstraint: {onDeleteAction: Cascade}
`, nil, Options{})
	require.NoError(t, err)

	m := l.Relationship(id("Rel"))
	assert.True(t, m.UsesInstanceID)
	assert.Equal(t, "ECInstanceId", m.Column)

	child := l.Table("ts_Child")
	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "Code"}, columnNames(child))
	require.NotNil(t, child.InstanceIDColumn().References)
	assert.Equal(t, "ts_Parent", child.InstanceIDColumn().References.Table)
}

func TestMapAll_LinkTable(t *testing.T) {
	l, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    relationship:
      source: {multiplicity: "0..*", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
    properties:
      - {name: Weight, type: double}
  - name: SubRel
    kind: relationship
    baseClasses: [Rel]
    relationship:
      source: {multiplicity: "0..*", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
    properties:
      - {name: Note, type: string}
`, nil, Options{})
	require.NoError(t, err)

	m := l.Relationship(id("Rel"))
	require.NotNil(t, m)
	assert.Equal(t, layout.MappingLinkTable, m.Kind)
	assert.Equal(t, "ts_Rel", m.Table)
	assert.Equal(t, "SourceECInstanceId", m.SourceColumn)
	assert.Equal(t, "TargetECInstanceId", m.TargetColumn)
	assert.True(t, m.Physical)
	assert.False(t, m.AllowDuplicates)

	link := l.Table("ts_Rel")
	require.NotNil(t, link)
	assert.Equal(t, layout.TableLink, link.Type)
	assert.Equal(t, []string{"ECInstanceId", "ECClassId", "SourceECInstanceId", "TargetECInstanceId", "Weight", "Note"}, columnNames(link))
	assert.False(t, link.Column("SourceECInstanceId").Nullable)
	assert.Equal(t, "ts_Parent", link.Column("SourceECInstanceId").References.Table)
	assert.Equal(t, ecschema.OnDeleteCascade, link.Column("TargetECInstanceId").References.OnDelete)

	sub := l.Relationship(id("SubRel"))
	require.NotNil(t, sub)
	assert.Equal(t, "ts_Rel", sub.Table)
	assert.Equal(t, "ts_Rel", l.ClassMap(id("SubRel")).Property("Note").Table)
	assert.ElementsMatch(t, []ecschema.ClassID{id("Rel"), id("SubRel")}, link.OwningClasses)
}

func TestMapAll_LinkTableOptions(t *testing.T) {
	l, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
      linkTableRelationshipMap:
        sourceECInstanceIdColumn: ParentId
        targetECInstanceIdColumn: ChildId
        allowDuplicateRelationships: true
        createForeignKeyConstraints: false
`, nil, Options{})
	require.NoError(t, err)

	m := l.Relationship(id("Rel"))
	assert.Equal(t, "ParentId", m.SourceColumn)
	assert.True(t, m.AllowDuplicates)
	assert.False(t, m.Physical)
	assert.Nil(t, l.Table("ts_Rel").Column("ChildId").References)
}

func TestMapAll_LinkTableOnSubclassRejected(t *testing.T) {
	_, _, err := run(t, endClasses+`
  - name: Rel
    kind: relationship
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
  - name: SubRel
    kind: relationship
    baseClasses: [Rel]
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
      linkTableRelationshipMap: {}
`, nil, Options{})
	assert.ErrorIs(t, err, diagnostic.ErrUnsupportedRelationshipShape)
}

func TestMapAll_LinkTableWithoutNavigation(t *testing.T) {
	classes := endClasses + `
  - name: Rel
    kind: relationship
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Child]}
`

	l, _, err := run(t, classes, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, layout.MappingForeignKey, l.Relationship(id("Rel")).Kind)

	l, m, err := run(t, classes, nil, Options{LinkTableWithoutNavigation: true})
	require.NoError(t, err)
	assert.Equal(t, layout.MappingLinkTable, l.Relationship(id("Rel")).Kind)

	infos := m.Diagnostics().Infos
	require.Len(t, infos, 1)
	assert.Equal(t, "link_table_without_navigation", infos[0].Code)
	assert.Equal(t, id("Rel").String(), infos[0].Subject)
}

func TestMapAll_PolymorphicHolderSpansTables(t *testing.T) {
	l, _, err := run(t, `
  - name: Parent
  - name: Shape
    modifier: abstract
    classMap: {strategy: OwnTable}
  - name: Circle
    baseClasses: [Shape]
    classMap: {strategy: OwnTable}
  - name: Square
    baseClasses: [Shape]
    classMap: {strategy: OwnTable}
  - name: Rel
    kind: relationship
    modifier: sealed
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Shape], polymorphic: true}
`, nil, Options{})
	require.NoError(t, err)

	m := l.Relationship(id("Rel"))
	assert.Equal(t, []string{"ts_Shape", "ts_Circle", "ts_Square"}, m.HolderTables)

	for _, name := range m.HolderTables {
		assert.NotNil(t, l.Table(name).Column(m.Column), name)
	}
}

func TestMapAll_Incremental(t *testing.T) {
	first := `
  - name: Parent
  - name: Shape
    classMap: {strategy: OwnTable}
  - name: Rel
    kind: relationship
    modifier: sealed
    relationship:
      source: {multiplicity: "0..1", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Shape], polymorphic: true}
`

	prior, _, err := run(t, first, nil, Options{})
	require.NoError(t, err)

	t.Run("unchanged", func(t *testing.T) {
		l, _, err := run(t, first, prior, Options{})
		require.NoError(t, err)
		d, err := layout.Diff(prior, l)
		require.NoError(t, err)
		assert.Empty(t, d.NewColumns)
	})

	t.Run("new holder table", func(t *testing.T) {
		l, _, err := run(t, first+`
  - name: Circle
    baseClasses: [Shape]
    classMap: {strategy: OwnTable}
`, prior, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"ts_Shape", "ts_Circle"}, l.Relationship(id("Rel")).HolderTables)
	})

	t.Run("remapped", func(t *testing.T) {
		_, _, err := run(t, `
  - name: Parent
  - name: Shape
    classMap: {strategy: OwnTable}
  - name: Rel
    kind: relationship
    modifier: sealed
    relationship:
      source: {multiplicity: "0..*", classes: [Parent]}
      target: {multiplicity: "0..*", classes: [Shape], polymorphic: true}
`, prior, Options{})
		assert.ErrorIs(t, err, diagnostic.ErrIncrementalLayoutViolation)
	})
}

func columnNames(t *layout.Table) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}

	return out
}
