package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/ddl"
	"schemamap/internal/ecschema"
	"schemamap/internal/engine"
)

const schemaV1 = `
schema: Shop
alias: sh
classes:
  - name: Product
    classMap: {strategy: TablePerHierarchy}
    shareColumns: {applyToSubclassesOnly: true}
    dbIndexes:
      - {name: ix_product_code, properties: [Code]}
    properties:
      - {name: Code, type: string}
  - name: Book
    baseClasses: [Product]
    properties:
      - {name: Isbn, type: string}
  - name: Supplier
    properties:
      - {name: Name, type: string}
  - name: SupplierSuppliesProduct
    kind: relationship
    modifier: sealed
    relationship:
      strength: referencing
      direction: forward
      source: {multiplicity: "0..1", classes: [Supplier]}
      target: {multiplicity: "0..*", classes: [Product]}
  - name: ProductRelatesToProduct
    kind: relationship
    relationship:
      source: {multiplicity: "0..*", classes: [Product]}
      target: {multiplicity: "0..*", classes: [Product]}
`

const schemaV2 = schemaV1 + `
  - name: Lamp
    baseClasses: [Product]
    properties:
      - {name: Watts, type: double}
      - {name: Color, type: string}
  - name: Legacy
    classMap: {strategy: ExistingTable, tableName: legacy_stock, ecInstanceIdColumn: Id}
    properties:
      - {name: Quantity, type: int}
`

func openTemp(t *testing.T) *SQLite {
	t.Helper()

	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func parse(t *testing.T, doc string) *ecschema.Graph {
	t.Helper()

	g, err := ecschema.ParseGraph(doc)
	require.NoError(t, err)

	return g
}

func TestSQLite_EmptyStore(t *testing.T) {
	s := openTemp(t)

	l, err := s.LoadLayout(context.Background())
	require.NoError(t, err)
	assert.Empty(t, l.Tables)

	catalog, err := s.Catalog(context.Background())
	require.NoError(t, err)
	assert.Nil(t, catalog.Lookup(SnapshotTable))
}

func TestSQLite_IncrementalImports(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	im := engine.NewImporter(s, engine.Options{}, nil)

	first, err := im.Import(ctx, parse(t, schemaV1))
	require.NoError(t, err)
	require.NotEmpty(t, first.Statements)

	catalog, err := s.Catalog(ctx)
	require.NoError(t, err)

	product := catalog.Lookup("sh_Product")
	require.NotNil(t, product)
	assert.NotNil(t, catalog.Lookup("sh_ProductRelatesToProduct"))

	stored, err := s.LoadLayout(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(first.Layout.Tables), len(stored.Tables))

	again, err := im.Import(ctx, parse(t, schemaV1))
	require.NoError(t, err)
	assert.True(t, again.Delta.IsEmpty())

	_, err = s.DB().ExecContext(ctx, `CREATE TABLE legacy_stock (Id INTEGER PRIMARY KEY, Quantity INTEGER)`)
	require.NoError(t, err)

	second, err := im.Import(ctx, parse(t, schemaV2))
	require.NoError(t, err)
	assert.NotEmpty(t, second.Delta.NewColumns)

	for _, stmt := range second.Statements {
		assert.NotContains(t, stmt, "legacy_stock")
	}

	_, err = s.DB().ExecContext(ctx,
		`INSERT INTO sh_Product (ECInstanceId, ECClassId, Code) VALUES (1, ?, 'p-1')`,
		second.Layout.ClassMap(ecschema.ClassID{Schema: "Shop", Name: "Lamp"}).NumericID)
	require.NoError(t, err)

	var versions int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM `+SnapshotTable).Scan(&versions))
	assert.Equal(t, 2, versions)
}

func TestSQLite_FailedStatementRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	err := s.Apply(ctx, &engine.Snapshot{
		Statements: []string{
			`CREATE TABLE ok_table (id INTEGER)`,
			`CREATE TABLE (`,
		},
	})
	require.Error(t, err)

	var stmtErr *ddl.StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, 1, stmtErr.Index)

	catalog, err := s.Catalog(ctx)
	require.NoError(t, err)
	assert.Nil(t, catalog.Lookup("ok_table"))
}
