package ddl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
)

func parentTable() *layout.Table {
	t := &layout.Table{Name: "ts_Parent", Type: layout.TablePrimary}
	t.AddColumn(&layout.Column{Name: "ECInstanceId", Type: layout.StorageInteger, Kind: layout.ColumnInstanceID})
	t.AddColumn(&layout.Column{Name: "ECClassId", Type: layout.StorageInteger, Kind: layout.ColumnClassID})
	t.AddColumn(&layout.Column{Name: "Name", Type: layout.StorageText, Nullable: true, Collation: layout.CollationNoCase})

	return t
}

func childTable() *layout.Table {
	t := &layout.Table{Name: "ts_Child", Type: layout.TablePrimary}
	t.AddColumn(&layout.Column{Name: "ECInstanceId", Type: layout.StorageInteger, Kind: layout.ColumnInstanceID})
	t.AddColumn(&layout.Column{
		Name:     "ParentId",
		Type:     layout.StorageInteger,
		Nullable: true,
		References: &layout.ForeignKeyRef{
			Table:    "ts_Parent",
			Column:   "ECInstanceId",
			OnDelete: ecschema.OnDeleteSetNull,
		},
	})

	return t
}

func scopedIndex() *layout.Index {
	return &layout.Index{
		Name:           "ix_ts_Parent_Name",
		Table:          "ts_Parent",
		Columns:        []string{"Name"},
		Scope:          []int64{3, 4},
		NotNullColumns: []string{"Name"},
	}
}

func fixture() (*layout.Layout, *layout.Delta) {
	l := layout.New()
	parent := l.AddTable(parentTable())
	child := l.AddTable(childTable())
	ix := l.AddIndex(scopedIndex())

	return l, &layout.Delta{
		NewTables:  []*layout.Table{parent, child},
		NewIndexes: []*layout.Index{ix},
	}
}

func TestGenerate_SQLite(t *testing.T) {
	l, delta := fixture()

	stmts, err := Generate(SQLite{}, delta, l)
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	assert.Equal(t, `CREATE TABLE "ts_Parent" (
  "ECInstanceId" INTEGER PRIMARY KEY,
  "ECClassId" INTEGER NOT NULL,
  "Name" TEXT COLLATE NOCASE
)`, stmts[0])
	assert.Contains(t, stmts[1], `"ParentId" INTEGER REFERENCES "ts_Parent"("ECInstanceId") ON DELETE SET NULL`)
	assert.Equal(t,
		`CREATE INDEX "ix_ts_Parent_Name" ON "ts_Parent" ("Name") WHERE "ECClassId" IN (3,4) AND "Name" IS NOT NULL`,
		stmts[2])
}

func TestGenerate_Postgres(t *testing.T) {
	l, delta := fixture()

	stmts, err := Generate(Postgres{}, delta, l)
	require.NoError(t, err)
	require.Len(t, stmts, 4)

	assert.Contains(t, stmts[0], `"ECInstanceId" BIGINT PRIMARY KEY`)
	assert.NotContains(t, stmts[1], "REFERENCES")
	assert.Equal(t,
		`ALTER TABLE "ts_Child" ADD CONSTRAINT "fk_ts_Child_ParentId" FOREIGN KEY ("ParentId") REFERENCES "ts_Parent"("ECInstanceId") ON DELETE SET NULL`,
		stmts[2])
	assert.Contains(t, stmts[3], `WHERE "ECClassId" IN (3,4)`)
}

func TestGenerate_MySQL(t *testing.T) {
	l, delta := fixture()

	stmts, err := Generate(MySQL{}, delta, l)
	require.NoError(t, err)
	require.Len(t, stmts, 4)

	assert.Contains(t, stmts[0], "`Name` TEXT COLLATE utf8mb4_general_ci")
	assert.Equal(t, "CREATE INDEX `ix_ts_Parent_Name` ON `ts_Parent` (`Name`(191))", stmts[3])

	require.NoError(t, ValidateMySQL(stmts))
}

func TestGenerate_SkipsVirtualAndPreexistingTables(t *testing.T) {
	l := layout.New()
	virtual := l.AddTable(&layout.Table{Name: "ts_Base", IsVirtual: true})
	existing := l.AddTable(&layout.Table{Name: "legacy", Type: layout.TableExisting, IsPreexisting: true})

	stmts, err := Generate(SQLite{}, &layout.Delta{NewTables: []*layout.Table{virtual, existing}}, l)
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestGenerate_AddedColumns(t *testing.T) {
	l := layout.New()
	parent := l.AddTable(parentTable())
	code := parent.AddColumn(&layout.Column{Name: "Code", Type: layout.StorageText, Nullable: true, Unique: true})
	ref := parent.AddColumn(&layout.Column{
		Name:       "OwnerId",
		Type:       layout.StorageInteger,
		Nullable:   true,
		References: &layout.ForeignKeyRef{Table: "ts_Parent", Column: "ECInstanceId"},
	})

	delta := &layout.Delta{NewColumns: []layout.ColumnAddition{
		{Table: "ts_Parent", Column: code},
		{Table: "ts_Parent", Column: ref},
	}}

	tests := []struct {
		name    string
		dialect Dialect
		want    []string
	}{
		{
			name:    "sqlite",
			dialect: SQLite{},
			want: []string{
				`ALTER TABLE "ts_Parent" ADD COLUMN "Code" TEXT`,
				`ALTER TABLE "ts_Parent" ADD COLUMN "OwnerId" INTEGER REFERENCES "ts_Parent"("ECInstanceId") ON DELETE NO ACTION`,
				`CREATE UNIQUE INDEX "uix_ts_Parent_Code" ON "ts_Parent" ("Code")`,
			},
		},
		{
			name:    "mysql",
			dialect: MySQL{},
			want: []string{
				"ALTER TABLE `ts_Parent` ADD COLUMN `Code` TEXT",
				"ALTER TABLE `ts_Parent` ADD COLUMN `OwnerId` BIGINT",
				"ALTER TABLE `ts_Parent` ADD CONSTRAINT `fk_ts_Parent_OwnerId` FOREIGN KEY (`OwnerId`) REFERENCES `ts_Parent`(`ECInstanceId`) ON DELETE NO ACTION",
				"CREATE UNIQUE INDEX `uix_ts_Parent_Code` ON `ts_Parent` (`Code`(191))",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := Generate(tt.dialect, delta, l)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmts)
		})
	}

	assert.True(t, code.Unique, "generation must not mutate the layout")
}

func TestGenerate_ChangedIndexIsRecreated(t *testing.T) {
	l := layout.New()
	l.AddTable(parentTable())
	ix := l.AddIndex(scopedIndex())

	delta := &layout.Delta{ChangedIndexes: []*layout.Index{ix}}

	stmts, err := Generate(SQLite{}, delta, l)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, `DROP INDEX IF EXISTS "ix_ts_Parent_Name"`, stmts[0])
	assert.True(t, strings.HasPrefix(stmts[1], `CREATE INDEX "ix_ts_Parent_Name"`))

	stmts, err = Generate(MySQL{}, delta, l)
	require.NoError(t, err)
	assert.Equal(t, "DROP INDEX `ix_ts_Parent_Name` ON `ts_Parent`", stmts[0])
	require.NoError(t, ValidateMySQL(stmts))
}

func TestGenerate_ScopedUniqueIndex(t *testing.T) {
	l := layout.New()
	l.AddTable(parentTable())

	ix := scopedIndex()
	ix.Unique = true
	ix.Owner = "TestSchema:Child1"
	ix = l.AddIndex(ix)

	delta := &layout.Delta{NewIndexes: []*layout.Index{ix}}

	stmts, err := Generate(SQLite{}, delta, l)
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE UNIQUE INDEX "ix_ts_Parent_Name" ON "ts_Parent" ("Name") WHERE "ECClassId" IN (3,4) AND "Name" IS NOT NULL`,
		stmts[0])

	_, err = Generate(MySQL{}, delta, l)
	require.Error(t, err)
	assert.ErrorIs(t, err, diagnostic.ErrIndexDefinition)

	ix.Scope = nil

	stmts, err = Generate(MySQL{}, delta, l)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE UNIQUE INDEX `ix_ts_Parent_Name`"))
}

func TestDialectByName(t *testing.T) {
	for name, want := range map[string]string{
		"sqlite":     NameSQLite,
		"SQLite3":    NameSQLite,
		"postgresql": NamePostgres,
		"mysql":      NameMySQL,
	} {
		d, err := DialectByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name())
	}

	_, err := DialectByName("oracle")
	assert.Error(t, err)
}

func TestValidateMySQL(t *testing.T) {
	err := ValidateMySQL([]string{
		"CREATE TABLE `a` (`x` BIGINT)",
		"CREATE TABEL `b` (`y` BIGINT)",
	})
	require.Error(t, err)

	var stmtErr *StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, 1, stmtErr.Index)
}

func TestWriteScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "import.sql")
	stmts := []string{"CREATE TABLE `a` (`x` BIGINT)", "CREATE INDEX `ix_a` ON `a` (`x`)"}

	require.NoError(t, WriteScriptFile(path, stmts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `a` (`x` BIGINT);\nCREATE INDEX `ix_a` ON `a` (`x`);\n", string(data))

	pieces, err := SplitScript(string(data))
	require.NoError(t, err)
	assert.Len(t, pieces, 2)
	assert.NoError(t, ValidateMySQL(pieces))
}
