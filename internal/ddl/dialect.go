package ddl

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"schemamap/internal/layout"
)

// Dialect renders layout elements for one database engine.
type Dialect interface {
	// Name is the dialect name used in configuration.
	Name() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// ColumnType returns the declared type of a column.
	ColumnType(c *layout.Column) string
	// Collate returns the COLLATE clause for a collation, or "" when the
	// engine has no equivalent.
	Collate(c layout.Collation) string
	// InlineForeignKeys reports whether foreign keys are declared in
	// CREATE TABLE and ADD COLUMN instead of separate constraints.
	InlineForeignKeys() bool
	// PartialIndexes reports whether CREATE INDEX accepts a WHERE clause.
	PartialIndexes() bool
	// DropIndex returns the statement dropping an index of a table.
	DropIndex(ix *layout.Index) string
}

// Dialect names.
const (
	NameSQLite   = "sqlite"
	NamePostgres = "postgres"
	NameMySQL    = "mysql"
)

// DialectByName returns the dialect registered under name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case NameSQLite, "sqlite3":
		return SQLite{}, nil
	case NamePostgres, "postgresql":
		return Postgres{}, nil
	case NameMySQL:
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

// SQLite renders SQLite DDL.
type SQLite struct{}

func (SQLite) Name() string { return NameSQLite }

func (SQLite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// ColumnType leaves shared columns untyped so they keep any value's affinity.
func (SQLite) ColumnType(c *layout.Column) string {
	return c.Type.SQLiteType()
}

func (SQLite) Collate(c layout.Collation) string {
	switch c {
	case layout.CollationBinary:
		return "COLLATE BINARY"
	case layout.CollationNoCase:
		return "COLLATE NOCASE"
	case layout.CollationRTrim:
		return "COLLATE RTRIM"
	default:
		return ""
	}
}

func (SQLite) InlineForeignKeys() bool { return true }

func (SQLite) PartialIndexes() bool { return true }

func (d SQLite) DropIndex(ix *layout.Index) string {
	return "DROP INDEX IF EXISTS " + d.Quote(ix.Name)
}

// Postgres renders PostgreSQL DDL.
type Postgres struct{}

func (Postgres) Name() string { return NamePostgres }

func (Postgres) Quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func (Postgres) ColumnType(c *layout.Column) string {
	switch c.Type {
	case layout.StorageBlob:
		return "BYTEA"
	case layout.StorageBoolean:
		return "BOOLEAN"
	case layout.StorageInteger:
		return "BIGINT"
	case layout.StorageReal:
		return "DOUBLE PRECISION"
	case layout.StorageTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (Postgres) Collate(c layout.Collation) string {
	if c == layout.CollationBinary {
		return `COLLATE "C"`
	}

	return ""
}

func (Postgres) InlineForeignKeys() bool { return false }

func (Postgres) PartialIndexes() bool { return true }

func (d Postgres) DropIndex(ix *layout.Index) string {
	return "DROP INDEX IF EXISTS " + d.Quote(ix.Name)
}

// MySQL renders MySQL DDL. Text columns are indexed by prefix and partial
// indexes are created without their predicate.
type MySQL struct{}

// mysqlIndexPrefix is the key prefix length of TEXT and BLOB index columns.
const mysqlIndexPrefix = 191

func (MySQL) Name() string { return NameMySQL }

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) ColumnType(c *layout.Column) string {
	switch c.Type {
	case layout.StorageBlob:
		return "LONGBLOB"
	case layout.StorageBoolean:
		return "BOOLEAN"
	case layout.StorageInteger:
		return "BIGINT"
	case layout.StorageReal:
		return "DOUBLE"
	case layout.StorageTimestamp:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

func (MySQL) Collate(c layout.Collation) string {
	switch c {
	case layout.CollationBinary:
		return "COLLATE utf8mb4_bin"
	case layout.CollationNoCase:
		return "COLLATE utf8mb4_general_ci"
	default:
		return ""
	}
}

func (MySQL) InlineForeignKeys() bool { return false }

func (MySQL) PartialIndexes() bool { return false }

func (d MySQL) DropIndex(ix *layout.Index) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.Quote(ix.Name), d.Quote(ix.Table))
}

// indexColumn renders one index key part.
func indexColumn(d Dialect, t *layout.Table, name string) string {
	q := d.Quote(name)

	if _, ok := d.(MySQL); !ok || t == nil {
		return q
	}

	if c := t.Column(name); c != nil {
		switch c.Type {
		case layout.StorageText, layout.StorageBlob, layout.StorageAny:
			return fmt.Sprintf("%s(%d)", q, mysqlIndexPrefix)
		}
	}

	return q
}
