package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schemamap/internal/ddl"
	"schemamap/internal/engine"
	"schemamap/internal/layout"
)

// SnapshotTable holds one row per applied import. The newest row is the
// current layout.
const SnapshotTable = "schemamap_layout"

// Store is an engine.Store backed by a database connection.
type Store interface {
	engine.Store
	Close() error
}

// Open connects to the database for dialect and makes sure the snapshot table
// exists.
func Open(ctx context.Context, dialect, dsn string) (Store, error) {
	d, err := ddl.DialectByName(dialect)
	if err != nil {
		return nil, err
	}

	switch d.Name() {
	case ddl.NameSQLite:
		return OpenSQLite(ctx, dsn)
	case ddl.NamePostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return OpenMySQL(ctx, dsn)
	}
}

// record is the stored form of engine.Snapshot. The gorm tags describe the
// MySQL table; the other stores create it with plain DDL.
type record struct {
	Version    int64     `gorm:"primaryKey;autoIncrement:false"`
	ImportID   string    `gorm:"type:varchar(36);not null"`
	CreatedAt  time.Time `gorm:"type:datetime(6);not null"`
	Schemas    string    `gorm:"type:text;not null"`
	Document   string    `gorm:"type:longtext;not null"`
	Statements string    `gorm:"type:longtext;not null"`
}

func (record) TableName() string { return SnapshotTable }

func newRecord(version int64, snap *engine.Snapshot) (*record, error) {
	doc, err := layout.Encode(snap.Layout)
	if err != nil {
		return nil, err
	}

	return &record{
		Version:    version,
		ImportID:   snap.ImportID.String(),
		CreatedAt:  snap.CreatedAt,
		Schemas:    strings.Join(snap.Schemas, ","),
		Document:   string(doc),
		Statements: strings.Join(snap.Statements, ";\n"),
	}, nil
}

func decodeDocument(doc string, found bool) (*layout.Layout, error) {
	if !found {
		return layout.New(), nil
	}

	l, err := layout.Decode([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("stored layout: %w", err)
	}

	return l, nil
}

// catalogBuilder groups introspected columns by table, skipping the snapshot table.
type catalogBuilder struct {
	tables []*layout.ExistingTable
	byName map[string]*layout.ExistingTable
}

func (b *catalogBuilder) add(table string, col layout.ExistingColumn) {
	if strings.EqualFold(table, SnapshotTable) {
		return
	}

	if b.byName == nil {
		b.byName = make(map[string]*layout.ExistingTable)
	}

	t, ok := b.byName[table]
	if !ok {
		t = &layout.ExistingTable{Name: table}
		b.byName[table] = t
		b.tables = append(b.tables, t)
	}

	t.Columns = append(t.Columns, col)
}

func (b *catalogBuilder) catalog() layout.Catalog {
	return layout.NewCatalog(b.tables...)
}
