package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"schemamap/internal/ddl"
	"schemamap/internal/engine"
	"schemamap/internal/layout"
	"schemamap/internal/logging"
)

const sqliteSnapshotDDL = `CREATE TABLE IF NOT EXISTS ` + SnapshotTable + ` (
  version INTEGER PRIMARY KEY,
  import_id TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  schemas TEXT NOT NULL,
  document TEXT NOT NULL,
  statements TEXT NOT NULL
)`

// SQLite stores layouts in a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path with foreign keys enforced.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSnapshotDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating %s: %w", SnapshotTable, err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Dialect() ddl.Dialect { return ddl.SQLite{} }

// DB returns the underlying connection.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) LoadLayout(ctx context.Context) (*layout.Layout, error) {
	var doc string

	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM `+SnapshotTable+` ORDER BY version DESC LIMIT 1`).Scan(&doc)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading layout: %w", err)
	}

	return decodeDocument(doc, err == nil)
}

func (s *SQLite) Catalog(ctx context.Context) (layout.Catalog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}

		tables = append(tables, name)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var b catalogBuilder

	for _, table := range tables {
		if err := s.tableInfo(ctx, table, &b); err != nil {
			return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
		}
	}

	return b.catalog(), nil
}

func (s *SQLite) tableInfo(ctx context.Context, table string, b *catalogBuilder) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+s.Dialect().Quote(table)+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue sql.NullString
		)

		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return err
		}

		b.add(table, layout.ExistingColumn{Name: name, SQLType: typ, Nullable: notNull == 0 && pk == 0})
	}

	return rows.Err()
}

// Apply runs the statements and records the snapshot in one transaction.
func (s *SQLite) Apply(ctx context.Context, snap *engine.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range snap.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &ddl.StatementError{Index: i, Statement: stmt, Err: err}
		}
	}

	var version int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM `+SnapshotTable).Scan(&version); err != nil {
		return err
	}

	rec, err := newRecord(version+1, snap)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+SnapshotTable+` (version, import_id, created_at, schemas, document, statements) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Version, rec.ImportID, snap.CreatedAt.Format(time.RFC3339Nano), rec.Schemas, rec.Document, rec.Statements)
	if err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.WithImport(rec.ImportID).Debug("snapshot recorded", "version", rec.Version)

	return nil
}
