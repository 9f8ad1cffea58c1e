package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"schemamap/internal/ddl"
	"schemamap/internal/engine"
	"schemamap/internal/layout"
	"schemamap/internal/logging"
)

const postgresSnapshotDDL = `CREATE TABLE IF NOT EXISTS ` + SnapshotTable + ` (
  version BIGINT PRIMARY KEY,
  import_id TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  schemas TEXT NOT NULL,
  document TEXT NOT NULL,
  statements TEXT NOT NULL
)`

// Postgres stores layouts in a PostgreSQL schema. DDL and the snapshot
// commit together.
type Postgres struct {
	conn *pgx.Conn
}

// OpenPostgres connects with a libpq connection string or URL.
func OpenPostgres(ctx context.Context, connString string) (*Postgres, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.Exec(ctx, postgresSnapshotDDL); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("creating %s: %w", SnapshotTable, err)
	}

	return &Postgres{conn: conn}, nil
}

func (s *Postgres) Dialect() ddl.Dialect { return ddl.Postgres{} }

func (s *Postgres) Close() error {
	return s.conn.Close(context.Background())
}

func (s *Postgres) LoadLayout(ctx context.Context) (*layout.Layout, error) {
	var doc string

	err := s.conn.QueryRow(ctx,
		`SELECT document FROM `+SnapshotTable+` ORDER BY version DESC LIMIT 1`).Scan(&doc)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reading layout: %w", err)
	}

	return decodeDocument(doc, err == nil)
}

func (s *Postgres) Catalog(ctx context.Context) (layout.Catalog, error) {
	query := `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		ORDER BY table_name, ordinal_position
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var b catalogBuilder

	for rows.Next() {
		var table, name, typ, nullable string
		if err := rows.Scan(&table, &name, &typ, &nullable); err != nil {
			return nil, err
		}

		b.add(table, layout.ExistingColumn{Name: name, SQLType: typ, Nullable: nullable == "YES"})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return b.catalog(), nil
}

func (s *Postgres) Apply(ctx context.Context, snap *engine.Snapshot) error {
	var version int64

	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		for i, stmt := range snap.Statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return &ddl.StatementError{Index: i, Statement: stmt, Err: err}
			}
		}

		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM `+SnapshotTable).Scan(&version); err != nil {
			return err
		}

		version++

		rec, err := newRecord(version, snap)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO `+SnapshotTable+` (version, import_id, created_at, schemas, document, statements) VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.Version, rec.ImportID, rec.CreatedAt, rec.Schemas, rec.Document, rec.Statements)
		if err != nil {
			return fmt.Errorf("recording snapshot: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	logging.WithImport(snap.ImportID.String()).Debug("snapshot recorded", "version", version)

	return nil
}
