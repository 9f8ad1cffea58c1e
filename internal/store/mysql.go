package store

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schemamap/internal/ddl"
	"schemamap/internal/engine"
	"schemamap/internal/layout"
	"schemamap/internal/logging"
)

// MySQL stores layouts in a MySQL database. MySQL commits DDL implicitly, so
// statements run one by one and the snapshot is written after the last one
// succeeds.
type MySQL struct {
	db *gorm.DB
}

// OpenMySQL connects with a go-sql-driver DSN. parseTime is forced on.
func OpenMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}

	cfg.ParseTime = true

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("creating %s: %w", SnapshotTable, err)
	}

	return &MySQL{db: db}, nil
}

func (s *MySQL) Dialect() ddl.Dialect { return ddl.MySQL{} }

func (s *MySQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (s *MySQL) LoadLayout(ctx context.Context) (*layout.Layout, error) {
	var rec record

	err := s.db.WithContext(ctx).Order("version DESC").Take(&rec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading layout: %w", err)
	}

	return decodeDocument(rec.Document, err == nil)
}

func (s *MySQL) Catalog(ctx context.Context) (layout.Catalog, error) {
	migrator := s.db.WithContext(ctx).Migrator()

	tables, err := migrator.GetTables()
	if err != nil {
		return nil, err
	}

	var b catalogBuilder

	for _, table := range tables {
		cols, err := migrator.ColumnTypes(table)
		if err != nil {
			return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
		}

		for _, c := range cols {
			typ, ok := c.ColumnType()
			if !ok {
				typ = c.DatabaseTypeName()
			}

			nullable, _ := c.Nullable()
			b.add(table, layout.ExistingColumn{Name: c.Name(), SQLType: typ, Nullable: nullable})
		}
	}

	return b.catalog(), nil
}

func (s *MySQL) Apply(ctx context.Context, snap *engine.Snapshot) error {
	db := s.db.WithContext(ctx)

	for i, stmt := range snap.Statements {
		if err := db.Exec(stmt).Error; err != nil {
			return &ddl.StatementError{Index: i, Statement: stmt, Err: err}
		}
	}

	var version int64
	if err := db.Model(&record{}).Select("COALESCE(MAX(version), 0)").Scan(&version).Error; err != nil {
		return err
	}

	rec, err := newRecord(version+1, snap)
	if err != nil {
		return err
	}

	if err := db.Create(rec).Error; err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}

	logging.WithImport(rec.ImportID).Debug("snapshot recorded", "version", rec.Version)

	return nil
}
