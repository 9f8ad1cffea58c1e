// Package ddl renders layout deltas as SQL for SQLite, PostgreSQL and MySQL.
//
// Statements come out in execution order:
//
//  1. CREATE TABLE for new physical tables
//  2. ALTER TABLE ... ADD COLUMN for columns appended to existing tables
//  3. foreign key constraints, for dialects that cannot declare them inline
//  4. DROP and CREATE for indexes whose class id scope grew, then new indexes
//
// Virtual and preexisting tables produce no DDL. MySQL has no partial
// indexes; their predicates are dropped. Generated MySQL can be checked with
// ValidateMySQL.
package ddl
