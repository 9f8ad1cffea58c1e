// Package store persists layouts next to the tables they describe.
//
// Each store keeps a schemamap_layout table with one row per applied import:
// the import id, the schemas it carried, the DDL it ran and the YAML encoded
// layout it produced. LoadLayout returns the newest one. Catalog introspects
// the live tables so ExistingTable classes can bind to them.
//
// SQLite and PostgreSQL run an import's DDL and its snapshot row in one
// transaction. MySQL commits DDL implicitly; its snapshot row is written
// only after every statement succeeded.
package store
