// Package engine runs an import end to end.
//
// Mapper is the pure pipeline. It resolves strategies, allocates tables and
// columns, maps relationships, builds indexes and diffs the result against
// the prior layout. Importer wraps it with a Store: it loads the prior layout
// and the catalog of preexisting tables, renders DDL for the store's dialect
// and applies it together with the new layout snapshot.
//
// Imports are append-only. Any attempt to change something a prior import
// fixed fails with diagnostic.ErrIncrementalLayoutViolation and leaves the
// store untouched.
package engine
