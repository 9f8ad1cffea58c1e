// Package diagnostic provides the mapping error taxonomy and structured
// warnings collected during a schema import.
//
// Key capabilities:
//   - Typed MappingError carrying the offending class/property and rule
//   - errors.Is support against per-kind sentinels
//   - Non-fatal warnings (ignored column constraints, pool overflow)
package diagnostic
