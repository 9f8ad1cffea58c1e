// Package match provides fuzzy name matching for "did you mean" suggestions
// and column type compatibility checks against preexisting tables.
package match
