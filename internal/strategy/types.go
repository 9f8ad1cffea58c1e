package strategy

import (
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
)

// ClassStrategy is the effective mapping strategy of one class.
type ClassStrategy struct {
	Class    ecschema.ClassID
	Strategy ecschema.MapStrategy
	// Explicit is set when the class itself carries the ClassMap declaration.
	Explicit bool
	Options  layout.StrategyOptions

	// Root is the class whose declaration binds this class: the TablePerHierarchy
	// root, the SharedTable or ExistingTable declarer, or the class itself.
	Root ecschema.ClassID
	// PrimaryTable holds the id and class id columns.
	PrimaryTable string
	// Table receives the class's own columns; it differs from PrimaryTable
	// below a JoinedTablePerDirectSubclass boundary.
	Table string
	// IDColumn overrides the instance id column name (SharedTable, ExistingTable).
	IDColumn string

	// Propagates marks a NotMapped declaration that binds subclasses.
	Propagates bool
	// JoinedBase is the class declaring JoinedTablePerDirectSubclass in force.
	JoinedBase ecschema.ClassID
	// JoinedRoot is the direct subclass of JoinedBase that owns this class's joined table.
	JoinedRoot ecschema.ClassID
	// ShareColumnsBy is the class declaring the ShareColumns policy in force.
	ShareColumnsBy ecschema.ClassID

	// Relationship marks relationship classes, whose final shape is decided
	// by the relationship mapper.
	Relationship bool

	// Explanation describes how the strategy was derived.
	Explanation string
}

// IsMapped reports whether instances of the class are stored.
func (s *ClassStrategy) IsMapped() bool {
	return s.Strategy != ecschema.StrategyNotMapped
}

// IsJoined reports whether the class stores its own columns in a joined table.
func (s *ClassStrategy) IsJoined() bool {
	return !s.JoinedRoot.IsZero()
}

// IsPolymorphicTable reports whether the class's table is shared with subclasses
// and therefore needs a physical class id column.
func (s *ClassStrategy) IsPolymorphicTable() bool {
	switch s.Strategy {
	case ecschema.StrategyTablePerHierarchy, ecschema.StrategySharedTable:
		return true
	default:
		return false
	}
}

// bindsSubclasses reports whether subclasses inherit this strategy without
// being allowed to declare their own.
func (s *ClassStrategy) bindsSubclasses() bool {
	switch s.Strategy {
	case ecschema.StrategyNotMapped:
		return s.Propagates
	case ecschema.StrategyTablePerHierarchy:
		return !s.Options.Implicit
	case ecschema.StrategySharedTable:
		return !s.Options.Implicit
	default:
		return false
	}
}

// sameBinding reports whether two base strategies lead to the same physical table.
func sameBinding(a, b *ClassStrategy) bool {
	if a.IsMapped() != b.IsMapped() {
		return false
	}

	if !a.IsMapped() {
		return a.Propagates == b.Propagates
	}

	return a.Strategy == b.Strategy &&
		a.Root == b.Root &&
		a.PrimaryTable == b.PrimaryTable &&
		a.JoinedRoot == b.JoinedRoot
}

// Resolution is the result of resolving every class of a graph.
type Resolution struct {
	// Order lists the resolved classes with bases first.
	Order      []*ClassStrategy
	strategies map[ecschema.ClassID]*ClassStrategy
}

// Get returns the strategy of a class, or nil for structs, mixins and unknown ids.
func (r *Resolution) Get(id ecschema.ClassID) *ClassStrategy {
	return r.strategies[id]
}

// Len returns the number of resolved classes.
func (r *Resolution) Len() int {
	return len(r.Order)
}

func (r *Resolution) add(s *ClassStrategy) {
	r.Order = append(r.Order, s)
	r.strategies[s.Class] = s
}
