package relmap

import (
	"fmt"
	"slices"
	"strings"

	"schemamap/internal/allocate"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/strategy"
)

// Options tune relationship mapping.
type Options struct {
	// LinkTableWithoutNavigation maps relationships that could use a foreign
	// key but have no navigation property to a link table instead.
	LinkTableWithoutNavigation bool
}

// Mapper maps relationship classes to foreign key columns or link tables.
type Mapper struct {
	graph  *ecschema.Graph
	res    *strategy.Resolution
	alloc  *allocate.Allocator
	layout *layout.Layout
	opts   Options
	diags  diagnostic.Diagnostics
}

// NewMapper creates a Mapper working on the allocator's layout. The
// allocator must have run.
func NewMapper(graph *ecschema.Graph, res *strategy.Resolution, alloc *allocate.Allocator, opts Options) *Mapper {
	return &Mapper{
		graph:  graph,
		res:    res,
		alloc:  alloc,
		layout: alloc.Layout(),
		opts:   opts,
	}
}

// Diagnostics returns the warnings collected so far.
func (m *Mapper) Diagnostics() diagnostic.Diagnostics {
	return m.diags
}

// MapAll maps every relationship class, base relationships first.
func (m *Mapper) MapAll() error {
	for _, s := range m.res.Order {
		if !s.Relationship {
			continue
		}

		if err := m.mapRelationship(s); err != nil {
			return err
		}
	}

	return nil
}

func (m *Mapper) mapRelationship(s *strategy.ClassStrategy) error {
	c := m.graph.Class(s.Class)
	navs := m.graph.NavigationProperties(s.Class)

	if !s.IsMapped() {
		if len(navs) > 0 {
			return diagnostic.NewPropertyf(diagnostic.UnsupportedRelationshipShape, navs[0].Declarer.String(), navs[0].Name,
				"navigation property references NotMapped relationship %s", s.Class)
		}

		return nil
	}

	ri := c.Relationship
	if fk := ri.ForeignKeyConstraint; fk != nil && fk.OnDeleteAction == ecschema.OnDeleteCascade && ri.Strength != ecschema.StrengthEmbedding {
		return diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, s.Class.String(),
			"OnDeleteAction Cascade requires embedding strength, relationship is %s", ri.Strength)
	}

	var (
		mapping *layout.RelationshipMapping
		err     error
	)

	switch {
	case s.Root != s.Class:
		mapping, err = m.inheritMapping(s, c, navs)
	case m.needsLinkTable(c, navs):
		mapping, err = m.mapLinkTable(s, c, navs)
	default:
		mapping, err = m.mapForeignKey(s, c, navs)
	}

	if err != nil {
		return err
	}

	return m.register(mapping)
}

// register records a mapping, checking it against the one persisted earlier.
func (m *Mapper) register(mapping *layout.RelationshipMapping) error {
	prior := m.layout.Relationship(mapping.Relationship)
	if prior == nil {
		m.layout.AddRelationship(mapping)
		return nil
	}

	mapping.HolderTables = priorFirst(prior.HolderTables, mapping.HolderTables)

	if !mapping.Extends(prior) {
		return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, mapping.Relationship.String(),
			"relationship was mapped as %s and its mapping cannot change", prior.Kind)
	}

	prior.HolderTables = mapping.HolderTables

	return nil
}

func (m *Mapper) needsLinkTable(c *ecschema.Class, navs []ecschema.PropertyRef) bool {
	ri := c.Relationship

	switch {
	case ri.LinkTableMap != nil:
		return true
	case ri.Source.Multiplicity.IsMany() && ri.Target.Multiplicity.IsMany():
		return true
	case len(m.graph.Properties(c.ID)) > 0:
		return true
	case len(navs) == 0 && m.opts.LinkTableWithoutNavigation:
		m.diags.AddInfo("link_table_without_navigation",
			"no navigation property, mapped to a link table", c.ID.String(), "")

		return true
	default:
		return false
	}
}

// inheritMapping maps a relationship subclass onto its root relationship's mapping.
func (m *Mapper) inheritMapping(s *strategy.ClassStrategy, c *ecschema.Class, navs []ecschema.PropertyRef) (*layout.RelationshipMapping, error) {
	subject := s.Class.String()

	if c.Relationship.LinkTableMap != nil {
		return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"LinkTableRelationshipMap is only valid on a root relationship class, root is %s", s.Root)
	}

	if len(navs) > 0 {
		return nil, diagnostic.NewPropertyf(diagnostic.UnsupportedRelationshipShape, navs[0].Declarer.String(), navs[0].Name,
			"navigation properties must reference the root relationship %s", s.Root)
	}

	base := m.layout.Relationship(s.Root)
	if base == nil {
		return nil, fmt.Errorf("relationship %s: base relationship %s is not mapped", s.Class, s.Root)
	}

	cm := m.layout.ClassMap(s.Class)

	if base.Kind == layout.MappingLinkTable {
		cm.Table = base.Table
		cm.PrimaryTable = base.Table
		cm.IDColumn = m.layout.ClassMap(s.Root).IDColumn
		cm.ClassIDColumn = m.layout.ClassMap(s.Root).ClassIDColumn
		m.layout.Table(base.Table).AddOwner(s.Class)

		if err := m.alloc.MapProperties(s, cm); err != nil {
			return nil, err
		}
	} else if len(m.graph.Properties(s.Class)) > 0 {
		return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"relationship properties need a link table, base relationship %s maps to a foreign key", s.Root)
	}

	mapping := *base
	mapping.Relationship = s.Class
	mapping.HolderTables = slices.Clone(base.HolderTables)

	return &mapping, nil
}

// constraintClasses lists the classes of a constraint, expanded by their
// descendants when the constraint is polymorphic. Mixins contribute only
// their implementing classes.
func (m *Mapper) constraintClasses(con *ecschema.Constraint) []ecschema.ClassID {
	var out []ecschema.ClassID

	add := func(id ecschema.ClassID) {
		if m.graph.Class(id).Kind != ecschema.KindMixin && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	for _, id := range con.Classes {
		add(id)

		if con.Polymorphic {
			for _, d := range m.graph.Descendants(id) {
				add(d.ID)
			}
		}
	}

	return out
}

// endTables returns the distinct primary tables storing the classes of a constraint.
func (m *Mapper) endTables(subject string, end ecschema.End, con *ecschema.Constraint) ([]*layout.Table, error) {
	var out []*layout.Table

	for _, id := range m.constraintClasses(con) {
		cs := m.res.Get(id)
		if cs == nil || !cs.IsMapped() {
			if slices.Contains(con.Classes, id) {
				return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
					"%s constraint class %s is not mapped", end, id)
			}

			continue
		}

		t := m.layout.Table(cs.PrimaryTable)
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}

	if len(out) == 0 {
		return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"%s constraint has no mapped class", end)
	}

	return out, nil
}

// priorFirst orders tables so those recorded earlier keep their positions
// and tables new to this import follow.
func priorFirst(prior, cur []string) []string {
	out := make([]string, 0, len(cur))

	for _, p := range prior {
		if i := slices.IndexFunc(cur, func(c string) bool { return sameTable(c, p) }); i >= 0 {
			out = append(out, cur[i])
		}
	}

	for _, c := range cur {
		if !slices.ContainsFunc(prior, func(p string) bool { return sameTable(c, p) }) {
			out = append(out, c)
		}
	}

	return out
}

func sameTable(a, b string) bool {
	return strings.EqualFold(a, b)
}
