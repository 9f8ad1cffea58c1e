package ecschema

import (
	"schemamap/internal/diagnostic"
)

// validate checks structural rules that do not depend on mapping options.
func (g *Graph) validate() error {
	for _, c := range g.topo {
		if err := g.validateBases(c); err != nil {
			return err
		}

		if err := g.validateRelationship(c); err != nil {
			return err
		}

		if err := g.validateOverrides(c); err != nil {
			return err
		}
	}

	for _, c := range g.order {
		if c.Kind != KindStruct {
			continue
		}

		if g.structContains(c.ID, c.ID, map[ClassID]bool{}) {
			return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "struct contains itself")
		}
	}

	return nil
}

func (g *Graph) validateBases(c *Class) error {
	for _, b := range c.BaseClasses {
		base := g.classes[b]

		if base.IsSealed() {
			return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "base class %s is sealed", b)
		}

		switch {
		case base.Kind == KindMixin && c.Kind != KindStruct && c.Kind != KindRelationship:
			// entities and mixins may implement mixins
		case base.Kind == c.Kind:
		default:
			return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(),
				"%s class cannot derive from %s class %s", c.Kind, base.Kind, b)
		}
	}

	return nil
}

func (g *Graph) validateRelationship(c *Class) error {
	if c.Kind != KindRelationship {
		if c.Relationship != nil {
			return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "only relationship classes declare constraints")
		}

		return nil
	}

	rel := c.Relationship
	if rel == nil {
		return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "relationship class without constraints")
	}

	for _, e := range []End{EndSource, EndTarget} {
		con := rel.Constraint(e)

		if con.Multiplicity.Upper == 0 {
			return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "%s constraint has no multiplicity", e)
		}

		if len(con.Classes) == 0 {
			return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "%s constraint has no classes", e)
		}

		for _, id := range con.Classes {
			if k := g.classes[id].Kind; k == KindStruct {
				return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(),
					"%s constraint class %s is a struct", e, id)
			}
		}
	}

	return nil
}

// validateOverrides rejects redeclared properties whose shape differs from the inherited one.
func (g *Graph) validateOverrides(c *Class) error {
	for _, p := range c.Properties {
		for _, b := range c.BaseClasses {
			inherited, ok := g.FindProperty(b, p.Name)
			if !ok {
				continue
			}

			if inherited.Kind != p.Kind || inherited.PrimitiveType != p.PrimitiveType || inherited.StructType != p.StructType {
				return diagnostic.NewPropertyf(diagnostic.SchemaGraphError, c.ID.String(), p.Name,
					"override changes type declared on %s", inherited.Declarer)
			}
		}
	}

	return nil
}

func (g *Graph) structContains(root, cur ClassID, seen map[ClassID]bool) bool {
	if seen[cur] {
		return false
	}

	seen[cur] = true

	for _, ref := range g.Properties(cur) {
		if ref.Kind != PropertyStruct {
			continue
		}

		if ref.StructType == root || g.structContains(root, ref.StructType, seen) {
			return true
		}
	}

	return false
}
