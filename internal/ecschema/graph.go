package ecschema

import (
	"errors"
	"fmt"
	"strings"

	"schemamap/internal/diagnostic"
)

// PropertyRef is a property as seen from a class, with the class that declared it.
type PropertyRef struct {
	*Property
	Declarer ClassID
}

// Graph is the read-only schema graph an import operates on.
type Graph struct {
	schemas  []*Schema
	byName   map[string]*Schema
	aliases  map[string]string
	classes  map[ClassID]*Class
	order    []*Class
	schemaOf map[ClassID]*Schema
	derived  map[ClassID][]*Class
	topo     []*Class
	props    map[ClassID][]PropertyRef
}

// NewGraph registers the schemas, resolves every class reference and
// validates the result.
func NewGraph(schemas ...*Schema) (*Graph, error) {
	g := &Graph{
		byName:   make(map[string]*Schema),
		aliases:  make(map[string]string),
		classes:  make(map[ClassID]*Class),
		schemaOf: make(map[ClassID]*Schema),
		derived:  make(map[ClassID][]*Class),
		props:    make(map[ClassID][]PropertyRef),
	}

	for _, s := range schemas {
		if err := g.register(s); err != nil {
			return nil, err
		}
	}

	if err := g.resolve(); err != nil {
		return nil, err
	}

	if err := g.sort(); err != nil {
		return nil, err
	}

	if err := g.validate(); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *Graph) register(s *Schema) error {
	if s.Name == "" {
		return diagnostic.Newf(diagnostic.SchemaGraphError, "", "schema without name")
	}

	if _, dup := g.byName[s.Name]; dup {
		return diagnostic.Newf(diagnostic.SchemaGraphError, s.Name, "schema declared twice")
	}

	g.schemas = append(g.schemas, s)
	g.byName[s.Name] = s
	g.aliases[s.Name] = s.Name

	if s.Alias != "" {
		if owner, taken := g.aliases[s.Alias]; taken && owner != s.Name {
			return diagnostic.Newf(diagnostic.SchemaGraphError, s.Name, "alias %q already used by schema %s", s.Alias, owner)
		}

		g.aliases[s.Alias] = s.Name
	}

	for _, c := range s.Classes {
		c.ID = ClassID{Schema: s.Name, Name: c.Name}

		if c.Name == "" {
			return diagnostic.Newf(diagnostic.SchemaGraphError, s.Name, "class without name")
		}

		if _, dup := g.classes[c.ID]; dup {
			return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "class declared twice")
		}

		g.classes[c.ID] = c
		g.schemaOf[c.ID] = s
		g.order = append(g.order, c)
	}

	return nil
}

// normalize resolves schema aliases and fills in the owning schema of bare names.
func (g *Graph) normalize(ref ClassID, owner *Schema) (ClassID, error) {
	if ref.Schema == "" {
		ref.Schema = owner.Name
	} else if name, ok := g.aliases[ref.Schema]; ok {
		ref.Schema = name
	}

	if _, ok := g.classes[ref]; !ok {
		return ref, fmt.Errorf("unknown class %s", ref)
	}

	return ref, nil
}

func (g *Graph) resolve() error {
	for _, c := range g.order {
		owner := g.schemaOf[c.ID]

		for i, b := range c.BaseClasses {
			id, err := g.normalize(b, owner)
			if err != nil {
				return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "base class: %v", err)
			}

			c.BaseClasses[i] = id
			g.derived[id] = append(g.derived[id], c)
		}

		for _, p := range c.Properties {
			if err := g.resolveProperty(c, p, owner); err != nil {
				return err
			}
		}

		if rel := c.Relationship; rel != nil {
			for _, e := range []End{EndSource, EndTarget} {
				con := rel.Constraint(e)
				for i, ref := range con.Classes {
					id, err := g.normalize(ref, owner)
					if err != nil {
						return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "%s constraint: %v", e, err)
					}

					con.Classes[i] = id
				}
			}
		}
	}

	return nil
}

func (g *Graph) resolveProperty(c *Class, p *Property, owner *Schema) error {
	if p.Name == "" {
		return diagnostic.Newf(diagnostic.SchemaGraphError, c.ID.String(), "property without name")
	}

	if p.Navigation != nil {
		id, err := g.normalize(p.Navigation.Relationship, owner)
		if err != nil {
			return diagnostic.NewPropertyf(diagnostic.SchemaGraphError, c.ID.String(), p.Name, "navigation: %v", err)
		}

		p.Navigation.Relationship = id
		p.Kind = PropertyNavigation

		return nil
	}

	if p.Type == "" {
		return diagnostic.NewPropertyf(diagnostic.SchemaGraphError, c.ID.String(), p.Name, "property has no type")
	}

	if pt, ok := parsePrimitiveType(p.Type); ok {
		p.PrimitiveType = pt
		p.Kind = PropertyPrimitive

		if p.Array {
			p.Kind = PropertyPrimitiveArray
		}

		return nil
	}

	id, err := g.normalize(ParseClassID(p.Type), owner)
	if err != nil {
		return diagnostic.NewPropertyf(diagnostic.SchemaGraphError, c.ID.String(), p.Name, "type: %v", err)
	}

	if g.classes[id].Kind != KindStruct {
		return diagnostic.NewPropertyf(diagnostic.SchemaGraphError, c.ID.String(), p.Name, "type %s is not a struct class", id)
	}

	p.StructType = id
	p.Kind = PropertyStruct

	if p.Array {
		p.Kind = PropertyStructArray
	}

	return nil
}

func parsePrimitiveType(s string) (PrimitiveType, bool) {
	switch s {
	case "integer", "int32":
		return TypeInteger, true
	case "int64":
		return TypeLong, true
	case "bool":
		return TypeBoolean, true
	case "Bentley.Geometry.Common.IGeometry":
		return TypeGeometry, true
	}

	for t := TypeBinary; t <= TypeGeometry; t++ {
		if strings.EqualFold(t.String(), s) {
			return t, true
		}
	}

	return 0, false
}

func (g *Graph) sort() error {
	index := make(map[ClassID]int, len(g.order))
	for i, c := range g.order {
		index[c.ID] = i
	}

	order, err := topoSort(len(g.order), func(i int) []int {
		bases := g.order[i].BaseClasses
		deps := make([]int, 0, len(bases))

		for _, b := range bases {
			deps = append(deps, index[b])
		}

		return deps
	})
	if err != nil {
		subject := ""

		var ce *cycleError
		if errors.As(err, &ce) {
			subject = g.order[ce.node].ID.String()
		}

		return diagnostic.Newf(diagnostic.SchemaGraphError, subject, "inheritance cycle")
	}

	g.topo = make([]*Class, 0, len(order))
	for _, i := range order {
		g.topo = append(g.topo, g.order[i])
	}

	return nil
}

// Schemas returns the registered schemas in registration order.
func (g *Graph) Schemas() []*Schema {
	return g.schemas
}

// Class returns the class with the given id, or nil.
func (g *Graph) Class(id ClassID) *Class {
	return g.classes[id]
}

// SchemaOf returns the schema declaring the class.
func (g *Graph) SchemaOf(id ClassID) *Schema {
	return g.schemaOf[id]
}

// Classes returns all classes in declaration order.
func (g *Graph) Classes() []*Class {
	return g.order
}

// TopologicalOrder returns all classes with every base before its subclasses.
// Ties follow declaration order.
func (g *Graph) TopologicalOrder() []*Class {
	return g.topo
}

// DirectSubclasses returns the classes listing id as a base class, in declaration order.
func (g *Graph) DirectSubclasses(id ClassID) []*Class {
	return g.derived[id]
}

// Descendants returns all transitive subclasses of id in topological order.
func (g *Graph) Descendants(id ClassID) []*Class {
	var out []*Class

	for _, c := range g.topo {
		if c.ID != id && g.IsSubclassOf(c.ID, id) {
			out = append(out, c)
		}
	}

	return out
}

// IsSubclassOf reports whether id equals ancestor or derives from it.
func (g *Graph) IsSubclassOf(id, ancestor ClassID) bool {
	if id == ancestor {
		return true
	}

	c := g.classes[id]
	if c == nil {
		return false
	}

	for _, b := range c.BaseClasses {
		if g.IsSubclassOf(b, ancestor) {
			return true
		}
	}

	return false
}

// Properties returns the properties visible on a class: inherited ones first,
// following base class order, then the class's own. A redeclared property
// keeps the position of its first declaration.
func (g *Graph) Properties(id ClassID) []PropertyRef {
	if cached, ok := g.props[id]; ok {
		return cached
	}

	c := g.classes[id]
	if c == nil {
		return nil
	}

	var out []PropertyRef

	seen := make(map[string]bool)

	for _, b := range c.BaseClasses {
		for _, ref := range g.Properties(b) {
			if !seen[ref.Name] {
				seen[ref.Name] = true
				out = append(out, ref)
			}
		}
	}

	for _, p := range c.Properties {
		if !seen[p.Name] {
			seen[p.Name] = true
			out = append(out, PropertyRef{Property: p, Declarer: id})
		}
	}

	g.props[id] = out

	return out
}

// FindProperty returns the property visible on the class with the given name.
func (g *Graph) FindProperty(id ClassID, name string) (PropertyRef, bool) {
	for _, ref := range g.Properties(id) {
		if ref.Name == name {
			return ref, true
		}
	}

	return PropertyRef{}, false
}

// NavigationProperties returns the navigation properties of the graph that
// point at the given relationship, in declaration order.
func (g *Graph) NavigationProperties(rel ClassID) []PropertyRef {
	var out []PropertyRef

	for _, c := range g.order {
		for _, p := range c.Properties {
			if p.Kind == PropertyNavigation && p.Navigation.Relationship == rel {
				out = append(out, PropertyRef{Property: p, Declarer: c.ID})
			}
		}
	}

	return out
}
