package layout

import (
	"strings"

	"schemamap/internal/ecschema"
)

// Layout is the complete persisted mapping state of a store. Slices keep
// insertion order so that every traversal is deterministic.
type Layout struct {
	Tables        []*Table               `yaml:"tables,omitempty"`
	ClassMaps     []*ClassMap            `yaml:"classMaps,omitempty"`
	Relationships []*RelationshipMapping `yaml:"relationships,omitempty"`
	Indexes       []*Index               `yaml:"indexes,omitempty"`
	Pools         []*SharedPool          `yaml:"pools,omitempty"`

	tables    map[string]*Table
	classMaps map[ecschema.ClassID]*ClassMap
	rels      map[ecschema.ClassID]*RelationshipMapping
	indexes   map[string]*Index
	pools     map[string]*SharedPool
}

// New returns an empty layout.
func New() *Layout {
	l := &Layout{}
	l.reindex()

	return l
}

func (l *Layout) ensureIndex() {
	if l.tables == nil {
		l.reindex()
	}
}

func (l *Layout) reindex() {
	l.tables = make(map[string]*Table, len(l.Tables))
	for _, t := range l.Tables {
		l.tables[strings.ToLower(t.Name)] = t
	}

	l.classMaps = make(map[ecschema.ClassID]*ClassMap, len(l.ClassMaps))
	for _, cm := range l.ClassMaps {
		l.classMaps[cm.Class] = cm
	}

	l.rels = make(map[ecschema.ClassID]*RelationshipMapping, len(l.Relationships))
	for _, r := range l.Relationships {
		l.rels[r.Relationship] = r
	}

	l.indexes = make(map[string]*Index, len(l.Indexes))
	for _, ix := range l.Indexes {
		l.indexes[strings.ToLower(ix.Name)] = ix
	}

	l.pools = make(map[string]*SharedPool, len(l.Pools))
	for _, p := range l.Pools {
		l.pools[strings.ToLower(p.Table)] = p
	}
}

// Table returns the named table (case-insensitive), or nil.
func (l *Layout) Table(name string) *Table {
	l.ensureIndex()

	return l.tables[strings.ToLower(name)]
}

// AddTable registers a new table.
func (l *Layout) AddTable(t *Table) *Table {
	l.ensureIndex()

	l.Tables = append(l.Tables, t)
	l.tables[strings.ToLower(t.Name)] = t

	return t
}

// ClassMap returns the class map of a class, or nil.
func (l *Layout) ClassMap(id ecschema.ClassID) *ClassMap {
	l.ensureIndex()

	return l.classMaps[id]
}

// AddClassMap registers a class map.
func (l *Layout) AddClassMap(cm *ClassMap) *ClassMap {
	l.ensureIndex()

	l.ClassMaps = append(l.ClassMaps, cm)
	l.classMaps[cm.Class] = cm

	return cm
}

// NextClassID returns the next free numeric class id.
func (l *Layout) NextClassID() int64 {
	var maxID int64

	for _, cm := range l.ClassMaps {
		maxID = max(maxID, cm.NumericID)
	}

	return maxID + 1
}

// Relationship returns the mapping of a relationship class, or nil.
func (l *Layout) Relationship(id ecschema.ClassID) *RelationshipMapping {
	l.ensureIndex()

	return l.rels[id]
}

// AddRelationship registers a relationship mapping.
func (l *Layout) AddRelationship(m *RelationshipMapping) *RelationshipMapping {
	l.ensureIndex()

	l.Relationships = append(l.Relationships, m)
	l.rels[m.Relationship] = m

	return m
}

// Index returns the named index (case-insensitive), or nil.
func (l *Layout) Index(name string) *Index {
	l.ensureIndex()

	return l.indexes[strings.ToLower(name)]
}

// AddIndex registers an index.
func (l *Layout) AddIndex(ix *Index) *Index {
	l.ensureIndex()

	l.Indexes = append(l.Indexes, ix)
	l.indexes[strings.ToLower(ix.Name)] = ix

	return ix
}

// Pool returns the shared pool of a table, or nil.
func (l *Layout) Pool(table string) *SharedPool {
	l.ensureIndex()

	return l.pools[strings.ToLower(table)]
}

// AddPool registers a shared pool.
func (l *Layout) AddPool(p *SharedPool) *SharedPool {
	l.ensureIndex()

	l.Pools = append(l.Pools, p)
	l.pools[strings.ToLower(p.Table)] = p

	return p
}

// Clone returns a deep copy. The import pipeline mutates a clone so the
// prior snapshot stays untouched when a stage fails.
func (l *Layout) Clone() *Layout {
	out := &Layout{
		Tables:        make([]*Table, 0, len(l.Tables)),
		ClassMaps:     make([]*ClassMap, 0, len(l.ClassMaps)),
		Relationships: make([]*RelationshipMapping, 0, len(l.Relationships)),
		Indexes:       make([]*Index, 0, len(l.Indexes)),
		Pools:         make([]*SharedPool, 0, len(l.Pools)),
	}

	for _, t := range l.Tables {
		out.Tables = append(out.Tables, t.clone())
	}

	for _, cm := range l.ClassMaps {
		c := *cm
		c.Properties = make([]PropertyMap, len(cm.Properties))

		for i, p := range cm.Properties {
			p.Columns = append([]string(nil), p.Columns...)
			c.Properties[i] = p
		}

		out.ClassMaps = append(out.ClassMaps, &c)
	}

	for _, r := range l.Relationships {
		c := *r
		c.HolderTables = append([]string(nil), r.HolderTables...)
		out.Relationships = append(out.Relationships, &c)
	}

	for _, ix := range l.Indexes {
		out.Indexes = append(out.Indexes, ix.clone())
	}

	for _, p := range l.Pools {
		c := *p
		c.Columns = append([]string(nil), p.Columns...)
		out.Pools = append(out.Pools, &c)
	}

	out.reindex()

	return out
}

func (t *Table) clone() *Table {
	c := *t
	c.Columns = make([]*Column, len(t.Columns))

	for i, col := range t.Columns {
		cc := *col
		if col.References != nil {
			ref := *col.References
			cc.References = &ref
		}

		c.Columns[i] = &cc
	}

	c.OwningClasses = append([]ecschema.ClassID(nil), t.OwningClasses...)

	return &c
}

func (ix *Index) clone() *Index {
	c := *ix
	c.Columns = append([]string(nil), ix.Columns...)
	c.NotNullColumns = append([]string(nil), ix.NotNullColumns...)
	c.Scope = append([]int64(nil), ix.Scope...)

	return &c
}
