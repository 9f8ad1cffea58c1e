package allocate

import (
	"strings"

	"schemamap/internal/common"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/match"
	"schemamap/internal/strategy"
)

// Allocator assigns tables, columns and numeric class ids to resolved classes.
// It mutates the working layout it was given; callers pass a clone of the
// prior layout so a failed import leaves the prior snapshot untouched.
type Allocator struct {
	graph   *ecschema.Graph
	res     *strategy.Resolution
	layout  *layout.Layout
	catalog layout.Catalog

	nextID  int64
	created map[string]bool
	diags   diagnostic.Diagnostics
}

// NewAllocator creates an Allocator. catalog lists the preexisting tables
// ExistingTable classes bind to; it may be nil when none are used.
func NewAllocator(graph *ecschema.Graph, res *strategy.Resolution, working *layout.Layout, catalog layout.Catalog) *Allocator {
	return &Allocator{
		graph:   graph,
		res:     res,
		layout:  working,
		catalog: catalog,
		nextID:  working.NextClassID(),
		created: make(map[string]bool),
	}
}

// Diagnostics returns the warnings collected so far.
func (a *Allocator) Diagnostics() diagnostic.Diagnostics {
	return a.diags
}

// Layout returns the working layout.
func (a *Allocator) Layout() *layout.Layout {
	return a.layout
}

// CreateTable registers a table created by this import.
func (a *Allocator) CreateTable(t *layout.Table) *layout.Table {
	a.created[strings.ToLower(t.Name)] = true

	return a.layout.AddTable(t)
}

// IsNew reports whether the table is created by this import, so NOT NULL
// columns can be added without a default.
func (a *Allocator) IsNew(table string) bool {
	return a.created[strings.ToLower(table)]
}

// Allocate maps every resolved class in bases-first order. Relationship
// classes only receive a class map and numeric id here; their tables are
// decided by the relationship mapper.
func (a *Allocator) Allocate() error {
	for _, s := range a.res.Order {
		cm := a.classMap(s)

		if !s.IsMapped() || s.Relationship {
			continue
		}

		if err := a.ensureTables(s); err != nil {
			return err
		}

		if err := a.MapProperties(s, cm); err != nil {
			return err
		}
	}

	return nil
}

// classMap returns the class map persisted by an earlier import or registers a new one.
func (a *Allocator) classMap(s *strategy.ClassStrategy) *layout.ClassMap {
	if cm := a.layout.ClassMap(s.Class); cm != nil {
		return cm
	}

	cm := &layout.ClassMap{
		Class:    s.Class,
		Strategy: s.Strategy,
		Options:  s.Options,
	}

	if s.IsMapped() {
		cm.NumericID = a.nextID
		a.nextID++

		if !s.Relationship {
			cm.Table = s.Table
			cm.PrimaryTable = s.PrimaryTable
			cm.ClassIDColumn = common.ClassIDColumn
		}
	}

	return a.layout.AddClassMap(cm)
}

// ensureTables creates the primary table and, below a joined boundary, the
// joined table of a class.
func (a *Allocator) ensureTables(s *strategy.ClassStrategy) error {
	primary, err := a.ensurePrimary(s)
	if err != nil {
		return err
	}

	primary.AddOwner(s.Class)

	cm := a.layout.ClassMap(s.Class)
	if cm.IDColumn == "" {
		cm.IDColumn = primary.InstanceIDColumn().Name
	}

	if !s.IsJoined() {
		return nil
	}

	joined := a.layout.Table(s.Table)
	if joined == nil {
		joined = a.createJoined(s, primary)
	} else if joined.Type != layout.TableJoined || !strings.EqualFold(joined.ParentTable, primary.Name) {
		return diagnostic.Newf(diagnostic.StrategyConflict, s.Class.String(),
			"joined table %s collides with %s table of the same name", s.Table, joined.Type)
	}

	joined.AddOwner(s.Class)

	return nil
}

func (a *Allocator) ensurePrimary(s *strategy.ClassStrategy) (*layout.Table, error) {
	t := a.layout.Table(s.PrimaryTable)
	if t == nil {
		if s.Strategy == ecschema.StrategyExistingTable {
			return a.bindExisting(s)
		}

		return a.createPrimary(s), nil
	}

	want := layout.TablePrimary
	if s.Strategy == ecschema.StrategyExistingTable {
		want = layout.TableExisting
	}

	if t.Type != want {
		return nil, diagnostic.Newf(diagnostic.StrategyConflict, s.Class.String(),
			"table %s is already used as a %s table", t.Name, t.Type)
	}

	// single-class tables are not shared with other hierarchies
	if cid := t.ClassIDColumn(); cid != nil && cid.Virtual && !t.IsOwnedBy(s.Root) {
		return nil, diagnostic.Newf(diagnostic.StrategyConflict, s.Class.String(),
			"table %s already stores class %s and has no class id column", t.Name, t.OwningClasses[0])
	}

	return t, nil
}

func (a *Allocator) createPrimary(s *strategy.ClassStrategy) *layout.Table {
	c := a.graph.Class(s.Class)

	t := &layout.Table{
		Name: s.PrimaryTable,
		Type: layout.TablePrimary,
		// abstract classes with their own table never hold rows
		IsVirtual: s.Strategy == ecschema.StrategyOwnTable && c.Modifier == ecschema.ModifierAbstract,
	}

	idName := s.IDColumn
	if idName == "" {
		idName = common.InstanceIDColumn
	}

	t.AddColumn(&layout.Column{Name: idName, Type: layout.StorageInteger, Kind: layout.ColumnInstanceID})
	t.AddColumn(&layout.Column{
		Name:    common.ClassIDColumn,
		Type:    layout.StorageInteger,
		Kind:    layout.ColumnClassID,
		Virtual: !s.IsPolymorphicTable(),
	})

	return a.CreateTable(t)
}

func (a *Allocator) createJoined(s *strategy.ClassStrategy, parent *layout.Table) *layout.Table {
	parentID := parent.InstanceIDColumn().Name

	t := &layout.Table{Name: s.Table, Type: layout.TableJoined, ParentTable: parent.Name}
	t.AddColumn(&layout.Column{
		Name: parentID,
		Type: layout.StorageInteger,
		Kind: layout.ColumnInstanceID,
		References: &layout.ForeignKeyRef{
			Table:    parent.Name,
			Column:   parentID,
			OnDelete: ecschema.OnDeleteCascade,
		},
	})
	t.AddColumn(&layout.Column{Name: common.ClassIDColumn, Type: layout.StorageInteger, Kind: layout.ColumnClassID})

	return a.CreateTable(t)
}

// bindExisting registers a preexisting table reported by the catalog.
func (a *Allocator) bindExisting(s *strategy.ClassStrategy) (*layout.Table, error) {
	subject := s.Class.String()

	et := a.catalog.Lookup(s.PrimaryTable)
	if et == nil {
		return nil, diagnostic.Newf(diagnostic.ExistingTableMismatch, subject,
			"table %s does not exist in the store", s.PrimaryTable).
			WithSuggestions(match.Suggest(s.PrimaryTable, a.catalog.Names(), 3))
	}

	idName := s.IDColumn
	if idName == "" {
		idName = common.InstanceIDColumn
	}

	t := &layout.Table{Name: s.PrimaryTable, Type: layout.TableExisting, IsPreexisting: true}

	for _, ec := range et.Columns {
		kind := layout.ColumnDedicated
		if strings.EqualFold(ec.Name, idName) {
			kind = layout.ColumnInstanceID
		}

		t.AddColumn(&layout.Column{
			Name:     ec.Name,
			Type:     layout.StorageTypeOfSQL(ec.SQLType),
			SQLType:  ec.SQLType,
			Nullable: ec.Nullable,
			Kind:     kind,
		})
	}

	if t.InstanceIDColumn() == nil {
		return nil, diagnostic.Newf(diagnostic.ExistingTableMismatch, subject,
			"table %s has no id column %s", s.PrimaryTable, idName).
			WithSuggestions(match.Suggest(idName, columnNames(t), 3))
	}

	t.AddColumn(&layout.Column{
		Name:    common.ClassIDColumn,
		Type:    layout.StorageInteger,
		Kind:    layout.ColumnClassID,
		Virtual: true,
	})

	return a.layout.AddTable(t), nil
}

func columnNames(t *layout.Table) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}

	return out
}
