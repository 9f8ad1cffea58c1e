package allocate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"schemamap/internal/common"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/match"
	"schemamap/internal/strategy"
)

var collationNames = []string{"Binary", "NoCase", "RTrim"}

// leaf is a scalar or out-of-line value reached by flattening a property.
type leaf struct {
	// access is the dotted access string, e.g. "Location.Street".
	access string
	// column is the default column name, e.g. "Location_Street".
	column string
	prop   *ecschema.Property
}

func (a *Allocator) leaves(ref ecschema.PropertyRef) []leaf {
	var out []leaf

	a.flatten(ref.Property, ref.Name, ref.Name, &out)

	return out
}

func (a *Allocator) flatten(p *ecschema.Property, access, column string, out *[]leaf) {
	switch p.Kind {
	case ecschema.PropertyNavigation:
		return
	case ecschema.PropertyStruct:
		for _, m := range a.graph.Properties(p.StructType) {
			a.flatten(m.Property, access+"."+m.Name, column+"_"+m.Name, out)
		}
	default:
		*out = append(*out, leaf{access: access, column: column, prop: p})
	}
}

// MapProperties maps every visible, not yet mapped property of a class into
// the table named by its class map. Properties already mapped by a base class
// in the same table reuse the base mapping. A property mapped by an earlier
// import must keep its type and may not disappear.
func (a *Allocator) MapProperties(s *strategy.ClassStrategy, cm *layout.ClassMap) error {
	t := a.layout.Table(cm.Table)
	if t == nil {
		return fmt.Errorf("class %s: table %s is not allocated", s.Class, cm.Table)
	}

	for _, ref := range a.graph.Properties(s.Class) {
		for _, lf := range a.leaves(ref) {
			if pm := cm.Property(lf.access); pm != nil {
				if want := typeName(lf.prop); pm.Type != want {
					return diagnostic.NewPropertyf(diagnostic.IncrementalLayoutViolation, s.Class.String(), lf.access,
						"type changed from %s to %s", pm.Type, want)
				}

				continue
			}

			if pm, ok := a.inherited(s, cm, lf); ok {
				cm.Properties = append(cm.Properties, pm)
				continue
			}

			pm, err := a.mapLeaf(s, cm, t, lf)
			if err != nil {
				return err
			}

			cm.Properties = append(cm.Properties, pm)
		}
	}

	return a.checkMappedProperties(s, cm)
}

// checkMappedProperties fails when a mapped property no longer resolves in
// the class, or resolves to a value of another kind.
func (a *Allocator) checkMappedProperties(s *strategy.ClassStrategy, cm *layout.ClassMap) error {
	types := make(map[string]string)

	for _, ref := range a.graph.Properties(s.Class) {
		if ref.Kind == ecschema.PropertyNavigation {
			types[ref.Name] = ecschema.PropertyNavigation.String()
			continue
		}

		for _, lf := range a.leaves(ref) {
			types[lf.access] = typeName(lf.prop)
		}
	}

	for _, pm := range cm.Properties {
		want, ok := types[pm.AccessString]
		if !ok {
			return diagnostic.NewPropertyf(diagnostic.IncrementalLayoutViolation, s.Class.String(), pm.AccessString,
				"property was removed")
		}

		if pm.Type != want {
			return diagnostic.NewPropertyf(diagnostic.IncrementalLayoutViolation, s.Class.String(), pm.AccessString,
				"type changed from %s to %s", pm.Type, want)
		}
	}

	return nil
}

// inherited copies the mapping of a base class stored in the same table.
func (a *Allocator) inherited(s *strategy.ClassStrategy, cm *layout.ClassMap, lf leaf) (layout.PropertyMap, bool) {
	for _, b := range a.graph.Class(s.Class).BaseClasses {
		bcm := a.layout.ClassMap(b)
		if bcm == nil || !bcm.IsMapped() || !strings.EqualFold(bcm.PrimaryTable, cm.PrimaryTable) {
			continue
		}

		if pm := bcm.Property(lf.access); pm != nil {
			c := *pm
			c.Columns = slices.Clone(pm.Columns)

			return c, true
		}
	}

	return layout.PropertyMap{}, false
}

func (a *Allocator) mapLeaf(s *strategy.ClassStrategy, cm *layout.ClassMap, t *layout.Table, lf leaf) (layout.PropertyMap, error) {
	subject := s.Class.String()
	pm := layout.PropertyMap{AccessString: lf.access, Type: typeName(lf.prop)}

	if lf.prop.Kind.IsArray() {
		pm.OutOfLine = true
		return pm, nil
	}

	ca := lf.prop.PropertyMap
	if ca == nil {
		ca = &ecschema.PropertyMapCA{}
	}

	if ca.ColumnName != "" && s.Strategy != ecschema.StrategyExistingTable {
		return pm, diagnostic.NewPropertyf(diagnostic.InvalidOptionUsage, subject, lf.access,
			"PropertyMap.ColumnName is only valid for ExistingTable classes")
	}

	collation, ok := layout.ParseCollation(ca.Collation)
	if !ok {
		return pm, diagnostic.NewPropertyf(diagnostic.InvalidOptionUsage, subject, lf.access,
			"unknown collation %q", ca.Collation).
			WithSuggestions(match.Suggest(ca.Collation, collationNames, 1))
	}

	suffixes := coordinateSuffixes(lf.prop.PrimitiveType)
	pm.Table = t.Name

	var err error

	switch {
	case s.Strategy == ecschema.StrategyExistingTable:
		pm.Columns, err = a.bindColumns(s, cm, t, lf, ca, suffixes)
	case a.pooled(s):
		a.warnIgnoredConstraints(s, lf, ca)
		pm.Shared = true
		pm.Columns, err = a.poolColumns(s, cm, t, len(suffixes))
	default:
		def := a.columnDefinition(s, t, lf, ca, collation)
		pm.Columns = a.dedicatedColumns(s, cm, t, lf, def, suffixes)
	}

	return pm, err
}

func (a *Allocator) columnDefinition(
	s *strategy.ClassStrategy,
	t *layout.Table,
	lf leaf,
	ca *ecschema.PropertyMapCA,
	collation layout.Collation,
) layout.Column {
	col := layout.Column{
		Type:     layout.StorageTypeOf(lf.prop.PrimitiveType),
		Nullable: true,
		Kind:     layout.ColumnDedicated,
	}

	if ca.IsNullable != nil && !*ca.IsNullable {
		if a.canBeNotNull(s, t) {
			col.Nullable = false
		} else {
			a.diags.AddWarning("not_null_relaxed",
				fmt.Sprintf("column in %s stays nullable: rows of other classes or earlier imports have no value", t.Name),
				s.Class.String(), lf.access)
		}
	}

	if ca.IsUnique != nil && *ca.IsUnique {
		col.Unique = true
	}

	if col.Type == layout.StorageText {
		col.Collation = collation
	}

	return col
}

// canBeNotNull reports whether a NOT NULL column can be added for the class:
// the table is created by this import and every row in it carries the property.
func (a *Allocator) canBeNotNull(s *strategy.ClassStrategy, t *layout.Table) bool {
	if !a.created[strings.ToLower(t.Name)] {
		return false
	}

	owner := s.Root
	if s.IsJoined() {
		owner = s.JoinedRoot
	}

	return owner == s.Class || !s.IsPolymorphicTable()
}

// dedicatedColumns places a leaf in its own columns. Classes sharing a table
// reuse a column of the same name and definition unless the column is
// already visible in the class; otherwise the name is qualified with the
// class name and numbered.
func (a *Allocator) dedicatedColumns(
	s *strategy.ClassStrategy,
	cm *layout.ClassMap,
	t *layout.Table,
	lf leaf,
	def layout.Column,
	suffixes []string,
) []string {
	className := a.graph.Class(s.Class).Name

	for i := 0; ; i++ {
		var base string

		switch i {
		case 0:
			base = lf.column
		case 1:
			base = common.JoinName(className, lf.column)
		default:
			base = common.JoinName(className, lf.column, strconv.Itoa(i))
		}

		if !a.fits(s, cm, t, lf, base, suffixes, def) {
			continue
		}

		names := make([]string, len(suffixes))

		for j, suf := range suffixes {
			name := base + suf
			if col := t.Column(name); col != nil {
				names[j] = col.Name
				continue
			}

			col := def
			col.Name = name
			names[j] = t.AddColumn(&col).Name
		}

		return names
	}
}

// fits reports whether the columns base+suffix are either all free or all
// reusable with the given definition.
func (a *Allocator) fits(
	s *strategy.ClassStrategy,
	cm *layout.ClassMap,
	t *layout.Table,
	lf leaf,
	base string,
	suffixes []string,
	def layout.Column,
) bool {
	present := 0

	for _, suf := range suffixes {
		col := t.Column(base + suf)
		if col == nil {
			continue
		}

		present++

		if col.Kind != layout.ColumnDedicated || !sameDefinition(col, &def) || a.columnTaken(s, cm, t, col.Name, lf.access) {
			return false
		}
	}

	return present == 0 || present == len(suffixes)
}

// columnTaken reports whether a column already holds another value in rows of the class.
func (a *Allocator) columnTaken(s *strategy.ClassStrategy, cm *layout.ClassMap, t *layout.Table, column, access string) bool {
	if usesColumn(cm, t.Name, column, "") {
		return true
	}

	// a descendant may hold the same property redeclared, which is the same value
	for _, d := range a.graph.Descendants(s.Class) {
		if dcm := a.layout.ClassMap(d.ID); dcm != nil && usesColumn(dcm, t.Name, column, access) {
			return true
		}
	}

	return false
}

func usesColumn(cm *layout.ClassMap, table, column, except string) bool {
	for _, pm := range cm.Properties {
		if pm.AccessString == except || !strings.EqualFold(pm.Table, table) {
			continue
		}

		if slices.ContainsFunc(pm.Columns, func(c string) bool { return strings.EqualFold(c, column) }) {
			return true
		}
	}

	return false
}

func sameDefinition(a, b *layout.Column) bool {
	return a.Type == b.Type && a.Nullable == b.Nullable && a.Unique == b.Unique && a.Collation == b.Collation
}

// bindColumns maps a leaf of an ExistingTable class onto preexisting columns.
func (a *Allocator) bindColumns(
	s *strategy.ClassStrategy,
	cm *layout.ClassMap,
	t *layout.Table,
	lf leaf,
	ca *ecschema.PropertyMapCA,
	suffixes []string,
) ([]string, error) {
	subject := s.Class.String()

	base := lf.column
	if ca.ColumnName != "" {
		base = ca.ColumnName
	}

	required := layout.StorageTypeOf(lf.prop.PrimitiveType).SQLiteType()
	names := make([]string, 0, len(suffixes))

	for _, suf := range suffixes {
		name := base + suf

		col := t.Column(name)
		if col == nil {
			return nil, diagnostic.NewPropertyf(diagnostic.ExistingTableMismatch, subject, lf.access,
				"table %s has no column %s", t.Name, name).
				WithSuggestions(match.Suggest(name, columnNames(t), 3))
		}

		if col.Kind != layout.ColumnDedicated {
			return nil, diagnostic.NewPropertyf(diagnostic.ExistingTableMismatch, subject, lf.access,
				"column %s is the %s column of %s", col.Name, col.Kind, t.Name)
		}

		existing := col.SQLType
		if existing == "" {
			existing = col.Type.SQLiteType()
		}

		switch match.ColumnCompatibility(required, existing) {
		case match.Incompatible:
			return nil, diagnostic.NewPropertyf(diagnostic.ExistingTableMismatch, subject, lf.access,
				"column %s has type %s, property requires %s", col.Name, existing, required)
		case match.Convertible:
			a.diags.AddInfo("column_converted",
				fmt.Sprintf("column %s has type %s, %s values are converted on storage", col.Name, existing, required),
				subject, lf.access)
		}

		if usesColumn(cm, t.Name, col.Name, "") {
			return nil, diagnostic.NewPropertyf(diagnostic.ExistingTableMismatch, subject, lf.access,
				"column %s is already mapped to another property", col.Name)
		}

		names = append(names, col.Name)
	}

	return names, nil
}

func (a *Allocator) warnIgnoredConstraints(s *strategy.ClassStrategy, lf leaf, ca *ecschema.PropertyMapCA) {
	if ca.IsNullable == nil && ca.IsUnique == nil && ca.Collation == "" {
		return
	}

	a.diags.AddWarning("shared_column_constraint_ignored",
		"PropertyMap constraints are not applied to shared columns",
		s.Class.String(), lf.access)
}

func coordinateSuffixes(t ecschema.PrimitiveType) []string {
	switch t {
	case ecschema.TypePoint2d:
		return []string{"_X", "_Y"}
	case ecschema.TypePoint3d:
		return []string{"_X", "_Y", "_Z"}
	default:
		return []string{""}
	}
}

func typeName(p *ecschema.Property) string {
	switch p.Kind {
	case ecschema.PropertyPrimitiveArray:
		return p.PrimitiveType.String() + "[]"
	case ecschema.PropertyStructArray:
		return p.StructType.String() + "[]"
	default:
		return p.PrimitiveType.String()
	}
}
