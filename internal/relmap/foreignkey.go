package relmap

import (
	"fmt"
	"slices"
	"strings"

	"schemamap/internal/common"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/match"
	"schemamap/internal/strategy"
)

// holderGroup is one table receiving the foreign key column, with the
// constraint classes whose rows carry it.
type holderGroup struct {
	table   *layout.Table
	classes []ecschema.ClassID
}

// holderEnd returns the end whose table receives the foreign key. The end
// opposite a "many" end holds the key: 1:N keeps it on the target, N:1 on
// the source, and 1:1 follows the strength direction.
func holderEnd(subject string, ri *ecschema.RelationshipInfo) (ecschema.End, error) {
	srcMany, tgtMany := ri.Source.Multiplicity.IsMany(), ri.Target.Multiplicity.IsMany()
	shape := fmt.Sprintf("%s:%s", ri.Source.Multiplicity, ri.Target.Multiplicity)

	switch {
	case !srcMany && !tgtMany:
		if ri.Direction == ecschema.DirectionBackward {
			return ecschema.EndSource, nil
		}

		return ecschema.EndTarget, nil
	case !srcMany:
		if ri.Direction != ecschema.DirectionForward {
			return 0, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
				"%s relationship keeps the foreign key on the target end and requires direction forward, got %s",
				shape, ri.Direction)
		}

		return ecschema.EndTarget, nil
	default:
		if ri.Direction != ecschema.DirectionBackward {
			return 0, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
				"%s relationship keeps the foreign key on the source end and requires direction backward, got %s",
				shape, ri.Direction)
		}

		return ecschema.EndSource, nil
	}
}

func (m *Mapper) mapForeignKey(s *strategy.ClassStrategy, c *ecschema.Class, navs []ecschema.PropertyRef) (*layout.RelationshipMapping, error) {
	subject := s.Class.String()
	ri := c.Relationship

	holder, err := holderEnd(subject, ri)
	if err != nil {
		return nil, err
	}

	ref := holder.Other()
	holdCon, refCon := ri.Constraint(holder), ri.Constraint(ref)

	refTables, err := m.endTables(subject, ref, refCon)
	if err != nil {
		return nil, err
	}

	groups, err := m.holderGroups(subject, holder, holdCon, ri.Strength)
	if err != nil {
		return nil, err
	}

	nav, err := m.navigation(subject, holder, holdCon, navs)
	if err != nil {
		return nil, err
	}

	nullable := !refCon.Multiplicity.IsMandatory()
	physical := ri.ForeignKeyConstraint != nil

	onDelete := ecschema.OnDeleteNoAction
	if physical {
		onDelete = ri.ForeignKeyConstraint.OnDeleteAction
	}

	if onDelete == ecschema.OnDeleteSetNull && !nullable {
		return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"OnDeleteAction SetNull requires an optional %s end, multiplicity is %s", ref, refCon.Multiplicity)
	}

	refTable := refTables[0]

	var fkRef *layout.ForeignKeyRef

	if physical {
		if err := checkPhysical(subject, ref, refTables, groups); err != nil {
			return nil, err
		}

		fkRef = &layout.ForeignKeyRef{Table: refTable.Name, Column: refTable.InstanceIDColumn().Name, OnDelete: onDelete}
	}

	mapping := &layout.RelationshipMapping{
		Relationship:    s.Class,
		Kind:            layout.MappingForeignKey,
		HolderEnd:       holder,
		ReferencedTable: refTable.Name,
		Physical:        physical,
		OnDelete:        onDelete,
	}

	if ri.UseECInstanceIDAsForeignKey {
		return mapping, m.useInstanceID(subject, holder, holdCon, refCon, groups, fkRef, mapping)
	}

	prefix := m.graph.SchemaOf(s.Class).Prefix()
	mapping.Column = common.JoinName("ForeignECInstanceId", prefix, c.Name)
	relCol := common.JoinName("RelECClassId", prefix, c.Name)

	if nav != nil {
		mapping.Column = nav.Name + "Id"
		relCol = nav.Name + "RelECClassId"

		m.checkNavigationNullability(nav, nullable)
	}

	if !c.IsSealed() {
		mapping.RelClassIDColumn = relCol
	}

	prior := m.layout.Relationship(s.Class)

	for _, g := range groups {
		if err := m.ensureColumn(subject, g, mapping.Column, nullable, fkRef, prior); err != nil {
			return nil, err
		}

		if mapping.RelClassIDColumn != "" {
			if err := m.ensureColumn(subject, g, mapping.RelClassIDColumn, nullable, nil, prior); err != nil {
				return nil, err
			}
		}

		mapping.HolderTables = append(mapping.HolderTables, g.table.Name)
	}

	if nav != nil {
		cols := []string{mapping.Column}
		if mapping.RelClassIDColumn != "" {
			cols = append(cols, mapping.RelClassIDColumn)
		}

		m.mapNavigation(nav, groups, cols)
	}

	return mapping, nil
}

func checkPhysical(subject string, ref ecschema.End, refTables []*layout.Table, groups []*holderGroup) error {
	if len(refTables) > 1 {
		names := make([]string, len(refTables))
		for i, t := range refTables {
			names[i] = t.Name
		}

		return diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"ForeignKeyConstraint needs the %s end in a single table, its classes span %s", ref, strings.Join(names, ", "))
	}

	if refTables[0].IsVirtual {
		return diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"ForeignKeyConstraint cannot reference virtual table %s", refTables[0].Name)
	}

	for _, g := range groups {
		if g.table.Type == layout.TableExisting {
			return diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
				"ForeignKeyConstraint cannot be added to ExistingTable %s", g.table.Name)
		}
	}

	return nil
}

// holderGroups groups the holder end's classes by the table receiving the
// key. A class stored below a holder class in the same primary table reads
// the key from that holder's table.
func (m *Mapper) holderGroups(subject string, end ecschema.End, con *ecschema.Constraint, strength ecschema.Strength) ([]*holderGroup, error) {
	var (
		groups  []*holderGroup
		holders []ecschema.ClassID
	)

	groupOf := make(map[ecschema.ClassID]*holderGroup)

	for _, id := range m.constraintClasses(con) {
		cs := m.res.Get(id)
		if cs == nil || !cs.IsMapped() {
			if slices.Contains(con.Classes, id) {
				return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
					"%s constraint class %s is not mapped", end, id)
			}

			continue
		}

		var g *holderGroup

		for _, h := range holders {
			if m.graph.IsSubclassOf(id, h) && sameTable(m.res.Get(h).PrimaryTable, cs.PrimaryTable) {
				g = groupOf[h]
				break
			}
		}

		if g == nil {
			if strength != ecschema.StrengthReferencing && cs.IsJoined() {
				return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
					"%s strength cannot keep the foreign key in joined table %s of %s", strength, cs.Table, id)
			}

			t := m.layout.Table(m.layout.ClassMap(id).Table)

			for _, existing := range groups {
				if existing.table == t {
					g = existing
					break
				}
			}

			if g == nil {
				g = &holderGroup{table: t}
				groups = append(groups, g)
			}
		}

		g.classes = append(g.classes, id)
		groupOf[id] = g
		holders = append(holders, id)
	}

	return groups, nil
}

// navigation validates the navigation property declaring the relationship, if any.
func (m *Mapper) navigation(subject string, holder ecschema.End, holdCon *ecschema.Constraint, navs []ecschema.PropertyRef) (*ecschema.PropertyRef, error) {
	if len(navs) == 0 {
		return nil, nil
	}

	if len(navs) > 1 {
		return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"relationship has %d navigation properties, at most one is supported", len(navs))
	}

	nav := navs[0]
	decl := nav.Declarer.String()

	if ds := m.res.Get(nav.Declarer); ds == nil || !ds.IsMapped() {
		return nil, diagnostic.NewPropertyf(diagnostic.UnsupportedRelationshipShape, decl, nav.Name,
			"navigation property is declared on a class that is not mapped")
	}

	onEnd := false

	for _, k := range holdCon.Classes {
		if nav.Declarer == k || (holdCon.Polymorphic && m.graph.IsSubclassOf(nav.Declarer, k)) {
			onEnd = true
			break
		}
	}

	if !onEnd {
		return nil, diagnostic.NewPropertyf(diagnostic.UnsupportedRelationshipShape, decl, nav.Name,
			"navigation property must be declared on the %s end of %s, which holds the foreign key", holder, subject)
	}

	want := ecschema.DirectionBackward
	if holder == ecschema.EndSource {
		want = ecschema.DirectionForward
	}

	if nav.Navigation.Direction != want {
		return nil, diagnostic.NewPropertyf(diagnostic.UnsupportedRelationshipShape, decl, nav.Name,
			"navigation direction must be %s on the %s end, got %s", want, holder, nav.Navigation.Direction)
	}

	return &nav, nil
}

func (m *Mapper) checkNavigationNullability(nav *ecschema.PropertyRef, nullable bool) {
	ca := nav.PropertyMap
	if ca == nil || ca.IsNullable == nil || *ca.IsNullable == nullable {
		return
	}

	m.diags.AddWarning("navigation_nullability_ignored",
		fmt.Sprintf("PropertyMap.IsNullable=%t is ignored, nullability follows the relationship multiplicity", *ca.IsNullable),
		nav.Declarer.String(), nav.Name)
}

// mapNavigation records the navigation property on every holder class that sees it.
func (m *Mapper) mapNavigation(nav *ecschema.PropertyRef, groups []*holderGroup, cols []string) {
	for _, g := range groups {
		for _, id := range g.classes {
			p, ok := m.graph.FindProperty(id, nav.Name)
			if !ok || p.Kind != ecschema.PropertyNavigation {
				continue
			}

			cm := m.layout.ClassMap(id)
			if cm.Property(nav.Name) != nil {
				continue
			}

			cm.Properties = append(cm.Properties, layout.PropertyMap{
				AccessString: nav.Name,
				Table:        g.table.Name,
				Columns:      slices.Clone(cols),
				Type:         ecschema.PropertyNavigation.String(),
			})
		}
	}
}

// ensureColumn adds a key column to a holder table. Preexisting tables must
// already have it; other tables may only have it from an earlier import of
// the same relationship.
func (m *Mapper) ensureColumn(
	subject string,
	g *holderGroup,
	name string,
	nullable bool,
	fkRef *layout.ForeignKeyRef,
	prior *layout.RelationshipMapping,
) error {
	t := g.table
	col := t.Column(name)

	if t.Type == layout.TableExisting {
		if col == nil {
			return diagnostic.Newf(diagnostic.ExistingTableMismatch, subject,
				"table %s has no column %s", t.Name, name).
				WithSuggestions(match.Suggest(name, tableColumnNames(t), 3))
		}

		existing := col.SQLType
		if existing == "" {
			existing = col.Type.SQLiteType()
		}

		if match.ColumnCompatibility(layout.StorageInteger.SQLiteType(), existing) == match.Incompatible {
			return diagnostic.Newf(diagnostic.ExistingTableMismatch, subject,
				"column %s of %s has type %s and cannot hold ids", name, t.Name, existing)
		}

		return nil
	}

	if col != nil {
		if prior != nil && (strings.EqualFold(prior.Column, name) || strings.EqualFold(prior.RelClassIDColumn, name)) {
			return nil
		}

		return diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"column %s already exists in table %s", name, t.Name)
	}

	if !nullable && !m.canBeNotNull(g) {
		nullable = true

		m.diags.AddWarning("not_null_relaxed",
			fmt.Sprintf("foreign key column %s in %s stays nullable: the table holds rows without the key", name, t.Name),
			subject, "")
	}

	var ref *layout.ForeignKeyRef
	if fkRef != nil {
		r := *fkRef
		ref = &r
	}

	t.AddColumn(&layout.Column{
		Name:       name,
		Type:       layout.StorageInteger,
		Nullable:   nullable,
		Kind:       layout.ColumnDedicated,
		References: ref,
	})

	return nil
}

// canBeNotNull reports whether every row of the table carries the key.
func (m *Mapper) canBeNotNull(g *holderGroup) bool {
	if !m.alloc.IsNew(g.table.Name) {
		return false
	}

	if cid := g.table.ClassIDColumn(); cid == nil || cid.Virtual {
		return true
	}

	for _, owner := range g.table.OwningClasses {
		if !slices.Contains(g.classes, owner) {
			return false
		}
	}

	return true
}

// useInstanceID maps the key onto the holder's own id column.
func (m *Mapper) useInstanceID(
	subject string,
	holder ecschema.End,
	holdCon, refCon *ecschema.Constraint,
	groups []*holderGroup,
	fkRef *layout.ForeignKeyRef,
	mapping *layout.RelationshipMapping,
) error {
	if holdCon.Multiplicity.IsMany() || refCon.Multiplicity.IsMany() || !refCon.Multiplicity.IsExactlyOne() {
		return diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"UseECInstanceIdAsForeignKey requires a 1:1 relationship whose %s end is (1..1), got %s:%s",
			holder.Other(), holdCon.Multiplicity, refCon.Multiplicity)
	}

	mapping.UsesInstanceID = true

	for _, g := range groups {
		idCol := g.table.InstanceIDColumn()

		switch {
		case mapping.Column == "":
			mapping.Column = idCol.Name
		case !strings.EqualFold(mapping.Column, idCol.Name):
			return diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
				"holder tables use different id columns %s and %s", mapping.Column, idCol.Name)
		}

		if fkRef != nil && idCol.References == nil {
			if m.alloc.IsNew(g.table.Name) {
				r := *fkRef
				idCol.References = &r
			} else {
				m.diags.AddWarning("foreign_key_not_created",
					fmt.Sprintf("table %s already exists, the constraint on %s is not added", g.table.Name, idCol.Name),
					subject, "")
			}
		}

		mapping.HolderTables = append(mapping.HolderTables, g.table.Name)
	}

	return nil
}

func tableColumnNames(t *layout.Table) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}

	return out
}
