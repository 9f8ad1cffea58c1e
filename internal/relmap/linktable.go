package relmap

import (
	"strings"

	"schemamap/internal/common"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
	"schemamap/internal/strategy"
)

const (
	sourceColumn = "SourceECInstanceId"
	targetColumn = "TargetECInstanceId"
)

func (m *Mapper) mapLinkTable(s *strategy.ClassStrategy, c *ecschema.Class, navs []ecschema.PropertyRef) (*layout.RelationshipMapping, error) {
	subject := s.Class.String()
	ri := c.Relationship

	if len(navs) > 0 {
		return nil, diagnostic.NewPropertyf(diagnostic.UnsupportedRelationshipShape, navs[0].Declarer.String(), navs[0].Name,
			"navigation property references %s, which maps to link table %s", s.Class, s.Table)
	}

	if ri.UseECInstanceIDAsForeignKey {
		return nil, diagnostic.Newf(diagnostic.UnsupportedRelationshipShape, subject,
			"UseECInstanceIdAsForeignKey cannot be combined with a link table")
	}

	ca := ri.LinkTableMap
	srcName, tgtName := sourceColumn, targetColumn

	if ca != nil {
		if ca.SourceECInstanceIDColumn != "" {
			srcName = ca.SourceECInstanceIDColumn
		}

		if ca.TargetECInstanceIDColumn != "" {
			tgtName = ca.TargetECInstanceIDColumn
		}
	}

	if strings.EqualFold(srcName, tgtName) {
		return nil, diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
			"source and target columns are both named %s", srcName)
	}

	srcTables, err := m.endTables(subject, ecschema.EndSource, &ri.Source)
	if err != nil {
		return nil, err
	}

	tgtTables, err := m.endTables(subject, ecschema.EndTarget, &ri.Target)
	if err != nil {
		return nil, err
	}

	physical := ca.CreatesForeignKeys()

	t := m.layout.Table(s.Table)

	switch {
	case t == nil:
		t = &layout.Table{Name: s.Table, Type: layout.TableLink}
		t.AddColumn(&layout.Column{Name: common.InstanceIDColumn, Type: layout.StorageInteger, Kind: layout.ColumnInstanceID})
		t.AddColumn(&layout.Column{Name: common.ClassIDColumn, Type: layout.StorageInteger, Kind: layout.ColumnClassID})
		t.AddColumn(&layout.Column{
			Name:       srcName,
			Type:       layout.StorageInteger,
			Kind:       layout.ColumnDedicated,
			References: endReference(srcTables, physical),
		})
		t.AddColumn(&layout.Column{
			Name:       tgtName,
			Type:       layout.StorageInteger,
			Kind:       layout.ColumnDedicated,
			References: endReference(tgtTables, physical),
		})

		m.alloc.CreateTable(t)
	case t.Type != layout.TableLink:
		return nil, diagnostic.Newf(diagnostic.StrategyConflict, subject,
			"link table %s collides with %s table of the same name", s.Table, t.Type)
	case !t.IsOwnedBy(s.Class):
		return nil, diagnostic.Newf(diagnostic.StrategyConflict, subject,
			"link table %s already stores relationship %s", s.Table, t.OwningClasses[0])
	}

	t.AddOwner(s.Class)

	cm := m.layout.ClassMap(s.Class)
	cm.Table = t.Name
	cm.PrimaryTable = t.Name
	cm.IDColumn = t.InstanceIDColumn().Name
	cm.ClassIDColumn = common.ClassIDColumn

	if err := m.alloc.MapProperties(s, cm); err != nil {
		return nil, err
	}

	onDelete := ecschema.OnDeleteNoAction
	if physical {
		onDelete = ecschema.OnDeleteCascade
	}

	return &layout.RelationshipMapping{
		Relationship:    s.Class,
		Kind:            layout.MappingLinkTable,
		Table:           t.Name,
		SourceColumn:    srcName,
		TargetColumn:    tgtName,
		AllowDuplicates: ca != nil && ca.AllowDuplicateRelationships,
		Physical:        physical,
		OnDelete:        onDelete,
	}, nil
}

// endReference returns the cascading reference of a link column, or nil when
// the end spans several tables or lives in a virtual one.
func endReference(tables []*layout.Table, physical bool) *layout.ForeignKeyRef {
	if !physical || len(tables) != 1 || tables[0].IsVirtual {
		return nil
	}

	return &layout.ForeignKeyRef{
		Table:    tables[0].Name,
		Column:   tables[0].InstanceIDColumn().Name,
		OnDelete: ecschema.OnDeleteCascade,
	}
}
