package ddl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"schemamap/internal/diagnostic"
	"schemamap/internal/layout"
)

var createTableTmpl = template.Must(template.New("create").Parse(
	`CREATE TABLE {{.Name}} (
{{- range $i, $c := .Defs}}{{if $i}},{{end}}
  {{$c}}
{{- end}}
)`))

type createTableData struct {
	Name string
	Defs []string
}

// Generator turns a layout delta into DDL statements.
type Generator struct {
	dialect Dialect
	layout  *layout.Layout
}

// NewGenerator creates a Generator. next is the layout the delta leads to;
// it resolves the tables of added columns and indexes.
func NewGenerator(d Dialect, next *layout.Layout) *Generator {
	return &Generator{dialect: d, layout: next}
}

// Generate returns the statements applying delta, in execution order: new
// tables, added columns, foreign key constraints, then indexes.
func (g *Generator) Generate(delta *layout.Delta) ([]string, error) {
	var (
		stmts       []string
		constraints []string
	)

	for _, t := range delta.NewTables {
		if t.IsVirtual || t.IsPreexisting {
			continue
		}

		stmt, err := g.createTable(t)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, stmt)

		if !g.dialect.InlineForeignKeys() {
			for _, c := range t.PhysicalColumns() {
				if c.References != nil {
					constraints = append(constraints, g.addForeignKey(t.Name, c))
				}
			}
		}
	}

	var uniques []string

	for _, add := range delta.NewColumns {
		// ADD COLUMN cannot carry UNIQUE in SQLite; a unique index replaces it.
		col := *add.Column
		if col.Unique {
			col.Unique = false

			stmt, err := g.createIndex(&layout.Index{
				Name:    "uix_" + add.Table + "_" + col.Name,
				Table:   add.Table,
				Unique:  true,
				Columns: []string{col.Name},
			})
			if err != nil {
				return nil, err
			}

			uniques = append(uniques, stmt)
		}

		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
			g.dialect.Quote(add.Table), g.columnDef(&col)))

		if add.Column.References != nil && !g.dialect.InlineForeignKeys() {
			constraints = append(constraints, g.addForeignKey(add.Table, add.Column))
		}
	}

	stmts = append(stmts, constraints...)
	stmts = append(stmts, uniques...)

	for _, ix := range delta.ChangedIndexes {
		stmt, err := g.createIndex(ix)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, g.dialect.DropIndex(ix), stmt)
	}

	for _, ix := range delta.NewIndexes {
		stmt, err := g.createIndex(ix)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

func (g *Generator) createTable(t *layout.Table) (string, error) {
	data := createTableData{Name: g.dialect.Quote(t.Name)}

	for _, c := range t.PhysicalColumns() {
		data.Defs = append(data.Defs, g.columnDef(c))
	}

	var buf bytes.Buffer
	if err := createTableTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering table %s: %w", t.Name, err)
	}

	return buf.String(), nil
}

func (g *Generator) columnDef(c *layout.Column) string {
	parts := []string{g.dialect.Quote(c.Name)}

	if typ := g.dialect.ColumnType(c); typ != "" {
		parts = append(parts, typ)
	}

	switch {
	case c.Kind == layout.ColumnInstanceID:
		parts = append(parts, "PRIMARY KEY")
	case !c.Nullable:
		parts = append(parts, "NOT NULL")
	}

	if c.Unique {
		parts = append(parts, "UNIQUE")
	}

	if clause := g.dialect.Collate(c.Collation); clause != "" {
		parts = append(parts, clause)
	}

	if c.References != nil && g.dialect.InlineForeignKeys() {
		parts = append(parts, g.references(c.References))
	}

	return strings.Join(parts, " ")
}

func (g *Generator) references(ref *layout.ForeignKeyRef) string {
	return fmt.Sprintf("REFERENCES %s(%s) ON DELETE %s",
		g.dialect.Quote(ref.Table), g.dialect.Quote(ref.Column), ref.OnDelete.SQL())
}

func (g *Generator) addForeignKey(table string, c *layout.Column) string {
	name := "fk_" + table + "_" + c.Name

	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) %s",
		g.dialect.Quote(table), g.dialect.Quote(name), g.dialect.Quote(c.Name), g.references(c.References))
}

// createIndex renders an index. Without partial indexes the predicate is
// dropped, which only widens a plain index; a unique index restricted to some
// classes would also reject duplicates across the other classes of the table.
func (g *Generator) createIndex(ix *layout.Index) (string, error) {
	if !g.dialect.PartialIndexes() && ix.Unique && len(ix.Scope) > 0 {
		return "", diagnostic.Newf(diagnostic.IndexDefinitionError, ix.Owner,
			"unique index %s is restricted to some classes of %s, %s cannot create such an index",
			ix.Name, ix.Table, g.dialect.Name())
	}

	t := g.layout.Table(ix.Table)

	cols := make([]string, len(ix.Columns))
	for i, c := range ix.Columns {
		cols[i] = indexColumn(g.dialect, t, c)
	}

	var sb strings.Builder

	sb.WriteString("CREATE ")

	if ix.Unique {
		sb.WriteString("UNIQUE ")
	}

	fmt.Fprintf(&sb, "INDEX %s ON %s (%s)", g.dialect.Quote(ix.Name), g.dialect.Quote(ix.Table), strings.Join(cols, ", "))

	if g.dialect.PartialIndexes() {
		if where := ix.Where(g.dialect.Quote); where != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(where)
		}
	}

	return sb.String(), nil
}

// Generate is a shorthand for NewGenerator(d, next).Generate(delta).
func Generate(d Dialect, delta *layout.Delta, next *layout.Layout) ([]string, error) {
	return NewGenerator(d, next).Generate(delta)
}
