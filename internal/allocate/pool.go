package allocate

import (
	"fmt"
	"strings"

	"schemamap/internal/diagnostic"
	"schemamap/internal/layout"
	"schemamap/internal/strategy"
)

// pooled reports whether fresh properties of the class go to the shared column pool.
// With ApplyToSubclassesOnly the declaring class keeps dedicated columns.
func (a *Allocator) pooled(s *strategy.ClassStrategy) bool {
	if s.ShareColumnsBy.IsZero() {
		return false
	}

	return !s.Options.ApplyToSubclassesOnly || s.Class != s.ShareColumnsBy
}

// pool returns the pool of a table, registering it on first use.
func (a *Allocator) pool(t *layout.Table, s *strategy.ClassStrategy) *layout.SharedPool {
	p := a.layout.Pool(t.Name)
	if p == nil {
		return a.layout.AddPool(&layout.SharedPool{
			Table:    t.Name,
			Capacity: s.Options.SharedColumnCount,
			Declared: s.Options.SharedColumnCount,
		})
	}

	if s.Options.SharedColumnCount > p.Declared {
		p.Declared = s.Options.SharedColumnCount
		p.Capacity = max(p.Declared, len(p.Columns))
	}

	return p
}

// poolColumns assigns n slots to one leaf. A class takes the lowest slots not
// used in its own rows, which hold its ancestors' and descendants' values too;
// siblings therefore reuse the same slots.
func (a *Allocator) poolColumns(s *strategy.ClassStrategy, cm *layout.ClassMap, t *layout.Table, n int) ([]string, error) {
	p := a.pool(t, s)
	used := a.usedSlots(s, cm, t)
	out := make([]string, 0, n)

	for range n {
		slot := 1
		for used[slot] {
			slot++
		}

		used[slot] = true

		name, err := a.materialize(p, t, slot, s)
		if err != nil {
			return nil, err
		}

		out = append(out, name)
	}

	return out, nil
}

func (a *Allocator) usedSlots(s *strategy.ClassStrategy, cm *layout.ClassMap, t *layout.Table) map[int]bool {
	used := make(map[int]bool)

	collect := func(m *layout.ClassMap) {
		for _, pm := range m.Properties {
			if !pm.Shared || !strings.EqualFold(pm.Table, t.Name) {
				continue
			}

			for _, c := range pm.Columns {
				if col := t.Column(c); col != nil && col.Kind == layout.ColumnShared {
					used[col.Slot] = true
				}
			}
		}
	}

	collect(cm)

	for _, d := range a.graph.Descendants(s.Class) {
		if dcm := a.layout.ClassMap(d.ID); dcm != nil {
			collect(dcm)
		}
	}

	return used
}

// materialize appends pool columns up to the given slot and returns its name.
func (a *Allocator) materialize(p *layout.SharedPool, t *layout.Table, slot int, s *strategy.ClassStrategy) (string, error) {
	for len(p.Columns) < slot {
		k := len(p.Columns) + 1
		name := layout.SharedColumnName(k)

		if t.Column(name) != nil {
			return "", diagnostic.Newf(diagnostic.StrategyConflict, s.Class.String(),
				"table %s already has a column %s that is not a shared column", t.Name, name)
		}

		t.AddColumn(&layout.Column{
			Name:     name,
			Type:     layout.StorageAny,
			Nullable: true,
			Kind:     layout.ColumnShared,
			Slot:     k,
		})
		p.Columns = append(p.Columns, name)

		if p.Declared > 0 && k > p.Declared {
			a.diags.AddWarning("shared_pool_overflow",
				fmt.Sprintf("table %s needs %d shared columns, SharedColumnCount is %d", t.Name, k, p.Declared),
				s.Class.String(), "")
		}
	}

	p.Capacity = max(p.Declared, len(p.Columns))

	return p.Columns[slot-1], nil
}
