package strategy

import (
	"fmt"

	"schemamap/internal/common"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
)

// Resolver derives the effective mapping strategy of every class.
type Resolver struct {
	graph  *ecschema.Graph
	prior  *layout.Layout
	result *Resolution
}

// NewResolver creates a Resolver. prior is the layout persisted by earlier
// imports; nil means an empty store.
func NewResolver(graph *ecschema.Graph, prior *layout.Layout) *Resolver {
	if prior == nil {
		prior = layout.New()
	}

	return &Resolver{graph: graph, prior: prior}
}

// Resolve walks the graph bases-first and resolves each class once all of
// its bases are resolved. The first violated rule aborts resolution.
func (r *Resolver) Resolve() (*Resolution, error) {
	r.result = &Resolution{strategies: make(map[ecschema.ClassID]*ClassStrategy)}

	for _, cm := range r.prior.ClassMaps {
		if r.graph.Class(cm.Class) == nil {
			return nil, diagnostic.Newf(diagnostic.IncrementalLayoutViolation, cm.Class.String(),
				"class was mapped by an earlier import but is missing from the schema graph")
		}
	}

	for _, c := range r.graph.TopologicalOrder() {
		var (
			s   *ClassStrategy
			err error
		)

		switch c.Kind {
		case ecschema.KindStruct, ecschema.KindMixin:
			if err := rejectMappingAttributes(c); err != nil {
				return nil, err
			}

			continue
		case ecschema.KindRelationship:
			s, err = r.resolveRelationship(c)
		default:
			s, err = r.resolveEntity(c)
		}

		if err != nil {
			return nil, err
		}

		if err := r.checkPrior(s); err != nil {
			return nil, err
		}

		r.result.add(s)
	}

	return r.result, nil
}

func rejectMappingAttributes(c *ecschema.Class) error {
	switch {
	case c.ClassMap != nil:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, c.ID.String(), "%s classes cannot carry ClassMap", c.Kind)
	case c.ShareColumns != nil:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, c.ID.String(), "%s classes cannot carry ShareColumns", c.Kind)
	case c.JoinedTablePerDirectSubclass:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, c.ID.String(),
			"%s classes cannot carry JoinedTablePerDirectSubclass", c.Kind)
	case len(c.DbIndexes) > 0:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, c.ID.String(), "%s classes cannot carry DbIndexList", c.Kind)
	default:
		return nil
	}
}

// checkDeclaration validates the ClassMap attribute in isolation.
func checkDeclaration(c *ecschema.Class) error {
	decl := c.ClassMap
	if decl == nil {
		return nil
	}

	subject := c.ID.String()
	tableStrategy := decl.MapStrategy == ecschema.StrategySharedTable || decl.MapStrategy == ecschema.StrategyExistingTable

	switch {
	case decl.MapStrategy == ecschema.StrategyUnset:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject, "ClassMap without MapStrategy")
	case decl.TableName != "" && !tableStrategy:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
			"TableName is only valid with SharedTable or ExistingTable, not %s", decl.MapStrategy)
	case decl.ECInstanceIDColumn != "" && !tableStrategy:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
			"ECInstanceIdColumn is only valid with SharedTable or ExistingTable, not %s", decl.MapStrategy)
	case tableStrategy && decl.TableName == "":
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject, "%s requires TableName", decl.MapStrategy)
	case decl.AppliesToSubclasses != nil && decl.MapStrategy != ecschema.StrategyNotMapped:
		return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
			"AppliesToSubclasses is only valid with NotMapped, not %s", decl.MapStrategy)
	default:
		return nil
	}
}

func (r *Resolver) resolveEntity(c *ecschema.Class) (*ClassStrategy, error) {
	if err := checkDeclaration(c); err != nil {
		return nil, err
	}

	parent, err := r.reconcileBases(c)
	if err != nil {
		return nil, err
	}

	decl := c.ClassMap
	subject := c.ID.String()

	var s *ClassStrategy

	switch {
	case parent == nil:
		s = r.resolveRoot(c)

	case parent.Strategy == ecschema.StrategyNotMapped && parent.Propagates:
		switch {
		case decl == nil:
			s = r.inherit(c, parent)
		case decl.MapStrategy == ecschema.StrategyNotMapped:
			s = r.resolveRoot(c)
		default:
			return nil, diagnostic.Newf(diagnostic.StrategyConflict, subject,
				"ancestor %s is NotMapped, only NotMapped may be declared, not %s", parent.Root, decl.MapStrategy)
		}

	case parent.Strategy == ecschema.StrategyNotMapped:
		s = r.resolveRoot(c)

	case parent.Strategy == ecschema.StrategyExistingTable:
		if decl == nil || (decl.MapStrategy != ecschema.StrategyOwnTable && decl.MapStrategy != ecschema.StrategyNotMapped) {
			return nil, diagnostic.Newf(diagnostic.StrategyConflict, subject,
				"subclasses of ExistingTable class %s must declare OwnTable or NotMapped", parent.Root)
		}

		s = r.resolveRoot(c)

	case parent.Strategy == ecschema.StrategyOwnTable:
		if decl != nil {
			s = r.resolveRoot(c)
			break
		}

		s = r.ownTable(c)
		s.Explanation = fmt.Sprintf("inherits OwnTable from %s", parent.Class)

	case parent.bindsSubclasses():
		switch {
		case decl == nil:
			s = r.inherit(c, parent)
		case decl.MapStrategy == ecschema.StrategyNotMapped:
			s = r.resolveRoot(c)
		case decl.MapStrategy == ecschema.StrategyTablePerHierarchy && parent.Strategy == ecschema.StrategyTablePerHierarchy:
			return nil, diagnostic.Newf(diagnostic.StrategyConflict, subject,
				"ancestor %s already declares TablePerHierarchy", parent.Root)
		default:
			return nil, diagnostic.Newf(diagnostic.StrategyConflict, subject,
				"class inherits %s from %s, only NotMapped may be declared, not %s",
				parent.Strategy, parent.Root, decl.MapStrategy)
		}

	default:
		// implicit shared table: descendants may start their own strategy
		if decl == nil {
			s = r.inherit(c, parent)
		} else {
			s = r.resolveRoot(c)
		}
	}

	if err := r.applyOptions(c, s); err != nil {
		return nil, err
	}

	return s, nil
}

// reconcileBases resolves the binding inherited from the non-mixin bases.
// Every path must lead to the same physical table.
func (r *Resolver) reconcileBases(c *ecschema.Class) (*ClassStrategy, error) {
	var first *ClassStrategy

	for _, b := range c.BaseClasses {
		if r.graph.Class(b).Kind == ecschema.KindMixin {
			continue
		}

		bs := r.result.Get(b)
		if bs == nil {
			continue
		}

		if first == nil {
			first = bs
			continue
		}

		if !sameBinding(first, bs) {
			return nil, diagnostic.Newf(diagnostic.StrategyConflict, c.ID.String(),
				"base classes %s and %s diverge (%s vs %s)",
				first.Class, bs.Class, describe(first), describe(bs))
		}
	}

	return first, nil
}

func describe(s *ClassStrategy) string {
	if !s.IsMapped() {
		return "NotMapped"
	}

	return fmt.Sprintf("%s(%s)", s.Strategy, s.Table)
}

// resolveRoot resolves a class that starts a new strategy.
func (r *Resolver) resolveRoot(c *ecschema.Class) *ClassStrategy {
	decl := c.ClassMap
	if decl == nil {
		s := r.newStrategy(c, ecschema.StrategySharedTable, r.defaultTableName(c.ID))
		s.Options.Implicit = true
		s.Explanation = "implicit shared table rooted at the class"

		return s
	}

	var s *ClassStrategy

	switch decl.MapStrategy {
	case ecschema.StrategyNotMapped:
		s = r.newStrategy(c, ecschema.StrategyNotMapped, "")
		s.Propagates = decl.Propagates() && !c.IsSealed()
	case ecschema.StrategyOwnTable:
		s = r.ownTable(c)
	case ecschema.StrategyTablePerHierarchy:
		s = r.newStrategy(c, ecschema.StrategyTablePerHierarchy, r.defaultTableName(c.ID))
	default:
		s = r.newStrategy(c, decl.MapStrategy, decl.TableName)
		s.IDColumn = decl.ECInstanceIDColumn
	}

	s.Explicit = true
	s.Explanation = "declared " + decl.MapStrategy.String()

	return s
}

func (r *Resolver) ownTable(c *ecschema.Class) *ClassStrategy {
	return r.newStrategy(c, ecschema.StrategyOwnTable, r.defaultTableName(c.ID))
}

func (r *Resolver) newStrategy(c *ecschema.Class, kind ecschema.MapStrategy, table string) *ClassStrategy {
	return &ClassStrategy{
		Class:        c.ID,
		Strategy:     kind,
		Root:         c.ID,
		PrimaryTable: table,
		Table:        table,
	}
}

// inherit derives the strategy of a class without its own ClassMap from its parent.
func (r *Resolver) inherit(c *ecschema.Class, parent *ClassStrategy) *ClassStrategy {
	s := *parent
	s.Class = c.ID
	s.Explicit = false
	s.Explanation = fmt.Sprintf("inherits %s from %s", parent.Strategy, parent.Root)

	if !parent.JoinedBase.IsZero() {
		if parent.Class == parent.JoinedBase {
			s.JoinedRoot = c.ID
		}

		s.Table = r.defaultTableName(s.JoinedRoot)
	}

	return &s
}

// applyOptions validates and records ShareColumns and JoinedTablePerDirectSubclass.
func (r *Resolver) applyOptions(c *ecschema.Class, s *ClassStrategy) error {
	subject := c.ID.String()

	if sc := c.ShareColumns; sc != nil {
		if s.Strategy != ecschema.StrategyTablePerHierarchy {
			return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
				"ShareColumns requires TablePerHierarchy, class resolves to %s", s.Strategy)
		}

		if !s.ShareColumnsBy.IsZero() {
			return diagnostic.Newf(diagnostic.StrategyConflict, subject,
				"ShareColumns is already declared by %s on this hierarchy path", s.ShareColumnsBy)
		}

		count := 0
		if sc.SharedColumnCount != nil {
			count = *sc.SharedColumnCount
			if count < 1 {
				return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
					"SharedColumnCount must be at least 1, got %d", count)
			}
		}

		s.ShareColumnsBy = c.ID
		s.Options.ShareColumns = true
		s.Options.SharedColumnCount = count
		s.Options.ApplyToSubclassesOnly = sc.ApplyToSubclassesOnly
	}

	if c.JoinedTablePerDirectSubclass {
		if s.Strategy != ecschema.StrategyTablePerHierarchy {
			return diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
				"JoinedTablePerDirectSubclass requires TablePerHierarchy, class resolves to %s", s.Strategy)
		}

		if !s.JoinedBase.IsZero() {
			return diagnostic.Newf(diagnostic.StrategyConflict, subject,
				"JoinedTablePerDirectSubclass is already declared by %s on this hierarchy path", s.JoinedBase)
		}

		s.JoinedBase = c.ID
		s.Options.JoinedTablePerDirectSubclass = true
	}

	return nil
}

func (r *Resolver) resolveRelationship(c *ecschema.Class) (*ClassStrategy, error) {
	subject := c.ID.String()

	if c.ShareColumns != nil || c.JoinedTablePerDirectSubclass {
		return nil, diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
			"relationship classes cannot carry ShareColumns or JoinedTablePerDirectSubclass")
	}

	if err := checkDeclaration(c); err != nil {
		return nil, err
	}

	decl := c.ClassMap
	if decl != nil && decl.MapStrategy != ecschema.StrategyNotMapped {
		return nil, diagnostic.Newf(diagnostic.InvalidOptionUsage, subject,
			"relationship classes only accept NotMapped, not %s", decl.MapStrategy)
	}

	parent, err := r.reconcileBases(c)
	if err != nil {
		return nil, err
	}

	var s *ClassStrategy

	switch {
	case parent != nil && !parent.IsMapped() && parent.Propagates:
		s = r.inherit(c, parent)
	case decl != nil:
		s = r.resolveRoot(c)
	case parent != nil && parent.IsMapped():
		s = r.inherit(c, parent)
	default:
		s = r.newStrategy(c, ecschema.StrategyTablePerHierarchy, r.defaultTableName(c.ID))
		s.Options.Implicit = true
		s.Explanation = "relationship hierarchy rooted at the class"
	}

	s.Relationship = true

	return s, nil
}

// checkPrior rejects a class whose strategy differs from the one persisted earlier.
func (r *Resolver) checkPrior(s *ClassStrategy) error {
	prior := r.prior.ClassMap(s.Class)
	if prior == nil {
		return nil
	}

	subject := s.Class.String()

	if prior.Strategy != s.Strategy {
		return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, subject,
			"strategy was %s and cannot change to %s", prior.Strategy, s.Strategy)
	}

	if !s.Relationship && s.IsMapped() && prior.Table != s.Table {
		return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, subject,
			"table was %s and cannot change to %s", prior.Table, s.Table)
	}

	if prior.Options != s.Options {
		return diagnostic.Newf(diagnostic.IncrementalLayoutViolation, subject,
			"mapping options were %+v and cannot change to %+v", prior.Options, s.Options)
	}

	return nil
}

func (r *Resolver) defaultTableName(id ecschema.ClassID) string {
	return common.JoinName(r.graph.SchemaOf(id).Prefix(), id.Name)
}
