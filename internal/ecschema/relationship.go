package ecschema

import (
	"fmt"
	"strconv"
	"strings"

	"schemamap/internal/common"
)

// Unbounded is the upper bound of a "many" multiplicity.
const Unbounded = -1

// Multiplicity is a constraint multiplicity such as (0..1) or (1..*).
type Multiplicity struct {
	Lower int
	Upper int
}

// Common multiplicities.
var (
	ZeroOne  = Multiplicity{Lower: 0, Upper: 1}
	OneOne   = Multiplicity{Lower: 1, Upper: 1}
	ZeroMany = Multiplicity{Lower: 0, Upper: Unbounded}
	OneMany  = Multiplicity{Lower: 1, Upper: Unbounded}
)

// ParseMultiplicity parses "0..1", "(1..*)", "0..N" or a single bound such as "1".
func ParseMultiplicity(s string) (Multiplicity, error) {
	str := strings.TrimSpace(s)
	str = strings.TrimPrefix(str, "(")
	str = strings.TrimSuffix(str, ")")

	lowerStr, upperStr, found := strings.Cut(str, "..")
	if !found {
		upperStr = lowerStr
	}

	lower, err := strconv.Atoi(strings.TrimSpace(lowerStr))
	if err != nil {
		return Multiplicity{}, fmt.Errorf("invalid multiplicity %q: bad lower bound", s)
	}

	var upper int

	switch u := strings.TrimSpace(upperStr); u {
	case "*", "N", "n":
		upper = Unbounded
	default:
		upper, err = strconv.Atoi(u)
		if err != nil {
			return Multiplicity{}, fmt.Errorf("invalid multiplicity %q: bad upper bound", s)
		}
	}

	m := Multiplicity{Lower: lower, Upper: upper}
	if lower < 0 || (upper != Unbounded && (upper < 1 || upper < lower)) {
		return Multiplicity{}, fmt.Errorf("invalid multiplicity %q: bounds out of range", s)
	}

	return m, nil
}

// IsMany reports whether the upper bound exceeds one.
func (m Multiplicity) IsMany() bool {
	return m.Upper == Unbounded || m.Upper > 1
}

// IsMandatory reports whether the lower bound requires at least one.
func (m Multiplicity) IsMandatory() bool {
	return m.Lower >= 1
}

// IsExactlyOne reports whether the multiplicity is (1..1).
func (m Multiplicity) IsExactlyOne() bool {
	return m.Lower == 1 && m.Upper == 1
}

// String formats the multiplicity as "(lower..upper)".
func (m Multiplicity) String() string {
	upper := "*"
	if m.Upper != Unbounded {
		upper = strconv.Itoa(m.Upper)
	}

	return fmt.Sprintf("(%d..%s)", m.Lower, upper)
}

// Strength is the relationship strength.
type Strength int

const (
	StrengthReferencing Strength = iota
	StrengthHolding
	StrengthEmbedding
)

// String returns the strength name.
func (s Strength) String() string {
	switch s {
	case StrengthReferencing:
		return "referencing"
	case StrengthHolding:
		return "holding"
	case StrengthEmbedding:
		return "embedding"
	default:
		return common.UnknownStr
	}
}

// Direction is the relationship strength direction.
type Direction int

const (
	DirectionForward Direction = iota
	DirectionBackward
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return common.UnknownStr
	}
}

// End names a relationship end.
type End int

const (
	EndSource End = iota
	EndTarget
)

// String returns the end name.
func (e End) String() string {
	switch e {
	case EndSource:
		return "source"
	case EndTarget:
		return "target"
	default:
		return common.UnknownStr
	}
}

// Other returns the opposite end.
func (e End) Other() End {
	if e == EndSource {
		return EndTarget
	}

	return EndSource
}

// OnDeleteAction is the referential action of a foreign key.
type OnDeleteAction int

const (
	OnDeleteNoAction OnDeleteAction = iota
	OnDeleteCascade
	OnDeleteSetNull
	OnDeleteRestrict
)

// String returns the action name.
func (a OnDeleteAction) String() string {
	switch a {
	case OnDeleteNoAction:
		return "NoAction"
	case OnDeleteCascade:
		return "Cascade"
	case OnDeleteSetNull:
		return "SetNull"
	case OnDeleteRestrict:
		return "Restrict"
	default:
		return common.UnknownStr
	}
}

// SQL returns the DDL spelling of the action.
func (a OnDeleteAction) SQL() string {
	switch a {
	case OnDeleteCascade:
		return "CASCADE"
	case OnDeleteSetNull:
		return "SET NULL"
	case OnDeleteRestrict:
		return "RESTRICT"
	default:
		return "NO ACTION"
	}
}

// Constraint is one end of a relationship.
type Constraint struct {
	Multiplicity Multiplicity `yaml:"multiplicity"`
	Classes      []ClassID    `yaml:"classes"`
	Polymorphic  bool         `yaml:"polymorphic,omitempty"`
}

// RelationshipInfo carries the relationship specific parts of a class.
type RelationshipInfo struct {
	Strength  Strength   `yaml:"strength,omitempty"`
	Direction Direction  `yaml:"direction,omitempty"`
	Source    Constraint `yaml:"source"`
	Target    Constraint `yaml:"target"`

	ForeignKeyConstraint        *ForeignKeyConstraintCA `yaml:"foreignKeyConstraint,omitempty"`
	LinkTableMap                *LinkTableMapCA         `yaml:"linkTableRelationshipMap,omitempty"`
	UseECInstanceIDAsForeignKey bool                    `yaml:"useECInstanceIdAsForeignKey,omitempty"`
}

// Constraint returns the constraint of the given end.
func (r *RelationshipInfo) Constraint(e End) *Constraint {
	if e == EndSource {
		return &r.Source
	}

	return &r.Target
}

// ForeignKeyConstraintCA is the ForeignKeyConstraint custom attribute.
type ForeignKeyConstraintCA struct {
	OnDeleteAction OnDeleteAction `yaml:"onDeleteAction,omitempty"`
}

// LinkTableMapCA is the LinkTableRelationshipMap custom attribute.
type LinkTableMapCA struct {
	SourceECInstanceIDColumn    string `yaml:"sourceECInstanceIdColumn,omitempty"`
	TargetECInstanceIDColumn    string `yaml:"targetECInstanceIdColumn,omitempty"`
	AllowDuplicateRelationships bool   `yaml:"allowDuplicateRelationships,omitempty"`
	CreateForeignKeyConstraints *bool  `yaml:"createForeignKeyConstraints,omitempty"`
}

// CreatesForeignKeys reports whether link table FK constraints are emitted. Defaults to true.
func (ca *LinkTableMapCA) CreatesForeignKeys() bool {
	return ca == nil || ca.CreateForeignKeyConstraints == nil || *ca.CreateForeignKeyConstraints
}
