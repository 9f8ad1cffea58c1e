package ecschema

import (
	"strings"

	"schemamap/internal/common"
)

// ClassID uniquely identifies a class across schemas.
type ClassID struct {
	Schema string
	Name   string
}

// String returns "Schema:Name".
func (id ClassID) String() string {
	if id.Schema == "" {
		return id.Name
	}

	return id.Schema + ":" + id.Name
}

// IsZero reports whether the id is unset.
func (id ClassID) IsZero() bool {
	return id.Name == ""
}

// Less orders ids by schema then name.
func (id ClassID) Less(other ClassID) bool {
	if id.Schema != other.Schema {
		return id.Schema < other.Schema
	}

	return id.Name < other.Name
}

// ParseClassID parses "Schema:Name" or a bare "Name".
func ParseClassID(s string) ClassID {
	if i := strings.IndexAny(s, ":."); i >= 0 {
		return ClassID{Schema: s[:i], Name: s[i+1:]}
	}

	return ClassID{Name: s}
}

// Schema is one imported schema unit.
type Schema struct {
	Name  string `yaml:"schema"`
	Alias string `yaml:"alias"`
	// TablePrefix overrides Alias as the table name prefix.
	TablePrefix string   `yaml:"tablePrefix,omitempty"`
	Classes     []*Class `yaml:"classes"`
}

// Prefix returns the table name prefix of the schema.
func (s *Schema) Prefix() string {
	if s.TablePrefix != "" {
		return s.TablePrefix
	}

	if s.Alias != "" {
		return s.Alias
	}

	return s.Name
}

// ClassKind distinguishes entity, struct, relationship and mixin classes.
type ClassKind int

const (
	KindEntity ClassKind = iota
	KindStruct
	KindRelationship
	KindMixin
)

// String returns a human-readable kind name.
func (k ClassKind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindStruct:
		return "struct"
	case KindRelationship:
		return "relationship"
	case KindMixin:
		return "mixin"
	default:
		return common.UnknownStr
	}
}

// Modifier is the class modifier.
type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierAbstract
	ModifierSealed
)

// String returns a human-readable modifier name.
func (m Modifier) String() string {
	switch m {
	case ModifierNone:
		return "none"
	case ModifierAbstract:
		return "abstract"
	case ModifierSealed:
		return "sealed"
	default:
		return common.UnknownStr
	}
}

// Class is an entity, struct, mixin or relationship class.
type Class struct {
	Name        string    `yaml:"name"`
	Kind        ClassKind `yaml:"kind,omitempty"`
	Modifier    Modifier  `yaml:"modifier,omitempty"`
	BaseClasses []ClassID `yaml:"baseClasses,omitempty"`

	Properties []*Property `yaml:"properties,omitempty"`

	ClassMap                     *ClassMapCA     `yaml:"classMap,omitempty"`
	ShareColumns                 *ShareColumnsCA `yaml:"shareColumns,omitempty"`
	JoinedTablePerDirectSubclass bool            `yaml:"joinedTablePerDirectSubclass,omitempty"`
	DbIndexes                    []DbIndexCA     `yaml:"dbIndexes,omitempty"`

	Relationship *RelationshipInfo `yaml:"relationship,omitempty"`

	// ID is assigned when the class is registered in a Graph.
	ID ClassID `yaml:"-"`
}

// IsSealed reports whether the class may not have subclasses.
func (c *Class) IsSealed() bool {
	return c.Modifier == ModifierSealed
}

// Property finds a property declared directly on the class.
func (c *Class) Property(name string) *Property {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}

	return nil
}

// PropertyKind classifies how a property is stored.
type PropertyKind int

const (
	PropertyPrimitive PropertyKind = iota
	PropertyStruct
	PropertyPrimitiveArray
	PropertyStructArray
	PropertyNavigation
)

// String returns a human-readable property kind name.
func (k PropertyKind) String() string {
	switch k {
	case PropertyPrimitive:
		return "primitive"
	case PropertyStruct:
		return "struct"
	case PropertyPrimitiveArray:
		return "primitive array"
	case PropertyStructArray:
		return "struct array"
	case PropertyNavigation:
		return "navigation"
	default:
		return common.UnknownStr
	}
}

// IsArray reports whether values are stored out of line.
func (k PropertyKind) IsArray() bool {
	return k == PropertyPrimitiveArray || k == PropertyStructArray
}

// PrimitiveType is the declared primitive type of a property.
type PrimitiveType int

const (
	TypeBinary PrimitiveType = iota
	TypeBoolean
	TypeDateTime
	TypeDouble
	TypeInteger
	TypeLong
	TypeString
	TypePoint2d
	TypePoint3d
	TypeGeometry
)

// String returns the schema type name.
func (t PrimitiveType) String() string {
	switch t {
	case TypeBinary:
		return "binary"
	case TypeBoolean:
		return "boolean"
	case TypeDateTime:
		return "dateTime"
	case TypeDouble:
		return "double"
	case TypeInteger:
		return "int"
	case TypeLong:
		return "long"
	case TypeString:
		return "string"
	case TypePoint2d:
		return "point2d"
	case TypePoint3d:
		return "point3d"
	case TypeGeometry:
		return "IGeometry"
	default:
		return common.UnknownStr
	}
}

// Property is a class property.
type Property struct {
	Name string `yaml:"name"`
	// Type is a primitive type name or a struct class reference.
	Type        string         `yaml:"type,omitempty"`
	Array       bool           `yaml:"array,omitempty"`
	PropertyMap *PropertyMapCA `yaml:"propertyMap,omitempty"`
	Navigation  *Navigation    `yaml:"navigation,omitempty"`

	// Resolved by the Graph.
	Kind          PropertyKind  `yaml:"-"`
	PrimitiveType PrimitiveType `yaml:"-"`
	StructType    ClassID       `yaml:"-"`
}

// Navigation declares the FK end of a relationship inline.
type Navigation struct {
	Relationship ClassID   `yaml:"relationship"`
	Direction    Direction `yaml:"direction"`
}

// MapStrategy is the strategy named by a ClassMap custom attribute.
type MapStrategy int

const (
	StrategyUnset MapStrategy = iota
	StrategyNotMapped
	StrategyOwnTable
	StrategyTablePerHierarchy
	StrategySharedTable
	StrategyExistingTable
)

// String returns the strategy name.
func (s MapStrategy) String() string {
	switch s {
	case StrategyUnset:
		return "Unset"
	case StrategyNotMapped:
		return "NotMapped"
	case StrategyOwnTable:
		return "OwnTable"
	case StrategyTablePerHierarchy:
		return "TablePerHierarchy"
	case StrategySharedTable:
		return "SharedTable"
	case StrategyExistingTable:
		return "ExistingTable"
	default:
		return common.UnknownStr
	}
}

// ClassMapCA is the ClassMap custom attribute.
type ClassMapCA struct {
	MapStrategy        MapStrategy `yaml:"strategy"`
	TableName          string      `yaml:"tableName,omitempty"`
	ECInstanceIDColumn string      `yaml:"ecInstanceIdColumn,omitempty"`
	// AppliesToSubclasses controls NotMapped propagation. Defaults to true.
	AppliesToSubclasses *bool `yaml:"appliesToSubclasses,omitempty"`
}

// Propagates reports whether a NotMapped declaration binds subclasses.
func (ca *ClassMapCA) Propagates() bool {
	return ca.AppliesToSubclasses == nil || *ca.AppliesToSubclasses
}

// ShareColumnsCA is the ShareColumns custom attribute.
type ShareColumnsCA struct {
	SharedColumnCount     *int `yaml:"sharedColumnCount,omitempty"`
	ApplyToSubclassesOnly bool `yaml:"applyToSubclassesOnly,omitempty"`
}

// PropertyMapCA is the PropertyMap custom attribute.
type PropertyMapCA struct {
	ColumnName string `yaml:"columnName,omitempty"`
	IsNullable *bool  `yaml:"isNullable,omitempty"`
	IsUnique   *bool  `yaml:"isUnique,omitempty"`
	Collation  string `yaml:"collation,omitempty"`
}

// DbIndexCA is one entry of the DbIndexList custom attribute.
type DbIndexCA struct {
	Name       string   `yaml:"name"`
	IsUnique   bool     `yaml:"isUnique,omitempty"`
	Properties []string `yaml:"properties"`
	Where      string   `yaml:"where,omitempty"`
}

// WhereIndexedColumnsAreNotNull is the only supported DbIndex Where value.
const WhereIndexedColumnsAreNotNull = "IndexedColumnsAreNotNull"
