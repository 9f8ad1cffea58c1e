package layout

import (
	"gopkg.in/yaml.v3"

	"schemamap/internal/common"
)

// UnmarshalYAML decodes a storage type name.
func (t *StorageType) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, t, StorageTimestamp, "storage type")
}

// MarshalYAML writes the storage type name.
func (t StorageType) MarshalYAML() (any, error) { return t.String(), nil }

// UnmarshalYAML decodes a collation name.
func (c *Collation) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, c, CollationRTrim, "collation")
}

// MarshalYAML writes the collation name.
func (c Collation) MarshalYAML() (any, error) { return c.String(), nil }

// UnmarshalYAML decodes a column kind name.
func (k *ColumnKind) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, k, ColumnInstanceID, "column kind")
}

// MarshalYAML writes the column kind name.
func (k ColumnKind) MarshalYAML() (any, error) { return k.String(), nil }

// UnmarshalYAML decodes a table type name.
func (t *TableType) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, t, TableLink, "table type")
}

// MarshalYAML writes the table type name.
func (t TableType) MarshalYAML() (any, error) { return t.String(), nil }

// UnmarshalYAML decodes a mapping kind name.
func (k *MappingKind) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, k, MappingLinkTable, "mapping kind")
}

// MarshalYAML writes the mapping kind name.
func (k MappingKind) MarshalYAML() (any, error) { return k.String(), nil }

func decodeInto[T common.Enum](node *yaml.Node, dst *T, last T, what string) error {
	v, err := common.DecodeEnum(node, last, what)
	if err != nil {
		return err
	}

	*dst = v

	return nil
}
