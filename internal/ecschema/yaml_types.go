package ecschema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"schemamap/internal/common"
)

// --- ClassID YAML methods ---

// UnmarshalYAML accepts "Schema:Name" or a bare class name.
func (id *ClassID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected class reference, got %v", node.Line, node.Kind)
	}

	*id = ParseClassID(node.Value)

	return nil
}

// MarshalYAML writes the "Schema:Name" form.
func (id ClassID) MarshalYAML() (any, error) {
	return id.String(), nil
}

// --- Multiplicity YAML methods ---

// UnmarshalYAML parses a multiplicity scalar such as "0..*".
func (m *Multiplicity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected multiplicity, got %v", node.Line, node.Kind)
	}

	parsed, err := ParseMultiplicity(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*m = parsed

	return nil
}

// MarshalYAML writes the "(lower..upper)" form.
func (m Multiplicity) MarshalYAML() (any, error) {
	return m.String(), nil
}

// --- enum YAML methods ---

// UnmarshalYAML decodes a class kind name.
func (k *ClassKind) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, k, KindMixin, "class kind")
}

// MarshalYAML writes the kind name.
func (k ClassKind) MarshalYAML() (any, error) { return k.String(), nil }

// UnmarshalYAML decodes a modifier name.
func (m *Modifier) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, m, ModifierSealed, "modifier")
}

// MarshalYAML writes the modifier name.
func (m Modifier) MarshalYAML() (any, error) { return m.String(), nil }

// UnmarshalYAML decodes a map strategy name.
func (s *MapStrategy) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, s, StrategyExistingTable, "map strategy")
}

// MarshalYAML writes the strategy name.
func (s MapStrategy) MarshalYAML() (any, error) { return s.String(), nil }

// UnmarshalYAML decodes a strength name.
func (s *Strength) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, s, StrengthEmbedding, "strength")
}

// MarshalYAML writes the strength name.
func (s Strength) MarshalYAML() (any, error) { return s.String(), nil }

// UnmarshalYAML decodes a direction name.
func (d *Direction) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, d, DirectionBackward, "direction")
}

// MarshalYAML writes the direction name.
func (d Direction) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalYAML decodes a relationship end name.
func (e *End) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, e, EndTarget, "relationship end")
}

// MarshalYAML writes the end name.
func (e End) MarshalYAML() (any, error) { return e.String(), nil }

// UnmarshalYAML decodes an on-delete action name.
func (a *OnDeleteAction) UnmarshalYAML(node *yaml.Node) error {
	return decodeInto(node, a, OnDeleteRestrict, "on-delete action")
}

// MarshalYAML writes the action name.
func (a OnDeleteAction) MarshalYAML() (any, error) { return a.String(), nil }

func decodeInto[T common.Enum](node *yaml.Node, dst *T, last T, what string) error {
	v, err := common.DecodeEnum(node, last, what)
	if err != nil {
		return err
	}

	*dst = v

	return nil
}
