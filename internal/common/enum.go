package common

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Enum is an int-backed enumeration with contiguous values starting at zero.
type Enum interface {
	~int
	String() string
}

// ParseEnum looks up the value whose String() matches s case-insensitively.
// last is the highest valid value.
func ParseEnum[T Enum](s string, last T) (T, bool) {
	for v := T(0); v <= last; v++ {
		if strings.EqualFold(v.String(), s) {
			return v, true
		}
	}

	return 0, false
}

// DecodeEnum decodes a YAML scalar node into an enum value.
func DecodeEnum[T Enum](node *yaml.Node, last T, what string) (T, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("line %d: expected %s name, got %v", node.Line, what, node.Kind)
	}

	v, ok := ParseEnum(node.Value, last)
	if !ok {
		return 0, fmt.Errorf("line %d: unknown %s %q", node.Line, what, node.Value)
	}

	return v, nil
}
