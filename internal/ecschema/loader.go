package ecschema

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile loads and parses a YAML schema file from the given path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// Parse parses YAML data into a Schema.
func Parse(data []byte) (*Schema, error) {
	var s Schema

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}

	applyDefaults(&s)

	return &s, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(s *Schema) {
	if s.Alias == "" {
		s.Alias = s.Name
	}

	for _, c := range s.Classes {
		if c.Relationship != nil && c.Kind == KindEntity {
			c.Kind = KindRelationship
		}
	}
}

// LoadGraph loads every schema file and builds the graph.
func LoadGraph(paths ...string) (*Graph, error) {
	schemas := make([]*Schema, 0, len(paths))

	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			return nil, err
		}

		schemas = append(schemas, s)
	}

	return NewGraph(schemas...)
}

// ParseGraph parses YAML documents and builds the graph.
func ParseGraph(docs ...string) (*Graph, error) {
	schemas := make([]*Schema, 0, len(docs))

	for _, d := range docs {
		s, err := Parse([]byte(d))
		if err != nil {
			return nil, err
		}

		schemas = append(schemas, s)
	}

	return NewGraph(schemas...)
}

// Marshal serializes a Schema to YAML.
func Marshal(s *Schema) ([]byte, error) {
	return yaml.Marshal(s)
}
