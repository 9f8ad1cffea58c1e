package ecschema

import (
	"errors"
	"fmt"
	"strings"
)

// PathSegment is one dot-separated part of a property access string.
type PathSegment struct {
	Name    string
	IsArray bool
}

// PropertyPath is a parsed access string such as "Address.Street".
type PropertyPath struct {
	Segments []PathSegment
}

// String returns the access string.
func (p PropertyPath) String() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		parts[i] = s.Name
		if s.IsArray {
			parts[i] += "[]"
		}
	}

	return strings.Join(parts, ".")
}

// ParsePath parses a property access string.
// Supports: "Prop", "Struct.Member", "Items[]", "Items[].Member".
func ParsePath(path string) (PropertyPath, error) {
	if path == "" {
		return PropertyPath{}, errors.New("empty path")
	}

	var segments []PathSegment

	for part := range strings.SplitSeq(path, ".") {
		if part == "" {
			return PropertyPath{}, fmt.Errorf("invalid path %q: empty segment", path)
		}

		isArray := false
		name := part

		if strings.HasSuffix(part, "[]") {
			isArray = true
			name = strings.TrimSuffix(part, "[]")

			if name == "" {
				return PropertyPath{}, fmt.Errorf("invalid path %q: array without property name", path)
			}
		}

		if !isValidIdent(name) {
			return PropertyPath{}, fmt.Errorf("invalid path %q: invalid identifier %q", path, name)
		}

		segments = append(segments, PathSegment{Name: name, IsArray: isArray})
	}

	return PropertyPath{Segments: segments}, nil
}

// isValidIdent checks if a string is a valid property identifier.
func isValidIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !isLetter(r) && r != '_' {
				return false
			}
		} else if !isLetter(r) && !isDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
