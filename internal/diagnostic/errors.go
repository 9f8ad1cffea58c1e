package diagnostic

import (
	"fmt"
	"strings"

	"schemamap/internal/common"
)

// ErrorKind classifies a mapping failure.
type ErrorKind int

const (
	// SchemaGraphError reports a malformed input graph (unknown base class, cycle).
	SchemaGraphError ErrorKind = iota
	// StrategyConflict reports incompatible strategies or options within a hierarchy.
	StrategyConflict
	// InvalidOptionUsage reports an option used with a strategy that forbids it.
	InvalidOptionUsage
	// UnsupportedRelationshipShape reports a multiplicity/strength/attribute
	// combination that cannot be represented.
	UnsupportedRelationshipShape
	// ExistingTableMismatch reports a property without a matching preexisting column.
	ExistingTableMismatch
	// IndexDefinitionError reports an invalid index declaration.
	IndexDefinitionError
	// IncrementalLayoutViolation reports an attempt to change an already fixed layout.
	IncrementalLayoutViolation
)

// String returns the kind name as used in reports.
func (k ErrorKind) String() string {
	switch k {
	case SchemaGraphError:
		return "SchemaGraphError"
	case StrategyConflict:
		return "StrategyConflict"
	case InvalidOptionUsage:
		return "InvalidOptionUsage"
	case UnsupportedRelationshipShape:
		return "UnsupportedRelationshipShape"
	case ExistingTableMismatch:
		return "ExistingTableMismatch"
	case IndexDefinitionError:
		return "IndexDefinitionError"
	case IncrementalLayoutViolation:
		return "IncrementalLayoutViolation"
	default:
		return common.UnknownStr
	}
}

// Sentinels usable with errors.Is.
var (
	ErrSchemaGraph                  = &MappingError{Kind: SchemaGraphError}
	ErrStrategyConflict             = &MappingError{Kind: StrategyConflict}
	ErrInvalidOptionUsage           = &MappingError{Kind: InvalidOptionUsage}
	ErrUnsupportedRelationshipShape = &MappingError{Kind: UnsupportedRelationshipShape}
	ErrExistingTableMismatch        = &MappingError{Kind: ExistingTableMismatch}
	ErrIndexDefinition              = &MappingError{Kind: IndexDefinitionError}
	ErrIncrementalLayoutViolation   = &MappingError{Kind: IncrementalLayoutViolation}
)

// MappingError is the single error type returned by the mapping stages.
// It names the offending class, relationship or index and the violated rule.
type MappingError struct {
	Kind ErrorKind
	// Subject is the class, relationship or index identity.
	Subject string
	// Property is the property access string, if the failure is property scoped.
	Property string
	// Rule describes the violated rule.
	Rule        string
	Suggestions []string
}

// Newf creates a MappingError with a formatted rule.
func Newf(kind ErrorKind, subject, format string, args ...any) *MappingError {
	return &MappingError{Kind: kind, Subject: subject, Rule: fmt.Sprintf(format, args...)}
}

// NewPropertyf creates a property scoped MappingError.
func NewPropertyf(kind ErrorKind, subject, property, format string, args ...any) *MappingError {
	return &MappingError{Kind: kind, Subject: subject, Property: property, Rule: fmt.Sprintf(format, args...)}
}

// WithSuggestions attaches "did you mean" candidates.
func (e *MappingError) WithSuggestions(s []string) *MappingError {
	e.Suggestions = s
	return e
}

func (e *MappingError) Error() string {
	var b strings.Builder

	b.WriteString(e.Kind.String())

	if e.Subject != "" {
		b.WriteString(": ")
		b.WriteString(e.Subject)

		if e.Property != "" {
			b.WriteString(".")
			b.WriteString(e.Property)
		}
	}

	if e.Rule != "" {
		b.WriteString(": ")
		b.WriteString(e.Rule)
	}

	if len(e.Suggestions) > 0 {
		b.WriteString(" (did you mean ")
		b.WriteString(strings.Join(e.Suggestions, ", "))
		b.WriteString("?)")
	}

	return b.String()
}

// Is matches any MappingError of the same kind, so the sentinels work with errors.Is.
func (e *MappingError) Is(target error) bool {
	t, ok := target.(*MappingError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}
