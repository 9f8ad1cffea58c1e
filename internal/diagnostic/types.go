package diagnostic

import (
	"fmt"
	"strings"

	"schemamap/internal/common"
)

// Diagnostics holds the non-fatal findings of an import. Fatal failures are
// returned as *MappingError instead.
type Diagnostics struct {
	Warnings []Diagnostic
	Infos    []Diagnostic
}

// Diagnostic is one finding about a class, relationship or property.
type Diagnostic struct {
	Severity Severity
	// Code identifies the kind of finding, e.g. "shared_pool_overflow".
	Code    string
	Message string
	// Subject is the class or relationship identity, if any.
	Subject string
	// Property is the property access string, if any.
	Property string
}

// Severity ranks diagnostics.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return common.UnknownStr
	}
}

// AddWarning records a finding the user should act on: a constraint that
// was not applied, or a declared limit that was exceeded.
func (d *Diagnostics) AddWarning(code, message, subject, property string) {
	d.Warnings = append(d.Warnings, Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  message,
		Subject:  subject,
		Property: property,
	})
}

// AddInfo records a mapping decision that is not obvious from the schema.
func (d *Diagnostics) AddInfo(code, message, subject, property string) {
	d.Infos = append(d.Infos, Diagnostic{
		Severity: SeverityInfo,
		Code:     code,
		Message:  message,
		Subject:  subject,
		Property: property,
	})
}

// Merge appends the findings of other.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Infos = append(d.Infos, other.Infos...)
}

// Len counts all findings.
func (d *Diagnostics) Len() int {
	return len(d.Warnings) + len(d.Infos)
}

func (d Diagnostic) String() string {
	var b strings.Builder

	if d.Subject != "" {
		b.WriteString("[" + d.Subject + "]")

		if d.Property != "" {
			b.WriteString(" " + d.Property)
		}

		b.WriteString(": ")
	}

	if d.Code != "" {
		fmt.Fprintf(&b, "[%s] ", d.Code)
	}

	b.WriteString(d.Message)

	return b.String()
}
