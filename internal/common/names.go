package common

import "strings"

// UnknownStr is returned by String methods for out-of-range enum values.
const UnknownStr = "unknown"

// Identity column names shared by every mapped table.
const (
	InstanceIDColumn = "ECInstanceId"
	ClassIDColumn    = "ECClassId"
)

// JoinName joins non-empty name parts with an underscore.
func JoinName(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	return strings.Join(nonEmpty, "_")
}
