package match

import (
	"strings"
	"unicode"
)

// NormalizeIdent folds a property or column name for fuzzy comparison:
// CamelCase and separators are collapsed and the result is lower-cased,
// so "ForeignECInstanceId", "foreign_ec_instance_id" and "foreignecinstanceid"
// compare equal.
func NormalizeIdent(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, tok := range tokenizeCamelCase(s) {
		b.WriteString(strings.ToLower(tok))
	}

	return b.String()
}

// TokenizeIdent splits an identifier into lower-case tokens.
//   - "ECInstanceId" -> ["ec", "instance", "id"]
//   - "Location_Street" -> ["location", "street"]
func TokenizeIdent(s string) []string {
	tokens := tokenizeCamelCase(s)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}

	return tokens
}

func tokenizeCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var (
		tokens  []string
		current strings.Builder
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}

		if i > 0 && startsToken(runes, i) {
			flush()
		}

		current.WriteRune(r)
	}

	flush()

	return tokens
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '.'
}

// startsToken splits on lower-to-upper transitions and before the last
// capital of an acronym ("ECInstance" -> "EC", "Instance").
func startsToken(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if !unicode.IsUpper(r) || isSeparator(prev) {
		return false
	}

	if !unicode.IsUpper(prev) {
		return true
	}

	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
