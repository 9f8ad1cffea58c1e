package match

import "strings"

// Affinity is the SQLite-style type affinity of a declared column type.
type Affinity int

const (
	AffinityBlob Affinity = iota
	AffinityText
	AffinityInteger
	AffinityReal
	AffinityNumeric
)

// String returns the affinity name.
func (a Affinity) String() string {
	switch a {
	case AffinityBlob:
		return "BLOB"
	case AffinityText:
		return "TEXT"
	case AffinityInteger:
		return "INTEGER"
	case AffinityReal:
		return "REAL"
	case AffinityNumeric:
		return "NUMERIC"
	default:
		return "unknown"
	}
}

// AffinityOf classifies a declared SQL type using the SQLite affinity rules.
// An empty type has blob affinity.
func AffinityOf(sqlType string) Affinity {
	t := strings.ToUpper(sqlType)

	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case t == "", strings.Contains(t, "BLOB"), strings.Contains(t, "BYTEA"), strings.Contains(t, "BINARY"):
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// Compatibility is the verdict of comparing a required column type with an existing one.
type Compatibility int

const (
	// Incompatible means values of the required type cannot be stored.
	Incompatible Compatibility = iota
	// Convertible means values are stored with a lossless affinity conversion.
	Convertible
	// Identical means both types share the same affinity.
	Identical
)

// String returns the verdict name.
func (c Compatibility) String() string {
	switch c {
	case Identical:
		return "identical"
	case Convertible:
		return "convertible"
	case Incompatible:
		return "incompatible"
	default:
		return "unknown"
	}
}

// ColumnCompatibility compares the type a property requires with the type of
// an existing column. Blob columns accept anything; numeric affinities accept
// each other.
func ColumnCompatibility(required, existing string) Compatibility {
	r, e := AffinityOf(required), AffinityOf(existing)

	switch {
	case r == e:
		return Identical
	case e == AffinityBlob:
		return Convertible
	case isNumeric(r) && isNumeric(e):
		return Convertible
	default:
		return Incompatible
	}
}

func isNumeric(a Affinity) bool {
	return a == AffinityInteger || a == AffinityReal || a == AffinityNumeric
}
