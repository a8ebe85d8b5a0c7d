// Package types classifies declared SQL column types into families and
// decides which literals and columns may be compared or assigned to each
// other.
//
// The rules are deliberately permissive: a mismatch is only reported when the
// common dialects (PostgreSQL, MySQL, SQLite) would all reject or silently
// mangle the value.
package types

// Family is the semantic group of a SQL type, independent of dialect.
type Family int

const (
	// FamilyUnknown is an unrecognized or undeclared type. It is compatible
	// with everything.
	FamilyUnknown Family = iota
	// FamilyInteger covers integer and serial types.
	FamilyInteger
	// FamilyDecimal covers exact numerics with optional precision and scale.
	FamilyDecimal
	// FamilyFloat covers approximate numerics.
	FamilyFloat
	// FamilyText covers character types and text-like types such as INET.
	FamilyText
	// FamilyBinary covers BLOB, BYTEA and bit strings.
	FamilyBinary
	// FamilyBoolean covers BOOLEAN.
	FamilyBoolean
	// FamilyTemporal covers dates, times, timestamps and intervals.
	FamilyTemporal
	// FamilyUUID covers UUID.
	FamilyUUID
	// FamilyJSON covers JSON and JSONB.
	FamilyJSON
	// FamilyArray covers PostgreSQL arrays; Type.Elem holds the element.
	FamilyArray
)

// String returns a human-readable name for the family.
func (f Family) String() string {
	switch f {
	case FamilyInteger:
		return "integer"
	case FamilyDecimal:
		return "decimal"
	case FamilyFloat:
		return "float"
	case FamilyText:
		return "text"
	case FamilyBinary:
		return "binary"
	case FamilyBoolean:
		return "boolean"
	case FamilyTemporal:
		return "temporal"
	case FamilyUUID:
		return "uuid"
	case FamilyJSON:
		return "json"
	case FamilyArray:
		return "array"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether the family holds numbers.
func (f Family) IsNumeric() bool {
	switch f {
	case FamilyInteger, FamilyDecimal, FamilyFloat:
		return true
	default:
		return false
	}
}

// Type is a classified column type.
type Type struct {
	// Name is the declared type as written, e.g. "varchar(255)".
	Name   string
	Family Family

	// Length is the maximum length for character types (-1 = unlimited).
	Length int

	// Precision and Scale are set for DECIMAL/NUMERIC when declared.
	Precision int
	Scale     int

	// Elem is the element type of an array.
	Elem *Type
}

// Known reports whether the type was classified.
func (t Type) Known() bool {
	return t.Family != FamilyUnknown
}
