package types

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiteralKind is the syntactic class of a constant operand.
type LiteralKind int

const (
	LiteralNull LiteralKind = iota
	LiteralString
	LiteralNumber
	LiteralBool
	LiteralBlob
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralString:
		return "string"
	case LiteralNumber:
		return "numeric"
	case LiteralBool:
		return "boolean"
	case LiteralBlob:
		return "blob"
	default:
		return "null"
	}
}

// Literal is a constant operand. Value holds string contents unquoted.
type Literal struct {
	Kind  LiteralKind
	Value string
}

// Display renders the literal as it would appear in SQL.
func (l Literal) Display() string {
	switch l.Kind {
	case LiteralString:
		return "'" + strings.ReplaceAll(l.Value, "'", "''") + "'"
	case LiteralNull:
		return "NULL"
	default:
		return l.Value
	}
}

// MismatchError explains why a value does not fit a type.
type MismatchError struct {
	Type    Type
	Literal Literal
	Detail  string
}

func (e *MismatchError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s literal %s is not compatible with %s", e.Literal.Kind, e.Literal.Display(), e.Type.describe())
}

func (t Type) describe() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Family.String()
}

// CheckComparison reports whether lit may be compared with a value of type t.
// It returns nil or a *MismatchError.
func CheckComparison(t Type, lit Literal) error {
	mismatch := func(detail string) error {
		return &MismatchError{Type: t, Literal: lit, Detail: detail}
	}
	if t.Family == FamilyUnknown || lit.Kind == LiteralNull {
		return nil
	}

	switch lit.Kind {
	case LiteralNumber:
		switch {
		case t.Family.IsNumeric():
			return nil
		case t.Family == FamilyBoolean && (lit.Value == "0" || lit.Value == "1"):
			return nil
		}
		return mismatch("")

	case LiteralString:
		switch t.Family {
		case FamilyInteger, FamilyDecimal, FamilyFloat:
			if _, err := decimal.NewFromString(strings.TrimSpace(lit.Value)); err != nil {
				return mismatch(fmt.Sprintf("%s is not a number", lit.Display()))
			}
		case FamilyUUID:
			if err := uuid.Validate(lit.Value); err != nil {
				return mismatch(fmt.Sprintf("%s is not a valid UUID", lit.Display()))
			}
		case FamilyBoolean:
			if _, ok := boolSpellings[strings.ToLower(strings.TrimSpace(lit.Value))]; !ok {
				return mismatch(fmt.Sprintf("%s is not a boolean", lit.Display()))
			}
		}
		return nil

	case LiteralBool:
		if t.Family == FamilyBoolean || t.Family == FamilyInteger {
			return nil
		}
		return mismatch("")

	case LiteralBlob:
		if t.Family == FamilyBinary || t.Family == FamilyText {
			return nil
		}
		return mismatch("")
	}
	return nil
}

// CheckAssignment reports whether lit may be stored in a column of type t. It
// is stricter than CheckComparison: fractional values do not fit integer
// columns, decimals must fit their precision and strings their length.
func CheckAssignment(t Type, lit Literal) error {
	if err := CheckComparison(t, lit); err != nil {
		return err
	}
	if lit.Kind != LiteralNumber && lit.Kind != LiteralString {
		return nil
	}
	mismatch := func(detail string) error {
		return &MismatchError{Type: t, Literal: lit, Detail: detail}
	}

	switch t.Family {
	case FamilyInteger, FamilyDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(lit.Value))
		if err != nil {
			// Hex and other dialect forms are not checked.
			return nil
		}
		if t.Family == FamilyInteger && !d.IsInteger() {
			return mismatch(fmt.Sprintf("fractional value %s cannot be stored in %s column", lit.Display(), t.describe()))
		}
		if t.Family == FamilyDecimal && t.Precision > 0 && integerDigits(d) > t.Precision-t.Scale {
			return mismatch(fmt.Sprintf("value %s exceeds %s", lit.Display(), t.describe()))
		}
	case FamilyText:
		if lit.Kind == LiteralString && t.Length > 0 && utf8.RuneCountInString(lit.Value) > t.Length {
			return mismatch(fmt.Sprintf("value %s is too long for %s", lit.Display(), t.describe()))
		}
	}
	return nil
}

func integerDigits(d decimal.Decimal) int {
	whole := d.Abs().Truncate(0)
	if whole.IsZero() {
		return 0
	}
	return len(whole.String())
}

// Comparable reports whether values of types a and b may be compared without
// an explicit cast.
func Comparable(a, b Type) bool {
	if a.Family == FamilyUnknown || b.Family == FamilyUnknown || a.Family == b.Family {
		if a.Family == FamilyArray && b.Family == FamilyArray && a.Elem != nil && b.Elem != nil {
			return Comparable(*a.Elem, *b.Elem)
		}
		return true
	}
	if a.Family.IsNumeric() && b.Family.IsNumeric() {
		return true
	}
	if a.Family > b.Family {
		a, b = b, a
	}
	switch {
	case a.Family == FamilyInteger && b.Family == FamilyBoolean:
		return true
	case a.Family == FamilyText && (b.Family == FamilyBinary || b.Family == FamilyTemporal ||
		b.Family == FamilyUUID || b.Family == FamilyJSON):
		return true
	}
	return false
}

var boolSpellings = map[string]struct{}{
	"true": {}, "false": {}, "t": {}, "f": {}, "yes": {}, "no": {}, "y": {}, "n": {},
	"on": {}, "off": {}, "1": {}, "0": {},
}
