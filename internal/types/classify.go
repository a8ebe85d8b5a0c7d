package types

import (
	"strconv"
	"strings"
)

// Classify maps a declared column type to its family. It accepts PostgreSQL,
// MySQL and SQLite spellings; anything else falls back to SQLite's affinity
// rules and finally to FamilyUnknown.
func Classify(sqlType string) Type {
	t := Type{Name: sqlType, Length: -1}
	upper := strings.Join(strings.Fields(strings.ToUpper(sqlType)), " ")
	if upper == "" {
		return t
	}

	// Arrays (TEXT[], INTEGER[][], INTEGER ARRAY).
	if strings.HasSuffix(upper, "[]") {
		elem := Classify(strings.TrimSuffix(strings.TrimSpace(sqlType), "[]"))
		t.Family = FamilyArray
		t.Elem = &elem
		return t
	}
	if base, ok := strings.CutSuffix(upper, " ARRAY"); ok {
		elem := Classify(base)
		t.Family = FamilyArray
		t.Elem = &elem
		return t
	}

	baseType, length, precision, scale := parseTypeModifiers(upper)
	baseType = strings.TrimSuffix(baseType, " UNSIGNED")
	baseType = strings.TrimSuffix(baseType, " ZEROFILL")

	switch baseType {
	// Integer types
	case "INTEGER", "INT", "INT2", "INT4", "INT8", "SMALLINT", "TINYINT", "MEDIUMINT", "BIGINT",
		"SERIAL", "SMALLSERIAL", "BIGSERIAL", "SERIAL2", "SERIAL4", "SERIAL8", "YEAR",
		"OID", "REGCLASS", "REGTYPE", "REGPROC":
		t.Family = FamilyInteger

	// Decimal/numeric types
	case "NUMERIC", "DECIMAL", "DEC", "FIXED":
		t.Family = FamilyDecimal
		t.Precision, t.Scale = precision, scale
	case "MONEY":
		// MONEY is fixed precision (19,2) in PostgreSQL.
		t.Family = FamilyDecimal
		t.Precision, t.Scale = 19, 2

	// Floating point types
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION":
		t.Family = FamilyFloat

	// String types
	case "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "CLOB", "STRING", "CITEXT", "NAME",
		"ENUM", "SET", "XML", "INET", "CIDR", "MACADDR", "MACADDR8", "TSVECTOR", "TSQUERY",
		"POINT", "LINE", "LSEG", "BOX", "PATH", "POLYGON", "CIRCLE":
		t.Family = FamilyText
	case "CHAR", "CHARACTER", "NCHAR", "VARCHAR", "CHARACTER VARYING", "NVARCHAR",
		"VARCHAR2", "NATIONAL CHARACTER", "NATIONAL CHARACTER VARYING", "BPCHAR":
		t.Family = FamilyText
		t.Length = length

	// Binary types
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BYTEA", "BINARY", "VARBINARY",
		"BIT", "BIT VARYING", "VARBIT":
		t.Family = FamilyBinary

	// Boolean type
	case "BOOLEAN", "BOOL":
		t.Family = FamilyBoolean

	// Temporal types
	case "DATE", "TIME", "TIMETZ", "TIMESTAMP", "TIMESTAMPTZ", "DATETIME", "INTERVAL",
		"TIME WITH TIME ZONE", "TIME WITHOUT TIME ZONE",
		"TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITHOUT TIME ZONE":
		t.Family = FamilyTemporal

	case "UUID", "UNIQUEIDENTIFIER":
		t.Family = FamilyUUID

	case "JSON", "JSONB":
		t.Family = FamilyJSON

	default:
		t.Family = affinity(baseType)
		if t.Family == FamilyText {
			t.Length = length
		}
	}
	return t
}

// affinity applies SQLite's column affinity rules to an unrecognized name.
// NUMERIC affinity is left unknown since it accepts any literal.
func affinity(name string) Family {
	switch {
	case strings.Contains(name, "INT"):
		return FamilyInteger
	case strings.Contains(name, "CHAR"), strings.Contains(name, "CLOB"), strings.Contains(name, "TEXT"):
		return FamilyText
	case strings.Contains(name, "BLOB"):
		return FamilyBinary
	case strings.Contains(name, "REAL"), strings.Contains(name, "FLOA"), strings.Contains(name, "DOUB"):
		return FamilyFloat
	}
	return FamilyUnknown
}

// parseTypeModifiers extracts the base type and modifiers from declarations
// such as VARCHAR(255), NUMERIC(10,2) or TIMESTAMP(3) WITH TIME ZONE.
func parseTypeModifiers(sqlType string) (baseType string, length, precision, scale int) {
	length = -1
	openIdx := strings.Index(sqlType, "(")
	if openIdx == -1 {
		return sqlType, length, 0, 0
	}
	closeIdx := strings.Index(sqlType[openIdx:], ")")
	if closeIdx == -1 {
		return strings.TrimSpace(sqlType[:openIdx]), length, 0, 0
	}
	closeIdx += openIdx

	baseType = strings.TrimSpace(sqlType[:openIdx])
	if rest := strings.TrimSpace(sqlType[closeIdx+1:]); rest != "" {
		baseType += " " + rest
	}
	content := sqlType[openIdx+1 : closeIdx]

	if before, after, ok := strings.Cut(content, ","); ok {
		precision, _ = strconv.Atoi(strings.TrimSpace(before))
		scale, _ = strconv.Atoi(strings.TrimSpace(after))
		return baseType, length, precision, scale
	}
	val, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil {
		// ENUM('a','b') and similar.
		return baseType, length, 0, 0
	}
	switch baseType {
	case "NUMERIC", "DECIMAL", "DEC", "FIXED":
		precision = val
	default:
		length = val
	}
	return baseType, length, precision, scale
}
