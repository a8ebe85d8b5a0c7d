package types

import (
	"errors"
	"strings"
	"testing"
)

func TestFamilyString(t *testing.T) {
	tests := []struct {
		family Family
		want   string
	}{
		{FamilyInteger, "integer"},
		{FamilyText, "text"},
		{FamilyBoolean, "boolean"},
		{FamilyTemporal, "temporal"},
		{FamilyUUID, "uuid"},
		{FamilyUnknown, "unknown"},
		{Family(999), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.family.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sqlType string
		want    Family
	}{
		{"INTEGER", FamilyInteger},
		{"int", FamilyInteger},
		{"BIGSERIAL", FamilyInteger},
		{"int unsigned", FamilyInteger},
		{"NUMERIC(10,2)", FamilyDecimal},
		{"double precision", FamilyFloat},
		{"REAL", FamilyFloat},
		{"VARCHAR(255)", FamilyText},
		{"character varying(20)", FamilyText},
		{"enum('a','b')", FamilyText},
		{"BYTEA", FamilyBinary},
		{"bool", FamilyBoolean},
		{"TIMESTAMP WITH TIME ZONE", FamilyTemporal},
		{"timestamp(3) without time zone", FamilyTemporal},
		{"DATETIME", FamilyTemporal},
		{"uuid", FamilyUUID},
		{"JSONB", FamilyJSON},
		{"TEXT[]", FamilyArray},
		{"UNSIGNED BIG INT", FamilyInteger},
		{"NVARCHAR2(10)", FamilyText},
		{"mytype", FamilyUnknown},
		{"", FamilyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			got := Classify(tt.sqlType)
			if got.Family != tt.want {
				t.Fatalf("Classify(%q).Family = %s, want %s", tt.sqlType, got.Family, tt.want)
			}
			if got.Name != tt.sqlType {
				t.Fatalf("Classify(%q).Name = %q", tt.sqlType, got.Name)
			}
		})
	}
}

func TestClassifyModifiers(t *testing.T) {
	dec := Classify("numeric(10, 2)")
	if dec.Precision != 10 || dec.Scale != 2 {
		t.Errorf("numeric(10, 2) precision/scale = %d/%d", dec.Precision, dec.Scale)
	}
	vc := Classify("VARCHAR(5)")
	if vc.Length != 5 {
		t.Errorf("VARCHAR(5) length = %d", vc.Length)
	}
	if Classify("TEXT").Length != -1 {
		t.Errorf("TEXT should have unlimited length")
	}
	arr := Classify("integer[]")
	if arr.Elem == nil || arr.Elem.Family != FamilyInteger {
		t.Errorf("integer[] element = %+v", arr.Elem)
	}
}

func TestCheckComparison(t *testing.T) {
	tests := []struct {
		name    string
		sqlType string
		lit     Literal
		wantErr bool
	}{
		{"text vs string", "TEXT", Literal{Kind: LiteralString, Value: "x"}, false},
		{"text vs number", "TEXT", Literal{Kind: LiteralNumber, Value: "42"}, true},
		{"integer vs number", "INTEGER", Literal{Kind: LiteralNumber, Value: "42"}, false},
		{"integer vs numeric string", "INTEGER", Literal{Kind: LiteralString, Value: "42"}, false},
		{"integer vs word", "INTEGER", Literal{Kind: LiteralString, Value: "abc"}, true},
		{"null always", "INTEGER", Literal{Kind: LiteralNull}, false},
		{"unknown type", "geometry", Literal{Kind: LiteralNumber, Value: "1"}, false},
		{"uuid valid", "UUID", Literal{Kind: LiteralString, Value: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}, false},
		{"uuid invalid", "UUID", Literal{Kind: LiteralString, Value: "not-a-uuid"}, true},
		{"boolean vs true", "BOOLEAN", Literal{Kind: LiteralBool, Value: "TRUE"}, false},
		{"boolean vs 1", "BOOLEAN", Literal{Kind: LiteralNumber, Value: "1"}, false},
		{"boolean vs 't'", "BOOLEAN", Literal{Kind: LiteralString, Value: "t"}, false},
		{"boolean vs 'maybe'", "BOOLEAN", Literal{Kind: LiteralString, Value: "maybe"}, true},
		{"integer vs bool", "INTEGER", Literal{Kind: LiteralBool, Value: "FALSE"}, false},
		{"text vs bool", "TEXT", Literal{Kind: LiteralBool, Value: "TRUE"}, true},
		{"date vs string", "DATE", Literal{Kind: LiteralString, Value: "2024-01-01"}, false},
		{"date vs number", "DATE", Literal{Kind: LiteralNumber, Value: "5"}, true},
		{"blob vs blob", "BLOB", Literal{Kind: LiteralBlob, Value: "X'00'"}, false},
		{"integer vs blob", "INTEGER", Literal{Kind: LiteralBlob, Value: "X'00'"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckComparison(Classify(tt.sqlType), tt.lit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckComparison() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var mm *MismatchError
				if !errors.As(err, &mm) {
					t.Fatalf("expected *MismatchError, got %T", err)
				}
			}
		})
	}
}

func TestCheckAssignment(t *testing.T) {
	tests := []struct {
		name    string
		sqlType string
		lit     Literal
		wantMsg string
	}{
		{"integer whole", "INT", Literal{Kind: LiteralNumber, Value: "3"}, ""},
		{"integer fractional", "INT", Literal{Kind: LiteralNumber, Value: "3.5"}, "fractional value 3.5"},
		{"integer fractional string", "INT", Literal{Kind: LiteralString, Value: "3.5"}, "fractional value '3.5'"},
		{"decimal fits", "NUMERIC(5,2)", Literal{Kind: LiteralNumber, Value: "123.45"}, ""},
		{"decimal overflow", "NUMERIC(5,2)", Literal{Kind: LiteralNumber, Value: "1234.5"}, "exceeds NUMERIC(5,2)"},
		{"decimal unconstrained", "NUMERIC", Literal{Kind: LiteralNumber, Value: "99999999999.5"}, ""},
		{"varchar fits", "VARCHAR(3)", Literal{Kind: LiteralString, Value: "héé"}, ""},
		{"varchar too long", "VARCHAR(3)", Literal{Kind: LiteralString, Value: "abcd"}, "too long for VARCHAR(3)"},
		{"text vs number", "TEXT", Literal{Kind: LiteralNumber, Value: "1"}, "numeric literal 1 is not compatible with TEXT"},
		{"float fractional", "REAL", Literal{Kind: LiteralNumber, Value: "0.5"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAssignment(Classify(tt.sqlType), tt.lit)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestComparable(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"INTEGER", "BIGINT", true},
		{"INTEGER", "NUMERIC(10,2)", true},
		{"INTEGER", "TEXT", false},
		{"TEXT", "VARCHAR(10)", true},
		{"TEXT", "TIMESTAMP", true},
		{"UUID", "TEXT", true},
		{"UUID", "INTEGER", false},
		{"BOOLEAN", "INTEGER", true},
		{"BOOLEAN", "DATE", false},
		{"INTEGER[]", "BIGINT[]", true},
		{"INTEGER[]", "TEXT[]", false},
		{"whatever", "INTEGER", true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := Comparable(Classify(tt.a), Classify(tt.b)); got != tt.want {
				t.Errorf("Comparable(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := Comparable(Classify(tt.b), Classify(tt.a)); got != tt.want {
				t.Errorf("Comparable(%s, %s) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}
