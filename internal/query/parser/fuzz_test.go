package parser

import (
	"testing"
)

// FuzzParse tests the statement parser with random inputs.
func FuzzParse(f *testing.F) {
	f.Add("SELECT * FROM users WHERE id = :id;")
	f.Add("UPDATE employees SET employee_id = 'hi'")
	f.Add("INSERT INTO users (name) VALUES (?), (?)")
	f.Add("WITH x AS (SELECT 1) SELECT * FROM x WHERE")

	f.Fuzz(func(t *testing.T, input string) {
		stmt := ParseText(input)
		// Should never panic, and every marker must point inside the input.
		for _, bad := range stmt.Problems() {
			if bad.Offset < 0 || bad.Offset > len(input) {
				t.Fatalf("marker offset %d outside input of length %d", bad.Offset, len(input))
			}
		}
	})
}
