package suggest

import "testing"

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"users", "users", 0},
		{"usrs", "users", 1},
		{"kitten", "sitting", 3},
		{"emial", "email", 2},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Distance(tt.b, tt.a); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestClosest(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		candidates  []string
		maxDistance int
		want        string
		wantOK      bool
	}{
		{"one typo", "usrs", []string{"users", "orders"}, 2, "users", true},
		{"keeps casing", "USRS", []string{"Users", "orders"}, 2, "Users", true},
		{"too far", "customers", []string{"users", "orders"}, 2, "", false},
		{"nearest wins", "usr", []string{"users", "user"}, 2, "user", true},
		{"tie prefers shared prefix", "cat", []string{"bat", "cab"}, 2, "cab", true},
		{"tie keeps candidate order", "cat", []string{"hat", "bat"}, 2, "hat", true},
		{"exact match is not a suggestion", "Users", []string{"users"}, 2, "", false},
		{"underscores and doubled letters", "emailaddress", []string{"email_adress"}, 1, "email_adress", true},
		{"zero threshold", "usrs", []string{"users"}, 0, "", false},
		{"empty input", "", []string{"users"}, 2, "", false},
		{"no candidates", "users", nil, 2, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Closest(tt.input, tt.candidates, tt.maxDistance)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Closest(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClosestIsDeterministic(t *testing.T) {
	candidates := []string{"order_items", "orders", "order", "ordres"}
	first, _ := Closest("ordrs", candidates, DefaultMaxDistance)
	for range 50 {
		if got, _ := Closest("ordrs", candidates, DefaultMaxDistance); got != first {
			t.Fatalf("Closest changed from %q to %q", first, got)
		}
	}
}
