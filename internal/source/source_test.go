package source

import "testing"

func TestLineIndexPosition(t *testing.T) {
	src := []byte("SELECT 1\r\nFROM t\nwhere é = 2\n")
	idx := NewLineIndex(src)

	tests := []struct {
		name   string
		offset int
		want   Position
	}{
		{name: "start", offset: 0, want: Position{Line: 1, Column: 0}},
		{name: "end of first line", offset: 8, want: Position{Line: 1, Column: 8}},
		{name: "carriage return clamps", offset: 9, want: Position{Line: 1, Column: 8}},
		{name: "second line", offset: 15, want: Position{Line: 2, Column: 5}},
		{name: "multibyte counted once", offset: 26, want: Position{Line: 3, Column: 8}},
		{name: "negative clamps", offset: -5, want: Position{Line: 1, Column: 0}},
		{name: "past end clamps", offset: 999, want: Position{Line: 4, Column: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Position(tt.offset)
			if got != tt.want {
				t.Fatalf("Position(%d) = %v, want %v", tt.offset, got, tt.want)
			}
			if !idx.Contains(got) {
				t.Fatalf("position %v reported outside file", got)
			}
		})
	}
}

func TestLineIndexContains(t *testing.T) {
	idx := NewLineIndex([]byte("abc\nde"))
	if !idx.Contains(Position{Line: 2, Column: 2}) {
		t.Errorf("end of last line should be contained")
	}
	if idx.Contains(Position{Line: 2, Column: 3}) {
		t.Errorf("column past line length should not be contained")
	}
	if idx.Contains(Position{Line: 0, Column: 0}) {
		t.Errorf("line 0 should not be contained")
	}
	if idx.Contains(Position{Line: 3, Column: 0}) {
		t.Errorf("line past end should not be contained")
	}
}

func TestLineIndexPositionInsideCharacter(t *testing.T) {
	idx := NewLineIndex([]byte("ab\U0001F600"))
	got := idx.Position(5)
	if got != (Position{Line: 1, Column: 3}) {
		t.Fatalf("Position(5) = %v, want 1:3", got)
	}
	if !idx.Contains(got) {
		t.Fatalf("position %v reported outside file", got)
	}
}
