package dataset

import (
	"reflect"
	"testing"
)

func TestParseIndices(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{"separator form", "3;17;42", []int{3, 17, 42}, false},
		{"single", "5", []int{5}, false},
		{"empty", "", []int{}, false},
		{"legacy brackets", "[3, 17, 42]", []int{3, 17, 42}, false},
		{"legacy quoted", "['3', '17', '42']", []int{3, 17, 42}, false},
		{"legacy empty", "[]", []int{}, false},
		{"bare commas", "1,2,3", []int{1, 2, 3}, false},
		{"whitespace", " 1 ; 2 ", []int{1, 2}, false},
		{"not a number", "1;x;3", nil, true},
		{"negative", "1;-2", nil, true},
		{"unterminated", "[1, 2", nil, true},
		{"trailing separator", "1;2;", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndices(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIndices(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseIndices(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatIndices_roundTrip(t *testing.T) {
	in := []int{0, 9, 120, 7}
	s := FormatIndices(in)
	if s != "0;9;120;7" {
		t.Errorf("FormatIndices = %q", s)
	}
	out, err := ParseIndices(s)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
	if FormatIndices(nil) != "" {
		t.Error("empty list should format as empty string")
	}
}
