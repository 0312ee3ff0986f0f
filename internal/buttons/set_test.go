package buttons

import (
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{"ab12cd", "ab12cd"},
		{"AB12CD", "ab12cd"},
		{"  Ab12Cd\t", "ab12cd"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidToken(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ab12cd", true},
		{"s3cr3t!~", true},
		{"", false},
		{"has space", false},
		{"tab\there", false},
		{"new\nline", false},
		{"café", false},
	}
	for _, tt := range tests {
		if got := ValidToken(tt.in); got != tt.want {
			t.Errorf("ValidToken(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSet_Minus(t *testing.T) {
	a := NewSet("a", "b", "c", "d")
	b := NewSet("c", "d", "e")

	if got := a.Minus(b); !slices.Equal(got, []ID{"a", "b"}) {
		t.Errorf("a.Minus(b) = %v, want [a b]", got)
	}
	if got := b.Minus(a); !slices.Equal(got, []ID{"e"}) {
		t.Errorf("b.Minus(a) = %v, want [e]", got)
	}
	if got := a.Minus(a); len(got) != 0 {
		t.Errorf("a.Minus(a) = %v, want empty", got)
	}
	if got := NewSet("z", "m", "a").Sorted(); !slices.Equal(got, []ID{"a", "m", "z"}) {
		t.Errorf("Sorted() = %v", got)
	}
}
