package buttons

import (
	"slices"
	"strings"
)

// ID identifies a physical key. IDs are always compared in normalized
// form, so "AB12" from one source and "ab12" from another are equal.
type ID string

// Normalize trims surrounding whitespace and lower-cases s.
func Normalize(s string) ID {
	return ID(strings.ToLower(strings.TrimSpace(s)))
}

// ValidToken reports whether s can be sent to the controller as a single
// command argument: non-empty printable ASCII without spaces.
func ValidToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] > '~' {
			return false
		}
	}
	return true
}

// Set is a set of button IDs.
type Set map[ID]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id.
func (s Set) Add(id ID) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Minus returns the sorted IDs in s that are not in other.
func (s Set) Minus(other Set) []ID {
	var out []ID
	for id := range s {
		if !other.Has(id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Sorted returns the IDs in ascending order.
func (s Set) Sorted() []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
