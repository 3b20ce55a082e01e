package keydial

import (
	"fmt"
	"sort"
)

// ButtonID identifies one of the 18 physical buttons on the Keydial Mini.
type ButtonID int

const (
	ButtonInvalid ButtonID = iota
	Button1
	Button2
	Button3
	Button4
	Button5
	Button6
	Button7
	Button8
	Button9
	Button10
	Button11
	Button12
	Button13
	Button14
	Button15
	Button16
	Button17
	Button18
)

// NumButtons is the size of the fixed button set.
const NumButtons = 18

func (b ButtonID) String() string {
	if b < Button1 || b > Button18 {
		return fmt.Sprintf("BUTTON_INVALID(%d)", int(b))
	}
	return fmt.Sprintf("BUTTON_%d", int(b))
}

// ParseButton maps a "BUTTON_n" name back to its ButtonID.
func ParseButton(name string) (ButtonID, bool) {
	var n int
	if _, err := fmt.Sscanf(name, "BUTTON_%d", &n); err != nil {
		return ButtonInvalid, false
	}
	if n < 1 || n > NumButtons {
		return ButtonInvalid, false
	}
	if name != fmt.Sprintf("BUTTON_%d", n) {
		return ButtonInvalid, false
	}
	return ButtonID(n), true
}

// ButtonSet is the set of currently-held buttons. The zero value is empty.
type ButtonSet map[ButtonID]struct{}

func NewButtonSet(ids ...ButtonID) ButtonSet {
	s := make(ButtonSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ButtonSet) Has(id ButtonID) bool {
	_, ok := s[id]
	return ok
}

func (s ButtonSet) Add(id ButtonID)    { s[id] = struct{}{} }
func (s ButtonSet) Remove(id ButtonID) { delete(s, id) }
func (s ButtonSet) Len() int           { return len(s) }

func (s ButtonSet) Clone() ButtonSet {
	out := make(ButtonSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Diff returns the members of s absent from other.
func (s ButtonSet) Diff(other ButtonSet) ButtonSet {
	out := make(ButtonSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersects reports whether the two sets share any member.
func (s ButtonSet) Intersects(other ButtonSet) bool {
	for id := range s {
		if other.Has(id) {
			return true
		}
	}
	return false
}

// Equal reports member-wise equality.
func (s ButtonSet) Equal(other ButtonSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// SortedNames returns the member names in lexicographic order, the order used
// for combo canonicalization.
func (s ButtonSet) SortedNames() []string {
	names := make([]string, 0, len(s))
	for id := range s {
		names = append(names, id.String())
	}
	sort.Strings(names)
	return names
}

func (s ButtonSet) String() string {
	if len(s) == 0 {
		return "{}"
	}
	out := "{"
	for i, name := range s.SortedNames() {
		if i > 0 {
			out += ","
		}
		out += name
	}
	return out + "}"
}
