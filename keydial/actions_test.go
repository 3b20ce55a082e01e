package keydial

import (
	"errors"
	"testing"
)

func TestParseButtonRoundTrip(t *testing.T) {
	for n := 1; n <= NumButtons; n++ {
		id := ButtonID(n)
		parsed, ok := ParseButton(id.String())
		if !ok || parsed != id {
			t.Fatalf("ParseButton(%q) = %v, %v", id.String(), parsed, ok)
		}
	}
}

func TestParseButtonRejects(t *testing.T) {
	for _, name := range []string{"", "BUTTON_0", "BUTTON_19", "BUTTON_", "BUTTON_01", "BUTTON_1x", "DIAL_CW", "button_1"} {
		if id, ok := ParseButton(name); ok {
			t.Fatalf("ParseButton(%q) accepted as %v", name, id)
		}
	}
}

func TestCanonicalizeActionID(t *testing.T) {
	tests := []struct {
		in   string
		want ActionID
	}{
		{"BUTTON_1", "BUTTON_1"},
		{" BUTTON_1 ", "BUTTON_1"},
		{"BUTTON_2+BUTTON_1", "BUTTON_1+BUTTON_2"},
		{"BUTTON_1+BUTTON_2", "BUTTON_1+BUTTON_2"},
		// Lexicographic, not numeric: BUTTON_10 sorts before BUTTON_2.
		{"BUTTON_2+BUTTON_10", "BUTTON_10+BUTTON_2"},
		{"BUTTON_3+BUTTON_1+BUTTON_2", "BUTTON_1+BUTTON_2+BUTTON_3"},
		{"DIAL_CW", DialCW},
		{"DIAL_CCW", DialCCW},
		{"DIAL_CLICK", DialClick},
	}
	for _, tc := range tests {
		got, err := CanonicalizeActionID(tc.in)
		if err != nil {
			t.Fatalf("CanonicalizeActionID(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalizeActionID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalizeActionIDPermutationsAgree(t *testing.T) {
	perms := []string{
		"BUTTON_1+BUTTON_5+BUTTON_12",
		"BUTTON_5+BUTTON_12+BUTTON_1",
		"BUTTON_12+BUTTON_1+BUTTON_5",
	}
	var first ActionID
	for i, p := range perms {
		id, err := CanonicalizeActionID(p)
		if err != nil {
			t.Fatalf("CanonicalizeActionID(%q): %v", p, err)
		}
		if i == 0 {
			first = id
			continue
		}
		if id != first {
			t.Fatalf("permutation %q canonicalized to %q, want %q", p, id, first)
		}
	}
}

func TestCanonicalizeActionIDRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"BUTTON_99",
		"BUTTON_1+BUTTON_99",
		"BUTTON_1+",
		"BUTTON_1+BUTTON_1", // duplicates collapse below 2 distinct members
		"dial_cw",
		"KEY_A",
	} {
		_, err := CanonicalizeActionID(in)
		if err == nil {
			t.Fatalf("CanonicalizeActionID(%q) accepted", in)
		}
		if !errors.Is(err, ErrInvalidActionID) {
			t.Fatalf("CanonicalizeActionID(%q) error %v is not ErrInvalidActionID", in, err)
		}
	}
}

func TestComboIDEmptySet(t *testing.T) {
	if id := ComboID(NewButtonSet()); id != "" {
		t.Fatalf("ComboID(empty) = %q", id)
	}
}

func TestButtonSetDiff(t *testing.T) {
	a := NewButtonSet(Button1, Button2, Button3)
	b := NewButtonSet(Button2)
	diff := a.Diff(b)
	if diff.Len() != 2 || !diff.Has(Button1) || !diff.Has(Button3) {
		t.Fatalf("Diff = %v", diff)
	}
	if b.Diff(a).Len() != 0 {
		t.Fatalf("reverse Diff should be empty, got %v", b.Diff(a))
	}
}

func TestActionValidate(t *testing.T) {
	ok := Action{Type: ActionKeyboard, Keys: []string{"KEY_A"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid action rejected: %v", err)
	}
	bad := []Action{
		{Type: ActionKeyboard},
		{Type: "mouse", Keys: []string{"KEY_A"}},
		{Type: ActionKeyboard, Keys: []string{" "}},
	}
	for i, a := range bad {
		if err := a.Validate(); err == nil {
			t.Fatalf("case %d: invalid action accepted", i)
		}
	}
}
