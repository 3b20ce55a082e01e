package keydial

import (
	"strings"

	"github.com/pkg/errors"
)

// ActionID is the canonical identifier for a bindable gesture: a single
// button name, a sorted "+"-joined button combo, or one of the dial gestures.
type ActionID string

// Dial gesture identifiers. These bypass the combo machinery entirely.
const (
	DialCW    ActionID = "DIAL_CW"
	DialCCW   ActionID = "DIAL_CCW"
	DialClick ActionID = "DIAL_CLICK"
)

// ComboSeparator joins button names inside a combo ActionID.
const ComboSeparator = "+"

// ActionType tags the kind of an Action. Keyboard is the only kind today;
// the tag exists so the emission boundary can match exhaustively when more
// kinds show up.
type ActionType string

const ActionKeyboard ActionType = "keyboard"

// Action is what an ActionID is bound to.
type Action struct {
	Type        ActionType `json:"type"`
	Keys        []string   `json:"keys"`
	Sticky      bool       `json:"sticky,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Validate checks the shape of an Action independent of its ActionID.
func (a Action) Validate() error {
	if a.Type != ActionKeyboard {
		return errors.Errorf("unsupported action type %q", a.Type)
	}
	if len(a.Keys) == 0 {
		return errors.New("action has no keys")
	}
	for _, k := range a.Keys {
		if strings.TrimSpace(k) == "" {
			return errors.New("action has an empty key name")
		}
	}
	return nil
}

// ComboID builds the canonical ActionID for a button set: members sorted
// lexicographically and joined with "+". Any two sets with the same members
// produce the identical ActionID regardless of observation order. Returns ""
// for the empty set.
func ComboID(set ButtonSet) ActionID {
	if set.Len() == 0 {
		return ""
	}
	return ActionID(strings.Join(set.SortedNames(), ComboSeparator))
}

// IsDialGesture reports whether id names one of the three dial gestures.
func IsDialGesture(id ActionID) bool {
	return id == DialCW || id == DialCCW || id == DialClick
}

// CanonicalizeActionID validates raw as an ActionID and returns its canonical
// form: dial gestures pass through, single buttons must be known, combos are
// deduplicated and sorted. Validation failures are ErrInvalidActionID errors.
func CanonicalizeActionID(raw string) (ActionID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.Wrap(ErrInvalidActionID, "empty action id")
	}
	if IsDialGesture(ActionID(raw)) {
		return ActionID(raw), nil
	}
	parts := strings.Split(raw, ComboSeparator)
	set := make(ButtonSet, len(parts))
	for _, p := range parts {
		id, ok := ParseButton(strings.TrimSpace(p))
		if !ok {
			return "", errors.Wrapf(ErrInvalidActionID, "unknown button %q in %q", p, raw)
		}
		set.Add(id)
	}
	if len(parts) >= 2 && set.Len() < 2 {
		return "", errors.Wrapf(ErrInvalidActionID, "combo %q has fewer than 2 distinct buttons", raw)
	}
	return ComboID(set), nil
}
