// Package keybind owns the mapping from action identifiers to actions and the
// control-plane service that mutates it at runtime.
package keybind

import (
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var tableLog = log.WithField("component", "keybind")

// Table is the binding table: ActionID -> Action. Concurrent readers (the
// resolver, on every release and dial event) and a single mutator (the
// control-plane server) are safe; every lookup observes a fully-written
// Action.
type Table struct {
	mu       sync.RWMutex
	bindings map[keydial.ActionID]keydial.Action
}

func NewTable() *Table {
	return &Table{bindings: make(map[keydial.ActionID]keydial.Action)}
}

// Entry is one binding in document order, used during construction.
type Entry struct {
	RawID keydial.ActionID
	Chord string
}

// NewTableFromEntries builds a table from ordered configuration entries.
// Entries whose key is not a known button, a "+"-joined combo of known
// buttons, or a dial gesture are dropped with a diagnostic. Duplicate keys
// (before or after canonicalization) resolve to the last occurrence. Chord
// members are split on "+" and trimmed.
func NewTableFromEntries(entries []Entry) *Table {
	t := NewTable()
	for _, e := range entries {
		id, err := keydial.CanonicalizeActionID(string(e.RawID))
		if err != nil {
			tableLog.WithField("key", e.RawID).Warnf("dropping binding: %v", err)
			continue
		}
		keys := splitChord(e.Chord)
		if len(keys) == 0 {
			tableLog.WithField("key", e.RawID).Warn("dropping binding: empty key chord")
			continue
		}
		t.Set(id, keydial.Action{
			Type:        keydial.ActionKeyboard,
			Keys:        keys,
			Description: string(id) + " -> " + e.Chord,
		})
	}
	return t
}

func splitChord(chord string) []string {
	var keys []string
	for _, k := range strings.Split(chord, "+") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Lookup returns the Action bound to id.
func (t *Table) Lookup(id keydial.ActionID) (keydial.Action, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.bindings[id]
	return a, ok
}

// IsSticky reports whether id is bound to a sticky action.
func (t *Table) IsSticky(id keydial.ActionID) bool {
	a, ok := t.Lookup(id)
	return ok && a.Sticky
}

// Set installs or replaces a binding.
func (t *Table) Set(id keydial.ActionID, a keydial.Action) {
	t.mu.Lock()
	t.bindings[id] = a
	t.mu.Unlock()
}

// Remove deletes a binding, reporting whether it existed.
func (t *Table) Remove(id keydial.ActionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bindings[id]; !ok {
		return false
	}
	delete(t.bindings, id)
	return true
}

// All returns a snapshot of every binding.
func (t *Table) All() map[keydial.ActionID]keydial.Action {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[keydial.ActionID]keydial.Action, len(t.bindings))
	for id, a := range t.bindings {
		out[id] = a
	}
	return out
}

// ActionIDs returns the bound ActionIDs in sorted order.
func (t *Table) ActionIDs() []keydial.ActionID {
	t.mu.RLock()
	ids := make([]keydial.ActionID, 0, len(t.bindings))
	for id := range t.bindings {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bindings)
}
