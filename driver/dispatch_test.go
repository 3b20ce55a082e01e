package driver

import (
	"sync"
	"testing"

	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

// recordingSink logs every press/release in order as "+KEY" / "-KEY".
type recordingSink struct {
	mu  sync.Mutex
	log []string
}

func (s *recordingSink) Press(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, "+"+key)
	return nil
}

func (s *recordingSink) Release(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, "-"+key)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

// balanced reports whether every press has a matching later release.
func (s *recordingSink) balanced() bool {
	held := map[string]int{}
	for _, e := range s.events() {
		if e[0] == '+' {
			held[e[1:]]++
		} else {
			held[e[1:]]--
			if held[e[1:]] < 0 {
				return false
			}
		}
	}
	for _, n := range held {
		if n != 0 {
			return false
		}
	}
	return true
}

func wantLog(t *testing.T, sink *recordingSink, want ...string) {
	t.Helper()
	got := sink.events()
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log = %v, want %v", got, want)
		}
	}
}

func TestDispatchChordOrder(t *testing.T) {
	table := keybind.NewTableFromEntries([]keybind.Entry{
		{RawID: "BUTTON_1", Chord: "KEY_LEFTCTRL+KEY_Z"},
	})
	sink := &recordingSink{}
	d := NewDispatcher(table, sink)

	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: true})
	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: false})

	wantLog(t, sink, "+KEY_LEFTCTRL", "+KEY_Z", "-KEY_Z", "-KEY_LEFTCTRL")
}

func TestDispatchReleasesPressTimeKeys(t *testing.T) {
	table := keybind.NewTableFromEntries([]keybind.Entry{
		{RawID: "BUTTON_1", Chord: "KEY_A"},
	})
	sink := &recordingSink{}
	d := NewDispatcher(table, sink)

	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: true})
	// Rebinding mid-hold must not change what gets released.
	table.Set("BUTTON_1", keydial.Action{Type: keydial.ActionKeyboard, Keys: []string{"KEY_B"}})
	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: false})

	wantLog(t, sink, "+KEY_A", "-KEY_A")
}

func TestDispatchUnboundAtPressStaysSilent(t *testing.T) {
	table := keybind.NewTable()
	sink := &recordingSink{}
	d := NewDispatcher(table, sink)

	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: true})
	// Binding installed between press and release must not produce a bare
	// release.
	table.Set("BUTTON_1", keydial.Action{Type: keydial.ActionKeyboard, Keys: []string{"KEY_A"}})
	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: false})

	wantLog(t, sink)
}

func TestDispatchReleaseWithoutPress(t *testing.T) {
	table := keybind.NewTable()
	sink := &recordingSink{}
	d := NewDispatcher(table, sink)

	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: false})
	wantLog(t, sink)
}

func TestReleaseAll(t *testing.T) {
	table := keybind.NewTableFromEntries([]keybind.Entry{
		{RawID: "BUTTON_1", Chord: "KEY_A"},
		{RawID: "BUTTON_2", Chord: "KEY_LEFTSHIFT"},
	})
	sink := &recordingSink{}
	d := NewDispatcher(table, sink)

	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_1", Press: true})
	d.Dispatch(keydial.ResolvedEvent{Action: "BUTTON_2", Press: true})
	d.ReleaseAll()

	if !sink.balanced() {
		t.Fatalf("sink left unbalanced: %v", sink.events())
	}
	// A second ReleaseAll is a no-op.
	d.ReleaseAll()
	if len(sink.events()) != 4 {
		t.Fatalf("log = %v", sink.events())
	}
}
