package driver

import (
	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var dispatchLog = log.WithField("component", "dispatch")

// Dispatcher is the emission boundary. It looks each resolved ActionID up in
// the binding table at press time, remembers which keys it pressed, and
// releases exactly those on the matching release event. Bindings changed
// between press and release therefore cannot strand a key down.
type Dispatcher struct {
	table *keybind.Table
	sink  keydial.KeySink

	// activeKeys holds the keys pressed for each ActionID currently down.
	activeKeys map[keydial.ActionID][]string
}

func NewDispatcher(table *keybind.Table, sink keydial.KeySink) *Dispatcher {
	return &Dispatcher{
		table:      table,
		sink:       sink,
		activeKeys: make(map[keydial.ActionID][]string),
	}
}

// Dispatch emits one resolved event to the sink.
func (d *Dispatcher) Dispatch(ev keydial.ResolvedEvent) {
	if ev.Press {
		d.press(ev.Action)
	} else {
		d.release(ev.Action)
	}
}

func (d *Dispatcher) press(id keydial.ActionID) {
	if _, down := d.activeKeys[id]; down {
		// The resolver never double-presses; guard anyway so the ledger
		// cannot lose track of held keys.
		dispatchLog.Warnf("duplicate press for %s ignored", id)
		return
	}
	action, ok := d.table.Lookup(id)
	if !ok {
		// Unbound at press time. Record an empty entry so a later release is
		// swallowed rather than mispaired.
		d.activeKeys[id] = nil
		return
	}
	var pressed []string
	for _, key := range action.Keys {
		if err := d.sink.Press(key); err != nil {
			dispatchLog.WithField("action", id).Warnf("press %s: %v", key, err)
			continue
		}
		pressed = append(pressed, key)
	}
	d.activeKeys[id] = pressed
}

func (d *Dispatcher) release(id keydial.ActionID) {
	keys, down := d.activeKeys[id]
	if !down {
		dispatchLog.Debugf("release for %s with no active press", id)
		return
	}
	delete(d.activeKeys, id)
	// Reverse order, so modifier-last chords unwind modifier-first.
	for i := len(keys) - 1; i >= 0; i-- {
		if err := d.sink.Release(keys[i]); err != nil {
			dispatchLog.WithField("action", id).Warnf("release %s: %v", keys[i], err)
		}
	}
}

// ReleaseAll releases every key still held, used on detach and shutdown.
func (d *Dispatcher) ReleaseAll() {
	for id := range d.activeKeys {
		d.release(id)
	}
}
