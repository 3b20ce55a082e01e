package hidreport

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var resolverLog = log.WithField("component", "resolver")

// DefaultDialStepCap bounds the press/release fan-out of a single rotation
// frame so a corrupt magnitude byte cannot flood the host with keystrokes.
const DefaultDialStepCap = 10

// Resolver consumes raw transitions, consults the binding table, and emits
// press/release events for resolved ActionIDs.
//
// A session is the interval between the button set leaving empty and
// returning to empty. Peak tracking and the fired flag reset at session end;
// sticky bookkeeping survives sessions until an owned button's release is
// observed.
type Resolver struct {
	table       *keybind.Table
	sensitivity float64
	stepCap     int

	current keydial.ButtonSet
	peak    keydial.ButtonSet
	fired   bool

	stickyActions map[keydial.ActionID]keydial.ButtonSet
	stickyButtons keydial.ButtonSet

	dialClickLatched bool
}

func NewResolver(table *keybind.Table, sensitivity float64, stepCap int) *Resolver {
	if sensitivity <= 0 {
		sensitivity = 1.0
	}
	if stepCap <= 0 {
		stepCap = DefaultDialStepCap
	}
	return &Resolver{
		table:         table,
		sensitivity:   sensitivity,
		stepCap:       stepCap,
		current:       keydial.NewButtonSet(),
		peak:          keydial.NewButtonSet(),
		stickyActions: make(map[keydial.ActionID]keydial.ButtonSet),
		stickyButtons: keydial.NewButtonSet(),
	}
}

// Resolve processes one report's worth of transitions and returns the
// resolved events, in order.
func (r *Resolver) Resolve(transitions []keydial.RawTransition) []keydial.ResolvedEvent {
	pressed := keydial.NewButtonSet()
	released := keydial.NewButtonSet()
	var dial []keydial.RawTransition

	for _, tr := range transitions {
		switch tr.Kind {
		case keydial.ButtonPressed:
			pressed.Add(tr.Button)
		case keydial.ButtonReleased:
			released.Add(tr.Button)
		default:
			dial = append(dial, tr)
		}
	}

	var events []keydial.ResolvedEvent
	if pressed.Len() > 0 || released.Len() > 0 {
		events = r.resolveButtons(pressed, released)
	}
	for _, tr := range dial {
		events = append(events, r.resolveDial(tr)...)
	}
	return events
}

func (r *Resolver) resolveButtons(pressed, released keydial.ButtonSet) []keydial.ResolvedEvent {
	var events []keydial.ResolvedEvent

	for id := range pressed {
		r.current.Add(id)
	}
	for id := range released {
		r.current.Remove(id)
	}

	if pressed.Len() > 0 {
		// Any new press re-arms the session, even a press belonging to an
		// active sticky action's buttons.
		r.fired = false
		if !r.current.Equal(r.peak) {
			r.peak = r.current.Clone()
		}

		// Sticky activation: at most one sticky action at a time.
		if id := keydial.ComboID(r.current); id != "" && r.table.IsSticky(id) {
			if len(r.stickyActions) == 0 {
				events = append(events, keydial.ResolvedEvent{Action: id, Press: true})
				r.stickyActions[id] = r.current.Clone()
				for b := range r.current {
					r.stickyButtons.Add(b)
				}
				resolverLog.Debugf("sticky action pressed: %s", id)
			} else {
				resolverLog.Debugf("sticky action %s suppressed, another is active", id)
			}
		}
	}

	if released.Len() > 0 && !r.fired {
		stickyReleased := false
		for _, id := range r.sortedStickyIDs() {
			owned := r.stickyActions[id]
			if !released.Intersects(owned) {
				continue
			}
			events = append(events, keydial.ResolvedEvent{Action: id, Press: false})
			resolverLog.Debugf("sticky action released: %s", id)

			remaining := owned.Diff(released)
			if remaining.Len() > 0 {
				r.stickyActions[id] = remaining
				for b := range released {
					r.stickyButtons.Remove(b)
				}
			} else {
				delete(r.stickyActions, id)
				for b := range owned {
					r.stickyButtons.Remove(b)
				}
			}
			stickyReleased = true
			r.fired = true
		}

		if !stickyReleased && r.stickyButtons.Len() == 0 {
			// Momentary lookup uses the peak set, not the set held at the
			// moment of release.
			if id := keydial.ComboID(r.peak); id != "" {
				if a, ok := r.table.Lookup(id); ok && !a.Sticky {
					events = append(events,
						keydial.ResolvedEvent{Action: id, Press: true},
						keydial.ResolvedEvent{Action: id, Press: false},
					)
					r.fired = true
					resolverLog.Debugf("action triggered: %s", id)
				}
			}
		}
	}

	if r.current.Len() == 0 {
		r.peak = keydial.NewButtonSet()
		if len(events) == 0 {
			r.fired = false
		}
	}
	return events
}

func (r *Resolver) resolveDial(tr keydial.RawTransition) []keydial.ResolvedEvent {
	switch tr.Kind {
	case keydial.DialTick:
		id := keydial.DialCW
		if tr.Direction < 0 {
			id = keydial.DialCCW
		}
		if _, ok := r.table.Lookup(id); !ok {
			return nil
		}
		steps := int(math.Round(float64(tr.Magnitude) * r.sensitivity))
		if steps < 1 {
			steps = 1
		}
		if steps > r.stepCap {
			steps = r.stepCap
		}
		events := make([]keydial.ResolvedEvent, 0, steps*2)
		for i := 0; i < steps; i++ {
			events = append(events,
				keydial.ResolvedEvent{Action: id, Press: true},
				keydial.ResolvedEvent{Action: id, Press: false},
			)
		}
		return events

	case keydial.DialClickPressed:
		if _, ok := r.table.Lookup(keydial.DialClick); !ok {
			return nil
		}
		r.dialClickLatched = true
		return []keydial.ResolvedEvent{{Action: keydial.DialClick, Press: true}}

	case keydial.DialClickReleased:
		// Release is emitted iff the press was, so the sink stays balanced
		// even when the binding changes mid-click.
		if !r.dialClickLatched {
			return nil
		}
		r.dialClickLatched = false
		return []keydial.ResolvedEvent{{Action: keydial.DialClick, Press: false}}
	}
	return nil
}

func (r *Resolver) sortedStickyIDs() []keydial.ActionID {
	ids := make([]keydial.ActionID, 0, len(r.stickyActions))
	for id := range r.stickyActions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset drops per-connection session state. Sticky bookkeeping is dropped
// too: with the device gone there will be no release to observe.
func (r *Resolver) Reset() {
	r.current = keydial.NewButtonSet()
	r.peak = keydial.NewButtonSet()
	r.fired = false
	r.stickyActions = make(map[keydial.ActionID]keydial.ButtonSet)
	r.stickyButtons = keydial.NewButtonSet()
	r.dialClickLatched = false
}
