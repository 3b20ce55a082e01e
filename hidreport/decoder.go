// Package hidreport decodes the Keydial Mini's reverse-engineered report
// layouts and resolves the resulting transitions against the binding table.
package hidreport

import (
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

// The device emits two report layouts on its HID-over-GATT characteristics.
// There is no reliable characteristic-based dispatch; the first byte decides.
const (
	dialSentinel = 0xF1
	// Both layouts are 8+ bytes on the wire; anything shorter is noise.
	minReportLen = 8

	dirClockwise        = 0x00
	dirCounterClockwise = 0xFF
)

// Group A: bytes 3..5 each optionally carry one of these single-byte codes,
// order-independent, up to three buttons at once.
var groupACodes = map[byte]keydial.ButtonID{
	0x0E: keydial.Button1,
	0x0A: keydial.Button2,
	0x0F: keydial.Button3,
	0x4C: keydial.Button4,
	0x0C: keydial.Button5,
	0x07: keydial.Button6,
	0x05: keydial.Button7,
	0x08: keydial.Button8,
	0x16: keydial.Button9,
	0x1D: keydial.Button10,
	0x06: keydial.Button11,
	0x19: keydial.Button12,
	0x28: keydial.Button16,
	0x2C: keydial.Button17,
	0x11: keydial.Button18,
}

// Group B: byte 0 is a bitmask for three more buttons.
var groupBBits = [...]struct {
	mask   byte
	button keydial.ButtonID
}{
	{0x01, keydial.Button13},
	{0x02, keydial.Button15},
	{0x04, keydial.Button14},
}

// Decoder turns opaque report buffers into raw transitions. It remembers the
// previous frame's button set and dial click state so transitions can be
// computed from the absolute snapshots the device sends. One Decoder per
// physical connection; state is discarded on detach.
type Decoder struct {
	buttons     keydial.ButtonSet
	dialClicked bool
}

func NewDecoder() *Decoder {
	return &Decoder{buttons: keydial.NewButtonSet()}
}

// Reset drops all frame memory, as on device disconnect.
func (d *Decoder) Reset() {
	d.buttons = keydial.NewButtonSet()
	d.dialClicked = false
}

// Buttons returns the button set from the most recent frame.
func (d *Decoder) Buttons() keydial.ButtonSet {
	return d.buttons.Clone()
}

// Decode parses one report buffer. Buffers that match neither layout fall
// through silently and yield no transitions.
func (d *Decoder) Decode(data []byte) []keydial.RawTransition {
	if len(data) < minReportLen {
		return nil
	}
	if data[0] == dialSentinel {
		return d.decodeDial(data)
	}
	return d.decodeButtons(data)
}

func (d *Decoder) decodeDial(data []byte) []keydial.RawTransition {
	var out []keydial.RawTransition

	if data[2] == 0 {
		// Pure click frame: byte 1 carries click state, edge-triggered
		// against the previous frame.
		clicked := data[1] != 0
		if clicked && !d.dialClicked {
			out = append(out, keydial.RawTransition{Kind: keydial.DialClickPressed})
			d.dialClicked = true
		} else if !clicked && d.dialClicked {
			out = append(out, keydial.RawTransition{Kind: keydial.DialClickReleased})
			d.dialClicked = false
		}
		return out
	}

	// Rotation frame: byte 2 is the tick count, byte 3 the direction.
	count := int(data[2])
	switch data[3] {
	case dirClockwise:
		out = append(out, keydial.RawTransition{
			Kind:      keydial.DialTick,
			Direction: 1,
			Magnitude: count,
		})
	case dirCounterClockwise:
		// Two's-complement negative count.
		magnitude := 256 - count
		if magnitude < 0 {
			magnitude = 0
		}
		out = append(out, keydial.RawTransition{
			Kind:      keydial.DialTick,
			Direction: -1,
			Magnitude: magnitude,
		})
	default:
		// Unrecognized direction byte, ignore the frame.
	}
	return out
}

func (d *Decoder) decodeButtons(data []byte) []keydial.RawTransition {
	current := keydial.NewButtonSet()
	for i := 3; i <= 5; i++ {
		if id, ok := groupACodes[data[i]]; ok {
			current.Add(id)
		}
	}
	for _, g := range groupBBits {
		if data[0]&g.mask != 0 {
			current.Add(g.button)
		}
	}

	var out []keydial.RawTransition
	for id := range current.Diff(d.buttons) {
		out = append(out, keydial.RawTransition{Kind: keydial.ButtonPressed, Button: id})
	}
	for id := range d.buttons.Diff(current) {
		out = append(out, keydial.RawTransition{Kind: keydial.ButtonReleased, Button: id})
	}
	d.buttons = current
	return out
}
