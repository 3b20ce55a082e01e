package hidreport

import (
	"testing"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

func dialRotation(count, dir byte) []byte {
	return []byte{0xF1, 0x00, count, dir, 0, 0, 0, 0}
}

func dialClick(pressed bool) []byte {
	b := byte(0)
	if pressed {
		b = 0x01
	}
	return []byte{0xF1, b, 0x00, 0, 0, 0, 0, 0}
}

// buttonFrame builds a button-layout report: mask goes in byte 0, up to three
// group A codes in bytes 3..5.
func buttonFrame(mask byte, codes ...byte) []byte {
	data := make([]byte, 8)
	data[0] = mask
	for i, c := range codes {
		data[3+i] = c
	}
	return data
}

func TestDecodeDialClockwise(t *testing.T) {
	d := NewDecoder()
	out := d.Decode(dialRotation(3, 0x00))
	if len(out) != 1 {
		t.Fatalf("got %d transitions, want 1", len(out))
	}
	tr := out[0]
	if tr.Kind != keydial.DialTick || tr.Direction != 1 || tr.Magnitude != 3 {
		t.Fatalf("unexpected transition %+v", tr)
	}
}

func TestDecodeDialCounterClockwise(t *testing.T) {
	d := NewDecoder()
	// 0xFD = -3 in two's complement.
	out := d.Decode(dialRotation(0xFD, 0xFF))
	if len(out) != 1 {
		t.Fatalf("got %d transitions, want 1", len(out))
	}
	tr := out[0]
	if tr.Kind != keydial.DialTick || tr.Direction != -1 || tr.Magnitude != 3 {
		t.Fatalf("unexpected transition %+v", tr)
	}
}

func TestDecodeDialUnknownDirectionIgnored(t *testing.T) {
	d := NewDecoder()
	if out := d.Decode(dialRotation(3, 0x42)); len(out) != 0 {
		t.Fatalf("unknown direction produced %v", out)
	}
}

func TestDecodeDialClickEdges(t *testing.T) {
	d := NewDecoder()

	out := d.Decode(dialClick(true))
	if len(out) != 1 || out[0].Kind != keydial.DialClickPressed {
		t.Fatalf("press edge: %v", out)
	}
	// Repeated pressed frame is not a new edge.
	if out := d.Decode(dialClick(true)); len(out) != 0 {
		t.Fatalf("repeat press produced %v", out)
	}
	out = d.Decode(dialClick(false))
	if len(out) != 1 || out[0].Kind != keydial.DialClickReleased {
		t.Fatalf("release edge: %v", out)
	}
	if out := d.Decode(dialClick(false)); len(out) != 0 {
		t.Fatalf("repeat release produced %v", out)
	}
}

func TestDecodeButtonsGroupA(t *testing.T) {
	d := NewDecoder()

	out := d.Decode(buttonFrame(0, 0x0E)) // BUTTON_1
	if len(out) != 1 || out[0].Kind != keydial.ButtonPressed || out[0].Button != keydial.Button1 {
		t.Fatalf("press: %v", out)
	}

	// Same frame again: no transitions.
	if out := d.Decode(buttonFrame(0, 0x0E)); len(out) != 0 {
		t.Fatalf("steady state produced %v", out)
	}

	out = d.Decode(buttonFrame(0))
	if len(out) != 1 || out[0].Kind != keydial.ButtonReleased || out[0].Button != keydial.Button1 {
		t.Fatalf("release: %v", out)
	}
}

func TestDecodeButtonsGroupAOrderIndependent(t *testing.T) {
	a := NewDecoder()
	b := NewDecoder()
	outA := a.Decode(buttonFrame(0, 0x0E, 0x0A))
	outB := b.Decode(buttonFrame(0, 0x0A, 0x0E))
	if !a.Buttons().Equal(b.Buttons()) {
		t.Fatalf("code order changed the decoded set: %v vs %v", a.Buttons(), b.Buttons())
	}
	if len(outA) != 2 || len(outB) != 2 {
		t.Fatalf("expected 2 presses each, got %d and %d", len(outA), len(outB))
	}
}

func TestDecodeButtonsGroupB(t *testing.T) {
	d := NewDecoder()
	d.Decode(buttonFrame(0x01 | 0x04))
	want := keydial.NewButtonSet(keydial.Button13, keydial.Button14)
	if !d.Buttons().Equal(want) {
		t.Fatalf("group B decode = %v, want %v", d.Buttons(), want)
	}
}

func TestDecodeMixedGroups(t *testing.T) {
	d := NewDecoder()
	d.Decode(buttonFrame(0x02, 0x4C)) // BUTTON_15 + BUTTON_4
	want := keydial.NewButtonSet(keydial.Button15, keydial.Button4)
	if !d.Buttons().Equal(want) {
		t.Fatalf("mixed decode = %v, want %v", d.Buttons(), want)
	}
}

func TestDecodePartialRelease(t *testing.T) {
	d := NewDecoder()
	d.Decode(buttonFrame(0, 0x0E, 0x0A)) // BUTTON_1 + BUTTON_2
	out := d.Decode(buttonFrame(0, 0x0A))
	if len(out) != 1 || out[0].Kind != keydial.ButtonReleased || out[0].Button != keydial.Button1 {
		t.Fatalf("partial release: %v", out)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	d := NewDecoder()
	for _, data := range [][]byte{nil, {}, {0xF1}, {0xF1, 0, 3, 0, 0, 0, 0}} {
		if out := d.Decode(data); len(out) != 0 {
			t.Fatalf("short buffer %v produced %v", data, out)
		}
	}
}

func TestDecodeUnknownCodesIgnored(t *testing.T) {
	d := NewDecoder()
	if out := d.Decode(buttonFrame(0, 0xEE, 0xDD)); len(out) != 0 {
		t.Fatalf("unknown codes produced %v", out)
	}
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder()
	d.Decode(buttonFrame(0, 0x0E))
	d.Decode(dialClick(true))
	d.Reset()
	if d.Buttons().Len() != 0 {
		t.Fatalf("buttons survived Reset: %v", d.Buttons())
	}
	// After reset a pressed frame is a fresh edge again.
	out := d.Decode(dialClick(true))
	if len(out) != 1 || out[0].Kind != keydial.DialClickPressed {
		t.Fatalf("post-reset click: %v", out)
	}
}
