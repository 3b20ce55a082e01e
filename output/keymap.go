// Package output turns resolved key names into host input events.
package output

import (
	"sort"

	evdev "github.com/holoplot/go-evdev"
)

// keyMap translates semantic key names to evdev codes. Names follow the
// kernel's KEY_* spelling so configs read the same as `evtest` output.
var keyMap = map[string]evdev.EvCode{
	"KEY_A": evdev.KEY_A, "KEY_B": evdev.KEY_B, "KEY_C": evdev.KEY_C,
	"KEY_D": evdev.KEY_D, "KEY_E": evdev.KEY_E, "KEY_F": evdev.KEY_F,
	"KEY_G": evdev.KEY_G, "KEY_H": evdev.KEY_H, "KEY_I": evdev.KEY_I,
	"KEY_J": evdev.KEY_J, "KEY_K": evdev.KEY_K, "KEY_L": evdev.KEY_L,
	"KEY_M": evdev.KEY_M, "KEY_N": evdev.KEY_N, "KEY_O": evdev.KEY_O,
	"KEY_P": evdev.KEY_P, "KEY_Q": evdev.KEY_Q, "KEY_R": evdev.KEY_R,
	"KEY_S": evdev.KEY_S, "KEY_T": evdev.KEY_T, "KEY_U": evdev.KEY_U,
	"KEY_V": evdev.KEY_V, "KEY_W": evdev.KEY_W, "KEY_X": evdev.KEY_X,
	"KEY_Y": evdev.KEY_Y, "KEY_Z": evdev.KEY_Z,

	"KEY_0": evdev.KEY_0, "KEY_1": evdev.KEY_1, "KEY_2": evdev.KEY_2,
	"KEY_3": evdev.KEY_3, "KEY_4": evdev.KEY_4, "KEY_5": evdev.KEY_5,
	"KEY_6": evdev.KEY_6, "KEY_7": evdev.KEY_7, "KEY_8": evdev.KEY_8,
	"KEY_9": evdev.KEY_9,

	"KEY_F1": evdev.KEY_F1, "KEY_F2": evdev.KEY_F2, "KEY_F3": evdev.KEY_F3,
	"KEY_F4": evdev.KEY_F4, "KEY_F5": evdev.KEY_F5, "KEY_F6": evdev.KEY_F6,
	"KEY_F7": evdev.KEY_F7, "KEY_F8": evdev.KEY_F8, "KEY_F9": evdev.KEY_F9,
	"KEY_F10": evdev.KEY_F10, "KEY_F11": evdev.KEY_F11, "KEY_F12": evdev.KEY_F12,

	"KEY_ENTER":     evdev.KEY_ENTER,
	"KEY_SPACE":     evdev.KEY_SPACE,
	"KEY_ESC":       evdev.KEY_ESC,
	"KEY_TAB":       evdev.KEY_TAB,
	"KEY_BACKSPACE": evdev.KEY_BACKSPACE,
	"KEY_DELETE":    evdev.KEY_DELETE,
	"KEY_INSERT":    evdev.KEY_INSERT,
	"KEY_HOME":      evdev.KEY_HOME,
	"KEY_END":       evdev.KEY_END,
	"KEY_PAGEUP":    evdev.KEY_PAGEUP,
	"KEY_PAGEDOWN":  evdev.KEY_PAGEDOWN,
	"KEY_UP":        evdev.KEY_UP,
	"KEY_DOWN":      evdev.KEY_DOWN,
	"KEY_LEFT":      evdev.KEY_LEFT,
	"KEY_RIGHT":     evdev.KEY_RIGHT,

	"KEY_VOLUMEUP":     evdev.KEY_VOLUMEUP,
	"KEY_VOLUMEDOWN":   evdev.KEY_VOLUMEDOWN,
	"KEY_MUTE":         evdev.KEY_MUTE,
	"KEY_PLAYPAUSE":    evdev.KEY_PLAYPAUSE,
	"KEY_NEXTSONG":     evdev.KEY_NEXTSONG,
	"KEY_PREVIOUSSONG": evdev.KEY_PREVIOUSSONG,
	"KEY_STOPCD":       evdev.KEY_STOPCD,

	"KEY_LEFTCTRL":   evdev.KEY_LEFTCTRL,
	"KEY_RIGHTCTRL":  evdev.KEY_RIGHTCTRL,
	"KEY_LEFTSHIFT":  evdev.KEY_LEFTSHIFT,
	"KEY_RIGHTSHIFT": evdev.KEY_RIGHTSHIFT,
	"KEY_LEFTALT":    evdev.KEY_LEFTALT,
	"KEY_RIGHTALT":   evdev.KEY_RIGHTALT,
	"KEY_LEFTMETA":   evdev.KEY_LEFTMETA,
	"KEY_RIGHTMETA":  evdev.KEY_RIGHTMETA,

	// Aliases kept for configs written against older releases.
	"KEY_CTRL":  evdev.KEY_LEFTCTRL,
	"KEY_SHIFT": evdev.KEY_LEFTSHIFT,
	"KEY_ALT":   evdev.KEY_LEFTALT,
	"KEY_META":  evdev.KEY_LEFTMETA,
}

// LookupKey resolves a semantic key name to its evdev code.
func LookupKey(name string) (evdev.EvCode, bool) {
	code, ok := keyMap[name]
	return code, ok
}

// SupportedKeys lists every key name the sink can emit, sorted.
func SupportedKeys() []string {
	names := make([]string, 0, len(keyMap))
	for name := range keyMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// capabilityCodes is the deduplicated code list the virtual device registers.
func capabilityCodes() []evdev.EvCode {
	seen := make(map[evdev.EvCode]struct{}, len(keyMap))
	codes := make([]evdev.EvCode, 0, len(keyMap))
	for _, code := range keyMap {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
