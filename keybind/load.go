package keybind

import (
	"github.com/Triforcey/huion-keydial-mini-uinput/config"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

// FromConfig builds the initial binding table from persisted configuration:
// the key_mappings section plus the dial gesture keys from dial_settings.
func FromConfig(cfg *config.Config) *Table {
	entries := make([]Entry, 0, len(cfg.KeyMappings)+3)
	for _, m := range cfg.KeyMappings {
		entries = append(entries, Entry{RawID: keydial.ActionID(m.Key), Chord: m.Chord})
	}
	if cfg.DialSettings.CW != "" {
		entries = append(entries, Entry{RawID: keydial.DialCW, Chord: cfg.DialSettings.CW})
	}
	if cfg.DialSettings.CCW != "" {
		entries = append(entries, Entry{RawID: keydial.DialCCW, Chord: cfg.DialSettings.CCW})
	}
	if cfg.DialSettings.Click != "" {
		entries = append(entries, Entry{RawID: keydial.DialClick, Chord: cfg.DialSettings.Click})
	}
	t := NewTableFromEntries(entries)
	tableLog.Infof("loaded %d initial keybindings", t.Len())
	return t
}
