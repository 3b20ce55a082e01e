package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Triforcey/huion-keydial-mini-uinput/config"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
	"github.com/Triforcey/huion-keydial-mini-uinput/output"
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

var (
	flagSticky      bool
	flagDescription string
)

func init() {
	bindCmd.Flags().BoolVar(&flagSticky, "sticky", false, "toggle the keys on press/release instead of tapping them")
	bindCmd.Flags().StringVar(&flagDescription, "description", "", "free-form note stored with the binding")
	rootCmd.AddCommand(bindCmd, unbindCmd, dialCmd, setDeviceCmd, clearDeviceCmd,
		resetCmd, listKeysCmd, listBindingsCmd)
}

var bindCmd = &cobra.Command{
	Use:   "bind <action> <key[+key...]>",
	Short: "Bind a button, combo, or dial gesture to a key chord",
	Long: `Bind an action to a key chord and persist it.

The action is a button name (BUTTON_1 .. BUTTON_18), a "+"-joined combo of
button names, or a dial gesture (DIAL_CW, DIAL_CCW, DIAL_CLICK). The chord is
one or more KEY_* names joined with "+". A running daemon picks the binding
up immediately; the sticky flag applies to the live daemon only.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := keydial.CanonicalizeActionID(args[0])
		if err != nil {
			return err
		}
		chord := args[1]
		keys, err := validateChord(chord)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyChord(&cfg, id, chord)
		if err := saveConfig(&cfg); err != nil {
			return err
		}
		fmt.Printf("bound %s to %s\n", id, chord)

		action := keydial.Action{
			Type:        keydial.ActionKeyboard,
			Keys:        keys,
			Sticky:      flagSticky,
			Description: flagDescription,
		}
		if err := controlClient(cfg).SetBinding(string(id), action); err != nil {
			fmt.Println("daemon not updated:", err)
		} else {
			fmt.Println("daemon updated")
		}
		return nil
	},
}

var unbindCmd = &cobra.Command{
	Use:   "unbind <action>",
	Short: "Remove a binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := keydial.CanonicalizeActionID(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		removed := removeChord(&cfg, id)
		if removed {
			if err := saveConfig(&cfg); err != nil {
				return err
			}
		}
		if err := controlClient(cfg).RemoveBinding(string(id)); err != nil {
			if !removed {
				return errors.Errorf("%s is not bound", id)
			}
			fmt.Println("daemon not updated:", err)
		}
		fmt.Printf("unbound %s\n", id)
		return nil
	},
}

var dialCmd = &cobra.Command{
	Use:   "dial <sensitivity|max-steps> <value>",
	Short: "Tune dial behavior",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		switch args[0] {
		case "sensitivity":
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil || v <= 0 {
				return errors.Errorf("sensitivity must be a positive number, got %q", args[1])
			}
			cfg.DialSettings.Sensitivity = v
		case "max-steps":
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 1 {
				return errors.Errorf("max-steps must be a positive integer, got %q", args[1])
			}
			cfg.DialSettings.MaxSteps = v
		default:
			return errors.Errorf("unknown dial setting %q (want sensitivity or max-steps)", args[0])
		}
		if err := saveConfig(&cfg); err != nil {
			return err
		}
		fmt.Println("restart keydiald for dial settings to take effect")
		return nil
	},
}

var setDeviceCmd = &cobra.Command{
	Use:   "set-device <MAC>",
	Short: "Pin the driver to one device address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mac := strings.ToUpper(args[0])
		if !macPattern.MatchString(mac) {
			return errors.Errorf("%q is not a MAC address (want AA:BB:CC:DD:EE:FF)", args[0])
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Device.Address = mac
		if err := saveConfig(&cfg); err != nil {
			return err
		}
		fmt.Println("device pinned to", mac)
		return nil
	},
}

var clearDeviceCmd = &cobra.Command{
	Use:   "clear-device",
	Short: "Drop the device address pin, matching by name again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Device.Address = ""
		if err := saveConfig(&cfg); err != nil {
			return err
		}
		fmt.Printf("matching by name %q\n", cfg.Device.Name)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the configuration with built-in defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		return saveConfig(&cfg)
	},
}

var listKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List every key name usable in a chord",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range output.SupportedKeys() {
			fmt.Println(name)
		}
		return nil
	},
}

var listBindingsCmd = &cobra.Command{
	Use:   "list-bindings",
	Short: "List the persisted bindings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, m := range cfg.KeyMappings {
			fmt.Printf("%-40s %s\n", m.Key, m.Chord)
		}
		if cfg.DialSettings.CW != "" {
			fmt.Printf("%-40s %s\n", keydial.DialCW, cfg.DialSettings.CW)
		}
		if cfg.DialSettings.CCW != "" {
			fmt.Printf("%-40s %s\n", keydial.DialCCW, cfg.DialSettings.CCW)
		}
		if cfg.DialSettings.Click != "" {
			fmt.Printf("%-40s %s\n", keydial.DialClick, cfg.DialSettings.Click)
		}
		return nil
	},
}

// validateChord splits a "+"-joined chord and checks every key name against
// the sink's key map.
func validateChord(chord string) ([]string, error) {
	var keys []string
	for _, k := range strings.Split(chord, "+") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := output.LookupKey(k); !ok {
			return nil, errors.Errorf("unknown key %q (see keydialctl list-keys)", k)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, errors.New("empty key chord")
	}
	return keys, nil
}

// applyChord stores a binding in the right config section.
func applyChord(cfg *config.Config, id keydial.ActionID, chord string) {
	switch id {
	case keydial.DialCW:
		cfg.DialSettings.CW = chord
	case keydial.DialCCW:
		cfg.DialSettings.CCW = chord
	case keydial.DialClick:
		cfg.DialSettings.Click = chord
	default:
		cfg.KeyMappings.Set(string(id), chord)
	}
}

func removeChord(cfg *config.Config, id keydial.ActionID) bool {
	switch id {
	case keydial.DialCW:
		had := cfg.DialSettings.CW != ""
		cfg.DialSettings.CW = ""
		return had
	case keydial.DialCCW:
		had := cfg.DialSettings.CCW != ""
		cfg.DialSettings.CCW = ""
		return had
	case keydial.DialClick:
		had := cfg.DialSettings.Click != ""
		cfg.DialSettings.Click = ""
		return had
	}
	return cfg.KeyMappings.Delete(string(id))
}
