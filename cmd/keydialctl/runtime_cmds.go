package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Triforcey/huion-keydial-mini-uinput/bluez"
	"github.com/Triforcey/huion-keydial-mini-uinput/config"
	"github.com/Triforcey/huion-keydial-mini-uinput/diag"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var flagScanTimeout time.Duration

func init() {
	scanCmd.Flags().DurationVar(&flagScanTimeout, "timeout", 0, "discovery duration (default: scan_timeout from config)")
	rootCmd.AddCommand(bindingsCmd, actionsCmd, scanCmd, diagnoseCmd)
}

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Show the running daemon's live bindings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		bindings, err := controlClient(cfg).GetBindings()
		if err != nil {
			return err
		}
		if len(bindings) == 0 {
			fmt.Println("no bindings")
			return nil
		}
		ids := make([]string, 0, len(bindings))
		for id := range bindings {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		for _, id := range ids {
			a := bindings[keydial.ActionID(id)]
			line := fmt.Sprintf("%-40s %s", id, strings.Join(a.Keys, "+"))
			if a.Sticky {
				line += "  [sticky]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the ActionIDs the running daemon has bound",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		actions, err := controlClient(cfg).ListActions()
		if err != nil {
			return err
		}
		for _, id := range actions {
			fmt.Println(id)
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run BLE discovery and list nearby devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		duration := flagScanTimeout
		if duration == 0 {
			duration = cfg.ScanTimeout()
		}

		bus, err := bluez.New()
		if err != nil {
			return err
		}
		defer bus.Close()

		fmt.Printf("scanning for %s...\n", duration)
		devices, err := bus.Scan(context.Background(), duration)
		if err != nil {
			return err
		}
		for _, dev := range devices {
			flags := ""
			if dev.Paired {
				flags += " paired"
			}
			if dev.Connected {
				flags += " connected"
			}
			if isTarget(cfg, dev) {
				flags += "  <- target"
			}
			fmt.Printf("%s  %-30s%s\n", dev.Address, dev.Name, flags)
		}
		return nil
	},
}

// isTarget mirrors the daemon's device filter.
func isTarget(cfg config.Config, dev keydial.DeviceInfo) bool {
	if cfg.Device.Address != "" {
		return strings.EqualFold(dev.Address, cfg.Device.Address)
	}
	if cfg.Device.Name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(dev.Name), strings.ToLower(cfg.Device.Name))
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check the host for the device, the virtual keyboard, and the control socket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return diag.Run(os.Stdout, cfg)
	},
}
