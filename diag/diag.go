// Package diag implements the self-check behind `keydialctl diagnose`: it
// inspects the host for traces of the physical device and verifies that the
// daemon's virtual keyboard and control socket are present.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	hid "github.com/GeertJohan/go.hid"
	udev "github.com/jochenvg/go-udev"

	"github.com/Triforcey/huion-keydial-mini-uinput/config"
)

const (
	vendorHuion    = 0x256c
	productKeydial = 0x006d
)

// Run executes every check, writing a human-readable report. It returns an
// error only when a check could not run at all, not when a check fails.
func Run(w io.Writer, cfg config.Config) error {
	fmt.Fprintln(w, "== hidraw devices ==")
	if err := checkHidraw(w); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n== virtual keyboard ==")
	if err := checkVirtualDevice(w, cfg.UInput.DeviceName); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n== control socket ==")
	checkSocket(w, cfg.Control.SocketPath)
	return nil
}

// checkHidraw enumerates hidraw nodes for the Huion vendor. The driver does
// not use hidraw itself; a node appearing here usually means the device
// paired in classic-HID mode and the kernel claimed it.
func checkHidraw(w io.Writer) error {
	devices, err := hid.Enumerate(vendorHuion, 0)
	if err != nil {
		return fmt.Errorf("hidraw enumeration: %w", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no Huion hidraw nodes (expected when reports arrive over GATT)")
		return nil
	}
	for _, dev := range devices {
		fmt.Fprintf(w, "%s  vendor=%04x product=%04x  %q\n",
			dev.Path, dev.VendorId, dev.ProductId, dev.Product)
		if dev.ProductId == productKeydial {
			fmt.Fprintln(w, "  note: kernel HID has claimed the device; its reports will not reach this driver")
		}
	}
	return nil
}

// checkVirtualDevice looks for the daemon's uinput keyboard in the input
// subsystem.
func checkVirtualDevice(w io.Writer, name string) error {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("input"); err != nil {
		return fmt.Errorf("udev subsystem filter: %w", err)
	}
	it, err := e.DeviceIterator()
	if err != nil {
		return fmt.Errorf("udev enumeration: %w", err)
	}
	defer it.Close()

	found := false
	it.Each(func(v interface{}) {
		dev := v.(*udev.Device)
		if dev.SysattrValue("name") == name {
			found = true
			fmt.Fprintf(w, "found %q at %s\n", name, dev.Syspath())
		}
	})
	if !found {
		fmt.Fprintf(w, "virtual device %q not present (is keydiald running?)\n", name)
	}
	return nil
}

func checkSocket(w io.Writer, path string) {
	info, err := os.Lstat(path)
	switch {
	case err == nil && info.Mode()&os.ModeSocket != 0:
		fmt.Fprintf(w, "socket present at %s\n", path)
	case err == nil:
		fmt.Fprintf(w, "%s exists but is not a socket\n", path)
	case os.IsNotExist(err):
		fmt.Fprintf(w, "no socket at %s (is keydiald running?)\n", path)
	default:
		fmt.Fprintf(w, "cannot stat %s: %v\n", path, err)
	}
	if strings.HasPrefix(path, "/tmp/") {
		fmt.Fprintln(w, "note: socket is under /tmp, HOME was not resolvable when the daemon started")
	}
}
