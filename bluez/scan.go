package bluez

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

// Scan runs BLE discovery on every powered adapter for the given duration and
// returns the devices BlueZ knows about afterwards, sorted by address.
func (b *Bus) Scan(ctx context.Context, duration time.Duration) ([]keydial.DeviceInfo, error) {
	adapters, err := b.adapterPaths()
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		return nil, errors.Wrap(keydial.ErrResource, "no bluetooth adapter found")
	}

	var started []dbus.ObjectPath
	for _, path := range adapters {
		call := b.conn.Object(BlueZBusName, path).CallWithContext(
			ctx, Adapter1Interface+".StartDiscovery", 0)
		if call.Err != nil {
			busLog.Warnf("start discovery on %s: %v", path, call.Err)
			continue
		}
		started = append(started, path)
	}
	if len(started) == 0 {
		return nil, errors.Wrap(keydial.ErrTransient, "discovery could not be started on any adapter")
	}
	defer func() {
		for _, path := range started {
			b.conn.Object(BlueZBusName, path).Call(Adapter1Interface+".StopDiscovery", 0)
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(duration):
	}

	objects, err := b.managedObjects()
	if err != nil {
		return nil, err
	}
	var out []keydial.DeviceInfo
	for path, ifaces := range objects {
		props, ok := ifaces[Device1Interface]
		if !ok {
			continue
		}
		out = append(out, deviceInfoFromProps(path, props))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (b *Bus) adapterPaths() ([]dbus.ObjectPath, error) {
	objects, err := b.managedObjects()
	if err != nil {
		return nil, err
	}
	var paths []dbus.ObjectPath
	for path, ifaces := range objects {
		if _, ok := ifaces[Adapter1Interface]; ok {
			paths = append(paths, path)
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		return strings.Compare(string(paths[i]), string(paths[j])) < 0
	})
	return paths, nil
}
