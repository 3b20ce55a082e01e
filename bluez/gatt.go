package bluez

import (
	"context"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

// gattSession is one attachment to a connected device: every notifying
// characteristic under the device subscribed, with values routed into the
// caller's reports channel.
type gattSession struct {
	bus        *Bus
	devicePath dbus.ObjectPath
	chars      map[dbus.ObjectPath]string // object path -> characteristic UUID
	reports    chan<- keydial.Report

	closeOnce sync.Once
	closeErr  error
}

var _ keydial.Session = (*gattSession)(nil)

// Attach subscribes to all notifying GATT characteristics of the device at
// address. The device reports buttons and the dial on separate
// characteristics, so every notify-capable one is subscribed rather than a
// fixed UUID.
func (b *Bus) Attach(ctx context.Context, address string, reports chan<- keydial.Report) (keydial.Session, error) {
	devicePath, err := b.devicePath(address)
	if err != nil {
		return nil, err
	}

	objects, err := b.managedObjects()
	if err != nil {
		return nil, err
	}

	devProps, ok := objects[devicePath][Device1Interface]
	if !ok {
		return nil, errors.Wrapf(keydial.ErrTransient, "device %s vanished", address)
	}
	if connected, _ := boolProp(devProps, "Connected"); !connected {
		return nil, errors.Wrapf(keydial.ErrTransient, "device %s not connected", address)
	}

	chars := notifyingCharacteristics(objects, devicePath)
	if len(chars) == 0 {
		// GATT database may still be resolving right after connect. The
		// caller retries on a short delay.
		return nil, errors.Wrapf(keydial.ErrTransient, "no notifying characteristics on %s yet", address)
	}

	session := &gattSession{
		bus:        b,
		devicePath: devicePath,
		chars:      chars,
		reports:    reports,
	}

	started := make([]dbus.ObjectPath, 0, len(chars))
	for path, uuid := range chars {
		call := b.conn.Object(BlueZBusName, path).CallWithContext(
			ctx, GattCharacteristic1Interface+".StartNotify", 0)
		if call.Err != nil {
			for _, p := range started {
				b.conn.Object(BlueZBusName, p).Call(
					GattCharacteristic1Interface+".StopNotify", 0)
			}
			return nil, errors.Wrapf(keydial.ErrTransient,
				"start notify on %s (%s): %v", uuid, path, call.Err)
		}
		started = append(started, path)
		busLog.Debugf("subscribed to characteristic %s at %s", uuid, path)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		session.stopNotifications()
		return nil, errors.Wrap(keydial.ErrResource, "bus closed")
	}
	b.sessions[devicePath] = session
	b.mu.Unlock()

	busLog.Infof("attached to %s, %d input characteristics", address, len(chars))
	return session, nil
}

// Close unsubscribes every characteristic and detaches the session. Safe to
// call more than once.
func (s *gattSession) Close() error {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.sessions, s.devicePath)
		s.bus.mu.Unlock()
		s.closeErr = s.stopNotifications()
	})
	return s.closeErr
}

func (s *gattSession) stopNotifications() error {
	var firstErr error
	for path, uuid := range s.chars {
		call := s.bus.conn.Object(BlueZBusName, path).Call(
			GattCharacteristic1Interface+".StopNotify", 0)
		if call.Err != nil && firstErr == nil {
			// Expected when the device already disconnected.
			firstErr = errors.Wrapf(call.Err, "stop notify on %s", uuid)
		}
	}
	return firstErr
}

// notifyingCharacteristics finds every notify-capable characteristic below
// devicePath in the managed-object tree.
func notifyingCharacteristics(objects map[dbus.ObjectPath]dbusObjectNotify, devicePath dbus.ObjectPath) map[dbus.ObjectPath]string {
	prefix := string(devicePath) + "/"
	out := make(map[dbus.ObjectPath]string)
	for path, ifaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		props, ok := ifaces[GattCharacteristic1Interface]
		if !ok {
			continue
		}
		if !hasFlag(props, FlagCharacteristicNotify) {
			continue
		}
		uuid, _ := stringProp(props, "UUID")
		out[path] = uuid
	}
	return out
}

func hasFlag(props map[string]dbus.Variant, want string) bool {
	v, ok := props["Flags"]
	if !ok {
		return false
	}
	flags, ok := v.Value().([]string)
	if !ok {
		return false
	}
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
