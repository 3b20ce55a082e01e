package bluez

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var busLog = log.WithField("component", "bluez")

type dbusObjectNotify map[string]map[string]dbus.Variant

// Bus is the driver's view of the host Bluetooth stack. It implements both
// keydial.BluetoothBus (connection events + queries) and keydial.Transport
// (GATT notification subscription) on a single system-bus connection.
type Bus struct {
	// write-once
	conn     *dbus.Conn
	signalCh chan *dbus.Signal
	events   chan keydial.ConnectionEvent

	// protected by mu
	mu       sync.Mutex
	sessions map[dbus.ObjectPath]*gattSession
	closed   bool
}

var (
	_ keydial.BluetoothBus = (*Bus)(nil)
	_ keydial.Transport    = (*Bus)(nil)
)

// New connects to the system bus and subscribes to BlueZ property-change
// signals.
func New() (*Bus, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Wrap(keydial.ErrResource, err.Error())
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(PropertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchSender(BlueZBusName),
	); err != nil {
		return nil, errors.Wrap(err, "subscribe to PropertiesChanged")
	}

	signalCh := make(chan *dbus.Signal, 32)
	conn.Signal(signalCh)
	b := &Bus{
		conn:     conn,
		signalCh: signalCh,
		events:   make(chan keydial.ConnectionEvent, 16),
		sessions: make(map[dbus.ObjectPath]*gattSession),
	}
	go b.handleSignals()
	return b, nil
}

func (b *Bus) Events() <-chan keydial.ConnectionEvent {
	return b.events
}

// handleSignals routes BlueZ PropertiesChanged signals: Device1 Connected
// flips become connection events, GattCharacteristic1 Value changes become
// report deliveries for attached sessions. It is the only sender on b.events
// and closes it on exit, so a signal racing Close can never hit a closed
// channel.
func (b *Bus) handleSignals() {
	defer close(b.events)
	for sig := range b.signalCh {
		if sig.Name != PropertiesChanged || len(sig.Body) < 2 {
			continue
		}
		var iface string
		var changed map[string]dbus.Variant
		var invalidated []string
		if err := dbus.Store(sig.Body, &iface, &changed, &invalidated); err != nil {
			busLog.Debugf("failed to process PropertiesChanged: %v", err)
			continue
		}

		switch iface {
		case Device1Interface:
			b.handleDeviceChange(sig.Path, changed)
		case GattCharacteristic1Interface:
			b.handleValueChange(sig.Path, changed)
		}
	}
}

func (b *Bus) handleDeviceChange(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	v, ok := changed["Connected"]
	if !ok {
		return
	}
	connected, ok := v.Value().(bool)
	if !ok {
		return
	}
	addr, ok := addressFromPath(path)
	if !ok {
		busLog.Debugf("could not parse device address from %s", path)
		return
	}
	busLog.Infof("device %s %s", addr, map[bool]string{true: "connected", false: "disconnected"}[connected])
	b.events <- keydial.ConnectionEvent{Address: addr, Connected: connected}
}

func (b *Bus) handleValueChange(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	v, ok := changed["Value"]
	if !ok {
		return
	}
	data, ok := v.Value().([]byte)
	if !ok {
		return
	}

	b.mu.Lock()
	var target *gattSession
	var uuid string
	for _, s := range b.sessions {
		if u, ok := s.chars[path]; ok {
			target, uuid = s, u
			break
		}
	}
	b.mu.Unlock()
	if target == nil {
		return
	}
	// Blocking send keeps per-characteristic arrival order; the driver's
	// pipeline drains promptly.
	target.reports <- keydial.Report{Characteristic: uuid, Data: data}
}

// ConnectedDevices lists devices BlueZ currently reports as connected.
func (b *Bus) ConnectedDevices() ([]keydial.DeviceInfo, error) {
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
		info := deviceInfoFromProps(path, props)
		if info.Connected {
			out = append(out, info)
		}
	}
	return out, nil
}

// Connect asks BlueZ to establish a connection to address. The context
// bounds the call; expiry counts as a failed attempt.
func (b *Bus) Connect(ctx context.Context, address string) error {
	path, err := b.devicePath(address)
	if err != nil {
		return err
	}
	call := b.conn.Object(BlueZBusName, path).CallWithContext(ctx, Device1Interface+".Connect", 0)
	if call.Err != nil {
		return errors.Wrapf(keydial.ErrTransient, "connect %s: %v", address, call.Err)
	}
	return nil
}

// devicePath finds the BlueZ object path for a device address.
func (b *Bus) devicePath(address string) (dbus.ObjectPath, error) {
	objects, err := b.managedObjects()
	if err != nil {
		return "", err
	}
	want := strings.ToUpper(address)
	for path, ifaces := range objects {
		props, ok := ifaces[Device1Interface]
		if !ok {
			continue
		}
		if addr, ok := stringProp(props, "Address"); ok && strings.ToUpper(addr) == want {
			return path, nil
		}
	}
	return "", errors.Wrapf(keydial.ErrTransient, "device %s not known to bluez", address)
}

func (b *Bus) managedObjects() (map[dbus.ObjectPath]dbusObjectNotify, error) {
	call := b.conn.Object(BlueZBusName, "/").Call(ObjectManagerInterface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, errors.Wrap(call.Err, "get managed objects")
	}
	var objects map[dbus.ObjectPath]dbusObjectNotify
	if err := call.Store(&objects); err != nil {
		return nil, errors.Wrap(err, "decode managed objects")
	}
	return objects, nil
}

// Close tears down every GATT session and the bus connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	sessions := make([]*gattSession, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	// RemoveSignal returns only once delivery to signalCh has stopped, so
	// closing it here is safe; the signal loop drains, exits, and closes the
	// events channel.
	b.conn.RemoveSignal(b.signalCh)
	close(b.signalCh)
	return b.conn.Close()
}

func deviceInfoFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) keydial.DeviceInfo {
	info := keydial.DeviceInfo{}
	if addr, ok := stringProp(props, "Address"); ok {
		info.Address = addr
	} else if addr, ok := addressFromPath(path); ok {
		info.Address = addr
	}
	info.Name, _ = stringProp(props, "Name")
	info.Paired, _ = boolProp(props, "Paired")
	info.Connected, _ = boolProp(props, "Connected")
	return info
}

func stringProp(props map[string]dbus.Variant, name string) (string, bool) {
	v, ok := props[name]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func boolProp(props map[string]dbus.Variant, name string) (bool, bool) {
	v, ok := props[name]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}

// addressFromPath recovers "AA:BB:CC:DD:EE:FF" from a BlueZ device path like
// /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF.
func addressFromPath(path dbus.ObjectPath) (string, bool) {
	idx := strings.LastIndex(string(path), "/dev_")
	if idx < 0 {
		return "", false
	}
	rest := string(path)[idx+len("/dev_"):]
	// Characteristic paths continue past the device node; keep only the
	// device segment.
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 6 {
		return "", false
	}
	for i, p := range parts {
		if _, err := strconv.ParseUint(p, 16, 8); err != nil {
			return "", false
		}
		parts[i] = strings.ToUpper(p)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]), true
}
