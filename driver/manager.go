// Package driver ties the Bluetooth bus, report pipeline, binding table, and
// key sink together into the device lifecycle.
package driver

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/config"
	"github.com/Triforcey/huion-keydial-mini-uinput/hidreport"
	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var mgrLog = log.WithField("component", "driver")

// ConnState is the manager's position in the device lifecycle.
type ConnState int

const (
	// StateIdle: no device activity, reconnect attempts exhausted or
	// auto-reconnect disabled.
	StateIdle ConnState = iota
	// StateDiscovering: waiting for the target device to appear on the bus.
	StateDiscovering
	// StateConnecting: actively asking the host stack to connect, with
	// backoff between attempts.
	StateConnecting
	// StateAttached: subscribed to the device's input characteristics and
	// translating reports.
	StateAttached
	// StateDetaching: tearing down a session after disconnect or shutdown.
	StateDetaching
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateAttached:
		return "attached"
	case StateDetaching:
		return "detaching"
	}
	return "unknown"
}

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Manager drives the connection lifecycle. All state lives on one goroutine
// inside Run; bus events and device reports are consumed from a single select
// so their relative order is preserved.
type Manager struct {
	cfg       config.Config
	bus       keydial.BluetoothBus
	transport keydial.Transport
	table     *keybind.Table

	state    ConnState
	address  string // address of the attached or connecting device
	session  keydial.Session
	reports  chan keydial.Report
	decoder  *hidreport.Decoder
	resolver *hidreport.Resolver
	dispatch *Dispatcher

	// reconnect bookkeeping
	retryC  <-chan time.Time
	attempt int
}

func NewManager(cfg config.Config, bus keydial.BluetoothBus, transport keydial.Transport, table *keybind.Table, sink keydial.KeySink) *Manager {
	return &Manager{
		cfg:       cfg,
		bus:       bus,
		transport: transport,
		table:     table,
		state:     StateIdle,
		reports:   make(chan keydial.Report, 64),
		dispatch:  NewDispatcher(table, sink),
	}
}

// State returns the current lifecycle state. Only meaningful from the Run
// goroutine or after Run returns; exported for tests and logging.
func (m *Manager) State() ConnState {
	return m.state
}

// Run owns the manager until ctx is cancelled. It first adopts a matching
// device that is already connected, then reacts to bus events.
func (m *Manager) Run(ctx context.Context) {
	m.adoptConnected(ctx)

	events := m.bus.Events()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return

		case ev, ok := <-events:
			if !ok {
				mgrLog.Warn("bus event stream closed")
				m.shutdown()
				return
			}
			m.handleEvent(ctx, ev)

		case rep := <-m.reports:
			m.handleReport(rep)

		case <-m.retryC:
			m.retryC = nil
			m.connectOnce(ctx)
		}
	}
}

// adoptConnected attaches to a matching device that connected before the
// daemon started.
func (m *Manager) adoptConnected(ctx context.Context) {
	m.setState(StateDiscovering)
	devices, err := m.bus.ConnectedDevices()
	if err != nil {
		mgrLog.Warnf("could not list connected devices: %v", err)
		return
	}
	for _, dev := range devices {
		if m.matches(dev) {
			mgrLog.Infof("found %s (%s) already connected", dev.Name, dev.Address)
			m.attach(ctx, dev.Address)
			return
		}
	}
	mgrLog.Info("target device not connected, waiting for it")
}

// matches applies the device filter: exact address when configured, else
// case-insensitive name substring.
func (m *Manager) matches(dev keydial.DeviceInfo) bool {
	if addr := m.cfg.Device.Address; addr != "" {
		return strings.EqualFold(dev.Address, addr)
	}
	want := strings.ToLower(m.cfg.Device.Name)
	if want == "" {
		return false
	}
	return strings.Contains(strings.ToLower(dev.Name), want)
}

func (m *Manager) handleEvent(ctx context.Context, ev keydial.ConnectionEvent) {
	switch {
	case ev.Connected:
		if m.state == StateAttached {
			return
		}
		if !m.eventMatches(ev.Address) {
			return
		}
		// Connection established by the stack (or our own Connect call);
		// either way, cancel any pending retry and attach.
		m.retryC = nil
		m.attempt = 0
		m.attach(ctx, ev.Address)

	case !ev.Connected:
		if m.state != StateAttached || !strings.EqualFold(ev.Address, m.address) {
			return
		}
		mgrLog.Infof("device %s disconnected", ev.Address)
		m.detach()
		if m.cfg.Bluetooth.AutoReconnect {
			m.setState(StateConnecting)
			m.attempt = 0
			m.connectOnce(ctx)
		} else {
			m.setState(StateIdle)
		}
	}
}

// eventMatches decides whether a connect event belongs to the target device.
// With an address filter this is a string compare. With a name filter the
// event carries no name, so the connected-device list is consulted.
func (m *Manager) eventMatches(address string) bool {
	if addr := m.cfg.Device.Address; addr != "" {
		return strings.EqualFold(address, addr)
	}
	devices, err := m.bus.ConnectedDevices()
	if err != nil {
		mgrLog.Warnf("could not list connected devices: %v", err)
		return false
	}
	for _, dev := range devices {
		if strings.EqualFold(dev.Address, address) {
			return m.matches(dev)
		}
	}
	return false
}

// attach subscribes to the device's input characteristics, retrying a few
// times on a short fixed delay because the GATT database often resolves just
// after the Connected flag flips.
func (m *Manager) attach(ctx context.Context, address string) {
	m.address = address
	retries := m.cfg.Bluetooth.AttachRetries
	if retries < 1 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		session, err := m.transport.Attach(ctx, address, m.reports)
		if err == nil {
			m.session = session
			m.decoder = hidreport.NewDecoder()
			m.resolver = hidreport.NewResolver(m.table,
				m.cfg.DialSettings.Sensitivity, m.cfg.DialSettings.MaxSteps)
			m.setState(StateAttached)
			mgrLog.Infof("attached to %s", address)
			return
		}
		mgrLog.Warnf("attach to %s failed (%d/%d): %v", address, i+1, retries, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.AttachRetryDelay()):
		}
	}

	mgrLog.Errorf("could not attach to %s, giving up until it reconnects", address)
	m.setState(StateIdle)
}

// detach tears the session down and clears the per-connection pipeline. Held
// keys are released so a disconnect mid-chord cannot strand a modifier.
func (m *Manager) detach() {
	m.setState(StateDetaching)
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			mgrLog.Debugf("session close: %v", err)
		}
		m.session = nil
	}
	m.dispatch.ReleaseAll()
	if m.decoder != nil {
		m.decoder.Reset()
	}
	if m.resolver != nil {
		m.resolver.Reset()
	}
	m.drainReports()
}

// drainReports discards buffered reports from the closed session so a
// reconnect does not replay stale frames.
func (m *Manager) drainReports() {
	for {
		select {
		case <-m.reports:
		default:
			return
		}
	}
}

// connectOnce makes one connection attempt and schedules the next one on
// failure, with capped exponential backoff. Exhausting the budget is not
// fatal: the manager falls back to waiting for the device to reconnect on
// its own.
func (m *Manager) connectOnce(ctx context.Context) {
	if m.state != StateConnecting {
		return
	}
	m.attempt++
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeout())
	err := m.bus.Connect(attemptCtx, m.address)
	cancel()
	if err == nil {
		mgrLog.Infof("reconnected to %s", m.address)
		// The Connected property change will follow and trigger attach; some
		// stacks deliver it before Connect returns, so attach directly if it
		// already has.
		m.attach(ctx, m.address)
		return
	}

	mgrLog.Warnf("connect to %s failed (attempt %d/%d): %v",
		m.address, m.attempt, m.cfg.Bluetooth.ReconnectAttempts, err)
	if m.attempt >= m.cfg.Bluetooth.ReconnectAttempts {
		mgrLog.Warnf("reconnect attempts exhausted for %s, waiting for the device", m.address)
		m.attempt = 0
		m.setState(StateDiscovering)
		return
	}

	delay := reconnectBaseDelay << uint(m.attempt-1)
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	mgrLog.Debugf("next attempt in %s", delay)
	m.retryC = time.After(delay)
}

func (m *Manager) handleReport(rep keydial.Report) {
	if m.state != StateAttached {
		return
	}
	transitions := m.decoder.Decode(rep.Data)
	if len(transitions) == 0 {
		return
	}
	for _, ev := range m.resolver.Resolve(transitions) {
		m.dispatch.Dispatch(ev)
	}
}

func (m *Manager) shutdown() {
	if m.state == StateAttached {
		m.detach()
	}
	m.setState(StateIdle)
	mgrLog.Info("driver stopped")
}

func (m *Manager) setState(s ConnState) {
	if m.state == s {
		return
	}
	mgrLog.Debugf("state %s -> %s", m.state, s)
	m.state = s
}
