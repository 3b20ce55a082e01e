package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Triforcey/huion-keydial-mini-uinput/config"
	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

const testAddr = "AA:BB:CC:DD:EE:FF"

type fakeBus struct {
	mu           sync.Mutex
	events       chan keydial.ConnectionEvent
	devices      []keydial.DeviceInfo
	connectErr   error
	connectCalls int
}

func newFakeBus(devices ...keydial.DeviceInfo) *fakeBus {
	return &fakeBus{
		events:  make(chan keydial.ConnectionEvent, 8),
		devices: devices,
	}
}

func (b *fakeBus) Events() <-chan keydial.ConnectionEvent { return b.events }

func (b *fakeBus) ConnectedDevices() ([]keydial.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]keydial.DeviceInfo(nil), b.devices...), nil
}

func (b *fakeBus) Connect(ctx context.Context, address string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectCalls++
	return b.connectErr
}

type fakeSession struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeTransport struct {
	mu       sync.Mutex
	failures int // number of leading Attach calls that fail
	calls    int
	reports  chan<- keydial.Report
	session  *fakeSession
}

func (tr *fakeTransport) Attach(ctx context.Context, address string, reports chan<- keydial.Report) (keydial.Session, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls++
	if tr.calls <= tr.failures {
		return nil, errors.Wrap(keydial.ErrTransient, "gatt not ready")
	}
	tr.reports = reports
	tr.session = &fakeSession{}
	return tr.session, nil
}

func (tr *fakeTransport) attachCalls() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.calls
}

func (tr *fakeTransport) reportChan() chan<- keydial.Report {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.reports
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Device.Address = testAddr
	cfg.Bluetooth.AttachRetries = 2
	cfg.Bluetooth.AttachRetryDelayMilli = 1
	return cfg
}

func testManagerTable() *keybind.Table {
	return keybind.NewTableFromEntries([]keybind.Entry{
		{RawID: "BUTTON_1", Chord: "KEY_A"},
	})
}

func connectedDevice() keydial.DeviceInfo {
	return keydial.DeviceInfo{
		Address:   testAddr,
		Name:      "Huion Keydial Mini K20",
		Connected: true,
	}
}

func buttonReport(codes ...byte) keydial.Report {
	data := make([]byte, 8)
	for i, c := range codes {
		data[3+i] = c
	}
	return keydial.Report{Data: data}
}

func TestMatchesByAddress(t *testing.T) {
	m := NewManager(testConfig(), newFakeBus(), &fakeTransport{}, testManagerTable(), &recordingSink{})
	if !m.matches(keydial.DeviceInfo{Address: "aa:bb:cc:dd:ee:ff"}) {
		t.Fatal("address match must be case-insensitive")
	}
	if m.matches(keydial.DeviceInfo{Address: "11:22:33:44:55:66", Name: "Huion Keydial Mini"}) {
		t.Fatal("address filter must ignore the name")
	}
}

func TestMatchesByNameSubstring(t *testing.T) {
	cfg := testConfig()
	cfg.Device.Address = ""
	cfg.Device.Name = "keydial mini"
	m := NewManager(cfg, newFakeBus(), &fakeTransport{}, testManagerTable(), &recordingSink{})
	if !m.matches(keydial.DeviceInfo{Address: testAddr, Name: "Huion Keydial Mini K20"}) {
		t.Fatal("name substring match must be case-insensitive")
	}
	if m.matches(keydial.DeviceInfo{Address: testAddr, Name: "Some Mouse"}) {
		t.Fatal("unrelated name matched")
	}
}

func TestAdoptConnectedAttaches(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(testConfig(), newFakeBus(connectedDevice()), tr, testManagerTable(), &recordingSink{})

	m.adoptConnected(context.Background())
	if m.State() != StateAttached {
		t.Fatalf("state = %v, want attached", m.State())
	}
	if tr.attachCalls() != 1 {
		t.Fatalf("attach calls = %d", tr.attachCalls())
	}
}

func TestAdoptConnectedNoDevice(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(testConfig(), newFakeBus(), tr, testManagerTable(), &recordingSink{})

	m.adoptConnected(context.Background())
	if m.State() != StateDiscovering {
		t.Fatalf("state = %v, want discovering", m.State())
	}
	if tr.attachCalls() != 0 {
		t.Fatalf("attach calls = %d", tr.attachCalls())
	}
}

func TestAttachRetriesBounded(t *testing.T) {
	tr := &fakeTransport{failures: 100}
	m := NewManager(testConfig(), newFakeBus(connectedDevice()), tr, testManagerTable(), &recordingSink{})

	m.adoptConnected(context.Background())
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle after exhausted retries", m.State())
	}
	if tr.attachCalls() != 2 {
		t.Fatalf("attach calls = %d, want AttachRetries", tr.attachCalls())
	}
}

func TestAttachSecondTrySucceeds(t *testing.T) {
	tr := &fakeTransport{failures: 1}
	m := NewManager(testConfig(), newFakeBus(connectedDevice()), tr, testManagerTable(), &recordingSink{})

	m.adoptConnected(context.Background())
	if m.State() != StateAttached {
		t.Fatalf("state = %v, want attached", m.State())
	}
	if tr.attachCalls() != 2 {
		t.Fatalf("attach calls = %d", tr.attachCalls())
	}
}

func TestDisconnectDetaches(t *testing.T) {
	tr := &fakeTransport{}
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.Bluetooth.AutoReconnect = false
	m := NewManager(cfg, newFakeBus(connectedDevice()), tr, testManagerTable(), sink)

	ctx := context.Background()
	m.adoptConnected(ctx)

	// Hold BUTTON_1's key down through a sticky binding, then yank the device.
	m.table.Set("BUTTON_1", keydial.Action{Type: keydial.ActionKeyboard, Keys: []string{"KEY_A"}, Sticky: true})
	m.handleReport(buttonReport(0x0E))

	m.handleEvent(ctx, keydial.ConnectionEvent{Address: testAddr, Connected: false})
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle", m.State())
	}
	if !tr.session.isClosed() {
		t.Fatal("session not closed on detach")
	}
	if !sink.balanced() {
		t.Fatalf("keys stranded across detach: %v", sink.events())
	}
}

func TestDisconnectStartsReconnect(t *testing.T) {
	tr := &fakeTransport{}
	bus := newFakeBus(connectedDevice())
	bus.connectErr = errors.New("page timeout")
	cfg := testConfig()
	cfg.Bluetooth.ReconnectAttempts = 2
	m := NewManager(cfg, bus, tr, testManagerTable(), &recordingSink{})

	ctx := context.Background()
	m.adoptConnected(ctx)
	m.handleEvent(ctx, keydial.ConnectionEvent{Address: testAddr, Connected: false})

	if bus.connectCalls != 1 {
		t.Fatalf("connect calls = %d, want 1", bus.connectCalls)
	}
	if m.retryC == nil {
		t.Fatal("no retry scheduled after failed attempt")
	}

	// Second (final) attempt fails too: give up, wait for the device.
	m.retryC = nil
	m.connectOnce(ctx)
	if bus.connectCalls != 2 {
		t.Fatalf("connect calls = %d, want 2", bus.connectCalls)
	}
	if m.retryC != nil {
		t.Fatal("retry scheduled past the attempt budget")
	}
	if m.State() != StateDiscovering {
		t.Fatalf("state = %v, want discovering after exhaustion", m.State())
	}
}

func TestReconnectSuccessReattaches(t *testing.T) {
	tr := &fakeTransport{}
	bus := newFakeBus(connectedDevice())
	m := NewManager(testConfig(), bus, tr, testManagerTable(), &recordingSink{})

	ctx := context.Background()
	m.adoptConnected(ctx)
	m.handleEvent(ctx, keydial.ConnectionEvent{Address: testAddr, Connected: false})

	if bus.connectCalls != 1 {
		t.Fatalf("connect calls = %d", bus.connectCalls)
	}
	if m.State() != StateAttached {
		t.Fatalf("state = %v, want attached after reconnect", m.State())
	}
}

func TestConnectEventForOtherDeviceIgnored(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(testConfig(), newFakeBus(), tr, testManagerTable(), &recordingSink{})

	m.adoptConnected(context.Background())
	m.handleEvent(context.Background(), keydial.ConnectionEvent{Address: "11:22:33:44:55:66", Connected: true})
	if tr.attachCalls() != 0 {
		t.Fatal("attached to a non-matching device")
	}
}

func TestRunReportPipeline(t *testing.T) {
	tr := &fakeTransport{}
	bus := newFakeBus(connectedDevice())
	sink := &recordingSink{}
	m := NewManager(testConfig(), bus, tr, testManagerTable(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// Wait for the startup attach to capture the reports channel.
	deadline := time.After(2 * time.Second)
	for tr.reportChan() == nil {
		select {
		case <-deadline:
			t.Fatal("manager never attached")
		case <-time.After(time.Millisecond):
		}
	}

	reports := tr.reportChan()
	reports <- buttonReport(0x0E) // BUTTON_1 down
	reports <- buttonReport()     // BUTTON_1 up

	for len(sink.events()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("no key events, log = %v", sink.events())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on cancel")
	}

	wantLog(t, sink, "+KEY_A", "-KEY_A")
	if !tr.session.isClosed() {
		t.Fatal("session not closed on shutdown")
	}
}
