package keydial

import (
	"context"

	"github.com/pkg/errors"
)

// Error taxonomy. Malformed input and transient connectivity failures are
// recovered locally; resource acquisition failures abort startup.
var (
	ErrInvalidActionID = errors.New("invalid action id")
	ErrMalformedInput  = errors.New("malformed input")
	ErrTransient       = errors.New("transient connectivity failure")
	ErrResource        = errors.New("resource acquisition failure")
)

// Report is one opaque notification buffer from a device input channel.
type Report struct {
	// Characteristic identifies the GATT characteristic (or equivalent
	// channel) the buffer arrived on. The decoder dispatches on the byte
	// pattern, not on this, but it is kept for tracing.
	Characteristic string
	Data           []byte
}

// ConnectionEvent is a host-stack notification that a device connected or
// disconnected.
type ConnectionEvent struct {
	Address   string
	Connected bool
}

// DeviceInfo describes a device known to the host Bluetooth stack.
type DeviceInfo struct {
	Address   string
	Name      string
	Paired    bool
	Connected bool
}

// BluetoothBus is the external connection-event capability: a stream of
// connect/disconnect notifications plus a connected-device query.
type BluetoothBus interface {
	// Events delivers connection-state changes. The channel is owned by the
	// implementation and closed when the bus shuts down.
	Events() <-chan ConnectionEvent
	// ConnectedDevices lists devices the host stack currently reports as
	// connected, with their advertised names.
	ConnectedDevices() ([]DeviceInfo, error)
	// Connect asks the host stack to establish a connection to address.
	// The context bounds the attempt.
	Connect(ctx context.Context, address string) error
}

// Session is an attached transport subscription. Closing it stops report
// delivery.
type Session interface {
	Close() error
}

// Transport is the input-channel capability: subscribe to every
// report-bearing characteristic on an already-connected device and deliver
// (channel, buffer) pairs in arrival order.
type Transport interface {
	Attach(ctx context.Context, address string, reports chan<- Report) (Session, error)
}

// KeySink accepts semantic key names and turns them into key-down/key-up
// signals on the host. Press/release calls are balanced by the caller.
type KeySink interface {
	Press(key string) error
	Release(key string) error
	Close() error
}

// TransitionKind discriminates RawTransition.
type TransitionKind int

const (
	ButtonPressed TransitionKind = iota
	ButtonReleased
	DialTick
	DialClickPressed
	DialClickReleased
)

func (k TransitionKind) String() string {
	switch k {
	case ButtonPressed:
		return "button_pressed"
	case ButtonReleased:
		return "button_released"
	case DialTick:
		return "dial_tick"
	case DialClickPressed:
		return "dial_click_pressed"
	case DialClickReleased:
		return "dial_click_released"
	}
	return "unknown"
}

// RawTransition is one decoded button/dial state change.
type RawTransition struct {
	Kind   TransitionKind
	Button ButtonID // ButtonPressed / ButtonReleased
	// Direction is +1 clockwise, -1 counter-clockwise for DialTick.
	Direction int
	// Magnitude is the raw tick count reported by the device for DialTick.
	Magnitude int
}

// ResolvedEvent is a press or release of an ActionID produced by the
// resolver. The emission boundary looks the ActionID up in the binding table.
type ResolvedEvent struct {
	Action ActionID
	Press  bool
}
