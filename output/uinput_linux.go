package output

import (
	evdev "github.com/holoplot/go-evdev"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var uinputLog = log.WithField("component", "uinput")

// Huion's USB vendor ID, kept on the virtual device so desktop remapping
// tools can identify it.
const (
	vendorHuion    = 0x256c
	productKeydial = 0x006d
	busBluetooth   = 0x05
)

// UInput is a virtual keyboard backed by /dev/uinput.
type UInput struct {
	dev *evdev.InputDevice
}

var _ keydial.KeySink = (*UInput)(nil)

// NewUInput creates the virtual device. Failure here is fatal to the driver;
// the caller should exit.
func NewUInput(deviceName string) (*UInput, error) {
	dev, err := evdev.CreateDevice(
		deviceName,
		evdev.InputID{
			BusType: busBluetooth,
			Vendor:  vendorHuion,
			Product: productKeydial,
			Version: 0x0001,
		},
		map[evdev.EvType][]evdev.EvCode{
			evdev.EV_KEY: capabilityCodes(),
		},
	)
	if err != nil {
		return nil, errors.Wrap(keydial.ErrResource, err.Error())
	}
	uinputLog.Infof("created virtual device %q", deviceName)
	return &UInput{dev: dev}, nil
}

func (u *UInput) Press(key string) error {
	return u.write(key, 1)
}

func (u *UInput) Release(key string) error {
	return u.write(key, 0)
}

func (u *UInput) write(key string, value int32) error {
	code, ok := LookupKey(key)
	if !ok {
		return errors.Wrapf(keydial.ErrMalformedInput, "unknown key name %q", key)
	}
	if err := u.dev.WriteOne(&evdev.InputEvent{
		Type:  evdev.EV_KEY,
		Code:  code,
		Value: value,
	}); err != nil {
		return errors.Wrapf(err, "write %s=%d", key, value)
	}
	if err := u.dev.WriteOne(&evdev.InputEvent{
		Type: evdev.EV_SYN,
		Code: evdev.SYN_REPORT,
	}); err != nil {
		return errors.Wrap(err, "syn report")
	}
	return nil
}

func (u *UInput) Close() error {
	uinputLog.Info("destroying virtual device")
	return u.dev.Close()
}
