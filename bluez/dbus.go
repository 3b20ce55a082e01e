// Package bluez implements the driver's Bluetooth capabilities on top of the
// BlueZ D-Bus API: connection-state watching, connected-device queries, and
// HID-over-GATT notification subscription.
package bluez

const (
	// BlueZBusName is the well-known bus name of the BlueZ daemon.
	BlueZBusName = "org.bluez"

	// Device1Interface the bluez interface for Device1
	Device1Interface = "org.bluez.Device1"
	// Adapter1Interface the bluez interface for Adapter1
	Adapter1Interface = "org.bluez.Adapter1"
	// GattService1Interface the bluez interface for GattService1
	GattService1Interface = "org.bluez.GattService1"
	// GattCharacteristic1Interface the bluez interface for GattCharacteristic1
	GattCharacteristic1Interface = "org.bluez.GattCharacteristic1"

	// PropertiesInterface the DBus properties interface
	PropertiesInterface = "org.freedesktop.DBus.Properties"
	// PropertiesChanged the DBus properties signal member
	PropertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"

	// ObjectManagerInterface the dbus object manager interface
	ObjectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	// InterfacesAdded the DBus signal member for InterfacesAdded
	InterfacesAdded = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	// InterfacesRemoved the DBus signal member for InterfacesRemoved
	InterfacesRemoved = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"

	// FlagCharacteristicNotify marks a characteristic that pushes
	// notifications; every such characteristic on the device carries input
	// reports we want.
	FlagCharacteristicNotify = "notify"
)
