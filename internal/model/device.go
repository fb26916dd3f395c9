package model

import "time"

// DeviceKind is the role a registered device plays in the store.
type DeviceKind string

const (
	DeviceTerminal        DeviceKind = "terminal"
	DeviceKitchenDisplay  DeviceKind = "kitchen_display"
	DeviceCustomerDisplay DeviceKind = "customer_display"
	DevicePrinter         DeviceKind = "printer"
)

// Valid reports whether k is a known device kind.
func (k DeviceKind) Valid() bool {
	switch k {
	case DeviceTerminal, DeviceKitchenDisplay, DeviceCustomerDisplay, DevicePrinter:
		return true
	}
	return false
}

// Device is a registered screen or printer. Status is derived from
// LastSeen when listing.
type Device struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      DeviceKind `json:"kind"`
	Status    string     `json:"status"`
	LastSeen  time.Time  `json:"last_seen"`
	CreatedAt time.Time  `json:"created_at"`
}
