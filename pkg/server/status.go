package server

import "fmt"

// DHTPeripheralStatus is an enum for all possible status conditions for the DHT peripheral
type DHTPeripheralStatus int

const (
	// Idle indicates the service is registered but the stack has not been started
	Idle DHTPeripheralStatus = iota
	// Advertising indicates the peripheral is running and waiting for a central
	Advertising
	// Connected indicates a central holds the link
	Connected
	// Stopped indicates Run returned because its context was done
	Stopped
	// Crashed indicates Run returned an error
	Crashed
)

func (s DHTPeripheralStatus) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Advertising:
		return "Advertising"
	case Connected:
		return "Connected"
	case Stopped:
		return "Stopped"
	case Crashed:
		return "Crashed"
	}
	return fmt.Sprintf("DHTPeripheralStatus(%d)", int(s))
}
