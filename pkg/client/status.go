package client

import "fmt"

// DHTClientStatus is an enum for all possible status conditions for the DHT client
type DHTClientStatus int

const (
	// Connected indicates the client holds a link to a DHT peripheral and is subscribed
	Connected DHTClientStatus = iota
	// Disconnected indicates the client is looking for a DHT peripheral
	Disconnected
)

func (s DHTClientStatus) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	}
	return fmt.Sprintf("DHTClientStatus(%d)", int(s))
}
