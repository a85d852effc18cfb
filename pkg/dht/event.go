package dht

// EventID is the identifier of a stack event
type EventID uint16

const (
	// EventConnected is raised when a link is established
	EventConnected EventID = 0x10
	// EventDisconnected is raised when a link is torn down
	EventDisconnected EventID = 0x11
	// EventWrite is raised when a peer writes an attribute of the local GATT server
	EventWrite EventID = 0x50
)

// Event is one event delivered by the wireless stack
type Event interface {
	ID() EventID
}

// Connected carries the handle of a newly established link
type Connected struct {
	ConnHandle ConnHandle
	PeerAddr   string
}

// Disconnected reports the end of a link
type Disconnected struct {
	ConnHandle ConnHandle
	Reason     uint8
}

// CharacteristicWritten reports a peer write to a local attribute
type CharacteristicWritten struct {
	ConnHandle ConnHandle
	Handle     Handle
	Data       []byte
}

// Generic is any other stack event; Service ignores it
type Generic struct {
	EventID EventID
}

func (Connected) ID() EventID             { return EventConnected }
func (Disconnected) ID() EventID          { return EventDisconnected }
func (CharacteristicWritten) ID() EventID { return EventWrite }
func (e Generic) ID() EventID             { return e.EventID }
