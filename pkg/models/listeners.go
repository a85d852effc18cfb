package models

// DHTPeripheralListener receives the application level events of a DHT peripheral
type DHTPeripheralListener interface {
	OnConnected(connHandle uint16, peerAddr string)
	OnDisconnected()
	OnNotificationStateChanged(bool)
	OnReadingSent(Reading)
	OnInternalError(error)
}

// DHTClientListener receives the events of a DHT central
type DHTClientListener interface {
	OnConnected(string, int)
	OnDisconnected()
	OnReading(Reading)
	OnInternalError(error)
}
