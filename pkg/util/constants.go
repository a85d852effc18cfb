package util

const (
	// MTU is the ATT MTU requested by the DHT client
	MTU = 247
	// DefaultMTU is the ATT MTU before any exchange
	DefaultMTU = 23
	// BluetoothBaseUUID is the base of every 16-bit SIG assigned UUID
	BluetoothBaseUUID = "00000000-0000-1000-8000-00805F9B34FB"
	// DHTServiceUUID represents UUID for the DHT service with the default vendor base
	DHTServiceUUID = "00001523-1212-EFDE-1523-785FEABCD123"
	// DHTReadingCharUUID represents UUID for the DHT reading characteristic with the default vendor base
	DHTReadingCharUUID = "00001524-1212-EFDE-1523-785FEABCD123"
)
