package internal

import (
	"github.com/Krajiyah/ble-dht/pkg/util"
	"github.com/go-ble/ble"
)

type DummyAdv struct {
	ble.Advertisement
	Address    string
	Rssi       int
	NonService bool
}

func (a DummyAdv) LocalName() string { return "DHT" }
func (a DummyAdv) Services() []ble.UUID {
	if a.NonService {
		return nil
	}
	return GetTestServiceUUIDs()
}
func (a DummyAdv) Connectable() bool { return true }
func (a DummyAdv) RSSI() int         { return a.Rssi }
func (a DummyAdv) Addr() ble.Addr    { return ble.NewAddr(a.Address) }

func GetTestServiceUUIDs() []ble.UUID {
	return []ble.UUID{ble.MustParse(util.DHTServiceUUID)}
}

// GetTestServices returns the DHT service carrying one characteristic per charUUID
func GetTestServices(charUUIDs ...string) []*ble.Service {
	svc := ble.NewService(ble.MustParse(util.DHTServiceUUID))
	for _, u := range charUUIDs {
		svc.NewCharacteristic(ble.MustParse(u))
	}
	return []*ble.Service{svc}
}
