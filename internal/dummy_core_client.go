package internal

import (
	"sync"

	"github.com/go-ble/ble"
)

// DummyCoreClient is a ble.Client serving one profile; reads return ReadData and
// every Subscribe handler is kept so tests can push notifications through Push.
type DummyCoreClient struct {
	ble.Client
	testAddr string
	profile  *ble.Profile
	mutex    *sync.Mutex
	ReadData []byte
	ReadErr  error
	// ReadFunc, when set, serves reads in place of ReadData and ReadErr
	ReadFunc     func() ([]byte, error)
	SubscribeErr error
	handlers     map[string]ble.NotificationHandler
	disconnected chan struct{}
	cancelled    bool
}

func NewDummyCoreClient(addr string, services []*ble.Service) *DummyCoreClient {
	return &DummyCoreClient{
		testAddr:     addr,
		profile:      &ble.Profile{Services: services},
		mutex:        &sync.Mutex{},
		handlers:     map[string]ble.NotificationHandler{},
		disconnected: make(chan struct{}),
	}
}

func (c *DummyCoreClient) Addr() ble.Addr                             { return ble.NewAddr(c.testAddr) }
func (c *DummyCoreClient) Name() string                               { return "DHT" }
func (c *DummyCoreClient) Profile() *ble.Profile                      { return c.profile }
func (c *DummyCoreClient) ExchangeMTU(rxMTU int) (int, error)         { return rxMTU, nil }
func (c *DummyCoreClient) Disconnected() <-chan struct{}              { return c.disconnected }
func (c *DummyCoreClient) DiscoverProfile(bool) (*ble.Profile, error) { return c.profile, nil }

func (c *DummyCoreClient) ReadCharacteristic(*ble.Characteristic) ([]byte, error) {
	if c.ReadFunc != nil {
		return c.ReadFunc()
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ReadData, c.ReadErr
}

func (c *DummyCoreClient) Subscribe(char *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.handlers[char.UUID.String()] = h
	return nil
}

// Push delivers data to the handler subscribed on charUUID
func (c *DummyCoreClient) Push(charUUID string, data []byte) bool {
	c.mutex.Lock()
	h, ok := c.handlers[ble.MustParse(charUUID).String()]
	c.mutex.Unlock()
	if ok {
		h(data)
	}
	return ok
}

func (c *DummyCoreClient) CancelConnection() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cancelled = true
	return nil
}

// Cancelled reports whether the connection was cancelled by the central
func (c *DummyCoreClient) Cancelled() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cancelled
}

// Drop simulates the peripheral going away
func (c *DummyCoreClient) Drop() { close(c.disconnected) }
