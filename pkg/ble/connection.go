package ble

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Krajiyah/ble-dht/pkg/util"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxRetryAttempts = 3

// readTimeout bounds one ReadCharacteristic attempt
var readTimeout = 5 * time.Second

type connectionListener interface {
	OnConnected(string, int)
	OnDisconnected()
}

// Connection is the central side of a link to a peripheral exposing serviceUUID
type Connection interface {
	GetConnectedAddr() string
	Connect(context.Context, ble.AdvFilter) error
	Scan(context.Context, func(ble.Advertisement)) error
	ReadValue(string) ([]byte, error)
	Subscribe(string, func([]byte)) error
	Close() error
}

type RealConnection struct {
	serviceUUID     string
	deviceID        int
	timeout         time.Duration
	connectedAddr   string
	cln             ble.Client
	methods         coreMethods
	characteristics map[string]*ble.Characteristic
	mutex           *sync.Mutex
	deviceReady     bool
	listener        connectionListener
	log             logrus.FieldLogger
}

func NewRealConnection(serviceUUID string, deviceID int, timeout time.Duration, listener connectionListener, log logrus.FieldLogger) *RealConnection {
	return newRealConnection(serviceUUID, deviceID, timeout, listener, log, &realCoreMethods{})
}

func newRealConnection(serviceUUID string, deviceID int, timeout time.Duration, listener connectionListener, log logrus.FieldLogger, methods coreMethods) *RealConnection {
	return &RealConnection{
		serviceUUID: strings.ToUpper(serviceUUID), deviceID: deviceID, timeout: timeout,
		methods: methods, characteristics: map[string]*ble.Characteristic{},
		mutex: &sync.Mutex{}, listener: listener, log: log,
	}
}

func retry(log logrus.FieldLogger, method string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		if err = util.CatchErrs(fn); err == nil {
			return nil
		}
		log.WithFields(logrus.Fields{"attempt": attempt, "method": method}).WithError(err).Warn("retrying")
	}
	return errors.Wrap(err, method+" issue")
}

func (c *RealConnection) GetConnectedAddr() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connectedAddr
}

func (c *RealConnection) ensureDevice() error {
	if c.deviceReady {
		return nil
	}
	if err := c.methods.SetDefaultDevice(c.deviceID, c.timeout); err != nil {
		return errors.Wrap(err, "SetDefaultDevice issue")
	}
	c.deviceReady = true
	return nil
}

// Connect dials the first advertiser accepted by filter, then discovers serviceUUID on it
func (c *RealConnection) Connect(ctx context.Context, filter ble.AdvFilter) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.ensureDevice(); err != nil {
		return err
	}
	if c.cln != nil {
		c.cln.CancelConnection()
		c.cln = nil
		c.connectedAddr = ""
	}
	var addr string
	var rssi int
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cln, err := c.methods.Connect(ctx, func(a ble.Advertisement) bool {
		if !filter(a) {
			return false
		}
		addr = strings.ToUpper(a.Addr().String())
		rssi = a.RSSI()
		return true
	})
	if err != nil {
		return errors.Wrap(err, "Connect issue")
	}
	if err := c.discover(cln); err != nil {
		cln.CancelConnection()
		return err
	}
	c.cln = cln
	c.connectedAddr = addr
	go func() {
		<-cln.Disconnected()
		c.mutex.Lock()
		if c.cln == cln {
			c.cln = nil
			c.connectedAddr = ""
		}
		c.mutex.Unlock()
		c.listener.OnDisconnected()
	}()
	c.log.WithFields(logrus.Fields{"peer": addr, "rssi": rssi}).Info("connected")
	c.listener.OnConnected(addr, rssi)
	return nil
}

func (c *RealConnection) discover(cln ble.Client) error {
	if _, err := cln.ExchangeMTU(util.MTU); err != nil {
		c.log.WithError(err).Debug("MTU exchange refused, staying at default")
	}
	p, err := cln.DiscoverProfile(true)
	if err != nil {
		return errors.Wrap(err, "DiscoverProfile issue")
	}
	for _, s := range p.Services {
		if util.UuidEqualStr(s.UUID, c.serviceUUID) {
			c.characteristics = map[string]*ble.Characteristic{}
			for _, char := range s.Characteristics {
				c.characteristics[strings.ToUpper(char.UUID.String())] = char
			}
			return nil
		}
	}
	return errors.Errorf("could not find service %s on peripheral", c.serviceUUID)
}

func (c *RealConnection) Scan(ctx context.Context, handle func(ble.Advertisement)) error {
	c.mutex.Lock()
	err := c.ensureDevice()
	c.mutex.Unlock()
	if err != nil {
		return err
	}
	return c.methods.Scan(ctx, handle, nil)
}

func (c *RealConnection) getCharacteristic(uuid string) (ble.Client, *ble.Characteristic, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cln == nil {
		return nil, nil, errors.New("not connected")
	}
	key := strings.ToUpper(strings.Replace(uuid, "-", "", -1))
	if char, ok := c.characteristics[key]; ok {
		return c.cln, char, nil
	}
	return nil, nil, errors.Errorf("no such uuid (%s) in characteristics advertised from peripheral", uuid)
}

func (c *RealConnection) ReadValue(uuid string) ([]byte, error) {
	cln, char, err := c.getCharacteristic(uuid)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = retry(c.log, "ReadCharacteristic", func() error {
		// an attempt that timed out may still finish; it only writes to its own channel
		result := make(chan []byte, 1)
		err := util.Timeout(func() error {
			b, e := cln.ReadCharacteristic(char)
			if e == nil {
				result <- b
			}
			return e
		}, readTimeout)
		if err != nil {
			return err
		}
		data = <-result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *RealConnection) Subscribe(uuid string, handle func([]byte)) error {
	cln, char, err := c.getCharacteristic(uuid)
	if err != nil {
		return err
	}
	return retry(c.log, "Subscribe", func() error {
		return cln.Subscribe(char, false, func(data []byte) { handle(data) })
	})
}

func (c *RealConnection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cln == nil {
		return nil
	}
	err := c.cln.CancelConnection()
	c.cln = nil
	c.connectedAddr = ""
	return err
}
