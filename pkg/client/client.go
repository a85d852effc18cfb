package client

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	. "github.com/Krajiyah/ble-dht/pkg/ble"
	"github.com/Krajiyah/ble-dht/pkg/config"
	. "github.com/Krajiyah/ble-dht/pkg/models"
	"github.com/Krajiyah/ble-dht/pkg/util"
	mapset "github.com/deckarep/golang-set"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// ReconnectInterval is the pause between two failed connection attempts
	ReconnectInterval = time.Millisecond * 500
)

// DHTClient is a central that follows the readings of one DHT peripheral
type DHTClient struct {
	serviceUUID  string
	charUUID     string
	peerAddr     string
	scanTimeout  time.Duration
	status       DHTClientStatus
	statusMutex  *sync.Mutex
	connection   Connection
	disconnected chan struct{}
	listener     DHTClientListener
	log          logrus.FieldLogger
}

// NewDHTClient returns a client for the DHT service described by cfg.
// When cfg.PeerAddr is empty the first peripheral advertising the service is used.
func NewDHTClient(cfg *config.Config, listener DHTClientListener, log logrus.FieldLogger) (*DHTClient, error) {
	client, err := newDHTClient(cfg, nil, listener, log)
	if err != nil {
		return nil, err
	}
	client.connection = NewRealConnection(client.serviceUUID, cfg.DeviceID, cfg.DialerTimeout, client, log)
	return client, nil
}

func newDHTClient(cfg *config.Config, conn Connection, listener DHTClientListener, log logrus.FieldLogger) (*DHTClient, error) {
	if cfg == nil || listener == nil || log == nil {
		return nil, errors.New("config, listener and logger are required")
	}
	base, err := cfg.Base()
	if err != nil {
		return nil, err
	}
	return &DHTClient{
		serviceUUID:  strings.ToUpper(util.AliasUUID(base, cfg.ServiceUUID).String()),
		charUUID:     strings.ToUpper(util.AliasUUID(base, cfg.CharUUID).String()),
		peerAddr:     cfg.PeerAddr,
		scanTimeout:  cfg.ScanTimeout,
		status:       Disconnected,
		statusMutex:  &sync.Mutex{},
		connection:   conn,
		disconnected: make(chan struct{}, 1),
		listener:     listener,
		log:          log,
	}, nil
}

func (client *DHTClient) GetConnection() Connection { return client.connection }

func (client *DHTClient) Status() DHTClientStatus {
	client.statusMutex.Lock()
	defer client.statusMutex.Unlock()
	return client.status
}

func (client *DHTClient) setStatus(s DHTClientStatus) {
	client.statusMutex.Lock()
	defer client.statusMutex.Unlock()
	client.status = s
}

// OnConnected is called by the connection once the DHT service was discovered
func (client *DHTClient) OnConnected(addr string, rssi int) {
	client.listener.OnConnected(addr, rssi)
}

// OnDisconnected is called by the connection when the link drops
func (client *DHTClient) OnDisconnected() {
	client.setStatus(Disconnected)
	select {
	case client.disconnected <- struct{}{}:
	default:
	}
	client.listener.OnDisconnected()
}

// HasDHTService reports whether a advertises serviceUUID
func HasDHTService(a ble.Advertisement, serviceUUID string) bool {
	for _, service := range a.Services() {
		if util.UuidEqualStr(service, serviceUUID) {
			return true
		}
	}
	return false
}

func (client *DHTClient) filter(a ble.Advertisement) bool {
	if client.peerAddr != "" {
		return util.AddrEqualAddr(a.Addr().String(), client.peerAddr)
	}
	return HasDHTService(a, client.serviceUUID)
}

// Discover scans for scanTimeout and returns the addresses of every DHT peripheral heard
func (client *DHTClient) Discover(ctx context.Context) ([]string, error) {
	seen := mapset.NewSet()
	ctx, cancel := context.WithTimeout(ctx, client.scanTimeout)
	defer cancel()
	err := client.connection.Scan(ctx, func(a ble.Advertisement) {
		if HasDHTService(a, client.serviceUUID) && seen.Add(strings.ToUpper(a.Addr().String())) {
			client.log.WithFields(logrus.Fields{"peer": a.Addr().String(), "rssi": a.RSSI()}).Debug("DHT peripheral found")
		}
	})
	if err != nil && errors.Cause(err) != context.DeadlineExceeded && errors.Cause(err) != context.Canceled {
		return nil, errors.Wrap(err, "Scan issue")
	}
	addrs := []string{}
	for a := range seen.Iter() {
		addrs = append(addrs, a.(string))
	}
	sort.Strings(addrs)
	return addrs, nil
}

// ReadReading reads the current reading of the connected peripheral
func (client *DHTClient) ReadReading() (*Reading, error) {
	data, err := client.connection.ReadValue(client.charUUID)
	if err != nil {
		return nil, err
	}
	return GetReadingFromBytes(data)
}

func (client *DHTClient) onNotification(data []byte) {
	r, err := GetReadingFromBytes(data)
	if err != nil {
		client.listener.OnInternalError(errors.Wrap(err, "notification issue"))
		return
	}
	client.listener.OnReading(*r)
}

func (client *DHTClient) connect(ctx context.Context) error {
	select {
	case <-client.disconnected:
	default:
	}
	if err := client.connection.Connect(ctx, client.filter); err != nil {
		return err
	}
	r, err := client.ReadReading()
	if err != nil {
		client.connection.Close()
		return errors.Wrap(err, "initial read issue")
	}
	client.listener.OnReading(*r)
	if err := client.connection.Subscribe(client.charUUID, client.onNotification); err != nil {
		client.connection.Close()
		return err
	}
	client.setStatus(Connected)
	return nil
}

// Run keeps the client connected and subscribed until ctx is done
func (client *DHTClient) Run(ctx context.Context) error {
	defer client.connection.Close()
	for {
		if err := client.connect(ctx); err != nil {
			client.listener.OnInternalError(err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(ReconnectInterval):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-client.disconnected:
			client.log.Info("peripheral lost, reconnecting")
		}
	}
}
