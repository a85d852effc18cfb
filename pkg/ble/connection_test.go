package ble

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Krajiyah/ble-dht/internal"
	"github.com/Krajiyah/ble-dht/pkg/util"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"gotest.tools/assert"
)

type centralCoreMethods struct {
	testCoreMethods
	advs    []internal.DummyAdv
	cln     *internal.DummyCoreClient
	scanned int
}

func (bc *centralCoreMethods) Connect(_ context.Context, f ble.AdvFilter) (ble.Client, error) {
	for _, a := range bc.advs {
		if f(a) {
			return bc.cln, nil
		}
	}
	return nil, errors.New("no matching advertisement")
}

func (bc *centralCoreMethods) Scan(_ context.Context, h ble.AdvHandler, _ ble.AdvFilter) error {
	for _, a := range bc.advs {
		bc.scanned++
		h(a)
	}
	return nil
}

type testConnListener struct {
	mutex        sync.Mutex
	addr         string
	rssi         int
	disconnected chan struct{}
}

func (l *testConnListener) OnConnected(addr string, rssi int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.addr, l.rssi = addr, rssi
}
func (l *testConnListener) OnDisconnected() { close(l.disconnected) }

func hasDHTService(a ble.Advertisement) bool {
	for _, u := range a.Services() {
		if util.UuidEqualStr(u, util.DHTServiceUUID) {
			return true
		}
	}
	return false
}

func newTestConnection(services []*ble.Service) (*RealConnection, *centralCoreMethods, *testConnListener) {
	methods := &centralCoreMethods{
		advs: []internal.DummyAdv{
			{Address: testOther, Rssi: -80, NonService: true},
			{Address: testAddr, Rssi: -42},
		},
		cln: internal.NewDummyCoreClient(testAddr, services),
	}
	l := &testConnListener{disconnected: make(chan struct{})}
	return newRealConnection(util.DHTServiceUUID, 0, time.Second, l, testLogger(), methods), methods, l
}

func TestConnect(t *testing.T) {
	conn, methods, l := newTestConnection(internal.GetTestServices(util.DHTReadingCharUUID))
	assert.Equal(t, conn.GetConnectedAddr(), "")
	assert.NilError(t, conn.Connect(context.Background(), hasDHTService))
	assert.Equal(t, conn.GetConnectedAddr(), testAddr)
	assert.Equal(t, l.addr, testAddr)
	assert.Equal(t, l.rssi, -42)
	assert.Equal(t, methods.deviceID, 0)

	methods.cln.ReadData = []byte{0xD7, 0x00, 0xC4, 0x01}
	data, err := conn.ReadValue(util.DHTReadingCharUUID)
	assert.NilError(t, err)
	assert.DeepEqual(t, data, []byte{0xD7, 0x00, 0xC4, 0x01})

	_, err = conn.ReadValue(util.DHTServiceUUID)
	assert.ErrorContains(t, err, "no such uuid")

	assert.NilError(t, conn.Close())
	assert.Assert(t, methods.cln.Cancelled())
	assert.Equal(t, conn.GetConnectedAddr(), "")
	_, err = conn.ReadValue(util.DHTReadingCharUUID)
	assert.ErrorContains(t, err, "not connected")
}

func TestConnectMissingService(t *testing.T) {
	conn, methods, _ := newTestConnection([]*ble.Service{ble.NewService(ble.UUID16(0x180F))})
	err := conn.Connect(context.Background(), hasDHTService)
	assert.ErrorContains(t, err, "could not find service")
	assert.Assert(t, methods.cln.Cancelled())
	assert.Equal(t, conn.GetConnectedAddr(), "")
}

func TestConnectNoPeripheral(t *testing.T) {
	conn, _, _ := newTestConnection(nil)
	err := conn.Connect(context.Background(), func(ble.Advertisement) bool { return false })
	assert.ErrorContains(t, err, "Connect issue")
}

func TestReadRetries(t *testing.T) {
	conn, methods, _ := newTestConnection(internal.GetTestServices(util.DHTReadingCharUUID))
	assert.NilError(t, conn.Connect(context.Background(), hasDHTService))
	methods.cln.ReadErr = errors.New("att timeout")
	_, err := conn.ReadValue(util.DHTReadingCharUUID)
	assert.ErrorContains(t, err, "ReadCharacteristic issue")
	assert.ErrorContains(t, err, "att timeout")
}

func TestReadTimeoutKeepsWinningAttempt(t *testing.T) {
	saved := readTimeout
	readTimeout = 20 * time.Millisecond
	defer func() { readTimeout = saved }()

	conn, methods, _ := newTestConnection(internal.GetTestServices(util.DHTReadingCharUUID))
	assert.NilError(t, conn.Connect(context.Background(), hasDHTService))
	var calls int32
	late := make(chan struct{})
	methods.cln.ReadFunc = func() ([]byte, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			defer close(late)
			time.Sleep(60 * time.Millisecond)
			return []byte{0xEE, 0xEE, 0xEE, 0xEE}, nil
		}
		return []byte{1, 2, 3, 4}, nil
	}
	data, err := conn.ReadValue(util.DHTReadingCharUUID)
	assert.NilError(t, err)
	assert.DeepEqual(t, data, []byte{1, 2, 3, 4})
	<-late
	assert.DeepEqual(t, data, []byte{1, 2, 3, 4})
	assert.Equal(t, atomic.LoadInt32(&calls), int32(2))
}

func TestSubscribeAndDisconnect(t *testing.T) {
	conn, methods, l := newTestConnection(internal.GetTestServices(util.DHTReadingCharUUID))
	assert.NilError(t, conn.Connect(context.Background(), hasDHTService))
	got := make(chan []byte, 1)
	assert.NilError(t, conn.Subscribe(util.DHTReadingCharUUID, func(b []byte) { got <- b }))
	assert.Assert(t, methods.cln.Push(util.DHTReadingCharUUID, []byte{1, 2, 3, 4}))
	assert.DeepEqual(t, <-got, []byte{1, 2, 3, 4})

	methods.cln.Drop()
	select {
	case <-l.disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.Equal(t, conn.GetConnectedAddr(), "")
}

func TestScan(t *testing.T) {
	conn, methods, _ := newTestConnection(nil)
	seen := []string{}
	err := conn.Scan(context.Background(), func(a ble.Advertisement) {
		if hasDHTService(a) {
			seen = append(seen, strings.ToUpper(a.Addr().String()))
		}
	})
	assert.NilError(t, err)
	assert.Equal(t, methods.scanned, 2)
	assert.DeepEqual(t, seen, []string{testAddr})
}
