package server

import (
	"context"
	"testing"
	"time"

	"github.com/Krajiyah/ble-dht/internal"
	"github.com/Krajiyah/ble-dht/pkg/config"
	"github.com/Krajiyah/ble-dht/pkg/dht"
	. "github.com/Krajiyah/ble-dht/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
)

const testPeer = "11:22:33:44:55:66"

type testListener struct {
	connected []string
	drops     int
	states    []bool
	sent      []Reading
	errs      []error
	sentCh    chan Reading
}

func (l *testListener) OnConnected(_ uint16, addr string)  { l.connected = append(l.connected, addr) }
func (l *testListener) OnDisconnected()                    { l.drops++ }
func (l *testListener) OnNotificationStateChanged(on bool) { l.states = append(l.states, on) }
func (l *testListener) OnInternalError(err error)          { l.errs = append(l.errs, err) }
func (l *testListener) OnReadingSent(r Reading) {
	l.sent = append(l.sent, r)
	select {
	case l.sentCh <- r:
	default:
	}
}

type testSensor struct {
	readings []Reading
	err      error
}

func (s *testSensor) Read() (Reading, error) {
	if s.err != nil {
		return Reading{}, s.err
	}
	r := s.readings[0]
	if len(s.readings) > 1 {
		s.readings = s.readings[1:]
	}
	return r, nil
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func getTestPeripheral(t *testing.T, cfg *config.Config) (*DHTPeripheral, *internal.DummyEventStack, *testListener, *testSensor) {
	stack := internal.NewDummyEventStack()
	l := &testListener{}
	sensor := &testSensor{readings: []Reading{{Temperature: 21.5, Humidity: 45.2}, {Temperature: -5.3, Humidity: 80}}}
	p, err := NewDHTPeripheral(cfg, stack, sensor, l, testLogger())
	assert.NilError(t, err)
	return p, stack, l, sensor
}

func cccd(p *DHTPeripheral, conn dht.ConnHandle, on bool) dht.Event {
	return dht.CharacteristicWritten{ConnHandle: conn, Handle: p.Service().CharHandles().CCCD, Data: dht.CCCDValue(on, false)}
}

func TestNewDHTPeripheral(t *testing.T) {
	cfg := config.Default()
	cfg.Report.Enabled = true
	p, stack, _, _ := getTestPeripheral(t, cfg)
	assert.Equal(t, p.Status(), Idle)
	assert.Assert(t, p.Service().Initialized())
	assert.DeepEqual(t, stack.Calls, []string{internal.CallAddVendorUUID, internal.CallAddService, internal.CallAddCharacteristic, internal.CallAddDescriptor})
	assert.DeepEqual(t, stack.Chars[0].InitialValue, []byte{0, 0, 0, 0})

	stack = internal.NewDummyEventStack()
	stack.Fail[internal.CallAddService] = dht.ErrCodeNoMem
	_, err := NewDHTPeripheral(config.Default(), stack, &testSensor{}, &testListener{}, testLogger())
	assert.ErrorContains(t, err, "Init issue")
	assert.Equal(t, errors.Cause(err), error(dht.ErrCodeNoMem))
}

func TestNewDHTPeripheralRequiresListener(t *testing.T) {
	stack := internal.NewDummyEventStack()
	_, err := NewDHTPeripheral(config.Default(), stack, &testSensor{}, nil, testLogger())
	assert.ErrorContains(t, err, "listener")
	assert.Equal(t, len(stack.Calls), 0)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, Advertising.String(), "Advertising")
	assert.Equal(t, Crashed.String(), "Crashed")
	assert.Equal(t, DHTPeripheralStatus(-1).String(), "DHTPeripheralStatus(-1)")
	assert.Equal(t, DHTPeripheralStatus(42).String(), "DHTPeripheralStatus(42)")
}

func TestSampleWithoutPeer(t *testing.T) {
	p, stack, l, _ := getTestPeripheral(t, config.Default())
	p.sample()
	assert.DeepEqual(t, stack.Values[p.Service().CharHandles().Value], []byte{0xD7, 0x00, 0xC4, 0x01})
	assert.Equal(t, len(stack.Notified), 0)
	assert.Equal(t, len(l.errs), 0)
	assert.Equal(t, p.NotifyReading(Reading{Temperature: 20}), dht.ErrNotConnected)
}

func TestNotifyOnlyWhileEnabled(t *testing.T) {
	p, stack, l, _ := getTestPeripheral(t, config.Default())
	p.handleEvent(dht.Connected{ConnHandle: 0, PeerAddr: testPeer})
	assert.Equal(t, p.Status(), Connected)
	assert.DeepEqual(t, l.connected, []string{testPeer})

	p.sample()
	assert.Equal(t, len(stack.Notified), 0)

	// enabling notifies the last reading right away
	p.handleEvent(cccd(p, 0, true))
	assert.DeepEqual(t, l.states, []bool{true})
	assert.Equal(t, len(stack.Notified), 1)
	assert.DeepEqual(t, stack.Notified[0].Params.Data, []byte{0xD7, 0x00, 0xC4, 0x01})

	p.sample()
	assert.Equal(t, len(stack.Notified), 2)
	assert.DeepEqual(t, stack.Notified[1].Params.Data, []byte{0xCB, 0xFF, 0x20, 0x03})
	assert.DeepEqual(t, l.sent, []Reading{{Temperature: 21.5, Humidity: 45.2}, {Temperature: -5.3, Humidity: 80}})

	p.handleEvent(cccd(p, 0, false))
	p.sample()
	assert.Equal(t, len(stack.Notified), 2)

	p.handleEvent(cccd(p, 0, true))
	p.handleEvent(dht.Disconnected{ConnHandle: 0, Reason: 0x13})
	assert.Equal(t, p.Status(), Advertising)
	assert.Equal(t, l.drops, 1)
	notified := len(stack.Notified)
	p.sample()
	assert.Equal(t, len(stack.Notified), notified)
}

func TestNotificationsDisabledByConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications = false
	p, stack, l, _ := getTestPeripheral(t, cfg)
	p.handleEvent(dht.Connected{ConnHandle: 2, PeerAddr: testPeer})
	p.handleEvent(dht.CharacteristicWritten{ConnHandle: 2, Handle: dht.HandleInvalid, Data: dht.CCCDValue(true, false)})
	p.sample()
	assert.Equal(t, len(l.states), 0)
	assert.Equal(t, len(stack.Notified), 0)
	assert.Equal(t, p.NotifyReading(Reading{}), dht.ErrNotSupported)
}

func TestSampleErrors(t *testing.T) {
	p, stack, l, sensor := getTestPeripheral(t, config.Default())
	sensor.err = errors.New("checksum mismatch")
	p.sample()
	assert.Equal(t, len(l.errs), 1)
	assert.ErrorContains(t, l.errs[0], "sensor Read issue")

	sensor.err = nil
	sensor.readings = []Reading{{Temperature: 120}}
	p.sample()
	assert.Equal(t, len(l.errs), 2)
	assert.ErrorContains(t, l.errs[1], "reading Data issue")

	p.handleEvent(dht.Connected{ConnHandle: 0, PeerAddr: testPeer})
	p.handleEvent(cccd(p, 0, true))
	stack.Fail[internal.CallNotify] = dht.ErrCodeSysAttrsMissing
	err := p.NotifyReading(Reading{Temperature: 1})
	assert.ErrorContains(t, err, "NotifyValueChange issue")
	assert.Equal(t, errors.Cause(err), error(dht.ErrCodeSysAttrsMissing))
}

func TestRun(t *testing.T) {
	cfg := config.Default()
	cfg.SampleInterval = 10 * time.Millisecond
	p, stack, l, _ := getTestPeripheral(t, cfg)
	l.sentCh = make(chan Reading, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	stack.Push(dht.Connected{ConnHandle: 0, PeerAddr: testPeer})
	stack.Push(cccd(p, 0, true))
	select {
	case <-l.sentCh:
	case <-time.After(2 * time.Second):
		t.Fatal("no reading notified")
	}
	cancel()
	assert.NilError(t, <-done)
	assert.Equal(t, p.Status(), Stopped)
	assert.DeepEqual(t, stack.Started, []string{"DHT"})
	assert.Equal(t, stack.Stopped, 1)
	assert.Assert(t, len(stack.Notified) >= 1)
}

func TestRunStartFailure(t *testing.T) {
	p, stack, _, _ := getTestPeripheral(t, config.Default())
	stack.StartErr = errors.New("hci0 busy")
	err := p.Run(context.Background())
	assert.ErrorContains(t, err, "Start issue")
	assert.Equal(t, p.Status(), Crashed)
}
