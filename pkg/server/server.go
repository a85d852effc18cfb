package server

import (
	"context"
	"time"

	"github.com/Krajiyah/ble-dht/pkg/config"
	"github.com/Krajiyah/ble-dht/pkg/dht"
	. "github.com/Krajiyah/ble-dht/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stack is a dht.Stack that can also be started, stopped and drained of events
type Stack interface {
	dht.Stack
	Start(ctx context.Context, name string) error
	Events() <-chan dht.Event
	Stop() error
	SetValue(h dht.Handle, value []byte) error
}

// Sensor produces DHT readings
type Sensor interface {
	Read() (Reading, error)
}

// DHTPeripheral owns one DHT service and the only goroutine that touches it.
// Stack events and sensor samples are handled one at a time by Run.
type DHTPeripheral struct {
	name           string
	sampleInterval time.Duration
	stack          Stack
	sensor         Sensor
	service        *dht.Service
	status         DHTPeripheralStatus
	notifying      bool
	notifyPending  bool
	last           *Reading
	listener       DHTPeripheralListener
	log            logrus.FieldLogger
}

// NewDHTPeripheral registers the DHT service on stack; the stack is not started until Run
func NewDHTPeripheral(cfg *config.Config, stack Stack, sensor Sensor, listener DHTPeripheralListener, log logrus.FieldLogger) (*DHTPeripheral, error) {
	if cfg == nil || stack == nil || sensor == nil || listener == nil || log == nil {
		return nil, errors.New("config, stack, sensor, listener and logger are required")
	}
	p := &DHTPeripheral{
		name:           cfg.Name,
		sampleInterval: cfg.SampleInterval,
		stack:          stack,
		sensor:         sensor,
		service:        dht.NewService(),
		status:         Idle,
		listener:       listener,
		log:            log,
	}
	serviceCfg, err := cfg.ServiceConfig(Reading{}, p)
	if err != nil {
		return nil, err
	}
	if err := p.service.Init(stack, serviceCfg); err != nil {
		return nil, errors.Wrap(err, "Init issue")
	}
	p.log.WithFields(logrus.Fields{
		"service": p.service.ServiceHandle(),
		"value":   p.service.CharHandles().Value,
		"cccd":    p.service.CharHandles().CCCD,
		"notify":  p.service.NotificationSupported(),
	}).Debug("DHT service registered")
	return p, nil
}

func (p *DHTPeripheral) Service() *dht.Service       { return p.service }
func (p *DHTPeripheral) Status() DHTPeripheralStatus { return p.status }

// OnNotificationStateChanged is the write handler of the DHT service
func (p *DHTPeripheral) OnNotificationStateChanged(_ *dht.Service, enabled bool) {
	p.log.WithField("enabled", enabled).Info("notification state changed")
	p.notifying = enabled
	// sent once OnStackEvent has returned
	p.notifyPending = enabled && p.last != nil
	p.listener.OnNotificationStateChanged(enabled)
}

// Run starts the stack and serves it until ctx is done
func (p *DHTPeripheral) Run(ctx context.Context) error {
	if err := p.stack.Start(ctx, p.name); err != nil {
		p.status = Crashed
		return errors.Wrap(err, "Start issue")
	}
	p.status = Advertising
	defer func() {
		if err := p.stack.Stop(); err != nil {
			p.log.WithError(err).Warn("stack did not stop cleanly")
		}
	}()
	ticker := time.NewTicker(p.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.status = Stopped
			return nil
		case evt, ok := <-p.stack.Events():
			if !ok {
				p.status = Crashed
				return errors.New("stack event channel closed")
			}
			p.handleEvent(evt)
		case <-ticker.C:
			p.sample()
		}
	}
}

func (p *DHTPeripheral) handleEvent(evt dht.Event) {
	p.service.OnStackEvent(evt)
	switch e := evt.(type) {
	case dht.Connected:
		p.status = Connected
		p.listener.OnConnected(uint16(e.ConnHandle), e.PeerAddr)
	case dht.Disconnected:
		p.status = Advertising
		p.notifying = false
		p.notifyPending = false
		p.listener.OnDisconnected()
	}
	if p.notifyPending {
		p.notifyPending = false
		p.send(*p.last)
	}
}

func (p *DHTPeripheral) sample() {
	r, err := p.sensor.Read()
	if err != nil {
		p.listener.OnInternalError(errors.Wrap(err, "sensor Read issue"))
		return
	}
	p.send(r)
}

// send stores r as the characteristic value and notifies it when a peer asked for it
func (p *DHTPeripheral) send(r Reading) {
	data, err := r.Data()
	if err != nil {
		p.listener.OnInternalError(errors.Wrap(err, "reading Data issue"))
		return
	}
	p.last = &r
	if err := p.stack.SetValue(p.service.CharHandles().Value, data); err != nil {
		p.listener.OnInternalError(errors.Wrap(err, "SetValue issue"))
		return
	}
	if !p.notifying {
		return
	}
	if err := p.NotifyReading(r); err != nil {
		p.listener.OnInternalError(err)
	}
}

// NotifyReading pushes r to the connected peer. ErrNotConnected and ErrNotSupported
// are returned unwrapped so callers can compare them.
func (p *DHTPeripheral) NotifyReading(r Reading) error {
	data, err := r.Data()
	if err != nil {
		return errors.Wrap(err, "reading Data issue")
	}
	err = p.service.NotifyValueChange(data)
	switch err {
	case nil:
		p.log.WithField("reading", r.String()).Debug("reading notified")
		p.listener.OnReadingSent(r)
		return nil
	case dht.ErrNotConnected, dht.ErrNotSupported, dht.ErrNotInitialized:
		return err
	}
	return errors.Wrap(err, "NotifyValueChange issue")
}
