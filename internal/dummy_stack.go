package internal

import (
	"context"

	"github.com/Krajiyah/ble-dht/pkg/dht"
	"github.com/google/uuid"
)

// Names of the DummyStack calls, in the order a successful init makes them
const (
	CallAddVendorUUID     = "AddVendorUUID"
	CallAddService        = "AddService"
	CallAddCharacteristic = "AddCharacteristic"
	CallAddDescriptor     = "AddDescriptor"
	CallNotify            = "Notify"
)

// DummyNotify is one recorded DummyStack.Notify call
type DummyNotify struct {
	Conn   dht.ConnHandle
	Params dht.HVXParams
}

// DummyStack is a dht.Stack that records calls and fails the ones listed in Fail
type DummyStack struct {
	Fail map[string]error

	Calls       []string
	Bases       []uuid.UUID
	Services    []dht.ShortUUID
	Chars       []dht.CharParams
	Descriptors []dht.DescParams
	Notified    []DummyNotify

	nextHandle dht.Handle
}

// NewDummyStack returns a stack whose first attribute handle is 0x000C
func NewDummyStack() *DummyStack {
	return &DummyStack{Fail: map[string]error{}, nextHandle: 0x000C}
}

func (d *DummyStack) call(name string) error {
	d.Calls = append(d.Calls, name)
	return d.Fail[name]
}

func (d *DummyStack) handle() dht.Handle {
	h := d.nextHandle
	d.nextHandle++
	return h
}

func (d *DummyStack) AddVendorUUID(base uuid.UUID) (uint8, error) {
	if err := d.call(CallAddVendorUUID); err != nil {
		return dht.UUIDTypeUnknown, err
	}
	d.Bases = append(d.Bases, base)
	return dht.UUIDTypeVendorBegin + uint8(len(d.Bases)-1), nil
}

func (d *DummyStack) AddService(kind dht.ServiceKind, u dht.ShortUUID) (dht.Handle, error) {
	if err := d.call(CallAddService); err != nil {
		return dht.HandleInvalid, err
	}
	d.Services = append(d.Services, u)
	return d.handle(), nil
}

func (d *DummyStack) AddCharacteristic(service dht.Handle, p dht.CharParams) (dht.CharHandles, error) {
	if err := d.call(CallAddCharacteristic); err != nil {
		return dht.CharHandles{}, err
	}
	d.Chars = append(d.Chars, p)
	d.handle() // declaration
	h := dht.CharHandles{Value: d.handle()}
	if p.Props.Notify || p.Props.Indicate {
		h.CCCD = d.handle()
	}
	return h, nil
}

func (d *DummyStack) AddDescriptor(char dht.Handle, p dht.DescParams) (dht.Handle, error) {
	if err := d.call(CallAddDescriptor); err != nil {
		return dht.HandleInvalid, err
	}
	d.Descriptors = append(d.Descriptors, p)
	return d.handle(), nil
}

func (d *DummyStack) Notify(conn dht.ConnHandle, p dht.HVXParams) error {
	if err := d.call(CallNotify); err != nil {
		return err
	}
	d.Notified = append(d.Notified, DummyNotify{Conn: conn, Params: p})
	return nil
}

// DummyWriteHandler records every notification state change
type DummyWriteHandler struct {
	States []bool
}

func (h *DummyWriteHandler) OnNotificationStateChanged(_ *dht.Service, enabled bool) {
	h.States = append(h.States, enabled)
}

// DummyEventStack adds the session half of a stack to DummyStack; tests feed events through Push
type DummyEventStack struct {
	*DummyStack
	StartErr error
	Started  []string
	Stopped  int
	Values   map[dht.Handle][]byte
	events   chan dht.Event
}

func NewDummyEventStack() *DummyEventStack {
	return &DummyEventStack{DummyStack: NewDummyStack(), Values: map[dht.Handle][]byte{}, events: make(chan dht.Event, 16)}
}

func (d *DummyEventStack) Start(_ context.Context, name string) error {
	if d.StartErr != nil {
		return d.StartErr
	}
	d.Started = append(d.Started, name)
	return nil
}

func (d *DummyEventStack) Events() <-chan dht.Event { return d.events }

func (d *DummyEventStack) Stop() error {
	d.Stopped++
	return nil
}

func (d *DummyEventStack) SetValue(h dht.Handle, value []byte) error {
	d.Values[h] = append([]byte(nil), value...)
	return nil
}

// Push queues evt for the consumer of Events
func (d *DummyEventStack) Push(evt dht.Event) { d.events <- evt }
