package ble

import (
	"sync"
	"time"

	"github.com/Krajiyah/ble-dht/pkg/dht"
	"github.com/Krajiyah/ble-dht/pkg/util"
	mapset "github.com/deckarep/golang-set"
	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// handles below belong to the GAP and GATT services
	firstAttrHandle dht.Handle = 0x000C
	maxVendorUUIDs             = 4
	eventBuffer                = 64
)

type charEntry struct {
	char    *ble.Characteristic
	handles dht.CharHandles
	props   dht.CharProps
	perm    dht.SecurityMode
	value   []byte
	maxLen  int
}

type notifierKey struct {
	conn   dht.ConnHandle
	handle dht.Handle
	kind   dht.HVXType
}

// GATTStack is a dht.Stack on top of the go-ble default device.
// go-ble has no attribute handles or connection handles of its own, so GATTStack
// assigns both and turns go-ble callbacks into dht events.
type GATTStack struct {
	methods  coreMethods
	log      logrus.FieldLogger
	deviceID int
	timeout  time.Duration

	mutex      sync.Mutex
	bases      []uuid.UUID
	nextHandle dht.Handle
	services   map[dht.Handle]*ble.Service
	order      []dht.Handle
	chars      map[dht.Handle]*charEntry
	started    bool

	links     map[string]dht.ConnHandle
	live      mapset.Set
	nextConn  dht.ConnHandle
	notifiers map[notifierKey]ble.Notifier

	events chan dht.Event
	done   chan struct{}
	once   sync.Once
}

// NewGATTStack returns a stack that will open HCI device deviceID on Start
func NewGATTStack(deviceID int, timeout time.Duration, log logrus.FieldLogger) *GATTStack {
	return newGATTStack(&realCoreMethods{}, deviceID, timeout, log)
}

func newGATTStack(methods coreMethods, deviceID int, timeout time.Duration, log logrus.FieldLogger) *GATTStack {
	return &GATTStack{
		methods:    methods,
		log:        log,
		deviceID:   deviceID,
		timeout:    timeout,
		nextHandle: firstAttrHandle,
		services:   map[dht.Handle]*ble.Service{},
		chars:      map[dht.Handle]*charEntry{},
		links:      map[string]dht.ConnHandle{},
		live:       mapset.NewSet(),
		notifiers:  map[notifierKey]ble.Notifier{},
		events:     make(chan dht.Event, eventBuffer),
		done:       make(chan struct{}),
	}
}

// Events delivers stack events in the order they happened on each link
func (s *GATTStack) Events() <-chan dht.Event { return s.events }

func (s *GATTStack) emit(evt dht.Event) {
	select {
	case s.events <- evt:
	case <-s.done:
	}
}

func (s *GATTStack) allocHandle() dht.Handle {
	h := s.nextHandle
	s.nextHandle++
	return h
}

func (s *GATTStack) resolve(u dht.ShortUUID) (ble.UUID, error) {
	switch {
	case u.Type == dht.UUIDTypeBLE:
		return ble.UUID16(u.Value), nil
	case u.Type >= dht.UUIDTypeVendorBegin && int(u.Type-dht.UUIDTypeVendorBegin) < len(s.bases):
		base := s.bases[u.Type-dht.UUIDTypeVendorBegin]
		return util.ToBLEUUID(util.AliasUUID(base, u.Value)), nil
	}
	return nil, dht.ErrCodeNotFound
}

// AddVendorUUID registers a 128-bit base; registering the same base twice returns the same type
func (s *GATTStack) AddVendorUUID(base uuid.UUID) (uint8, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if base == uuid.Nil {
		return dht.UUIDTypeUnknown, dht.ErrCodeInvalidParam
	}
	for i, b := range s.bases {
		if b == base {
			return dht.UUIDTypeVendorBegin + uint8(i), nil
		}
	}
	if len(s.bases) == maxVendorUUIDs {
		return dht.UUIDTypeUnknown, dht.ErrCodeNoMem
	}
	s.bases = append(s.bases, base)
	return dht.UUIDTypeVendorBegin + uint8(len(s.bases)-1), nil
}

func (s *GATTStack) AddService(kind dht.ServiceKind, u dht.ShortUUID) (dht.Handle, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return dht.HandleInvalid, dht.ErrCodeInvalidState
	}
	if kind != dht.Primary {
		return dht.HandleInvalid, dht.ErrCodeNotSupported
	}
	id, err := s.resolve(u)
	if err != nil {
		return dht.HandleInvalid, err
	}
	h := s.allocHandle()
	s.services[h] = ble.NewService(id)
	s.order = append(s.order, h)
	s.log.WithFields(logrus.Fields{"handle": h, "uuid": id.String()}).Debug("service added")
	return h, nil
}

func (s *GATTStack) AddCharacteristic(service dht.Handle, p dht.CharParams) (dht.CharHandles, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return dht.CharHandles{}, dht.ErrCodeInvalidState
	}
	svc, ok := s.services[service]
	if !ok {
		return dht.CharHandles{}, dht.ErrCodeInvalidAttr
	}
	if p.MaxLength <= 0 || len(p.InitialValue) > p.MaxLength {
		return dht.CharHandles{}, dht.ErrCodeInvalidParam
	}
	id, err := s.resolve(p.UUID)
	if err != nil {
		return dht.CharHandles{}, err
	}
	s.allocHandle() // declaration
	handles := dht.CharHandles{Value: s.allocHandle()}
	if p.Props.Notify || p.Props.Indicate {
		handles.CCCD = s.allocHandle()
	}
	entry := &charEntry{
		char:    svc.NewCharacteristic(id),
		handles: handles,
		props:   p.Props,
		perm:    p.ReadPerm,
		value:   append([]byte(nil), p.InitialValue...),
		maxLen:  p.MaxLength,
	}
	if p.Props.Read {
		entry.char.HandleRead(ble.ReadHandlerFunc(s.readHandler(entry)))
	}
	if p.Props.Write {
		entry.char.HandleWrite(ble.WriteHandlerFunc(s.writeHandler(entry)))
	}
	if p.Props.Notify {
		entry.char.HandleNotify(ble.NotifyHandlerFunc(s.notifyHandler(entry, dht.Notification)))
	}
	if p.Props.Indicate {
		entry.char.HandleIndicate(ble.NotifyHandlerFunc(s.notifyHandler(entry, dht.Indication)))
	}
	s.chars[handles.Value] = entry
	s.log.WithFields(logrus.Fields{"handle": handles.Value, "cccd": handles.CCCD, "uuid": id.String()}).Debug("characteristic added")
	return handles, nil
}

func (s *GATTStack) AddDescriptor(char dht.Handle, p dht.DescParams) (dht.Handle, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return dht.HandleInvalid, dht.ErrCodeInvalidState
	}
	entry, ok := s.chars[char]
	if !ok {
		return dht.HandleInvalid, dht.ErrCodeInvalidAttr
	}
	id, err := s.resolve(p.UUID)
	if err != nil {
		return dht.HandleInvalid, err
	}
	entry.char.NewDescriptor(id).SetValue(p.Value)
	h := s.allocHandle()
	s.log.WithFields(logrus.Fields{"handle": h, "uuid": id.String()}).Debug("descriptor added")
	return h, nil
}

// Notify pushes p.Data to the notifier the peer on conn subscribed with; the stored
// attribute value is updated as well.
func (s *GATTStack) Notify(conn dht.ConnHandle, p dht.HVXParams) error {
	s.mutex.Lock()
	entry, ok := s.chars[p.Handle]
	if !ok {
		s.mutex.Unlock()
		return dht.ErrCodeInvalidAttr
	}
	if !s.live.Contains(conn) {
		s.mutex.Unlock()
		return dht.ErrCodeInvalidConn
	}
	if p.Offset < 0 || p.Offset+len(p.Data) > entry.maxLen {
		s.mutex.Unlock()
		return dht.ErrCodeDataSize
	}
	n, ok := s.notifiers[notifierKey{conn, p.Handle, p.Type}]
	if !ok {
		s.mutex.Unlock()
		return dht.ErrCodeInvalidState
	}
	value := make([]byte, p.Offset+len(p.Data))
	copy(value, entry.value)
	copy(value[p.Offset:], p.Data)
	entry.value = value
	s.mutex.Unlock()

	if _, err := n.Write(value); err != nil {
		s.log.WithFields(logrus.Fields{"conn": conn, "handle": p.Handle}).WithError(err).Warn("notification not sent")
		return dht.ErrCodeInvalidState
	}
	return nil
}

// SetValue replaces the value peers read from characteristic h without notifying anyone
func (s *GATTStack) SetValue(h dht.Handle, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, ok := s.chars[h]
	if !ok {
		return dht.ErrCodeInvalidAttr
	}
	if len(value) > entry.maxLen {
		return dht.ErrCodeDataSize
	}
	entry.value = append([]byte(nil), value...)
	return nil
}

// Value returns the current value of a characteristic
func (s *GATTStack) Value(h dht.Handle) ([]byte, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, ok := s.chars[h]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}
