package dht

import (
	"encoding/binary"

	"github.com/Krajiyah/ble-dht/pkg/models"
	"github.com/google/uuid"
)

const (
	// DefaultServiceUUID is the 16-bit alias of the DHT service within the vendor base
	DefaultServiceUUID uint16 = 0x1523
	// DefaultCharUUID is the 16-bit alias of the reading characteristic within the vendor base
	DefaultCharUUID uint16 = 0x1524
	// ReportReferenceDescUUID is the SIG assigned Report Reference descriptor
	ReportReferenceDescUUID uint16 = 0x2908

	cccdLength      = 2
	cccdNotifyBit   = 0x0001
	cccdIndicateBit = 0x0002
)

// DefaultBaseUUID is the vendor UUID base; bytes 2 and 3 are replaced by the 16-bit alias
var DefaultBaseUUID = uuid.MustParse("00000000-1212-EFDE-1523-785FEABCD123")

// WriteHandler is told when a peer enables or disables notifications
type WriteHandler interface {
	OnNotificationStateChanged(s *Service, enabled bool)
}

// WriteHandlerFunc adapts a function to WriteHandler
type WriteHandlerFunc func(s *Service, enabled bool)

// OnNotificationStateChanged calls f(s, enabled)
func (f WriteHandlerFunc) OnNotificationStateChanged(s *Service, enabled bool) { f(s, enabled) }

// Config is the information needed to initialize a Service
type Config struct {
	WriteHandler          WriteHandler
	InitialValue          []byte
	MaxLength             int
	ReportReference       *models.ReportReference
	NotificationSupported bool

	BaseUUID    uuid.UUID
	ServiceUUID uint16
	CharUUID    uint16

	ReadPerm       *SecurityMode
	WritePerm      *SecurityMode
	CCCDWritePerm  *SecurityMode
	ReportReadPerm *SecurityMode
}

// Service is one DHT GATT service registered with a Stack.
// It must outlive the stack session.
type Service struct {
	stack           Stack
	serviceHandle   Handle
	charHandles     CharHandles
	reportRefHandle Handle
	uuidType        uint8
	connHandle      ConnHandle
	writeHandler    WriteHandler
	notifySupported bool
	initialized     bool
}

// NewService returns an unregistered service with no connection
func NewService() *Service {
	return &Service{connHandle: ConnHandleInvalid}
}

func (s *Service) ServiceHandle() Handle       { return s.serviceHandle }
func (s *Service) CharHandles() CharHandles    { return s.charHandles }
func (s *Service) ReportRefHandle() Handle     { return s.reportRefHandle }
func (s *Service) UUIDType() uint8             { return s.uuidType }
func (s *Service) ConnHandle() ConnHandle      { return s.connHandle }
func (s *Service) NotificationSupported() bool { return s.notifySupported }
func (s *Service) Initialized() bool           { return s.initialized }

// Init registers the service with stack. Registration stops at the first failing
// stack call and its error is returned as is; earlier registrations are not undone.
func (s *Service) Init(stack Stack, cfg *Config) error {
	if s == nil || stack == nil || cfg == nil {
		return ErrInvalidArgument
	}
	// nothing is stored in s until every registration succeeded
	*s = Service{connHandle: ConnHandleInvalid}

	base := cfg.BaseUUID
	if base == uuid.Nil {
		base = DefaultBaseUUID
	}
	uuidType, err := stack.AddVendorUUID(base)
	if err != nil {
		return err
	}

	serviceUUID := ShortUUID{Type: uuidType, Value: orDefault(cfg.ServiceUUID, DefaultServiceUUID)}
	serviceHandle, err := stack.AddService(Primary, serviceUUID)
	if err != nil {
		return err
	}

	handles, err := stack.AddCharacteristic(serviceHandle, charParams(cfg, uuidType))
	if err != nil {
		return err
	}

	reportRefHandle := HandleInvalid
	if cfg.ReportReference != nil {
		desc := DescParams{
			UUID:      ShortUUID{Type: UUIDTypeBLE, Value: ReportReferenceDescUUID},
			ReadPerm:  permOrDefault(cfg.ReportReadPerm, SecModeOpen),
			WritePerm: SecModeNoAccess,
			Value:     cfg.ReportReference.Data(),
		}
		if reportRefHandle, err = stack.AddDescriptor(handles.Value, desc); err != nil {
			return err
		}
	}

	*s = Service{
		stack:           stack,
		serviceHandle:   serviceHandle,
		charHandles:     handles,
		reportRefHandle: reportRefHandle,
		uuidType:        uuidType,
		connHandle:      ConnHandleInvalid,
		writeHandler:    cfg.WriteHandler,
		notifySupported: cfg.NotificationSupported,
		initialized:     true,
	}
	return nil
}

func charParams(cfg *Config, uuidType uint8) CharParams {
	maxLen := cfg.MaxLength
	if maxLen == 0 {
		maxLen = len(cfg.InitialValue)
	}
	if maxLen == 0 {
		maxLen = 1
	}
	p := CharParams{
		UUID:         ShortUUID{Type: uuidType, Value: orDefault(cfg.CharUUID, DefaultCharUUID)},
		Props:        CharProps{Read: true, Notify: cfg.NotificationSupported},
		ReadPerm:     permOrDefault(cfg.ReadPerm, SecModeOpen),
		WritePerm:    permOrDefault(cfg.WritePerm, SecModeNoAccess),
		InitialValue: append([]byte(nil), cfg.InitialValue...),
		MaxLength:    maxLen,
	}
	if cfg.NotificationSupported {
		// CCCD reads never require authentication.
		p.CCCDReadPerm = SecModeOpen
		p.CCCDWritePerm = permOrDefault(cfg.CCCDWritePerm, SecModeOpen)
	}
	return p
}

// OnStackEvent updates the connection state and reports CCCD writes to the write handler.
// It never calls back into the stack. A service that is not initialized ignores every event.
func (s *Service) OnStackEvent(evt Event) {
	if s == nil || evt == nil || !s.initialized {
		return
	}
	switch e := evt.(type) {
	case Connected:
		s.connHandle = e.ConnHandle
	case Disconnected:
		s.connHandle = ConnHandleInvalid
	case CharacteristicWritten:
		s.onWrite(e)
	}
}

func (s *Service) onWrite(e CharacteristicWritten) {
	if !s.notifySupported || e.Handle != s.charHandles.CCCD || len(e.Data) != cccdLength {
		return
	}
	if s.writeHandler == nil {
		return
	}
	s.writeHandler.OnNotificationStateChanged(s, NotificationEnabled(e.Data))
}

// NotifyValueChange pushes value to the connected peer as a notification
func (s *Service) NotifyValueChange(value []byte) error {
	if s == nil || !s.initialized {
		return ErrNotInitialized
	}
	if !s.notifySupported {
		return ErrNotSupported
	}
	if s.connHandle == ConnHandleInvalid {
		return ErrNotConnected
	}
	return s.stack.Notify(s.connHandle, HVXParams{
		Type:   Notification,
		Handle: s.charHandles.Value,
		Data:   value,
	})
}

// NotificationEnabled decodes a CCCD value
func NotificationEnabled(cccd []byte) bool {
	if len(cccd) < cccdLength {
		return false
	}
	return binary.LittleEndian.Uint16(cccd)&cccdNotifyBit != 0
}

// IndicationEnabled decodes a CCCD value
func IndicationEnabled(cccd []byte) bool {
	if len(cccd) < cccdLength {
		return false
	}
	return binary.LittleEndian.Uint16(cccd)&cccdIndicateBit != 0
}

// CCCDValue encodes a CCCD value
func CCCDValue(notify, indicate bool) []byte {
	var v uint16
	if notify {
		v |= cccdNotifyBit
	}
	if indicate {
		v |= cccdIndicateBit
	}
	b := make([]byte, cccdLength)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func orDefault(v, def uint16) uint16 {
	if v == 0 {
		return def
	}
	return v
}

func permOrDefault(p *SecurityMode, def SecurityMode) SecurityMode {
	if p == nil {
		return def
	}
	return *p
}
