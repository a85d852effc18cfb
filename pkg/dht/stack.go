package dht

import "github.com/google/uuid"

// ConnHandle identifies one active link as assigned by the wireless stack
type ConnHandle uint16

// Handle is an attribute handle assigned by the wireless stack
type Handle uint16

const (
	// ConnHandleInvalid is the "no connection" value of ConnHandle
	ConnHandleInvalid ConnHandle = 0xFFFF
	// HandleInvalid marks an attribute that was never registered
	HandleInvalid Handle = 0x0000
)

const (
	// UUIDTypeUnknown is never handed out by a stack
	UUIDTypeUnknown uint8 = 0
	// UUIDTypeBLE is the type of 16-bit UUIDs assigned by the Bluetooth SIG
	UUIDTypeBLE uint8 = 1
	// UUIDTypeVendorBegin is the first type a stack assigns to a registered vendor UUID base
	UUIDTypeVendorBegin uint8 = 2
)

// ShortUUID is a 16-bit UUID alias within a registered base (see UUIDTypeBLE and Stack.AddVendorUUID)
type ShortUUID struct {
	Type  uint8
	Value uint16
}

// ServiceKind tells the stack whether a service is primary or secondary
type ServiceKind int

const (
	// Primary service
	Primary ServiceKind = iota
	// Secondary service
	Secondary
)

// SecurityMode is the security mode and level required to access an attribute
type SecurityMode struct {
	Mode  uint8
	Level uint8
}

var (
	// SecModeNoAccess denies any access
	SecModeNoAccess = SecurityMode{Mode: 0, Level: 0}
	// SecModeOpen requires no security
	SecModeOpen = SecurityMode{Mode: 1, Level: 1}
)

// CharProps are the characteristic properties advertised in its declaration
type CharProps struct {
	Read     bool
	Write    bool
	Notify   bool
	Indicate bool
}

// CharHandles are the handles assigned to a characteristic when it is added
type CharHandles struct {
	Value    Handle
	UserDesc Handle
	CCCD     Handle
	SCCD     Handle
}

// CharParams describe a characteristic for Stack.AddCharacteristic
type CharParams struct {
	UUID          ShortUUID
	Props         CharProps
	ReadPerm      SecurityMode
	WritePerm     SecurityMode
	CCCDReadPerm  SecurityMode
	CCCDWritePerm SecurityMode
	InitialValue  []byte
	MaxLength     int
}

// DescParams describe a descriptor for Stack.AddDescriptor
type DescParams struct {
	UUID      ShortUUID
	ReadPerm  SecurityMode
	WritePerm SecurityMode
	Value     []byte
}

// HVXType selects between notification and indication
type HVXType uint8

const (
	// Notification is an unacknowledged value push
	Notification HVXType = 1
	// Indication is an acknowledged value push
	Indication HVXType = 2
)

// HVXParams describe a value push for Stack.Notify
type HVXParams struct {
	Type   HVXType
	Handle Handle
	Offset int
	Data   []byte
}

// Stack is the wireless stack capability a Service registers itself with.
// Every method is synchronous; a non-nil error is the stack's failure code and is
// handed back to callers untouched.
type Stack interface {
	AddVendorUUID(base uuid.UUID) (uuidType uint8, err error)
	AddService(kind ServiceKind, u ShortUUID) (Handle, error)
	AddCharacteristic(service Handle, params CharParams) (CharHandles, error)
	AddDescriptor(char Handle, params DescParams) (Handle, error)
	Notify(conn ConnHandle, params HVXParams) error
}
