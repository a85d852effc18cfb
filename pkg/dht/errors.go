package dht

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned by Init when the service, stack or config is missing
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotConnected is returned by NotifyValueChange while no link is active
	ErrNotConnected = errors.New("not connected")
	// ErrNotSupported is returned by NotifyValueChange on a service without notifications
	ErrNotSupported = errors.New("notifications not supported")
	// ErrNotInitialized is returned by NotifyValueChange before Init has succeeded
	ErrNotInitialized = errors.New("service not initialized")
)

// StackError is a failure code reported by the wireless stack
type StackError uint32

const (
	ErrCodeSuccess         StackError = 0
	ErrCodeInternal        StackError = 3
	ErrCodeNoMem           StackError = 4
	ErrCodeNotFound        StackError = 5
	ErrCodeNotSupported    StackError = 6
	ErrCodeInvalidParam    StackError = 7
	ErrCodeInvalidState    StackError = 8
	ErrCodeInvalidLength   StackError = 9
	ErrCodeDataSize        StackError = 12
	ErrCodeNull            StackError = 14
	ErrCodeForbidden       StackError = 15
	ErrCodeBusy            StackError = 17
	ErrCodeResources       StackError = 19
	ErrCodeInvalidConn     StackError = 0x3002
	ErrCodeInvalidAttr     StackError = 0x3003
	ErrCodeSysAttrsMissing StackError = 0x3401
)

func (e StackError) Error() string {
	switch e {
	case ErrCodeSuccess:
		return "no error"
	case ErrCodeInternal:
		return "internal error"
	case ErrCodeNoMem:
		return "no memory for operation"
	case ErrCodeNotFound:
		return "not found"
	case ErrCodeNotSupported:
		return "not supported"
	case ErrCodeInvalidParam:
		return "invalid parameter"
	case ErrCodeInvalidState:
		return "invalid state, operation disallowed in this state"
	case ErrCodeInvalidLength:
		return "invalid length"
	case ErrCodeDataSize:
		return "invalid data size"
	case ErrCodeNull:
		return "null pointer"
	case ErrCodeForbidden:
		return "forbidden operation"
	case ErrCodeBusy:
		return "busy"
	case ErrCodeResources:
		return "not enough resources for operation"
	case ErrCodeInvalidConn:
		return "invalid connection handle"
	case ErrCodeInvalidAttr:
		return "invalid attribute handle"
	case ErrCodeSysAttrsMissing:
		return "system attributes missing"
	}
	return fmt.Sprintf("stack error 0x%04X", uint32(e))
}
