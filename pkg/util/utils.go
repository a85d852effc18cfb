package util

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/google/uuid"
)

const (
	inf = 1000000
)

func AddrEqualAddr(a string, b string) bool {
	return strings.ToUpper(a) == strings.ToUpper(b)
}

func UuidEqualStr(u ble.UUID, s string) bool {
	compare := strings.Replace(s, "-", "", -1)
	return AddrEqualAddr(compare, u.String())
}

func MakeINFContext() context.Context {
	return ble.WithSigHandler(context.WithTimeout(context.Background(), inf*time.Hour))
}

// AliasUUID places a 16-bit alias into bytes 2 and 3 of base
func AliasUUID(base uuid.UUID, alias uint16) uuid.UUID {
	u := base
	binary.BigEndian.PutUint16(u[2:4], alias)
	return u
}

// SIGUUID expands a 16-bit Bluetooth SIG assigned number
func SIGUUID(alias uint16) uuid.UUID {
	return AliasUUID(uuid.MustParse(BluetoothBaseUUID), alias)
}

// ToBLEUUID converts a canonical UUID into go-ble's little endian form
func ToBLEUUID(u uuid.UUID) ble.UUID {
	b := make([]byte, len(u))
	copy(b, u[:])
	return ble.UUID(ble.Reverse(b))
}
