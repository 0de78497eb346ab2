// Package hostendian reports the host machine's native byte order.
//
// The SMS double-buffer (spec.md §6) is marshaled with explicit byte order
// per field, but a couple of legacy-compatible fields are written in host
// order rather than network order, so callers need this to know which one
// "host" means on the current machine.
package hostendian

import (
	"encoding/binary"
	"unsafe"
)

// Order of the bytes
var Order binary.ByteOrder = binary.LittleEndian

// IsBigEndian is a flag determining if value is in Big Endian
var IsBigEndian bool

func init() {
	var i uint16 = 0x0100
	ptr := unsafe.Pointer(&i)
	if *(*byte)(ptr) == 0x01 {
		// we are on the big endian machine
		IsBigEndian = true
		Order = binary.BigEndian
	}
}
