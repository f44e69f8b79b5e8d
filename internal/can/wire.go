package can

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned for reads that are neither a classic nor an
// (enabled) FD frame.
var ErrMalformed = errors.New("can: malformed frame")

// Decode parses a raw SocketCAN read of n bytes into fr.
//
// struct can_frame / struct canfd_frame (linux/can.h):
//
//	can_id  u32   [0:4]  (includes EFF/RTR/ERR flags)
//	len     u8    [4]    (can_dlc for classic)
//	flags   u8    [5]    (FD only)
//	res     2B    [6:8]
//	data    [8:16] classic, [8:72] FD
//
// The kernel provides fields in host byte order.
func Decode(raw []byte, fdEnabled bool, fr *Frame) (Kind, error) {
	kind := Classify(len(raw), fdEnabled)
	if kind == KindMalformed {
		return kind, fmt.Errorf("%w: read %d bytes", ErrMalformed, len(raw))
	}
	maxLen := MaxClassicLen
	if kind == KindFD {
		maxLen = MaxFDLen
	}
	n := int(raw[4])
	if n > maxLen {
		n = maxLen
	}
	fr.CANID = binary.NativeEndian.Uint32(raw[0:4])
	fr.Len = uint8(n)
	copy(fr.Data[:], raw[dataOffset:dataOffset+n])
	return kind, nil
}

// Encode writes fr into the wire layout matching kind. It is used by test
// fakes that need to produce kernel-shaped reads.
func Encode(fr Frame, kind Kind) []byte {
	size := CAN_MTU
	if kind == KindFD {
		size = CANFD_MTU
	}
	buf := make([]byte, size)
	binary.NativeEndian.PutUint32(buf[0:4], fr.CANID)
	n := int(fr.Len)
	if n > size-dataOffset {
		n = size - dataOffset
	}
	buf[4] = uint8(n)
	copy(buf[dataOffset:], fr.Data[:n])
	return buf
}
