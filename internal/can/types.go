package can

// SocketCAN flag bits for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// Wire sizes of struct can_frame / struct canfd_frame.
const (
	CAN_MTU   = 16
	CANFD_MTU = 72

	MaxClassicLen = 8
	MaxFDLen      = 64

	// payload offset inside both frame layouts
	dataOffset = 8
)

// Kind classifies a raw read by its length.
type Kind int

const (
	KindMalformed Kind = iota
	KindClassic
	KindFD
)

func (k Kind) String() string {
	switch k {
	case KindClassic:
		return "classic"
	case KindFD:
		return "fd"
	default:
		return "malformed"
	}
}

// Classify maps a read length to a frame kind. FD-sized reads are only valid
// when the socket was configured for flexible-data frames.
func Classify(n int, fdEnabled bool) Kind {
	switch {
	case n == CAN_MTU:
		return KindClassic
	case n == CANFD_MTU && fdEnabled:
		return KindFD
	default:
		return KindMalformed
	}
}

// Frame is a simple CAN / CAN FD frame holder.
// CANID keeps the EFF/RTR/ERR flags in its upper bits like SocketCAN.
// Len is payload length (0..8 classic, 0..64 FD); only the first Len bytes are valid.
type Frame struct {
	CANID uint32
	Len   uint8
	Data  [MaxFDLen]byte
}

// MessageID returns the identifier carried into records: control bits masked
// off, bit 31 set again when the wire frame used an extended identifier.
func (f Frame) MessageID() uint32 {
	id := f.CANID & CAN_EFF_MASK
	if f.CANID&CAN_EFF_FLAG != 0 {
		id |= CAN_EFF_FLAG
	}
	return id
}

// Extended reports whether the wire frame carried the EFF flag.
func (f Frame) Extended() bool { return f.CANID&CAN_EFF_FLAG != 0 }

// Payload returns the valid part of Data.
func (f *Frame) Payload() []byte { return f.Data[:f.Len] }
