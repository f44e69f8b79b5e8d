package can

import "time"

// ChannelType identifies the kind of data source a record came from.
type ChannelType string

// ChannelProtocol identifies how the data source talks to the bus.
type ChannelProtocol string

const (
	ChannelCAN        ChannelType     = "CAN"
	ProtocolRawSocket ChannelProtocol = "RAW_SOCKET"
)

// Channel is the metadata attached to every record produced by one source.
type Channel struct {
	IfName   string
	Type     ChannelType
	Protocol ChannelProtocol
}

// Record is the unit handed to the output sink for every accepted frame.
// ID carries bit 31 as the extended-identifier marker (see Frame.MessageID).
type Record struct {
	ID        uint32
	Data      []byte
	Timestamp time.Time
	Channel   Channel
}

// NewRecord copies the frame payload so the record owns its bytes.
func NewRecord(fr *Frame, ts time.Time, ch Channel) Record {
	data := make([]byte, fr.Len)
	copy(data, fr.Payload())
	return Record{ID: fr.MessageID(), Data: data, Timestamp: ts, Channel: ch}
}

// Extended reports whether the record identifier carries the extended marker.
func (r Record) Extended() bool { return r.ID&CAN_EFF_FLAG != 0 }

// RawID returns the identifier without the extended marker.
func (r Record) RawID() uint32 { return r.ID & CAN_EFF_MASK }
