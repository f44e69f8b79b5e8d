package can

import (
	"bytes"
	"errors"
	"testing"
)

func mkFrame(id uint32, data ...byte) Frame {
	var f Frame
	f.CANID = id
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	return f
}

func TestClassify(t *testing.T) {
	tests := []struct {
		n    int
		fd   bool
		want Kind
	}{
		{CAN_MTU, false, KindClassic},
		{CAN_MTU, true, KindClassic},
		{CANFD_MTU, true, KindFD},
		{CANFD_MTU, false, KindMalformed},
		{0, true, KindMalformed},
		{15, false, KindMalformed},
		{40, true, KindMalformed},
	}
	for _, tc := range tests {
		if got := Classify(tc.n, tc.fd); got != tc.want {
			t.Fatalf("Classify(%d, %v) = %v want %v", tc.n, tc.fd, got, tc.want)
		}
	}
}

func TestDecodeClassic(t *testing.T) {
	raw := Encode(mkFrame(0x123, 0, 1, 2, 3), KindClassic)
	var fr Frame
	kind, err := Decode(raw, false, &fr)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if kind != KindClassic || fr.MessageID() != 0x123 || fr.Len != 4 {
		t.Fatalf("unexpected frame: kind=%v id=0x%X len=%d", kind, fr.MessageID(), fr.Len)
	}
	if !bytes.Equal(fr.Payload(), []byte{0, 1, 2, 3}) {
		t.Fatalf("payload mismatch: % X", fr.Payload())
	}
}

func TestDecodeFD(t *testing.T) {
	data := make([]byte, MaxFDLen)
	for i := range data {
		data[i] = byte(i)
	}
	raw := Encode(mkFrame(0x123, data...), KindFD)
	if len(raw) != CANFD_MTU {
		t.Fatalf("encoded %d bytes, want %d", len(raw), CANFD_MTU)
	}
	var fr Frame
	if _, err := Decode(raw, false, &fr); !errors.Is(err, ErrMalformed) {
		t.Fatalf("FD read without FD mode: expected ErrMalformed, got %v", err)
	}
	kind, err := Decode(raw, true, &fr)
	if err != nil || kind != KindFD {
		t.Fatalf("Decode FD: kind=%v err=%v", kind, err)
	}
	if fr.Len != MaxFDLen || !bytes.Equal(fr.Payload(), data) {
		t.Fatalf("FD payload mismatch len=%d", fr.Len)
	}
}

func TestDecodeClampsLength(t *testing.T) {
	raw := Encode(mkFrame(0x10, 1, 2), KindClassic)
	raw[4] = 15 // bogus dlc
	var fr Frame
	if _, err := Decode(raw, false, &fr); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fr.Len != MaxClassicLen {
		t.Fatalf("expected length clamped to %d, got %d", MaxClassicLen, fr.Len)
	}
}

func TestDecodeMalformedLength(t *testing.T) {
	var fr Frame
	if _, err := Decode(make([]byte, 7), true, &fr); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestMessageIDExtendedMarker(t *testing.T) {
	tests := []struct {
		wire uint32
		want uint32
	}{
		{0x123, 0x123},
		{0x123 | CAN_EFF_FLAG, 0x80000123},
		{0x1FFFFFFF | CAN_EFF_FLAG, 0x9FFFFFFF},
		{0x123 | CAN_RTR_FLAG, 0x123},
		{0x7FF | CAN_ERR_FLAG, 0x7FF},
	}
	for _, tc := range tests {
		f := Frame{CANID: tc.wire}
		if got := f.MessageID(); got != tc.want {
			t.Fatalf("MessageID(0x%X) = 0x%X want 0x%X", tc.wire, got, tc.want)
		}
	}
}

func TestNewRecordOwnsPayload(t *testing.T) {
	fr := mkFrame(0x123|CAN_EFF_FLAG, 0xAA, 0xBB)
	r := NewRecord(&fr, fr0Time, Channel{IfName: "vcan0", Type: ChannelCAN, Protocol: ProtocolRawSocket})
	fr.Data[0] = 0x00
	if r.Data[0] != 0xAA || len(r.Data) != 2 {
		t.Fatalf("record payload aliased frame buffer: % X", r.Data)
	}
	if !r.Extended() || r.RawID() != 0x123 || r.ID != 0x80000123 {
		t.Fatalf("unexpected record id 0x%X", r.ID)
	}
	if r.Channel.IfName != "vcan0" {
		t.Fatalf("channel metadata lost: %+v", r.Channel)
	}
}
