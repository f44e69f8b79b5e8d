//go:build linux

package socketcan

import (
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-can-telemetry/internal/transport"
)

func buildTimestampingCmsg(stamps [3]unix.Timespec) []byte {
	dataLen := 3 * timespecSize
	b := make([]byte, unix.CmsgSpace(dataLen))
	h := (*unix.Cmsghdr)(unsafe.Pointer(&b[0]))
	h.Level = unix.SOL_SOCKET
	h.Type = unix.SO_TIMESTAMPING
	h.SetLen(unix.CmsgLen(dataLen))
	copy(b[unix.CmsgLen(0):], unsafe.Slice((*byte)(unsafe.Pointer(&stamps[0])), dataLen))
	return b
}

func TestParseTiming_SoftwareAndHardware(t *testing.T) {
	sw := time.Unix(1700000000, 123000)
	hw := time.Unix(42, 7)
	oob := buildTimestampingCmsg([3]unix.Timespec{
		unix.NsecToTimespec(sw.UnixNano()),
		{},
		unix.NsecToTimespec(hw.UnixNano()),
	})
	got := parseTiming(oob)
	if !got.Software.Equal(sw) {
		t.Fatalf("software stamp: got %v want %v", got.Software, sw)
	}
	if !got.Hardware.Equal(hw) {
		t.Fatalf("hardware stamp: got %v want %v", got.Hardware, hw)
	}
}

func TestParseTiming_ZeroStampsStayZero(t *testing.T) {
	got := parseTiming(buildTimestampingCmsg([3]unix.Timespec{}))
	if !got.Software.IsZero() || !got.Hardware.IsZero() {
		t.Fatalf("expected zero stamps, got %+v", got)
	}
}

func TestParseTiming_NoAncillaryData(t *testing.T) {
	got := parseTiming(nil)
	if !got.Software.IsZero() || !got.Hardware.IsZero() {
		t.Fatalf("expected zero timing, got %+v", got)
	}
}

func TestDevice_ReadBeforeBind(t *testing.T) {
	d := New()
	if _, err := d.ReadBatch(t.Context(), make([]transport.Read, 1)); err != ErrNotBound {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close of unopened device: %v", err)
	}
}
