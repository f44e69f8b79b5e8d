//go:build linux

package socketcan

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-can-telemetry/internal/timestamp"
)

var timespecSize = int(unsafe.Sizeof(unix.Timespec{}))

// parseTiming extracts SCM_TIMESTAMPING stamps from ancillary data.
// The kernel sends three timespecs: software, deprecated, raw hardware.
func parseTiming(oob []byte) timestamp.Timing {
	var t timestamp.Timing
	if len(oob) == 0 {
		return t
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return t
	}
	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SO_TIMESTAMPING {
			continue
		}
		if len(m.Data) < 3*timespecSize {
			continue
		}
		var ts [3]unix.Timespec
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&ts[0])), 3*timespecSize), m.Data)
		t.Software = toTime(ts[0])
		t.Hardware = toTime(ts[2])
	}
	return t
}

func toTime(ts unix.Timespec) time.Time {
	sec, nsec := ts.Unix()
	if sec == 0 && nsec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, nsec)
}
