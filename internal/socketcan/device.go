//go:build linux

package socketcan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-can-telemetry/internal/transport"
)

// timestampingFlags requests software and raw hardware RX stamps.
const timestampingFlags = unix.SOF_TIMESTAMPING_RX_SOFTWARE |
	unix.SOF_TIMESTAMPING_SOFTWARE |
	unix.SOF_TIMESTAMPING_RX_HARDWARE |
	unix.SOF_TIMESTAMPING_RAW_HARDWARE

// ErrNotBound is returned by ReadBatch before a successful Bind.
var ErrNotBound = errors.New("socketcan: socket not bound")

var aLongTimeAgo = time.Unix(1, 0)

// Device is a raw CAN socket implementing transport.Transport.
type Device struct {
	fd     int
	ifName string
	file   *os.File
	rc     syscall.RawConn
	oob    []byte
}

// New returns an unopened Device.
func New() *Device { return &Device{fd: -1} }

// Factory is a transport.Factory producing raw CAN sockets.
func Factory() transport.Transport { return New() }

// Open creates a non-blocking CAN_RAW socket with kernel RX timestamping enabled.
func (d *Device) Open() error {
	if d.fd >= 0 {
		return nil
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING, timestampingFlags); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("enable timestamping: %w", err)
	}
	d.fd = fd
	d.oob = make([]byte, unix.CmsgSpace(3*timespecSize))
	return nil
}

// EnableFD switches the socket to accept CAN FD frames. Must precede Bind.
func (d *Device) EnableFD() error {
	if err := unix.SetsockoptInt(d.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
		return fmt.Errorf("enable CAN FD: %w", err)
	}
	return nil
}

// Index resolves the kernel interface index for name.
func (d *Device) Index(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("if %q: %w", name, err)
	}
	d.ifName = name
	return ifi.Index, nil
}

// Bind attaches the socket to the interface and registers it with the runtime poller.
func (d *Device) Bind(index int) error {
	if err := unix.Bind(d.fd, &unix.SockaddrCAN{Ifindex: index}); err != nil {
		return fmt.Errorf("bind(can@%s): %w", d.ifName, err)
	}
	return d.attach()
}

// attach hands the bound socket to the runtime poller.
func (d *Device) attach() error {
	f := os.NewFile(uintptr(d.fd), "can:"+d.ifName)
	rc, err := f.SyscallConn()
	if err != nil {
		_ = f.Close()
		d.fd = -1
		return fmt.Errorf("syscall conn(can@%s): %w", d.ifName, err)
	}
	d.file, d.rc = f, rc
	return nil
}

// ReadBatch blocks in the runtime poller until the socket is readable or ctx
// is done, then drains up to len(out) frames.
func (d *Device) ReadBatch(ctx context.Context, out []transport.Read) (int, error) {
	if d.file == nil {
		return 0, ErrNotBound
	}
	if len(out) == 0 {
		return 0, nil
	}
	dl, hasDeadline := ctx.Deadline()
	if err := d.file.SetReadDeadline(dl); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}
	// The wake-up must not outlive this call or it cuts the next wait short.
	woken := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = d.file.SetReadDeadline(aLongTimeAgo)
		close(woken)
	})
	defer func() {
		if !stop() {
			<-woken
		}
	}()

	n := 0
	var opErr error
	err := d.rc.Read(func(fd uintptr) bool {
		for n < len(out) {
			r := &out[n]
			nr, oobn, _, _, err := unix.Recvmsg(int(fd), r.Buf[:], d.oob, 0)
			switch {
			case err == unix.EINTR:
				continue
			case err == unix.EAGAIN:
				return n > 0 // nothing yet: park in the poller
			case err != nil:
				opErr = err
				return true
			}
			r.N = nr
			r.Timing = parseTiming(d.oob[:oobn])
			n++
		}
		return true
	})
	if n > 0 {
		return n, nil
	}
	if opErr != nil {
		return 0, fmt.Errorf("recvmsg(can@%s): %w", d.ifName, opErr)
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if hasDeadline && ctx.Err() == nil {
				// The poller can fire just ahead of the context timer.
				<-ctx.Done()
			}
			if cerr := ctx.Err(); cerr != nil {
				return 0, cerr
			}
			return 0, context.DeadlineExceeded
		}
		return 0, err
	}
	return 0, nil
}

// Close releases the socket. Safe to call more than once.
func (d *Device) Close() error {
	switch {
	case d.file != nil:
		err := d.file.Close()
		d.file, d.rc, d.fd = nil, nil, -1
		return err
	case d.fd >= 0:
		err := unix.Close(d.fd)
		d.fd = -1
		return err
	}
	return nil
}

var _ transport.Transport = (*Device)(nil)
