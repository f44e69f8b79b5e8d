//go:build !linux

package socketcan

import (
	"context"
	"errors"

	"github.com/kstaniek/go-can-telemetry/internal/transport"
)

// ErrUnsupported is returned by every Device method on non-Linux builds.
var ErrUnsupported = errors.New("socketcan: only supported on linux")

// ErrNotBound mirrors the linux sentinel so callers compile everywhere.
var ErrNotBound = errors.New("socketcan: socket not bound")

// Device is a placeholder; SocketCAN requires Linux.
type Device struct{}

func New() *Device { return &Device{} }

func Factory() transport.Transport { return New() }

func (d *Device) Open() error { return ErrUnsupported }
func (d *Device) EnableFD() error { return ErrUnsupported }
func (d *Device) Index(string) (int, error) { return 0, ErrUnsupported }
func (d *Device) Bind(int) error { return ErrUnsupported }
func (d *Device) Close() error { return nil }
func (d *Device) ReadBatch(context.Context, []transport.Read) (int, error) {
	return 0, ErrUnsupported
}

var _ transport.Transport = (*Device)(nil)
