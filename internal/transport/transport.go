// Package transport defines the bus endpoint capability consumed by the
// acquisition loop. The Linux raw-socket implementation lives in
// internal/socketcan; tests use transporttest.Fake.
package transport

import (
	"context"

	"github.com/kstaniek/go-can-telemetry/internal/can"
	"github.com/kstaniek/go-can-telemetry/internal/timestamp"
)

// Read is one raw frame as delivered by the OS together with its timing metadata.
type Read struct {
	Buf    [can.CANFD_MTU]byte
	N      int
	Timing timestamp.Timing
}

// Bytes returns the received portion of Buf.
func (r *Read) Bytes() []byte { return r.Buf[:r.N] }

// Transport is a single bus endpoint. Setup steps are called in order
// Open, EnableFD (optional), Index, Bind; any error aborts the sequence.
type Transport interface {
	Open() error
	EnableFD() error
	Index(name string) (int, error)
	Bind(index int) error
	// ReadBatch waits until at least one frame is available, ctx is done, or
	// the transport fails, then fills up to len(out) reads without blocking
	// further. It returns ctx.Err() when the wait ended without data.
	ReadBatch(ctx context.Context, out []Read) (int, error)
	Close() error
}

// Factory creates an unopened Transport. One is created per Connect.
type Factory func() Transport
