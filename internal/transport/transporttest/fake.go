// Package transporttest provides a deterministic in-memory Transport.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-can-telemetry/internal/can"
	"github.com/kstaniek/go-can-telemetry/internal/timestamp"
	"github.com/kstaniek/go-can-telemetry/internal/transport"
)

// Step names a setup call that can be made to fail.
type Step int

const (
	StepOpen Step = iota
	StepEnableFD
	StepIndex
	StepBind
)

var (
	// ErrInjected is returned by a step configured to fail.
	ErrInjected = errors.New("transporttest: injected failure")
	// ErrNoSuchInterface is returned by Index for unknown interface names.
	ErrNoSuchInterface = errors.New("transporttest: no such interface")
	// ErrClosed is returned by ReadBatch after Close.
	ErrClosed = errors.New("transporttest: closed")
)

// Fake is an in-memory Transport. Frames pushed with Push are returned by
// ReadBatch in order. The zero value is not usable; call New.
type Fake struct {
	mu         sync.Mutex
	interfaces map[string]int
	fail       map[Step]error
	readErrs   []error

	frames chan transport.Read
	done   chan struct{}

	opened    atomic.Bool
	closed    atomic.Bool
	fdEnabled atomic.Bool
	bound     atomic.Int64
	reads     atomic.Int64
}

// New creates a Fake knowing the given interfaces (indexes start at 1).
func New(interfaces ...string) *Fake {
	f := &Fake{
		interfaces: make(map[string]int, len(interfaces)),
		fail:       make(map[Step]error),
		frames:     make(chan transport.Read, 1024),
		done:       make(chan struct{}),
	}
	for i, name := range interfaces {
		f.interfaces[name] = i + 1
	}
	f.bound.Store(-1)
	return f
}

// Factory returns a transport.Factory that always yields f.
func (f *Fake) Factory() transport.Factory { return func() transport.Transport { return f } }

// FailAt makes the given setup step return err (ErrInjected if nil).
func (f *Fake) FailAt(s Step, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	f.fail[s] = err
	f.mu.Unlock()
}

// FailReads queues errors returned by subsequent ReadBatch calls before any frame.
func (f *Fake) FailReads(errs ...error) {
	f.mu.Lock()
	f.readErrs = append(f.readErrs, errs...)
	f.mu.Unlock()
}

// Push queues a raw frame with its timing metadata.
func (f *Fake) Push(raw []byte, t timestamp.Timing) {
	var r transport.Read
	r.N = copy(r.Buf[:], raw)
	r.Timing = t
	f.frames <- r
}

// PushFrame encodes fr as a classic or FD wire frame and queues it.
func (f *Fake) PushFrame(fr can.Frame, kind can.Kind, t timestamp.Timing) {
	f.Push(can.Encode(fr, kind), t)
}

// Pending returns the number of queued frames not yet read.
func (f *Fake) Pending() int { return len(f.frames) }

// ReadCount returns the number of frames handed out by ReadBatch.
func (f *Fake) ReadCount() int64 { return f.reads.Load() }

// Opened reports whether Open succeeded and Close was not called since.
func (f *Fake) Opened() bool { return f.opened.Load() && !f.closed.Load() }

// Closed reports whether Close was called.
func (f *Fake) Closed() bool { return f.closed.Load() }

// FDEnabled reports whether EnableFD was called successfully.
func (f *Fake) FDEnabled() bool { return f.fdEnabled.Load() }

// BoundIndex returns the bound interface index or -1.
func (f *Fake) BoundIndex() int { return int(f.bound.Load()) }

func (f *Fake) stepErr(s Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[s]
}

func (f *Fake) Open() error {
	if err := f.stepErr(StepOpen); err != nil {
		return err
	}
	if f.closed.Load() {
		// reopen after Close
		f.mu.Lock()
		f.done = make(chan struct{})
		f.mu.Unlock()
		f.closed.Store(false)
	}
	f.opened.Store(true)
	return nil
}

func (f *Fake) EnableFD() error {
	if err := f.stepErr(StepEnableFD); err != nil {
		return err
	}
	f.fdEnabled.Store(true)
	return nil
}

func (f *Fake) Index(name string) (int, error) {
	if err := f.stepErr(StepIndex); err != nil {
		return 0, err
	}
	f.mu.Lock()
	idx, ok := f.interfaces[name]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	return idx, nil
}

func (f *Fake) Bind(index int) error {
	if err := f.stepErr(StepBind); err != nil {
		return err
	}
	f.bound.Store(int64(index))
	return nil
}

func (f *Fake) ReadBatch(ctx context.Context, out []transport.Read) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	f.mu.Lock()
	done := f.done
	if len(f.readErrs) > 0 {
		err := f.readErrs[0]
		f.readErrs = f.readErrs[1:]
		f.mu.Unlock()
		return 0, err
	}
	f.mu.Unlock()

	select {
	case r := <-f.frames:
		out[0] = r
	case <-done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	n := 1
	for n < len(out) {
		select {
		case r := <-f.frames:
			out[n] = r
			n++
		default:
			f.reads.Add(int64(n))
			return n, nil
		}
	}
	f.reads.Add(int64(n))
	return n, nil
}

func (f *Fake) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	f.mu.Lock()
	close(f.done)
	f.mu.Unlock()
	return nil
}

var _ transport.Transport = (*Fake)(nil)
