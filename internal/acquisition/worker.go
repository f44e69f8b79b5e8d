// Package acquisition runs the per-source read loop: wait, read a batch,
// classify, timestamp, gate and enqueue.
package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-can-telemetry/internal/can"
	"github.com/kstaniek/go-can-telemetry/internal/gate"
	"github.com/kstaniek/go-can-telemetry/internal/logging"
	"github.com/kstaniek/go-can-telemetry/internal/sink"
	"github.com/kstaniek/go-can-telemetry/internal/timestamp"
	"github.com/kstaniek/go-can-telemetry/internal/transport"
)

const (
	// BatchSize is the maximum number of frames taken from the kernel per wake.
	BatchSize = 10
	// DefaultIdleSlice bounds each wait when no data or command arrives.
	DefaultIdleSlice = 1000 * time.Millisecond

	rxBackoffMin = 20 * time.Millisecond
	rxBackoffMax = 500 * time.Millisecond
)

// Config is the immutable per-worker configuration.
type Config struct {
	Channel   can.Channel
	FD        bool
	IdleSlice time.Duration
	Strategy  timestamp.Strategy
	Clock     func() time.Time // poll time source; time.Now if nil
	Logger    *slog.Logger
}

// Hooks observe the loop without owning any of its state. All are optional
// and are called from the worker goroutine.
type Hooks struct {
	OnReceive   func()
	OnEnqueue   func()
	OnDiscard   func(Reason)
	OnFallback  func()
	OnReadError func(error)
}

// Worker is the acquisition loop of one source. It owns no transport setup;
// the caller opens and binds the transport and closes it after Stop.
type Worker struct {
	cfg   Config
	tr    transport.Transport
	out   *sink.Buffer[can.Record]
	gate  *gate.Gate
	hooks Hooks
	log   *slog.Logger
	box   *mailbox
	stats counters

	running  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// New builds a sleeping worker. Call Start to launch the loop.
func New(cfg Config, tr transport.Transport, out *sink.Buffer[can.Record], hooks Hooks) *Worker {
	if cfg.IdleSlice <= 0 {
		cfg.IdleSlice = DefaultIdleSlice
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	l := cfg.Logger
	if l == nil {
		l = logging.L()
	}
	return &Worker{
		cfg:   cfg,
		tr:    tr,
		out:   out,
		gate:  gate.New(),
		hooks: hooks,
		log:   l.With("if", cfg.Channel.IfName),
		box:   newMailbox(),
		done:  make(chan struct{}),
	}
}

// Start launches the loop goroutine. ctx cancellation also ends the loop.
func (w *Worker) Start(ctx context.Context) {
	w.running.Store(true)
	go w.run(ctx)
}

// Stop asks the loop to exit and waits for it. The wait is bounded by one
// idle slice plus one batch read.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.stopping.Store(true)
		w.box.post(command{kind: cmdStop})
	})
	<-w.done
}

// Suspend makes the loop discard every frame it reads.
func (w *Worker) Suspend() { w.box.post(command{kind: cmdSuspend}) }

// Resume admits frames stamped at or after at.
func (w *Worker) Resume(at time.Time) { w.box.post(command{kind: cmdResume, at: at}) }

// Running reports whether the loop is running and no stop was requested.
func (w *Worker) Running() bool { return w.running.Load() && !w.stopping.Load() }

// Done is closed when the loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) Stats() Stats { return w.stats.snapshot() }

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.running.Store(false)
	w.log.Debug("acquisition_started", "idle_slice", w.cfg.IdleSlice, "fd", w.cfg.FD, "timestamp", w.cfg.Strategy)
	defer w.log.Debug("acquisition_stopped")

	reads := make([]transport.Read, BatchSize)
	backoff := time.Duration(0)
	for {
		waitCtx, release := w.box.arm(ctx, w.cfg.IdleSlice)
		n, err := w.tr.ReadBatch(waitCtx, reads)
		pollTime := w.cfg.Clock()
		waitEnded := waitCtx.Err() != nil
		release()

		if !w.apply(w.box.take()) || ctx.Err() != nil {
			return
		}
		if n > 0 {
			w.process(reads[:n], pollTime)
			backoff = 0
		}
		if err == nil || (waitEnded && isWaitEnd(err)) {
			continue
		}
		w.stats.readErrors.Add(1)
		if w.hooks.OnReadError != nil {
			w.hooks.OnReadError(err)
		}
		backoff = nextBackoff(backoff)
		w.log.Warn("socketcan_read_error", "error", err, "backoff", backoff)
		if !w.pause(ctx, backoff) {
			return
		}
	}
}

// apply executes control commands in order; false means stop.
func (w *Worker) apply(cmds []command) bool {
	for _, c := range cmds {
		switch c.kind {
		case cmdStop:
			return false
		case cmdSuspend:
			w.gate.Suspend()
		case cmdResume:
			w.gate.Resume(c.at)
		}
	}
	return true
}

func (w *Worker) process(reads []transport.Read, pollTime time.Time) {
	for i := range reads {
		r := &reads[i]
		w.stats.received.Add(1)
		if w.hooks.OnReceive != nil {
			w.hooks.OnReceive()
		}
		var fr can.Frame
		if _, err := can.Decode(r.Bytes(), w.cfg.FD, &fr); err != nil {
			w.log.Debug("frame_malformed", "error", err)
			w.discard(ReasonMalformed)
			continue
		}
		ts, fallback := w.cfg.Strategy.Resolve(r.Timing, pollTime)
		if fallback {
			w.stats.fallbacks.Add(1)
			if w.hooks.OnFallback != nil {
				w.hooks.OnFallback()
			}
		}
		switch w.gate.Check(ts) {
		case gate.DropSleeping:
			w.discard(ReasonSleeping)
		case gate.DropStale:
			w.discard(ReasonStale)
		default:
			if !w.out.TryPush(can.NewRecord(&fr, ts, w.cfg.Channel)) {
				w.discard(ReasonSinkFull)
				continue
			}
			w.stats.enqueued.Add(1)
			if w.hooks.OnEnqueue != nil {
				w.hooks.OnEnqueue()
			}
		}
	}
}

func (w *Worker) discard(r Reason) {
	w.stats.discarded[r].Add(1)
	if w.hooks.OnDiscard != nil {
		w.hooks.OnDiscard(r)
	}
}

// pause sleeps for min(d, idle slice) or until a command is posted.
func (w *Worker) pause(ctx context.Context, d time.Duration) bool {
	if d > w.cfg.IdleSlice {
		d = w.cfg.IdleSlice
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-w.box.signal:
	case <-ctx.Done():
		return false
	}
	return true
}

func nextBackoff(cur time.Duration) time.Duration {
	if cur < rxBackoffMin {
		return rxBackoffMin
	}
	cur *= 2
	if cur > rxBackoffMax {
		cur = rxBackoffMax
	}
	return cur
}

func isWaitEnd(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
