package acquisition

import "sync/atomic"

// Reason labels why a frame did not reach the sink.
type Reason int

const (
	ReasonSleeping Reason = iota
	ReasonStale
	ReasonSinkFull
	ReasonMalformed
)

var reasonNames = [...]string{"sleeping", "stale", "sink_full", "malformed"}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// Reasons lists every discard reason (stable metric label values).
var Reasons = []Reason{ReasonSleeping, ReasonStale, ReasonSinkFull, ReasonMalformed}

// Stats is a point-in-time copy of a worker's counters.
type Stats struct {
	Received   uint64 // frames read from the transport
	Enqueued   uint64
	Sleeping   uint64
	Stale      uint64
	SinkFull   uint64
	Malformed  uint64
	Fallbacks  uint64 // kernel stamp missing, poll time used
	ReadErrors uint64
}

// Discarded returns the total of all discard reasons.
func (s Stats) Discarded() uint64 { return s.Sleeping + s.Stale + s.SinkFull + s.Malformed }

type counters struct {
	received   atomic.Uint64
	enqueued   atomic.Uint64
	fallbacks  atomic.Uint64
	readErrors atomic.Uint64
	discarded  [len(reasonNames)]atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:   c.received.Load(),
		Enqueued:   c.enqueued.Load(),
		Sleeping:   c.discarded[ReasonSleeping].Load(),
		Stale:      c.discarded[ReasonStale].Load(),
		SinkFull:   c.discarded[ReasonSinkFull].Load(),
		Malformed:  c.discarded[ReasonMalformed].Load(),
		Fallbacks:  c.fallbacks.Load(),
		ReadErrors: c.readErrors.Load(),
	}
}
