// Package gate implements the pause/resume filter applied to every received frame.
package gate

import (
	"sync/atomic"
	"time"
)

// Verdict is the outcome of checking one record against the gate.
type Verdict int

const (
	Admit Verdict = iota
	DropSleeping
	DropStale
)

func (v Verdict) String() string {
	switch v {
	case Admit:
		return "admit"
	case DropSleeping:
		return "sleeping"
	case DropStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Gate holds the sleeping flag and the resume watermark. A new Gate is
// sleeping. The two fields are updated independently; the staleness check
// tolerates observing one update before the other.
type Gate struct {
	sleeping  atomic.Bool
	watermark atomic.Int64 // unix nanos of the last resume
}

// New returns a sleeping gate.
func New() *Gate {
	g := &Gate{}
	g.sleeping.Store(true)
	return g
}

// Suspend stops admitting records.
func (g *Gate) Suspend() { g.sleeping.Store(true) }

// Resume admits records again and moves the watermark to at.
func (g *Gate) Resume(at time.Time) {
	g.watermark.Store(at.UnixNano())
	g.sleeping.Store(false)
}

func (g *Gate) Sleeping() bool { return g.sleeping.Load() }

// Watermark returns the instant of the most recent Resume (zero before any).
func (g *Gate) Watermark() time.Time {
	ns := g.watermark.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Check classifies a record timestamped ts. Records strictly older than the
// watermark are stale even when observed after the resume.
func (g *Gate) Check(ts time.Time) Verdict {
	if g.sleeping.Load() {
		return DropSleeping
	}
	if ts.UnixNano() < g.watermark.Load() {
		return DropStale
	}
	return Admit
}
