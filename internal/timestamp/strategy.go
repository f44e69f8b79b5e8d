// Package timestamp selects the reception time attached to each CAN record.
package timestamp

import (
	"errors"
	"fmt"
	"time"
)

// Strategy selects where a record's reception time comes from.
type Strategy int

const (
	// KernelSoftware uses the kernel's software RX stamp. Default: works on
	// every interface and tracks wall-clock time.
	KernelSoftware Strategy = iota
	// KernelHardware uses the raw hardware stamp. Not guaranteed to be
	// wall-clock aligned, so opt-in only.
	KernelHardware
	// Polling uses the wall-clock time at which the frame was read.
	Polling
)

// ErrUnknownStrategy is returned by Parse for unsupported names.
var ErrUnknownStrategy = errors.New("timestamp: unknown strategy")

// Parse maps configuration names to strategies.
func Parse(name string) (Strategy, error) {
	switch name {
	case "Software":
		return KernelSoftware, nil
	case "Hardware":
		return KernelHardware, nil
	case "Polling":
		return Polling, nil
	default:
		return KernelSoftware, fmt.Errorf("%w: %q (use Software|Hardware|Polling)", ErrUnknownStrategy, name)
	}
}

func (s Strategy) String() string {
	switch s {
	case KernelSoftware:
		return "Software"
	case KernelHardware:
		return "Hardware"
	case Polling:
		return "Polling"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Timing is the ancillary timing metadata delivered with one read.
// A zero field means the kernel did not populate that stamp.
type Timing struct {
	Software time.Time
	Hardware time.Time
}

// Resolve returns the timestamp for a frame read at pollTime. Kernel
// strategies fall back to pollTime when their stamp is absent; fallback
// reports whether that happened.
func (s Strategy) Resolve(t Timing, pollTime time.Time) (ts time.Time, fallback bool) {
	switch s {
	case KernelSoftware:
		if usable(t.Software) {
			return t.Software, false
		}
	case KernelHardware:
		if usable(t.Hardware) {
			return t.Hardware, false
		}
	case Polling:
		return pollTime, false
	}
	return pollTime, true
}

func usable(ts time.Time) bool { return !ts.IsZero() && ts.UnixNano() != 0 }
