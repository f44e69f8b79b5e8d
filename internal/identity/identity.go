// Package identity allocates process-unique data source identifiers.
package identity

import (
	"strconv"
	"sync/atomic"
)

// SourceID identifies one data source instance. Values are never reused by
// the Counter that issued them.
type SourceID uint64

func (id SourceID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Counter hands out monotonically increasing identifiers. The zero value is
// ready to use; the first identifier issued is 1.
type Counter struct {
	last atomic.Uint64
}

// Next returns a fresh identifier. Safe for concurrent use.
func (c *Counter) Next() SourceID { return SourceID(c.last.Add(1)) }

// Last returns the most recently issued identifier (0 if none).
func (c *Counter) Last() SourceID { return SourceID(c.last.Load()) }

var process Counter

// Process returns the process-wide counter used when no counter is injected.
func Process() *Counter { return &process }
