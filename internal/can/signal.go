package can

import (
	"errors"
	"fmt"
	"time"
)

// ValueKind tags the member stored inside a PhysicalValue.
type ValueKind uint8

const (
	ValueFloat64 ValueKind = iota
	ValueUint64
	ValueInt64
)

func (k ValueKind) String() string {
	switch k {
	case ValueUint64:
		return "uint64"
	case ValueInt64:
		return "int64"
	case ValueFloat64:
		return "float64"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// ErrKindMismatch is returned when a value is read or validated as the wrong kind.
var ErrKindMismatch = errors.New("can: value kind mismatch")

// PhysicalValue is a tagged variant. Fields are unexported; only the accessor
// matching Kind succeeds.
type PhysicalValue struct {
	kind ValueKind
	u    uint64
	i    int64
	f    float64
}

func Uint64Value(v uint64) PhysicalValue   { return PhysicalValue{kind: ValueUint64, u: v} }
func Int64Value(v int64) PhysicalValue     { return PhysicalValue{kind: ValueInt64, i: v} }
func Float64Value(v float64) PhysicalValue { return PhysicalValue{kind: ValueFloat64, f: v} }

// Kind returns the tag of the stored member.
func (p PhysicalValue) Kind() ValueKind { return p.kind }

func (p PhysicalValue) Uint64() (uint64, bool) { return p.u, p.kind == ValueUint64 }

func (p PhysicalValue) Int64() (int64, bool) { return p.i, p.kind == ValueInt64 }

func (p PhysicalValue) Float64() (float64, bool) { return p.f, p.kind == ValueFloat64 }

func (p PhysicalValue) String() string {
	switch p.kind {
	case ValueUint64:
		return fmt.Sprintf("%d", p.u)
	case ValueInt64:
		return fmt.Sprintf("%d", p.i)
	default:
		return fmt.Sprintf("%g", p.f)
	}
}

// DecodedSignal is one engineering value extracted from a frame payload.
// Kind repeats the value tag so consumers can cross-check it.
type DecodedSignal struct {
	SignalID uint32
	RawValue int64
	Physical PhysicalValue
	Kind     ValueKind
}

// NewDecodedSignal builds a signal whose redundant kind agrees with the value.
func NewDecodedSignal(id uint32, raw int64, v PhysicalValue) DecodedSignal {
	return DecodedSignal{SignalID: id, RawValue: raw, Physical: v, Kind: v.Kind()}
}

// Validate reports ErrKindMismatch when the recorded kind disagrees with the value tag.
func (s DecodedSignal) Validate() error {
	if s.Kind != s.Physical.Kind() {
		return fmt.Errorf("%w: signal %d declares %s, holds %s", ErrKindMismatch, s.SignalID, s.Kind, s.Physical.Kind())
	}
	return nil
}

// DecodedMessage wraps a record with the signals a downstream decoder attached.
// This engine ships records only; Signals is populated later in the pipeline.
type DecodedMessage struct {
	Record       Record
	Signals      []DecodedSignal
	DecodingTime time.Time
}

// Validate checks every attached signal.
func (m *DecodedMessage) Validate() error {
	for _, s := range m.Signals {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
