package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-can-telemetry/internal/can"
	"github.com/kstaniek/go-can-telemetry/internal/metrics"
	"github.com/kstaniek/go-can-telemetry/internal/sink"
)

// consumer stands in for the downstream decoding stage: it drains the sink
// and wraps every record as a message without decoded signals.
type consumer struct {
	buf        *sink.Buffer[can.Record]
	log        *slog.Logger
	logRecords bool
	now        func() time.Time
	consumed   atomic.Uint64
}

func newConsumer(buf *sink.Buffer[can.Record], l *slog.Logger, logRecords bool) *consumer {
	return &consumer{buf: buf, log: l, logRecords: logRecords, now: time.Now}
}

func (c *consumer) start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case r := <-c.buf.C():
				c.handle(r)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *consumer) handle(r can.Record) {
	msg := can.DecodedMessage{Record: r, DecodingTime: c.now()}
	if err := msg.Validate(); err != nil {
		c.log.Warn("record_invalid", "id", r.ID, "error", err)
		return
	}
	c.consumed.Add(1)
	metrics.SetSinkDepth(c.buf.Len())
	if c.logRecords {
		c.log.Debug("record",
			"id", r.RawID(),
			"extended", r.Extended(),
			"len", len(r.Data),
			"ts", r.Timestamp,
			"if", r.Channel.IfName,
		)
	}
}
