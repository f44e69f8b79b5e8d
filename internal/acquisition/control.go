package acquisition

import (
	"context"
	"sync"
	"time"
)

type cmdKind int

const (
	cmdStop cmdKind = iota
	cmdSuspend
	cmdResume
)

type command struct {
	kind cmdKind
	at   time.Time // resume watermark
}

// mailbox is the single-consumer control channel of one worker. Posting never
// blocks; it cancels the worker's armed wait so the command is seen within
// one read, not one idle slice.
type mailbox struct {
	mu      sync.Mutex
	pending []command
	cancel  context.CancelFunc
	signal  chan struct{}
}

func newMailbox() *mailbox { return &mailbox{signal: make(chan struct{}, 1)} }

func (m *mailbox) post(c command) {
	m.mu.Lock()
	m.pending = append(m.pending, c)
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// arm returns a wait context bounded by timeout that the next post cancels.
// With commands already pending the context is returned canceled.
func (m *mailbox) arm(parent context.Context, timeout time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	m.mu.Lock()
	if len(m.pending) > 0 {
		cancel()
	} else {
		m.cancel = cancel
	}
	m.mu.Unlock()
	return ctx, func() {
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
		cancel()
	}
}

// take drains pending commands in posting order.
func (m *mailbox) take() []command {
	m.mu.Lock()
	cmds := m.pending
	m.pending = nil
	m.mu.Unlock()
	select {
	case <-m.signal:
	default:
	}
	return cmds
}
