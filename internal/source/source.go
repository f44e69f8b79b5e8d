// Package source implements the CAN bus data source: the lifecycle state
// machine that owns one transport and one acquisition worker.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-can-telemetry/internal/acquisition"
	"github.com/kstaniek/go-can-telemetry/internal/can"
	"github.com/kstaniek/go-can-telemetry/internal/hub"
	"github.com/kstaniek/go-can-telemetry/internal/identity"
	"github.com/kstaniek/go-can-telemetry/internal/logging"
	"github.com/kstaniek/go-can-telemetry/internal/metrics"
	"github.com/kstaniek/go-can-telemetry/internal/sink"
	"github.com/kstaniek/go-can-telemetry/internal/socketcan"
	"github.com/kstaniek/go-can-telemetry/internal/timestamp"
	"github.com/kstaniek/go-can-telemetry/internal/transport"
)

// Source is one CAN data source bound to exactly one interface.
type Source struct {
	id           identity.SourceID
	base         *slog.Logger
	log          *slog.Logger
	newTransport transport.Factory
	strategy     *timestamp.Strategy // overrides the configured timestampType
	clock        func() time.Time
	listeners    *hub.Hub

	mu     sync.Mutex // serializes Initialize, Connect and Disconnect
	ctlMu  sync.Mutex // orders connected sub-state changes with worker commands
	state  atomic.Int32
	cfg    *Config
	buf    *sink.Buffer[can.Record]
	tr     transport.Transport
	cancel context.CancelFunc
	worker atomic.Pointer[acquisition.Worker]
}

// Option configures a Source.
type Option func(*Source)

// WithTransportFactory replaces the SocketCAN transport (tests use transporttest).
func WithTransportFactory(f transport.Factory) Option {
	return func(s *Source) {
		if f != nil {
			s.newTransport = f
		}
	}
}

// WithCounter allocates the identity from c instead of the process counter.
func WithCounter(c *identity.Counter) Option {
	return func(s *Source) {
		if c != nil {
			s.id = c.Next()
		}
	}
}

// WithLogger sets the base logger; the interface name is added on Initialize.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.base = l
		}
	}
}

// WithTimestampStrategy fixes the strategy regardless of the timestampType property.
func WithTimestampStrategy(st timestamp.Strategy) Option {
	return func(s *Source) { s.strategy = &st }
}

// WithClock sets the wall clock used for poll times and resume watermarks.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.clock = now
		}
	}
}

// New constructs an uninitialized Source with a fresh identity.
func New(opts ...Option) *Source {
	s := &Source{
		base:         logging.L(),
		newTransport: socketcan.Factory,
		clock:        time.Now,
		listeners:    hub.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == 0 {
		s.id = identity.Process().Next()
	}
	s.base = s.base.With("source_id", s.id)
	s.log = s.base
	return s
}

// ID returns the identity assigned at construction.
func (s *Source) ID() identity.SourceID { return s.id }

// State returns the current lifecycle state.
func (s *Source) State() State { return State(s.state.Load()) }

// Initialize validates configs and allocates the output sink. It is accepted
// in every state except the connected ones; on failure nothing changes.
func (s *Source) Initialize(configs []DataSourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State().Connected() {
		return ErrAlreadyConnected
	}
	cfg, err := ParseConfig(configs)
	if err != nil {
		metrics.IncError(metrics.ErrSourceConfig)
		s.log.Warn("source_config_invalid", "error", err)
		return err
	}
	s.cfg = cfg
	s.buf = sink.New[can.Record](cfg.MaxNumberOfMessages)
	s.state.Store(int32(Initialized))
	s.log = s.base.With("if", cfg.InterfaceName)
	s.log.Info("source_initialized", "protocol", cfg.ProtocolName, "idle_slice", cfg.IdleSlice(),
		"capacity", cfg.MaxNumberOfMessages, "timestamp", s.timestampStrategy())
	return nil
}

// Connect opens and binds the transport, starts the worker in the sleeping
// state and notifies listeners. Any setup failure leaves the state unchanged.
func (s *Source) Connect() error {
	s.mu.Lock()
	switch st := s.State(); st {
	case Initialized, Disconnected:
	case Uninitialized:
		s.mu.Unlock()
		return ErrNotInitialized
	default:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	l := s.log
	tr := s.newTransport()
	if err := s.setup(tr); err != nil {
		_ = tr.Close()
		s.mu.Unlock()
		metrics.IncError(metrics.ErrSourceSetup)
		l.Error("source_connect_failed", "error", err)
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	w := acquisition.New(acquisition.Config{
		Channel:   s.channel(),
		FD:        s.cfg.FD(),
		IdleSlice: s.cfg.IdleSlice(),
		Strategy:  s.timestampStrategy(),
		Clock:     s.clock,
		Logger:    s.base,
	}, tr, s.buf, s.hooks())
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	s.tr, s.cancel = tr, cancel
	s.worker.Store(w)
	s.state.Store(int32(ConnectedSleeping))
	s.mu.Unlock()

	metrics.AddSourcesConnected(1)
	l.Info("source_connected")
	s.listeners.NotifyConnected(s.id)
	return nil
}

func (s *Source) setup(tr transport.Transport) error {
	if err := tr.Open(); err != nil {
		return err
	}
	if s.cfg.FD() {
		if err := tr.EnableFD(); err != nil {
			return err
		}
	}
	idx, err := tr.Index(s.cfg.InterfaceName)
	if err != nil {
		return err
	}
	return tr.Bind(idx)
}

// Disconnect stops and joins the worker, closes the transport and notifies
// listeners. It fails with ErrNotConnected outside a connected state.
func (s *Source) Disconnect() error {
	s.mu.Lock()
	if !s.State().Connected() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	l := s.log
	w := s.worker.Load()
	w.Stop()
	s.cancel()
	if err := s.tr.Close(); err != nil {
		l.Warn("transport_close_error", "error", err)
	}
	s.tr, s.cancel = nil, nil
	s.state.Store(int32(Disconnected))
	s.mu.Unlock()

	metrics.AddSourcesConnected(-1)
	st := w.Stats()
	l.Info("acquisition_summary",
		"received", st.Received,
		"enqueued", st.Enqueued,
		"discarded", st.Discarded(),
		"malformed", st.Malformed,
		"fallbacks", st.Fallbacks,
		"read_errors", st.ReadErrors,
	)
	l.Info("source_disconnected")
	s.listeners.NotifyDisconnected(s.id)
	return nil
}

// IsAlive reports whether the transport is open and the worker is running.
func (s *Source) IsAlive() bool {
	if !s.State().Connected() {
		return false
	}
	w := s.worker.Load()
	return w != nil && w.Running()
}

// ResumeDataAcquisition starts forwarding frames stamped from now on.
// Outside a connected state it does nothing.
func (s *Source) ResumeDataAcquisition() {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	if !s.transition(ConnectedAcquiring) {
		return
	}
	if w := s.worker.Load(); w != nil {
		w.Resume(s.clock())
	}
}

// SuspendDataAcquisition makes the worker drain and discard frames.
// Outside a connected state it does nothing.
func (s *Source) SuspendDataAcquisition() {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	if !s.transition(ConnectedSleeping) {
		return
	}
	if w := s.worker.Load(); w != nil {
		w.Suspend()
	}
}

// transition moves between the two connected states without the lifecycle
// lock. Callers hold ctlMu so the worker sees commands in state order.
func (s *Source) transition(to State) bool {
	for {
		cur := s.state.Load()
		if !State(cur).Connected() {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// Buffer returns the output sink; nil before the first Initialize.
func (s *Source) Buffer() *sink.Buffer[can.Record] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// Stats returns the counters of the current or most recent connection.
func (s *Source) Stats() acquisition.Stats {
	if w := s.worker.Load(); w != nil {
		return w.Stats()
	}
	return acquisition.Stats{}
}

// Subscribe registers a lifecycle listener.
func (s *Source) Subscribe(l hub.Listener) bool { return s.listeners.Subscribe(l) }

// Unsubscribe removes a lifecycle listener.
func (s *Source) Unsubscribe(l hub.Listener) bool { return s.listeners.Unsubscribe(l) }

// IfName returns the configured interface name (empty before Initialize).
func (s *Source) IfName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return ""
	}
	return s.cfg.InterfaceName
}

// ChannelType reports the bus type of produced records.
func (s *Source) ChannelType() can.ChannelType { return can.ChannelCAN }

// ChannelProtocol reports the access protocol of produced records.
func (s *Source) ChannelProtocol() can.ChannelProtocol { return can.ProtocolRawSocket }

func (s *Source) channel() can.Channel {
	return can.Channel{IfName: s.cfg.InterfaceName, Type: can.ChannelCAN, Protocol: can.ProtocolRawSocket}
}

func (s *Source) timestampStrategy() timestamp.Strategy {
	if s.strategy != nil {
		return *s.strategy
	}
	return s.cfg.Strategy()
}

func (s *Source) hooks() acquisition.Hooks {
	buf := s.buf
	return acquisition.Hooks{
		OnReceive: metrics.IncSocketCANRx,
		OnEnqueue: func() {
			metrics.IncEnqueued()
			metrics.SetSinkDepth(buf.Len())
		},
		OnDiscard:   func(r acquisition.Reason) { metrics.IncDiscarded(r.String()) },
		OnFallback:  metrics.IncTimestampFallback,
		OnReadError: func(error) { metrics.IncError(metrics.ErrSocketCANRead) },
	}
}
