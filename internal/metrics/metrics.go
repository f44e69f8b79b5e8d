package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-can-telemetry/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	SocketCANRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socketcan_rx_frames_total",
		Help: "Total CAN frames read from SocketCAN interfaces (including discarded ones).",
	})
	EnqueuedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acquisition_enqueued_frames_total",
		Help: "Total CAN records pushed to output sinks.",
	})
	DiscardedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acquisition_discarded_frames_total",
		Help: "Total CAN frames read but not enqueued, by reason.",
	}, []string{"reason"})
	TimestampFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timestamp_fallback_total",
		Help: "Total frames whose kernel timestamp was missing and poll time was used.",
	})
	SourcesConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sources_connected",
		Help: "Current number of connected data sources.",
	})
	SinkDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sink_depth",
		Help: "Records waiting in the output sink at the last sample.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (unexpected read length).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrSocketCANRead = "socketcan_read"
	ErrSourceSetup   = "source_setup"
	ErrSourceConfig  = "source_config"
)

// Discard reason label values, kept in sync with acquisition.Reason names.
var discardReasons = []string{"sleeping", "stale", "sink_full", "malformed"}

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: Handler(),
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Handler returns the mux serving /metrics and /ready.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
	return mux
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localRx        atomic.Uint64
	localEnqueued  atomic.Uint64
	localDiscarded atomic.Uint64
	localFallback  atomic.Uint64
	localErrors    atomic.Uint64
	localMalformed atomic.Uint64
	localSources   atomic.Int64
	localSinkDepth atomic.Uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	SocketCANRx uint64
	Enqueued    uint64
	Discarded   uint64 // sum across reasons
	Fallbacks   uint64
	Errors      uint64 // sum across error labels
	Malformed   uint64
	Sources     int64
	SinkDepth   uint64
}

func Snap() Snapshot {
	return Snapshot{
		SocketCANRx: localRx.Load(),
		Enqueued:    localEnqueued.Load(),
		Discarded:   localDiscarded.Load(),
		Fallbacks:   localFallback.Load(),
		Errors:      localErrors.Load(),
		Malformed:   localMalformed.Load(),
		Sources:     localSources.Load(),
		SinkDepth:   localSinkDepth.Load(),
	}
}

// IncSocketCANRx increments SocketCAN receive counters.
func IncSocketCANRx() {
	SocketCANRxFrames.Inc()
	localRx.Add(1)
}

func IncEnqueued() {
	EnqueuedFrames.Inc()
	localEnqueued.Add(1)
}

// IncDiscarded counts one discarded frame. Malformed frames are also counted
// in malformed_frames_total.
func IncDiscarded(reason string) {
	DiscardedFrames.WithLabelValues(reason).Inc()
	localDiscarded.Add(1)
	if reason == "malformed" {
		IncMalformed()
	}
}

func IncTimestampFallback() {
	TimestampFallbacks.Inc()
	localFallback.Add(1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	localErrors.Add(1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	localMalformed.Add(1)
}

// AddSourcesConnected adjusts the connected sources gauge by delta.
func AddSourcesConnected(delta int) {
	SourcesConnected.Add(float64(delta))
	localSources.Add(int64(delta))
}

func SetSinkDepth(n int) {
	SinkDepth.Set(float64(n))
	localSinkDepth.Store(uint64(n))
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register label series so the first event does not pay registration latency.
	for _, lbl := range []string{ErrSocketCANRead, ErrSourceSetup, ErrSourceConfig} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, r := range discardReasons {
		DiscardedFrames.WithLabelValues(r).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
