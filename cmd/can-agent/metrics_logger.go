package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-can-telemetry/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"socketcan_rx", snap.SocketCANRx,
					"enqueued", snap.Enqueued,
					"discarded", snap.Discarded,
					"malformed", snap.Malformed,
					"timestamp_fallbacks", snap.Fallbacks,
					"sink_depth", snap.SinkDepth,
					"sources", snap.Sources,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
