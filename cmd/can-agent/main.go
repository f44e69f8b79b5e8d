package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kstaniek/go-can-telemetry/internal/metrics"
	"github.com/kstaniek/go-can-telemetry/internal/source"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("can-agent %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Registered before Connect so early control signals queue instead of killing the process.
	sigCh := notifySignals()
	defer signal.Stop(sigCh)
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	configs, err := cfg.resolveSources()
	if err != nil {
		l.Error("source_config_error", "error", err)
		os.Exit(1)
	}
	src := source.New(source.WithLogger(l))
	if err := src.Initialize(configs); err != nil {
		l.Error("source_init_error", "error", err)
		os.Exit(1)
	}

	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil && src.IsAlive() })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
		if cfg.mdnsEnable {
			startAdvertisement(ctx, cfg, l, &wg)
		}
	}

	if err := src.Connect(); err != nil {
		l.Error("source_connect_error", "error", err)
		cancel()
		wg.Wait()
		os.Exit(1)
	}
	newConsumer(src.Buffer(), l, cfg.logRecords).start(ctx, &wg)
	if cfg.acquire {
		src.ResumeDataAcquisition()
		l.Info("acquisition_resumed", "if", src.IfName())
	}

	waitForShutdown(sigCh, src, l)
	if err := src.Disconnect(); err != nil {
		l.Warn("source_disconnect_error", "error", err)
	}
	cancel()
	wg.Wait()
}

// notifySignals subscribes to shutdown and acquisition control signals.
func notifySignals() chan os.Signal {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	return sigCh
}

// acquisitionControl is the part of the source driven by signals.
type acquisitionControl interface {
	SuspendDataAcquisition()
	ResumeDataAcquisition()
}

// waitForShutdown toggles acquisition on SIGUSR1 (suspend) and SIGUSR2
// (resume) and returns on any other signal.
func waitForShutdown(sigCh <-chan os.Signal, src acquisitionControl, l *slog.Logger) {
	for s := range sigCh {
		switch s {
		case syscall.SIGUSR1:
			src.SuspendDataAcquisition()
			l.Info("acquisition_suspended", "signal", s.String())
		case syscall.SIGUSR2:
			src.ResumeDataAcquisition()
			l.Info("acquisition_resumed", "signal", s.String())
		default:
			l.Info("shutdown_signal", "signal", s.String())
			return
		}
	}
}

// startAdvertisement announces the metrics endpoint until ctx is done.
func startAdvertisement(ctx context.Context, cfg *appConfig, l *slog.Logger, wg *sync.WaitGroup) {
	port, err := portFromAddr(cfg.metricsAddr)
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
		return
	}
	cleanupMDNS, err := startMDNS(ctx, cfg, port)
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
		return
	}
	l.Info("mdns_started", "service", mdnsServiceType, "name", mdnsInstance(cfg), "port", port)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		cleanupMDNS()
	}()
}
