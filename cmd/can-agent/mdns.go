package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

// mdnsServiceType is the advertised service; the port is the metrics endpoint.
const mdnsServiceType = "_can-telemetry._tcp"

// startMDNS registers the service via mDNS and returns a cleanup function.
// It is safe to call even if disabled (no-op).
func startMDNS(ctx context.Context, cfg *appConfig, port int) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	svc, err := zeroconf.Register(mdnsInstance(cfg), mdnsServiceType, "local.", port, mdnsMeta(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}

func mdnsInstance(cfg *appConfig) string {
	if cfg.mdnsName != "" {
		return cfg.mdnsName
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("can-agent-%s", host)
}

func mdnsMeta(cfg *appConfig) []string {
	return []string{
		"if=" + cfg.canIf,
		"protocol=" + cfg.protocol,
		"version=" + version,
		"commit=" + commit,
	}
}

// portFromAddr extracts the numeric port of host:port or :port.
func portFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return n, nil
}
