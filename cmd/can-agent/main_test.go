package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/kstaniek/go-can-telemetry/internal/can"
	"github.com/kstaniek/go-can-telemetry/internal/logging"
	"github.com/kstaniek/go-can-telemetry/internal/sink"
)

type recordingControl struct{ calls []string }

func (r *recordingControl) SuspendDataAcquisition() { r.calls = append(r.calls, "suspend") }
func (r *recordingControl) ResumeDataAcquisition()  { r.calls = append(r.calls, "resume") }

func TestWaitForShutdownTogglesAcquisition(t *testing.T) {
	sigCh := make(chan os.Signal, 4)
	sigCh <- syscall.SIGUSR1
	sigCh <- syscall.SIGUSR2
	sigCh <- syscall.SIGTERM
	sigCh <- syscall.SIGUSR1 // after shutdown, must not be handled
	ctl := &recordingControl{}

	waitForShutdown(sigCh, ctl, logging.Discard())

	if !slices.Equal(ctl.calls, []string{"suspend", "resume"}) {
		t.Fatalf("unexpected calls %v", ctl.calls)
	}
	if len(sigCh) != 1 {
		t.Fatalf("signals after shutdown must stay unread, %d left", len(sigCh))
	}
}

func TestNotifySignalsQueuesControlSignals(t *testing.T) {
	sigCh := notifySignals()
	defer signal.Stop(sigCh)
	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case s := <-sigCh:
		if s != syscall.SIGUSR1 {
			t.Fatalf("expected SIGUSR1, got %v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("SIGUSR1 not delivered to the channel")
	}
}

func TestConsumerDrainsSink(t *testing.T) {
	buf := sink.New[can.Record](8)
	c := newConsumer(buf, logging.Discard(), true)
	for id := uint32(1); id <= 3; id++ {
		buf.TryPush(can.Record{ID: id, Data: []byte{byte(id)}})
	}
	for i := 0; i < 3; i++ {
		r, _ := buf.TryPop()
		c.handle(r)
	}
	if c.consumed.Load() != 3 {
		t.Fatalf("consumed %d records", c.consumed.Load())
	}
}

func TestConsumerStopsOnCancel(t *testing.T) {
	buf := sink.New[can.Record](8)
	c := newConsumer(buf, logging.Discard(), false)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	c.start(ctx, &wg)
	buf.TryPush(can.Record{ID: 7})
	deadline := time.Now().Add(2 * time.Second)
	for c.consumed.Load() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("record not consumed")
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	wg.Wait()
}

func TestPortFromAddr(t *testing.T) {
	cases := []struct {
		addr string
		want int
		ok   bool
	}{
		{":9100", 9100, true},
		{"127.0.0.1:8080", 8080, true},
		{"[::1]:443", 443, true},
		{"9100", 0, false},
		{":0", 0, false},
		{":http", 0, false},
	}
	for _, tc := range cases {
		got, err := portFromAddr(tc.addr)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("portFromAddr(%q) = %d, %v", tc.addr, got, err)
		}
	}
}

func TestMDNSMetaAndInstance(t *testing.T) {
	c := baseConfig()
	c.mdnsName = "bench-agent"
	if mdnsInstance(c) != "bench-agent" {
		t.Fatalf("explicit instance name ignored")
	}
	c.mdnsName = ""
	host, _ := os.Hostname()
	if mdnsInstance(c) != "can-agent-"+host {
		t.Fatalf("default instance: %q", mdnsInstance(c))
	}
	meta := mdnsMeta(c)
	if !slices.Contains(meta, "if=vcan0") || !slices.Contains(meta, "protocol=CAN") {
		t.Fatalf("meta: %v", meta)
	}
}

func TestStartMDNSDisabledIsNoop(t *testing.T) {
	cleanup, err := startMDNS(t.Context(), baseConfig(), 9100)
	if err != nil || cleanup == nil {
		t.Fatalf("disabled mdns: cleanup=%v err=%v", cleanup != nil, err)
	}
	cleanup()
}
