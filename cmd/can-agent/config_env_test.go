package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	c := baseConfig()
	t.Setenv("CAN_AGENT_IF", "can1")
	t.Setenv("CAN_AGENT_PROTOCOL", "CAN-FD")
	t.Setenv("CAN_AGENT_IDLE_TIME", "100ms")
	t.Setenv("CAN_AGENT_BUFFER", "42")
	t.Setenv("CAN_AGENT_ACQUIRE", "off")
	t.Setenv("CAN_AGENT_MDNS_ENABLE", "true")
	t.Setenv("CAN_AGENT_METRICS", ":9100")
	t.Setenv("CAN_AGENT_LOG_METRICS_INTERVAL", "5s")

	require.NoError(t, applyEnvOverrides(c, map[string]struct{}{}))
	require.Equal(t, "can1", c.canIf)
	require.Equal(t, "CAN-FD", c.protocol)
	require.Equal(t, 100*time.Millisecond, c.idleTime)
	require.Equal(t, 42, c.capacity)
	require.False(t, c.acquire)
	require.True(t, c.mdnsEnable)
	require.Equal(t, ":9100", c.metricsAddr)
	require.Equal(t, 5*time.Second, c.logMetricsEvery)
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	c := baseConfig()
	t.Setenv("CAN_AGENT_IF", "can1")
	t.Setenv("CAN_AGENT_BUFFER", "42")
	set := map[string]struct{}{"can-if": {}, "buffer": {}}

	require.NoError(t, applyEnvOverrides(c, set))
	require.Equal(t, "vcan0", c.canIf)
	require.Equal(t, 1000, c.capacity)
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	c := baseConfig()
	t.Setenv("CAN_AGENT_BUFFER", "lots")
	t.Setenv("CAN_AGENT_IDLE_TIME", "soon")

	err := applyEnvOverrides(c, map[string]struct{}{})
	require.ErrorContains(t, err, "CAN_AGENT_IDLE_TIME")
	require.Equal(t, 1000, c.capacity)
	require.Equal(t, time.Second, c.idleTime)
}
