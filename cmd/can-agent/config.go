package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/go-can-telemetry/internal/source"
	"github.com/kstaniek/go-can-telemetry/internal/timestamp"
)

type appConfig struct {
	canIf           string
	protocol        string
	idleTime        time.Duration
	capacity        int
	timestampType   string
	acquire         bool
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	logRecords      bool
	mdnsEnable      bool
	mdnsName        string
	sourcesFile     string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	canIf := flag.String("can-if", "can0", "SocketCAN interface")
	protocol := flag.String("protocol", source.ProtocolCAN, "Bus protocol: CAN|CAN-FD")
	idleTime := flag.Duration("idle-time", time.Second, "Worker idle slice (bounds shutdown latency)")
	capacity := flag.Int("buffer", 1000, "Output buffer capacity (records)")
	tsType := flag.String("timestamp", "Software", "Timestamp source: Software|Hardware|Polling")
	acquire := flag.Bool("acquire", true, "Resume data acquisition right after connect")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	logRecords := flag.Bool("log-records", false, "Log every consumed record at debug level")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise the metrics endpoint via mDNS (requires --metrics-addr)")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default can-agent-<hostname>)")
	sourcesFile := flag.String("config", "", "Optional YAML/JSON data source file; replaces the bus flags when set")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.canIf = *canIf
	cfg.protocol = *protocol
	cfg.idleTime = *idleTime
	cfg.capacity = *capacity
	cfg.timestampType = *tsType
	cfg.acquire = *acquire
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.logRecords = *logRecords
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.sourcesFile = *sourcesFile

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open the interface; the source reports setup errors on connect.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.protocol {
	case source.ProtocolCAN, source.ProtocolCANFD:
	default:
		return fmt.Errorf("invalid protocol: %s", c.protocol)
	}
	if _, err := timestamp.Parse(c.timestampType); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	if c.canIf == "" {
		return errors.New("can-if must not be empty")
	}
	if c.idleTime < time.Millisecond {
		return fmt.Errorf("idle-time must be >= 1ms (got %v)", c.idleTime)
	}
	if c.capacity <= 0 {
		return fmt.Errorf("buffer must be > 0 (got %d)", c.capacity)
	}
	if c.logMetricsEvery < 0 {
		return errors.New("log-metrics-interval must be >= 0")
	}
	if c.mdnsEnable && c.metricsAddr == "" {
		return errors.New("mdns-enable requires metrics-addr")
	}
	return nil
}

// sourceConfigs renders the flags as the property map consumed by the source.
func (c *appConfig) sourceConfigs() []source.DataSourceConfig {
	return []source.DataSourceConfig{{
		TransportProperties: map[string]string{
			"interfaceName":    c.canIf,
			"protocolName":     c.protocol,
			"threadIdleTimeMs": strconv.FormatInt(c.idleTime.Milliseconds(), 10),
			"timestampType":    c.timestampType,
		},
		MaxNumberOfMessages: c.capacity,
	}}
}

// resolveSources returns the data source configurations, from the config
// file when one is set and from the bus flags otherwise.
func (c *appConfig) resolveSources() ([]source.DataSourceConfig, error) {
	if c.sourcesFile == "" {
		return c.sourceConfigs(), nil
	}
	return loadSourceFile(c.sourcesFile)
}

// applyEnvOverrides maps CAN_AGENT_* environment variables to config fields
// unless a corresponding flag was explicitly set. Empty values are ignored.
// Durations accept Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	str := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	dur := func(flagName, env string, dst *time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				*dst = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	boolean := func(flagName, env string, dst *bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	str("can-if", "CAN_AGENT_IF", &c.canIf)
	str("protocol", "CAN_AGENT_PROTOCOL", &c.protocol)
	dur("idle-time", "CAN_AGENT_IDLE_TIME", &c.idleTime)
	if _, ok := set["buffer"]; !ok {
		if v, ok := get("CAN_AGENT_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.capacity = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CAN_AGENT_BUFFER: %w", err)
			}
		}
	}
	str("timestamp", "CAN_AGENT_TIMESTAMP", &c.timestampType)
	boolean("acquire", "CAN_AGENT_ACQUIRE", &c.acquire)
	str("log-format", "CAN_AGENT_LOG_FORMAT", &c.logFormat)
	str("log-level", "CAN_AGENT_LOG_LEVEL", &c.logLevel)
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CAN_AGENT_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	dur("log-metrics-interval", "CAN_AGENT_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	boolean("log-records", "CAN_AGENT_LOG_RECORDS", &c.logRecords)
	boolean("mdns-enable", "CAN_AGENT_MDNS_ENABLE", &c.mdnsEnable)
	str("mdns-name", "CAN_AGENT_MDNS_NAME", &c.mdnsName)
	str("config", "CAN_AGENT_CONFIG", &c.sourcesFile)
	return firstErr
}
