package source

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/kstaniek/go-can-telemetry/internal/timestamp"
)

// Protocol names accepted in the protocolName property.
const (
	ProtocolCAN   = "CAN"
	ProtocolCANFD = "CAN-FD"
)

// DataSourceConfig is the generic per-source configuration handed over by
// the supervisor: string transport properties and the sink capacity.
type DataSourceConfig struct {
	TransportProperties map[string]string
	MaxNumberOfMessages int
}

// Config is the resolved configuration of one CAN source.
type Config struct {
	InterfaceName       string `mapstructure:"interfaceName" validate:"required"`
	ProtocolName        string `mapstructure:"protocolName" validate:"required,oneof=CAN CAN-FD"`
	ThreadIdleTimeMs    int    `mapstructure:"threadIdleTimeMs" default:"1000" validate:"min=1"`
	TimestampType       string `mapstructure:"timestampType" default:"Software" validate:"oneof=Software Hardware Polling"`
	MaxNumberOfMessages int    `mapstructure:"maxNumberOfMessages" validate:"min=1"`
}

var validate = validator.New()

// ParseConfig resolves the first entry of configs. Any missing or
// unparsable value makes the whole configuration invalid.
func ParseConfig(configs []DataSourceConfig) (*Config, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no data source configuration", ErrInvalidConfig)
	}
	src := configs[0]
	in := make(map[string]any, len(src.TransportProperties)+1)
	for k, v := range src.TransportProperties {
		in[k] = v
	}
	in["maxNumberOfMessages"] = src.MaxNumberOfMessages

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", ErrInvalidConfig, err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := dec.Decode(in); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidConfig, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// FD reports whether flexible-data frames were requested.
func (c *Config) FD() bool { return c.ProtocolName == ProtocolCANFD }

// IdleSlice is the worker's bounded wait.
func (c *Config) IdleSlice() time.Duration { return time.Duration(c.ThreadIdleTimeMs) * time.Millisecond }

// Strategy returns the configured timestamp strategy (validated by ParseConfig).
func (c *Config) Strategy() timestamp.Strategy {
	s, err := timestamp.Parse(c.TimestampType)
	if err != nil {
		return timestamp.KernelSoftware
	}
	return s
}
