package extract

import (
	"fmt"

	"github.com/tracekit/protoargs/x/args"
)

// TypeRule configures decoding for one message type.
type TypeRule struct {
	// Type is the fully qualified message type name.
	Type string `mapstructure:"type" yaml:"type"`

	// AllowedTags restricts which top-level fields are decoded. Empty
	// means all fields. The restriction never applies below the first
	// level of nesting.
	AllowedTags []uint32 `mapstructure:"allowed_tags" yaml:"allowed_tags"`
}

// Config holds extraction parameters.
type Config struct {
	// MaxRecordSize bounds one length-prefixed record in a trace stream.
	MaxRecordSize int `mapstructure:"max_record_size" yaml:"max_record_size"`

	// MaxNesting bounds message recursion depth.
	MaxNesting int `mapstructure:"max_nesting" yaml:"max_nesting"`

	// Types lists per-type decode rules.
	Types []TypeRule `mapstructure:"types" yaml:"types"`

	// MetricsEnabled attaches prometheus counters to the service.
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
}

// DefaultConfig returns extraction defaults.
func DefaultConfig() Config {
	return Config{
		MaxRecordSize:  10 * 1024 * 1024,
		MaxNesting:     args.DefaultMaxNesting,
		MetricsEnabled: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRecordSize <= 0 {
		return fmt.Errorf("extract: max_record_size must be positive, got %d", c.MaxRecordSize)
	}
	if c.MaxNesting <= 0 {
		return fmt.Errorf("extract: max_nesting must be positive, got %d", c.MaxNesting)
	}
	for _, rule := range c.Types {
		if rule.Type == "" {
			return fmt.Errorf("extract: types entry with empty type name")
		}
	}
	return nil
}
