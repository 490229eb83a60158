package reconcile

import (
	"fmt"
	"time"
)

// Config holds tunables for planning and execution.
type Config struct {
	// BatchSize bounds the number of operations in one batch chunk.
	BatchSize int `mapstructure:"batch_size" default:"10"`

	// MaxConcurrency bounds in-flight mutation calls within a chunk.
	MaxConcurrency int `mapstructure:"max_concurrency" default:"3"`

	// MoveCollapseThreshold is the number of positional moves within one folder
	// above which they collapse into a single reorder operation.
	MoveCollapseThreshold int `mapstructure:"move_collapse_threshold" default:"3"`

	// OperationTimeoutSeconds bounds each operation. Zero disables the timeout.
	OperationTimeoutSeconds int `mapstructure:"operation_timeout_seconds" default:"30"`

	// MergeUpdates merges title and url updates of the same node into one operation.
	MergeUpdates bool `mapstructure:"merge_updates" default:"false"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:               10,
		MaxConcurrency:          3,
		MoveCollapseThreshold:   3,
		OperationTimeoutSeconds: 30,
	}
}

// withDefaults fills zero sizes with defaults. MoveCollapseThreshold is kept
// as given: zero collapses every reordered folder into a single reorder.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	return c
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.MoveCollapseThreshold < 0 {
		return fmt.Errorf("move_collapse_threshold must not be negative, got %d", c.MoveCollapseThreshold)
	}
	if c.OperationTimeoutSeconds < 0 {
		return fmt.Errorf("operation_timeout_seconds must not be negative, got %d", c.OperationTimeoutSeconds)
	}
	return nil
}

// OperationTimeout returns the per-operation timeout, zero when disabled.
func (c Config) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}
