package reconciliation

import "fmt"

// Config holds settings of the apply workflow.
type Config struct {
	// Backup stores a snapshot of the current tree before a plan is applied.
	Backup bool `mapstructure:"backup" default:"true"`
	// Reports uploads an execution report after every apply.
	Reports bool `mapstructure:"reports" default:"true"`
	// KeepSnapshots is the number of tree snapshots retained after a backup.
	KeepSnapshots int `mapstructure:"keep_snapshots" default:"20"`
	// MaxPasses bounds plan executions per apply. Passes after the first only run
	// when the tree still differs from the target.
	MaxPasses int `mapstructure:"max_passes" default:"2"`
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxPasses < 1 {
		return fmt.Errorf("max_passes must be at least 1, got %d", c.MaxPasses)
	}
	if c.KeepSnapshots < 0 {
		return fmt.Errorf("keep_snapshots must not be negative, got %d", c.KeepSnapshots)
	}
	return nil
}
