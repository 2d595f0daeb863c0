package config

import (
	"fmt"
	"time"
)

// MaxTimeAcceleration bounds the simulated seconds per wall-clock second.
const MaxTimeAcceleration = 3600

// SchedulerConfig drives the service loop: every UpdateInterval of wall
// time the simulation advances by UpdateInterval × TimeAcceleration.
type SchedulerConfig struct {
	UpdateInterval   time.Duration `json:"update_interval"`
	TimeAcceleration float64       `json:"time_acceleration"`
	// AutoStart begins a charging session as soon as the service runs.
	AutoStart bool `json:"auto_start"`
}

// SetDefaults applies a 1 s real-time loop.
func (c *SchedulerConfig) SetDefaults() {
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = time.Second
	}
	if c.TimeAcceleration <= 0 {
		c.TimeAcceleration = 1
	}
}

// Validate checks the loop bounds.
func (c SchedulerConfig) Validate() error {
	if c.UpdateInterval < time.Millisecond {
		return fmt.Errorf("update_interval %s below 1ms", c.UpdateInterval)
	}
	if c.TimeAcceleration <= 0 || c.TimeAcceleration > MaxTimeAcceleration {
		return fmt.Errorf("time_acceleration %.2f outside (0,%d]", c.TimeAcceleration, MaxTimeAcceleration)
	}
	return nil
}
