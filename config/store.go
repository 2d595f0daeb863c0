package config

import (
	"fmt"

	"github.com/kilianp07/battsim/core/factory"
)

// StoreConfig selects where charging sessions are persisted.
type StoreConfig struct {
	// Backend is "memory", "sqlite" or "jsonl".
	Backend string `json:"backend"`
	// Path is the database or file location for file backed stores.
	Path string `json:"path"`
	// QueueSize bounds the asynchronous write queue.
	QueueSize int `json:"queue_size"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "sessions.db"
		case "jsonl":
			c.Path = "sessions.jsonl"
		}
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "sqlite", "jsonl":
		if c.Path == "" {
			return fmt.Errorf("path is required for %s", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// Module returns the factory configuration for infra/store.
func (c StoreConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{"path": c.Path}}
}
