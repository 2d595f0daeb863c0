package store

import (
	"github.com/kilianp07/battsim/core/factory"
	"github.com/kilianp07/battsim/core/session"
)

var registry = factory.NewRegistry[session.Store]()

// Register adds a session store factory identified by name.
func Register(name string, f factory.Factory[session.Store]) error {
	return registry.Register(name, f)
}

type fileConf struct {
	Path string `json:"path"`
}

func init() {
	_ = Register("memory", func(map[string]any) (session.Store, error) {
		return session.NewMemoryStore(), nil
	})
	_ = Register("sqlite", func(conf map[string]any) (session.Store, error) {
		c := fileConf{Path: "sessions.db"}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
	_ = Register("jsonl", func(conf map[string]any) (session.Store, error) {
		c := fileConf{Path: "sessions.jsonl"}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
}

// New creates the configured store. An empty type selects memory.
func New(cfg factory.ModuleConfig) (session.Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return registry.Create(cfg)
}
