// Package factory is a small generic registry used to build pluggable
// components, such as metrics sinks and session stores, from configuration.
// A component is selected by a type string and configured by a raw map that
// the factory decodes into its own typed struct:
//
//	reg := factory.NewRegistry[session.Store]()
//	_ = reg.Register("sqlite", func(conf map[string]any) (session.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return store.NewSQLiteStore(c.Path)
//	})
//	st, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "sessions.db"}})
package factory
