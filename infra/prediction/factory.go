package prediction

import (
	"time"

	"github.com/kilianp07/battsim/core/factory"
	core "github.com/kilianp07/battsim/core/prediction"
	"github.com/kilianp07/battsim/infra/logger"
)

// Config selects the predictor and its deadline.
type Config struct {
	Type     string         `json:"type"`
	Conf     map[string]any `json:"conf"`
	Timeout  time.Duration  `json:"timeout"`
	Cooldown time.Duration  `json:"cooldown"`
}

var registry = factory.NewRegistry[core.Predictor]()

// Register adds a predictor factory identified by name.
func Register(name string, f factory.Factory[core.Predictor]) error {
	return registry.Register(name, f)
}

func init() {
	_ = Register("none", func(map[string]any) (core.Predictor, error) {
		return core.Unavailable{}, nil
	})
	_ = Register("linear", func(conf map[string]any) (core.Predictor, error) {
		l := core.NewLinear()
		var c struct {
			MinSamples   *int     `json:"min_samples"`
			HotThreshold *float64 `json:"hot_threshold"`
			HotDerating  *float64 `json:"hot_derating"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.MinSamples != nil {
			l.MinSamples = *c.MinSamples
		}
		if c.HotThreshold != nil {
			l.HotThreshold = *c.HotThreshold
		}
		if c.HotDerating != nil {
			l.HotDerating = *c.HotDerating
		}
		return l, nil
	})
}

// New builds the configured predictor. An empty type selects "none".
func New(cfg Config) (core.Predictor, error) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
	p, err := registry.Create(factory.ModuleConfig{Type: cfg.Type, Conf: cfg.Conf})
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		return WithTimeout(p, cfg.Timeout, cfg.Cooldown, logger.New("predictor")), nil
	}
	return p, nil
}
