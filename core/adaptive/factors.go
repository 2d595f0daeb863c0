package adaptive

import "github.com/kilianp07/battsim/core/model"

func temperatureFactor(t float64) float64 {
	switch {
	case t >= 45:
		return 0.5
	case t >= 40:
		return 0.6 + (45-t)*0.02
	case t >= 35:
		return 0.7 + (40-t)*0.02
	case t >= 30:
		return 0.8 + (35-t)*0.02
	case t >= 25:
		return 0.9 + (30-t)*0.02
	case t >= 10:
		return 1.0
	case t >= 5:
		return 0.9
	case t >= 0:
		return 0.8
	default:
		return 0.6
	}
}

func socFactor(soc float64) float64 {
	switch {
	case soc >= 90:
		return 0.6 + (100-soc)*0.01
	case soc >= 80:
		return 0.7 + (90-soc)*0.01
	case soc >= 60:
		return 0.8 + (80-soc)*0.005
	case soc >= 20:
		return 1.0
	default:
		return 0.9
	}
}

func resistanceFactor(r0 float64) float64 {
	switch {
	case r0 > 0.2:
		return 0.8
	case r0 > 0.15:
		return 0.9
	default:
		return 1.0
	}
}

// Near-full thresholds as fractions of the pack max voltage.
const (
	nearFullFraction   = 0.95
	closeToMaxFraction = 0.975
)

func voltageFactor(v, maxV float64) float64 {
	switch {
	case v > closeToMaxFraction*maxV:
		return 0.8
	case v > nearFullFraction*maxV:
		return 0.9
	default:
		return 1.0
	}
}

// SelectStrategy picks the charging profile. Low RUL takes priority over
// temperature.
func SelectStrategy(rul, temperature float64) model.Strategy {
	switch {
	case rul < 30:
		return model.StrategyLongevity
	case temperature > 35 || rul < 60:
		return model.StrategyEco
	default:
		return model.StrategyStandard
	}
}

type multipliers struct {
	cc, cv, trickle, termination, maxSoC float64
}

func multipliersFor(s model.Strategy) multipliers {
	switch s {
	case model.StrategyEco:
		return multipliers{cc: 0.9, cv: 0.98, trickle: 0.9, termination: 1.1, maxSoC: 90}
	case model.StrategyLongevity:
		return multipliers{cc: 0.7, cv: 0.95, trickle: 0.8, termination: 1.2, maxSoC: 80}
	default:
		return multipliers{cc: 1, cv: 1, trickle: 1, termination: 1, maxSoC: 100}
	}
}

func advice(s model.BatteryState, rul float64) []string {
	var out []string
	switch {
	case s.Temperature > 40:
		out = append(out, "battery temperature is high, charging current reduced")
	case s.Temperature < 5:
		out = append(out, "battery temperature is low, charge slowly until the pack warms up")
	}
	switch {
	case rul < 30:
		out = append(out, "remaining life is low, longevity charging limits SoC to 80%")
	case rul < 60:
		out = append(out, "remaining life is reduced, eco charging limits SoC to 90%")
	}
	if s.R0 > 0.15 {
		out = append(out, "internal resistance is elevated, avoid fast charging")
	}
	return out
}
