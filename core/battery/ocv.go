package battery

// OCV returns the open-circuit voltage for soc using the three segment
// piecewise-linear curve: [0,10] min→nominal, (10,90] nominal→knee and
// (90,100] knee→max.
func OCV(p Params, soc float64) float64 {
	soc = clamp(soc, 0, 100)
	switch {
	case soc <= 10:
		return lerp(p.MinVoltage, p.NominalVoltage, soc/10)
	case soc <= 90:
		return lerp(p.NominalVoltage, p.OCVKneeVoltage, (soc-10)/80)
	default:
		return lerp(p.OCVKneeVoltage, p.MaxVoltage, (soc-90)/10)
	}
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
