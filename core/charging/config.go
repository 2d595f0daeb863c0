package charging

// Config holds the phase thresholds and set-points. Zero voltages and
// currents marked as defaulting fall back to the pack parameters.
type Config struct {
	CCToCVVoltage      float64 `json:"cc_to_cv_voltage"`      // V, terminal voltage ending CC
	CVVoltage          float64 `json:"cv_voltage"`            // V, 0 = pack max voltage
	CVToTrickleCurrent float64 `json:"cv_to_trickle_current"` // A
	TrickleCurrent     float64 `json:"trickle_current"`       // A
	TrickleVoltage     float64 `json:"trickle_voltage"`       // V, 0 = pack max voltage
	TaperBand          float64 `json:"trickle_taper_band"`    // SoC points below 100 where trickle tapers
	FullSoC            float64 `json:"full_soc"`              // %
	TerminationCurrent float64 `json:"termination_current"`   // A, trickle current treated as zero
	DischargeCurrent   float64 `json:"discharge_current"`     // A magnitude, 0 = pack max
	DischargeCutoffSoC float64 `json:"discharge_cutoff_soc"`  // %
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		CCToCVVoltage:      395,
		CVToTrickleCurrent: 3,
		TrickleCurrent:     2.5,
		TrickleVoltage:     400,
		TaperBand:          1,
		FullSoC:            99.99,
		TerminationCurrent: 1e-3,
		DischargeCutoffSoC: 5,
	}
}

// Rates is a charging profile expressed relative to the pack capacity, as
// accepted by Controller.ApplyRates.
type Rates struct {
	CCRate          float64 `json:"cc_current"`          // C
	CVVoltage       float64 `json:"cv_voltage"`          // V
	TrickleRate     float64 `json:"trickle_current"`     // C
	TerminationRate float64 `json:"termination_current"` // C
}
