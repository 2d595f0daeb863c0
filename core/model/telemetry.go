package model

import "time"

// Sample is one entry of the recent-history ring.
type Sample struct {
	Time        time.Time `json:"time"`
	SoC         float64   `json:"soc"`
	Voltage     float64   `json:"voltage"`
	Current     float64   `json:"current"`
	Temperature float64   `json:"temperature"`
	R0          float64   `json:"internal_resistance"`
	Phase       Phase     `json:"phase"`
}

// SampleOf builds a history sample from a battery snapshot.
func SampleOf(t time.Time, s BatteryState, p Phase) Sample {
	return Sample{
		Time:        t,
		SoC:         s.SoC,
		Voltage:     s.Voltage,
		Current:     s.Current,
		Temperature: s.Temperature,
		R0:          s.R0,
		Phase:       p,
	}
}

// Strategy is the charging profile chosen by the adaptive controller.
type Strategy string

const (
	StrategyStandard  Strategy = "standard"
	StrategyEco       Strategy = "eco"
	StrategyLongevity Strategy = "longevity"
)

// AdjustmentFactors are the individual derating factors in [0,1].
type AdjustmentFactors struct {
	RUL                float64 `json:"rul"`
	Temperature        float64 `json:"temperature"`
	SoC                float64 `json:"soc"`
	InternalResistance float64 `json:"internal_resistance"`
	Voltage            float64 `json:"voltage"`
	Combined           float64 `json:"combined"`
}

// ChargingParameters are the set-points produced by the adaptive controller.
// Currents are in A, voltages in V.
type ChargingParameters struct {
	CCCurrent          float64           `json:"cc_current"`
	CVVoltage          float64           `json:"cv_voltage"`
	TrickleCurrent     float64           `json:"trickle_current"`
	TrickleVoltage     float64           `json:"trickle_voltage"`
	TerminationCurrent float64           `json:"termination_current"`
	MaxSoC             float64           `json:"max_soc"`
	Strategy           Strategy          `json:"strategy"`
	RULPercentage      float64           `json:"rul_percentage"`
	Factors            AdjustmentFactors `json:"factors"`
	Advice             []string          `json:"advice,omitempty"`
	Fallback           bool              `json:"fallback"` // defaults were returned
}

// Telemetry is the fixed-schema state snapshot exposed to callers.
type Telemetry struct {
	Timestamp        time.Time           `json:"timestamp"`
	Battery          BatteryState        `json:"battery"`
	IsCharging       bool                `json:"is_charging"`
	IsDischarging    bool                `json:"is_discharging"`
	Phase            Phase               `json:"charging_phase"`
	SessionID        string              `json:"session_id,omitempty"`
	Health           HealthState         `json:"health"`
	EstimatedRUL     float64             `json:"estimated_rul"` // percent
	RULSource        string              `json:"rul_source"`    // "predictor" or "health"
	RULOptimized     bool                `json:"rul_optimized"`
	Parameters       *ChargingParameters `json:"charging_parameters,omitempty"`
	DisplayCurrent   float64             `json:"display_current"`
	DisplayVoltage   float64             `json:"display_voltage"`
	TimeAcceleration float64             `json:"time_acceleration"`
	Report           HealthReport        `json:"health_report"`
	Warnings         []Warning           `json:"warnings,omitempty"`
}
