package model

import "time"

// HealthState tracks long-term degradation of the pack.
type HealthState struct {
	CycleCount    float64   `json:"cycle_count"` // fractional equivalent full cycles
	Health        float64   `json:"health"`      // percent in [0,100]
	LastEvaluated time.Time `json:"last_evaluated"`
}

// Grade is a letter rating of the pack condition.
type Grade string

const (
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

// HealthReport summarises recent history into a condition assessment.
type HealthReport struct {
	Grade                    Grade    `json:"grade"`
	Status                   string   `json:"status"`
	Score                    float64  `json:"score"`
	RULPercentage            float64  `json:"rul_percentage"`
	EstimatedRemainingCycles int      `json:"estimated_remaining_cycles"`
	EstimatedRemainingMonths int      `json:"estimated_remaining_months"`
	VoltageStability         float64  `json:"voltage_stability"` // std-dev of voltage, V
	InternalResistance       float64  `json:"internal_resistance"`
	ResistanceTrend          float64  `json:"resistance_trend"` // mean Ω change per sample
	TemperatureStability     float64  `json:"temperature_stability"`
	MaxTemperature           float64  `json:"max_temperature"`
	AvgTemperature           float64  `json:"avg_temperature"`
	ChargeEfficiency         float64  `json:"charge_efficiency"`
	UsagePattern             string   `json:"usage_pattern"`
	Recommendations          []string `json:"recommendations"`
}

// WarningKind identifies a health warning.
type WarningKind string

const (
	WarnTemperatureHigh WarningKind = "temperature_high"
	WarnTemperatureLow  WarningKind = "temperature_low"
	WarnResistanceRise  WarningKind = "resistance_rising"
	WarnVoltageLimit    WarningKind = "voltage_limit"
)

// Warning is a single condition flagged from the latest state.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	Value   float64     `json:"value"`
}
