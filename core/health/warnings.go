package health

import (
	"fmt"

	"github.com/kilianp07/battsim/core/model"
)

const (
	warnTempHigh = 40
	warnTempLow  = 5
)

// Warnings flags conditions of the latest state that need attention.
func Warnings(s model.BatteryState, r model.HealthReport) []model.Warning {
	var out []model.Warning
	switch {
	case s.Temperature > warnTempHigh:
		out = append(out, model.Warning{
			Kind:    model.WarnTemperatureHigh,
			Message: fmt.Sprintf("temperature %.1f°C is high, reduce load or pause charging", s.Temperature),
			Value:   s.Temperature,
		})
	case s.Temperature < warnTempLow:
		out = append(out, model.Warning{
			Kind:    model.WarnTemperatureLow,
			Message: fmt.Sprintf("temperature %.1f°C is low, efficiency and life may suffer", s.Temperature),
			Value:   s.Temperature,
		})
	}
	if r.ResistanceTrend > resistanceTrendLimit {
		out = append(out, model.Warning{
			Kind:    model.WarnResistanceRise,
			Message: "internal resistance is rising",
			Value:   r.ResistanceTrend,
		})
	}
	if s.MaxVoltage > 0 && s.Voltage >= s.MaxVoltage && !s.IsCharging() {
		out = append(out, model.Warning{
			Kind:    model.WarnVoltageLimit,
			Message: "terminal voltage at the upper limit",
			Value:   s.Voltage,
		})
	}
	return out
}
