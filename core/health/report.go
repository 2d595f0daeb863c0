package health

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/battsim/core/model"
)

const (
	// ReportWindow is the number of recent samples used by Evaluate.
	ReportWindow = 20
	// MaxLifeCycles converts an RUL percentage to remaining cycles.
	MaxLifeCycles = 1000

	resistanceTrendLimit = 0.001 // Ω per sample
	tempStabilityLimit   = 3     // °C std-dev
	maxTemperatureLimit  = 40    // °C
	voltageStabilityLim  = 10    // V std-dev across the series string
	defaultResistance    = 0.1
)

// Evaluate grades the pack from the latest samples and an RUL percentage.
func Evaluate(samples []model.Sample, rul float64) model.HealthReport {
	rul = clamp(rul, 0, 100)
	recent := samples
	if len(recent) > ReportWindow {
		recent = recent[len(recent)-ReportWindow:]
	}

	r := model.HealthReport{
		RULPercentage:      rul,
		InternalResistance: defaultResistance,
	}
	if len(recent) > 5 {
		volts := make([]float64, len(recent))
		res := make([]float64, len(recent))
		temps := make([]float64, len(recent))
		for i, s := range recent {
			volts[i] = s.Voltage
			res[i] = s.R0
			temps[i] = s.Temperature
		}
		_, r.VoltageStability = stat.PopMeanStdDev(volts, nil)
		r.InternalResistance = stat.Mean(res, nil)
		diffs := make([]float64, len(res)-1)
		for i := 1; i < len(res); i++ {
			diffs[i-1] = res[i] - res[i-1]
		}
		r.ResistanceTrend = stat.Mean(diffs, nil)
		r.AvgTemperature, r.TemperatureStability = stat.PopMeanStdDev(temps, nil)
		r.MaxTemperature = floats.Max(temps)
	} else if len(recent) > 0 {
		temps := make([]float64, len(recent))
		for i, s := range recent {
			temps[i] = s.Temperature
		}
		r.AvgTemperature = stat.Mean(temps, nil)
		r.MaxTemperature = r.AvgTemperature
	}
	if len(recent) > 10 {
		r.ChargeEfficiency = currentRatio(recent)
	}

	grade(&r)

	if r.ResistanceTrend > resistanceTrendLimit {
		r.Recommendations = append(r.Recommendations, "internal resistance is rising, aging may be accelerating")
	}
	if r.TemperatureStability > tempStabilityLimit {
		r.Recommendations = append(r.Recommendations, "temperature fluctuates strongly, check the cooling system")
	}
	if r.MaxTemperature > maxTemperatureLimit {
		r.Recommendations = append(r.Recommendations, "peak temperature is high, improve heat dissipation")
	}
	if r.VoltageStability > voltageStabilityLim {
		r.Recommendations = append(r.Recommendations, "voltage fluctuates strongly, cells may be unbalanced")
	}

	r.EstimatedRemainingCycles = int(MaxLifeCycles * rul / 100)
	r.EstimatedRemainingMonths = r.EstimatedRemainingCycles / 30
	return r
}

// currentRatio compares the mean discharge and charge current magnitudes.
func currentRatio(samples []model.Sample) float64 {
	var charge, discharge []float64
	for _, s := range samples {
		switch {
		case s.Current > 0:
			charge = append(charge, s.Current)
		case s.Current < 0:
			discharge = append(discharge, -s.Current)
		}
	}
	if len(charge) == 0 || len(discharge) == 0 {
		return 0
	}
	ratio := stat.Mean(discharge, nil) / (stat.Mean(charge, nil) + 0.001)
	if ratio > 1 {
		return 1
	}
	return ratio
}

func grade(r *model.HealthReport) {
	rul := r.RULPercentage
	switch {
	case rul >= 85:
		r.Grade, r.Status = model.GradeA, "good"
		r.Score = 90 + min(10, (rul-85)/1.5)
		r.Recommendations = []string{"standard charging is fine", "check the pack periodically"}
		r.UsagePattern = "normal use"
	case rul >= 70:
		r.Grade, r.Status = model.GradeBPlus, "normal"
		r.Score = 80 + (rul-70)/1.5
		r.Recommendations = []string{"prefer gentle charging", "avoid frequent fast charging", "keep SoC between 20% and 80%"}
		r.UsagePattern = "normal use"
	case rul >= 50:
		r.Grade, r.Status = model.GradeB, "fair"
		r.Score = 60 + (rul - 50)
		r.Recommendations = []string{"use optimized charging", "avoid extreme temperatures", "reduce deep discharges"}
		r.UsagePattern = "moderate use, avoid high loads"
	case rul >= 30:
		r.Grade, r.Status = model.GradeC, "poor"
		r.Score = 40 + (rul - 30)
		r.Recommendations = []string{"charge at low current only", "avoid full charges", "plan a replacement"}
		r.UsagePattern = "light use, avoid deep cycles"
	default:
		r.Grade, r.Status = model.GradeD, "replace"
		r.Score = max(10, rul)
		r.Recommendations = []string{"replace the pack", "limit charging to 80%", "monitor temperature closely"}
		r.UsagePattern = "minimal use until replaced"
	}
}
