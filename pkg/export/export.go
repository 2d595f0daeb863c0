// Package export renders charging sessions for spreadsheets.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/battsim/core/model"
)

// Header is the first CSV row written by WriteCSV.
var Header = []string{
	"id", "start_time", "end_time", "duration_seconds", "initial_soc", "final_soc",
	"soc_gain", "max_temperature", "rul_optimized", "phases",
}

// WriteCSV writes one row per session. Open sessions have empty end, final
// SoC and gain columns.
func WriteCSV(w io.Writer, sessions []model.ChargingSession) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range sessions {
		var end, final, gain string
		if s.EndTime != nil {
			end = s.EndTime.UTC().Format(time.RFC3339)
		}
		if s.FinalSoC != nil {
			final = formatFloat(*s.FinalSoC)
			gain = formatFloat(s.SoCGain())
		}
		phases := make([]string, len(s.Phases))
		for i, p := range s.Phases {
			phases[i] = string(p.Phase)
		}
		rec := []string{
			s.ID,
			s.StartTime.UTC().Format(time.RFC3339),
			end,
			strconv.FormatFloat(s.Duration().Seconds(), 'f', 0, 64),
			formatFloat(s.InitialSoC),
			final,
			gain,
			formatFloat(s.MaxTemperature),
			strconv.FormatBool(s.RULOptimized),
			strings.Join(phases, "|"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
