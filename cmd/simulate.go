package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/battsim/core/sim"
	"github.com/kilianp07/battsim/infra/logger"
	"github.com/kilianp07/battsim/infra/prediction"
	"github.com/kilianp07/battsim/infra/store"
)

type simulateFlags struct {
	cycles   int
	step     time.Duration
	maxTicks int
	save     bool
	rul      bool
	asJSON   bool
}

type simulateSummary struct {
	Cycles       []sim.CycleResult `json:"cycles"`
	Health       float64           `json:"health"`
	CycleCount   float64           `json:"cycle_count"`
	EstimatedRUL float64           `json:"estimated_rul"`
	SimulatedFor time.Duration     `json:"simulated_for"`
	Saved        int64             `json:"saved_snapshots,omitempty"`
}

func newSimulateCmd(o *options) *cobra.Command {
	f := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run full charge and discharge cycles without real-time pacing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.simulate(cmd, f)
		},
	}
	cmd.Flags().IntVarP(&f.cycles, "cycles", "n", 1, "number of charge/discharge cycles")
	cmd.Flags().DurationVar(&f.step, "step", 10*time.Second, "simulated time per tick")
	cmd.Flags().IntVar(&f.maxTicks, "max-ticks", 20000, "tick budget per phase")
	cmd.Flags().BoolVar(&f.save, "save", false, "persist sessions to the configured store")
	cmd.Flags().BoolVar(&f.rul, "rul", false, "enable RUL optimised charging")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func (o *options) simulate(cmd *cobra.Command, f *simulateFlags) error {
	if f.cycles <= 0 {
		return fmt.Errorf("cycles must be positive")
	}
	if f.step <= 0 {
		return fmt.Errorf("step must be positive")
	}
	pred, err := prediction.New(o.cfg.Predictor)
	if err != nil {
		return fmt.Errorf("predictor: %w", err)
	}
	simCfg := o.cfg.Simulation
	simCfg.RULOptimized = simCfg.RULOptimized || f.rul
	opts := []sim.Option{sim.WithPredictor(pred), sim.WithLogger(logger.New("simulation"))}

	var rec *store.SyncRecorder
	if f.save {
		st, err := store.New(o.cfg.Store.Module())
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		defer func() { _ = st.Close() }()
		rec = store.NewSyncRecorder(st, logger.New("session_store"))
		opts = append(opts, sim.WithRecorder(rec))
	}

	c := sim.New(simCfg, opts...)
	begin := c.Now()
	sum := simulateSummary{}
	for i := 0; i < f.cycles; i++ {
		r, err := c.RunCycle(f.step.Seconds(), f.maxTicks)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i+1, err)
		}
		sum.Cycles = append(sum.Cycles, r)
	}
	hs := c.Health()
	sum.Health = hs.Health
	sum.CycleCount = hs.CycleCount
	sum.EstimatedRUL = c.GetState().EstimatedRUL
	sum.SimulatedFor = c.Now().Sub(begin)

	if rec != nil {
		sum.Saved = rec.Saved()
	}
	if f.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	return printSummary(cmd, sum)
}

func printSummary(cmd *cobra.Command, s simulateSummary) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CYCLE\tSESSION\tCHARGE TIME\tMAX TEMP\tHEALTH\tRUL\tSOURCE")
	for i, c := range s.Cycles {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%.2f\t%.1f\t%s\n",
			i+1, c.SessionID, c.ChargeTime.Round(time.Second), c.MaxTemperature, c.Health, c.EstimatedRUL, c.RULSource)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "\nhealth %.2f%%  cycles %.2f  rul %.1f%%  simulated %s\n",
		s.Health, s.CycleCount, s.EstimatedRUL, s.SimulatedFor.Round(time.Second))
	return err
}
