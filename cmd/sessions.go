package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/session"
	"github.com/kilianp07/battsim/infra/store"
	"github.com/kilianp07/battsim/pkg/export"
)

type queryFlags struct {
	since  string
	until  string
	limit  int
	closed bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "only sessions started at or after this RFC3339 time")
	cmd.Flags().StringVar(&f.until, "until", "", "only sessions started at or before this RFC3339 time")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of sessions")
}

func (f *queryFlags) query() (session.Query, error) {
	q := session.Query{Limit: f.limit, ClosedOnly: f.closed}
	var err error
	if f.since != "" {
		if q.Start, err = time.Parse(time.RFC3339, f.since); err != nil {
			return q, fmt.Errorf("--since: %w", err)
		}
	}
	if f.until != "" {
		if q.End, err = time.Parse(time.RFC3339, f.until); err != nil {
			return q, fmt.Errorf("--until: %w", err)
		}
	}
	return q, nil
}

func newSessionsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and manage recorded charging sessions",
	}
	cmd.AddCommand(
		newSessionsLsCmd(o),
		newSessionsShowCmd(o),
		newSessionsStatsCmd(o),
		newSessionsExportCmd(o),
		newSessionsImportCmd(o),
		newSessionsRmCmd(o),
	)
	return cmd
}

// withStore opens the configured store for the duration of fn.
func (o *options) withStore(fn func(session.Store) error) error {
	st, err := store.New(o.cfg.Store.Module())
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	err = fn(st)
	if cerr := st.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close store: %w", cerr)
	}
	return err
}

func newSessionsLsCmd(o *options) *cobra.Command {
	f := &queryFlags{}
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query()
			if err != nil {
				return err
			}
			return o.withStore(func(st session.Store) error {
				list, err := st.List(contextOf(cmd), q)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				return printSessions(cmd.OutOrStdout(), list)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.closed, "closed", false, "only finished sessions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSessionsShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withStore(func(st session.Store) error {
				s, err := st.Get(contextOf(cmd), args[0])
				if err != nil {
					return fmt.Errorf("session %s: %w", args[0], err)
				}
				return writeJSON(cmd.OutOrStdout(), s)
			})
		},
	}
}

func newSessionsStatsCmd(o *options) *cobra.Command {
	f := &queryFlags{}
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise finished sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query()
			if err != nil {
				return err
			}
			return o.withStore(func(st session.Store) error {
				stats, err := session.Statistics(contextOf(cmd), st, q)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				return printStats(cmd.OutOrStdout(), stats)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSessionsExportCmd(o *options) *cobra.Command {
	f := &queryFlags{}
	var out, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write sessions as a JSON array or CSV",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %s", format)
			}
			q, err := f.query()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" {
				file, ferr := createFile(out)
				if ferr != nil {
					return ferr
				}
				defer func() {
					if cerr := file.Close(); cerr != nil {
						err = errors.Join(err, fmt.Errorf("close %s: %w", out, cerr))
					}
				}()
				w = file
			}
			return o.withStore(func(st session.Store) error {
				var n int
				if format == "csv" {
					list, err := st.List(contextOf(cmd), q)
					if err != nil {
						return err
					}
					if err := export.WriteCSV(w, list); err != nil {
						return err
					}
					n = len(list)
				} else if n, err = session.Export(contextOf(cmd), st, q, w); err != nil {
					return err
				}
				if out != "" {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d sessions to %s\n", n, out)
				}
				return err
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, stdout when empty")
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	return cmd
}

// createFile opens export destinations; tests replace it.
var createFile = func(name string) (io.WriteCloser, error) { return os.Create(name) }

func newSessionsImportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load sessions from a JSON array, replacing matching IDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()
			return o.withStore(func(st session.Store) error {
				n, err := session.Import(contextOf(cmd), st, file)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d sessions\n", n)
				return err
			})
		},
	}
}

func newSessionsRmCmd(o *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("give session IDs or --all")
			}
			if all && len(args) > 0 {
				return fmt.Errorf("--all takes no session IDs")
			}
			return o.withStore(func(st session.Store) error {
				var (
					n   int
					err error
				)
				if all {
					n, err = st.DeleteAll(contextOf(cmd))
				} else {
					n, err = st.Delete(contextOf(cmd), args...)
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d sessions\n", n)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every session")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSessions(w io.Writer, list []model.ChargingSession) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tDURATION\tSOC\tPHASES\tMAX TEMP")
	for _, s := range list {
		end := "open"
		if s.FinalSoC != nil {
			end = fmt.Sprintf("%.1f", *s.FinalSoC)
		}
		phases := make([]string, len(s.Phases))
		for i, p := range s.Phases {
			phases[i] = string(p.Phase)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f -> %s\t%s\t%.1f\n",
			s.ID, s.StartTime.Format(time.RFC3339), s.Duration().Round(time.Second), s.InitialSoC, end, strings.Join(phases, ","), s.MaxTemperature)
	}
	return tw.Flush()
}

func printStats(w io.Writer, s session.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "sessions\t%d\n", s.Sessions)
	fmt.Fprintf(tw, "total duration\t%s\n", s.TotalDuration.Round(time.Second))
	fmt.Fprintf(tw, "avg duration\t%s\n", s.AvgDuration.Round(time.Second))
	fmt.Fprintf(tw, "avg soc gain\t%.2f\n", s.AvgSoCGain)
	fmt.Fprintf(tw, "max temperature\t%.1f\n", s.MaxTemperature)
	phases := make([]string, 0, len(s.Phases))
	for p := range s.Phases {
		phases = append(phases, string(p))
	}
	sort.Strings(phases)
	for _, p := range phases {
		ps := s.Phases[model.Phase(p)]
		fmt.Fprintf(tw, "phase %s\t%d records, %s total\n", p, ps.Count, ps.TotalDuration.Round(time.Second))
	}
	return tw.Flush()
}
