package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Mavwarf/anchorpatch/internal/journal"
	"github.com/Mavwarf/anchorpatch/internal/paths"
)

const (
	colTime    = 19 // "2006-01-02 15:04:05"
	colOutcome = 9
	colRepl    = 5
)

func (a *app) openJournal() (journal.Store, error) {
	return journal.Open(a.cfg.JournalBackend, paths.DataDir())
}

func (a *app) historyCmd() *cobra.Command {
	var days, limit int
	var raw bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded patch runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--days must not be negative")
			}
			store, err := a.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			if raw {
				content, err := store.ReadContent()
				if err != nil {
					return err
				}
				fmt.Fprint(a.stdout, content)
				return nil
			}

			runs, err := store.Entries(days)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[len(runs)-limit:]
			}
			renderRuns(a.stdout, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "only runs from the last N days (0 = all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most N runs (0 = no limit)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the journal as stored")

	cmd.AddCommand(a.historyCleanCmd(), a.historyClearCmd(), a.historyExportCmd())
	return cmd
}

// renderRuns prints one line per run, oldest first.
func renderRuns(w io.Writer, runs []journal.Run) {
	fmt.Fprintf(w, "%-*s  %-*s  %*s  %s\n", colTime, "TIME", colOutcome, "OUTCOME", colRepl, "REPL", "TARGET")
	fmt.Fprintln(w, strings.Repeat("-", colTime+colOutcome+colRepl+6+20))
	for _, r := range runs {
		// Pad before coloring so escape codes do not skew the columns.
		outcome := outcomeColor(r.Outcome).Sprint(fmt.Sprintf("%-*s", colOutcome, r.Outcome))
		target := r.Target
		if r.Plan != "" {
			target += " (" + r.Plan + ")"
		}
		fmt.Fprintf(w, "%-*s  %s  %*d  %s\n",
			colTime, r.Time.Format("2006-01-02 15:04:05"), outcome, colRepl, r.Replacements(), target)
		if r.Error != "" {
			fmt.Fprintf(w, "%*s%s\n", colTime+2, "", r.Error)
		}
	}
}

func outcomeColor(o journal.Outcome) *color.Color {
	switch o {
	case journal.OutcomeApplied:
		return color.New(color.FgGreen)
	case journal.OutcomeFailed:
		return color.New(color.FgRed)
	case journal.OutcomeDryRun:
		return color.New(color.FgCyan)
	}
	return color.New(color.Reset)
}

func (a *app) historyCleanCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove runs older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--days must be a positive integer")
			}
			store, err := a.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Clean(days)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Removed %d runs older than %d days.\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "keep runs from the last N days")
	return cmd
}

func (a *app) historyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Journal cleared.")
			return nil
		},
	}
}

type exportStep struct {
	Index        int    `json:"index"`
	Name         string `json:"name,omitempty"`
	Occurrence   string `json:"occurrence"`
	Replacements int    `json:"replacements"`
	Skipped      bool   `json:"skipped,omitempty"`
}

type exportRun struct {
	ID      string       `json:"id"`
	Time    string       `json:"time"`
	Target  string       `json:"target"`
	Plan    string       `json:"plan,omitempty"`
	Outcome string       `json:"outcome"`
	Written bool         `json:"written"`
	Error   string       `json:"error,omitempty"`
	Steps   []exportStep `json:"steps"`
}

func (a *app) historyExportCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print recorded runs as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--days must not be negative")
			}
			store, err := a.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.Entries(days)
			if err != nil {
				return err
			}

			out := make([]exportRun, len(runs))
			for i, r := range runs {
				steps := make([]exportStep, len(r.Steps))
				for j, s := range r.Steps {
					steps[j] = exportStep{
						Index:        s.Index,
						Name:         s.Name,
						Occurrence:   s.Occurrence,
						Replacements: s.Replacements,
						Skipped:      s.Skipped,
					}
				}
				out[i] = exportRun{
					ID:      r.ID,
					Time:    r.Time.Format(time.RFC3339),
					Target:  r.Target,
					Plan:    r.Plan,
					Outcome: string(r.Outcome),
					Written: r.Written,
					Error:   r.Error,
					Steps:   steps,
				}
			}

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "only runs from the last N days (0 = all)")
	return cmd
}
