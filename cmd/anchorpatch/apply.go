package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mavwarf/anchorpatch/internal/diffview"
	"github.com/Mavwarf/anchorpatch/internal/journal"
	"github.com/Mavwarf/anchorpatch/internal/notify"
	"github.com/Mavwarf/anchorpatch/internal/patch"
	"github.com/Mavwarf/anchorpatch/internal/paths"
	"github.com/Mavwarf/anchorpatch/internal/planfile"
)

// planFlags selects the plan for apply, check and invert: either a plan
// document or a single directive given inline.
type planFlags struct {
	planPath    string
	name        string
	needle      string
	replacement string
	all         bool
	optional    bool
	reverse     bool
}

func (f *planFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.planPath, "plan", "p", "", "plan document (YAML or JSON)")
	fl.StringVar(&f.name, "name", "", "name for an inline directive")
	fl.StringVar(&f.needle, "needle", "", "inline directive: exact text that must be present")
	fl.StringVar(&f.replacement, "replacement", "", "inline directive: text to put in place of the needle")
	fl.BoolVar(&f.all, "all", false, "inline directive: replace every occurrence instead of the first")
	fl.BoolVar(&f.optional, "optional", false, "inline directive: skip instead of failing when the needle is absent")
	fl.BoolVar(&f.reverse, "reverse", false, "apply the inverse plan (swap needles and replacements)")
}

var errNoTarget = errors.New("no target: pass a file path or set target in the plan")

// buildPlan reads the plan from --plan or the inline directive flags and
// inverts it when --reverse is set. The second return is the target named
// by the plan document, if any.
func (f *planFlags) buildPlan(cmd *cobra.Command) (patch.Plan, string, error) {
	inline := cmd.Flags().Changed("needle") || cmd.Flags().Changed("replacement")

	var plan patch.Plan
	var target string
	switch {
	case f.planPath != "" && inline:
		return patch.Plan{}, "", errors.New("use either --plan or --needle/--replacement, not both")
	case f.planPath != "":
		pf, err := planfile.Load(f.planPath)
		if err != nil {
			return patch.Plan{}, "", err
		}
		plan, target = pf.Plan, pf.Target
	case inline:
		if !cmd.Flags().Changed("replacement") {
			return patch.Plan{}, "", errors.New("--needle requires --replacement (use --replacement '' to delete)")
		}
		d := patch.Directive{
			Name:        f.name,
			Needle:      f.needle,
			Replacement: f.replacement,
			Optional:    f.optional,
		}
		if f.all {
			d.Occurrence = patch.All
		}
		plan = patch.Plan{Name: f.name, Directives: []patch.Directive{d}}
	default:
		return patch.Plan{}, "", errors.New("no plan: pass --plan <file> or --needle/--replacement")
	}

	if err := plan.Validate(); err != nil {
		return patch.Plan{}, "", err
	}
	if f.reverse {
		inv, err := plan.Inverse()
		if err != nil {
			return patch.Plan{}, "", err
		}
		plan = inv
	}
	return plan, target, nil
}

// resolve is buildPlan plus the target. An explicit target argument wins
// over the plan document's target.
func (f *planFlags) resolve(cmd *cobra.Command, args []string) (patch.Plan, string, error) {
	plan, target, err := f.buildPlan(cmd)
	if err != nil {
		return patch.Plan{}, "", err
	}
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" {
		return patch.Plan{}, "", errNoTarget
	}
	return plan, target, nil
}

// runFlags are the apply-only switches.
type runFlags struct {
	dryRun    bool
	showDiff  bool
	backup    bool
	noLock    bool
	noJournal bool
}

func (a *app) applyCmd() *cobra.Command {
	var pf planFlags
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "apply [target]",
		Short: "Apply a plan to a file",
		Long: `Apply a plan to a file.

The plan comes from --plan or from a single inline directive. Directives
run in order; each needle must be present in the text produced by the
directives before it. If any required needle is missing the file is not
touched and the exit status is 2.`,
		Example: `  anchorpatch apply lib/main.dart -p late_param.yaml
  anchorpatch apply lib/main.dart --needle 'debug: true' --replacement 'debug: false'
  anchorpatch apply -p late_param.yaml --reverse --diff`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, target, err := pf.resolve(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), target, plan, rf)
		},
	}
	pf.register(cmd)
	fl := cmd.Flags()
	fl.BoolVarP(&rf.dryRun, "dry-run", "n", false, "check every anchor but do not write")
	fl.BoolVarP(&rf.showDiff, "diff", "d", false, "print a diff of the change")
	fl.BoolVar(&rf.backup, "backup", false, "keep the original as <target>.orig")
	fl.BoolVar(&rf.noLock, "no-lock", false, "do not take the per-target lock")
	fl.BoolVar(&rf.noJournal, "no-journal", false, "do not record this run in the journal")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	var pf planFlags
	var showDiff bool
	cmd := &cobra.Command{
		Use:   "check [target]",
		Short: "Verify that every anchor of a plan is present, without writing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, target, err := pf.resolve(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), target, plan, runFlags{dryRun: true, showDiff: showDiff})
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVarP(&showDiff, "diff", "d", false, "print the diff the plan would produce")
	return cmd
}

func (a *app) invertCmd() *cobra.Command {
	var pf planFlags
	cmd := &cobra.Command{
		Use:   "invert [target]",
		Short: "Print the inverse of a plan as YAML",
		Long: `Print the inverse of a plan as YAML.

The inverse runs the directives in reverse order with needle and
replacement swapped, undoing the plan as long as no replacement text
also occurs elsewhere in the file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf.reverse = true
			plan, target, err := pf.buildPlan(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				target = args[0]
			}
			// The inverse may be saved anywhere, so a relative target
			// would resolve against the wrong directory.
			if target != "" {
				if target, err = filepath.Abs(target); err != nil {
					return err
				}
			}
			return planfile.Encode(a.stdout, plan, target)
		},
	}
	pf.register(cmd)
	_ = cmd.Flags().MarkHidden("reverse")
	return cmd
}

// run applies plan to target and reports, journals and announces the
// outcome. The returned error is the patch error, if any; journal and
// notification failures are only logged.
func (a *app) run(ctx context.Context, target string, plan patch.Plan, rf runFlags) error {
	timeout := time.Duration(a.cfg.LockTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = patch.DefaultLockTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := patch.Options{
		DryRun: rf.dryRun,
		Backup: rf.backup || a.cfg.Backup,
		NoLock: rf.noLock || !a.cfg.Lock,
		Logger: a.logger,
	}
	res, err := patch.ApplyFile(ctx, target, plan, opts)

	printResult(a.stdout, target, res, err, rf.dryRun)
	if rf.showDiff && res != nil && res.Changed() && err == nil {
		if derr := diffview.Render(a.stdout, res.Before, res.After, colorEnabled(a.stdout)); derr != nil {
			a.logger.Warn("diff", zap.Error(derr))
		}
		removed, added := diffview.Stats(res.Before, res.After)
		fmt.Fprintf(a.stdout, "%s removed, %s added\n", plural(removed, "line"), plural(added, "line"))
	}

	run := journal.NewRun(target, plan.Name, res, err, rf.dryRun)
	if a.cfg.Journal && !rf.noJournal {
		a.record(run)
	}
	if !rf.dryRun && (a.cfg.Notify.Webhook != nil || a.cfg.Notify.MQTT != nil) {
		if nerr := notify.Dispatch(a.cfg.Notify, notify.NewReport(run)); nerr != nil {
			a.logger.Warn("notify", zap.Error(nerr))
		}
	}
	return err
}

// record appends run to the journal. Best-effort.
func (a *app) record(run journal.Run) {
	store, err := journal.Open(a.cfg.JournalBackend, paths.DataDir())
	if err != nil {
		a.logger.Warn("journal open", zap.Error(err))
		return
	}
	defer store.Close()
	if err := store.Record(run); err != nil {
		a.logger.Warn("journal record", zap.String("path", store.Path()), zap.Error(err))
	}
}

// printResult writes a per-directive summary of a run. Errors themselves
// are printed by main.
func printResult(w io.Writer, target string, res *patch.Result, err error, dryRun bool) {
	if res == nil {
		return
	}
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	for _, s := range res.Steps {
		label := patch.Directive{Name: s.Name}.Label(s.Index)
		switch {
		case s.Skipped:
			fmt.Fprintf(w, "  %s %s  %s  %s\n", warn("-"), label, s.Occurrence, warn("skipped (needle absent)"))
		default:
			fmt.Fprintf(w, "  %s %s  %s  %s\n", ok("✓"), label, s.Occurrence, plural(s.Replacements, "replacement"))
		}
	}

	if err != nil {
		return
	}
	total := plural(res.Replacements(), "replacement")
	switch {
	case dryRun && res.Changed():
		fmt.Fprintf(w, "%s: all anchors present, would write %s\n", target, total)
	case dryRun:
		fmt.Fprintf(w, "%s: all anchors present, no change\n", target)
	case res.Written:
		fmt.Fprintf(w, "%s: patched (%s)\n", target, total)
		if res.BackupPath != "" {
			fmt.Fprintf(w, "%s: original kept at %s\n", target, res.BackupPath)
		}
	default:
		fmt.Fprintf(w, "%s: no change\n", target)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// colorEnabled reports whether w is a terminal that should get colors.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && !color.NoColor && diffview.IsTerminal(f)
}
