// Package journal records every patch run so that later invocations can
// show what was changed, when, and why a run was refused.
package journal

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Mavwarf/anchorpatch/internal/config"
	"github.com/Mavwarf/anchorpatch/internal/patch"
	"github.com/Mavwarf/anchorpatch/internal/paths"
)

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // file rewritten
	OutcomeUnchanged Outcome = "unchanged" // every check passed, nothing to write
	OutcomeDryRun    Outcome = "dry-run"   // every check passed, write suppressed
	OutcomeFailed    Outcome = "failed"
)

// Step is the journal view of one directive.
type Step struct {
	Index        int // 1-based
	Name         string
	Occurrence   string
	Replacements int
	Skipped      bool
}

// Run is one journal entry.
type Run struct {
	ID      string
	Time    time.Time
	Target  string
	Plan    string
	Outcome Outcome
	Written bool
	Error   string
	Steps   []Step
}

// Replacements totals the substitutions across all steps.
func (r Run) Replacements() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Replacements
	}
	return n
}

// NewRun builds a journal entry from the result of patch.ApplyFile.
// res may be nil when the run failed before the target was loaded.
func NewRun(target, plan string, res *patch.Result, err error, dryRun bool) Run {
	r := Run{
		ID:     uuid.NewString(),
		Time:   time.Now(),
		Target: target,
		Plan:   plan,
	}
	if res != nil {
		r.Written = res.Written
		for _, s := range res.Steps {
			r.Steps = append(r.Steps, Step{
				Index:        s.Index + 1,
				Name:         s.Name,
				Occurrence:   s.Occurrence.String(),
				Replacements: s.Replacements,
				Skipped:      s.Skipped,
			})
		}
	}

	switch {
	case err != nil:
		r.Outcome = OutcomeFailed
		r.Error = err.Error()
	case dryRun:
		r.Outcome = OutcomeDryRun
	case r.Written:
		r.Outcome = OutcomeApplied
	default:
		r.Outcome = OutcomeUnchanged
	}
	return r
}

// Store abstracts journal storage.
type Store interface {
	Record(run Run) error

	Entries(days int) ([]Run, error) // 0 = all, oldest first
	ReadContent() (string, error)    // raw journal text

	Clean(days int) (int, error) // remove runs older than days, return removed count
	Clear() error

	Path() string
	Close() error
}

// Open returns the store for backend inside dir, creating dir if needed.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case config.BackendFile:
		return NewFileStore(filepath.Join(dir, paths.JournalFileName)), nil
	case config.BackendSQLite, "":
		return NewSQLiteStore(filepath.Join(dir, paths.JournalDBName))
	}
	return nil, fmt.Errorf("journal: unknown backend %q", backend)
}

// DayCutoff returns midnight N days ago (inclusive) in the local timezone.
// For days=1 it returns today at midnight, for days=7 it returns 6 days ago, etc.
func DayCutoff(days int) time.Time {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -(days - 1))
}
