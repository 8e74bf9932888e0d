package journal

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Mavwarf/anchorpatch/internal/config"
	"github.com/Mavwarf/anchorpatch/internal/patch"
)

func TestNewRunOutcomes(t *testing.T) {
	written := &patch.Result{Written: true, Before: "a", After: "b",
		Steps: []patch.StepResult{{Index: 0, Name: "n", Occurrence: patch.All, Replacements: 2}}}
	unchanged := &patch.Result{}

	tests := []struct {
		name   string
		res    *patch.Result
		err    error
		dryRun bool
		want   Outcome
	}{
		{"applied", written, nil, false, OutcomeApplied},
		{"unchanged", unchanged, nil, false, OutcomeUnchanged},
		{"dry run", unchanged, nil, true, OutcomeDryRun},
		{"failed", unchanged, &patch.PreconditionError{Needle: "x"}, false, OutcomeFailed},
		{"failed before load", nil, errors.New("read /x: no such file"), false, OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRun("/x", "p", tt.res, tt.err, tt.dryRun)
			if r.Outcome != tt.want {
				t.Errorf("Outcome = %q, want %q", r.Outcome, tt.want)
			}
			if r.ID == "" {
				t.Error("ID is empty")
			}
			if tt.err != nil && r.Error != tt.err.Error() {
				t.Errorf("Error = %q, want %q", r.Error, tt.err.Error())
			}
		})
	}

	r := NewRun("/x", "p", written, nil, false)
	if len(r.Steps) != 1 || r.Steps[0].Index != 1 || r.Steps[0].Occurrence != "all" || r.Steps[0].Replacements != 2 {
		t.Errorf("Steps = %+v", r.Steps)
	}
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	fs, err := Open(config.BackendFile, dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.(*FileStore); !ok || fs.Path() != filepath.Join(dir, "journal.log") {
		t.Errorf("file backend = %T %s", fs, fs.Path())
	}

	ss, err := Open(config.BackendSQLite, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()
	if _, ok := ss.(*SQLiteStore); !ok {
		t.Errorf("sqlite backend = %T", ss)
	}

	if _, err := Open("csv", dir); err == nil {
		t.Error("expected error for unknown backend")
	}
}
