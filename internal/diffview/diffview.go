// Package diffview prints a line diff of a patch run's before/after text.
package diffview

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

// Context is the number of unchanged lines kept around each change.
const Context = 2

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type op int

const (
	opEqual op = iota
	opDelete
	opInsert
)

type line struct {
	op   op
	text string
}

// lines computes the line-level diff between before and after.
func lines(before, after string) []line {
	dmp := diffpatch.New()
	a, b, table := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), table)

	var out []line
	for _, d := range diffs {
		o := opEqual
		switch d.Type {
		case diffpatch.DiffDelete:
			o = opDelete
		case diffpatch.DiffInsert:
			o = opInsert
		}
		for _, l := range splitLines(d.Text) {
			out = append(out, line{op: o, text: l})
		}
	}
	return out
}

// splitLines splits s into lines without their terminators. A trailing
// newline does not produce an empty final line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}

// Stats counts removed and added lines.
func Stats(before, after string) (removed, added int) {
	for _, l := range lines(before, after) {
		switch l.op {
		case opDelete:
			removed++
		case opInsert:
			added++
		}
	}
	return removed, added
}

// Render writes a diff of before → after to w. Changed lines are prefixed
// with "-" or "+", unchanged lines with a space; runs of unchanged lines
// longer than 2*Context are collapsed into an "@@" marker. Nothing is
// written when the texts are equal.
func Render(w io.Writer, before, after string, colored bool) error {
	if before == after {
		return nil
	}

	del := color.New(color.FgRed)
	ins := color.New(color.FgGreen)
	hunk := color.New(color.FgCyan)
	for _, c := range []*color.Color{del, ins, hunk} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	ls := lines(before, after)
	for i := 0; i < len(ls); {
		l := ls[i]
		if l.op != opEqual {
			var err error
			if l.op == opDelete {
				_, err = del.Fprintln(w, "-"+l.text)
			} else {
				_, err = ins.Fprintln(w, "+"+l.text)
			}
			if err != nil {
				return err
			}
			i++
			continue
		}

		// Run of equal lines [i, j).
		j := i
		for j < len(ls) && ls[j].op == opEqual {
			j++
		}
		lead, trail := Context, Context
		if i == 0 {
			lead = 0
		}
		if j == len(ls) {
			trail = 0
		}
		if j-i > lead+trail {
			for k := i; k < i+lead; k++ {
				fmt.Fprintln(w, " "+ls[k].text)
			}
			hunk.Fprintf(w, "@@ %d unchanged lines @@\n", j-i-lead-trail)
			for k := j - trail; k < j; k++ {
				fmt.Fprintln(w, " "+ls[k].text)
			}
		} else {
			for k := i; k < j; k++ {
				fmt.Fprintln(w, " "+ls[k].text)
			}
		}
		i = j
	}
	return nil
}
