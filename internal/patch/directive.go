// Package patch applies ordered, anchor-checked literal substitutions to a
// single text file.
//
// A Plan is a sequence of Directives. Each directive names a needle that
// must be present, byte for byte, in the document as left by the directives
// before it. If any required needle is missing, the run fails and the file
// on disk is left untouched; otherwise the fully transformed content is
// written back once, atomically.
package patch

import (
	"fmt"
	"strings"
)

// Occurrence selects which matches of a needle are replaced.
type Occurrence int

const (
	// First replaces only the leftmost occurrence.
	First Occurrence = iota
	// All replaces every non-overlapping occurrence, left to right.
	All
)

func (o Occurrence) String() string {
	switch o {
	case First:
		return "first"
	case All:
		return "all"
	}
	return fmt.Sprintf("Occurrence(%d)", int(o))
}

// ParseOccurrence maps "first" (or "") and "all" to an Occurrence.
func ParseOccurrence(s string) (Occurrence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return First, nil
	case "all":
		return All, nil
	}
	return First, fmt.Errorf("unknown occurrence %q (want first or all)", s)
}

// Directive is one needle → replacement edit.
//
// The zero value of Optional makes a directive required: a missing needle
// aborts the whole plan.
type Directive struct {
	Name        string
	Needle      string
	Replacement string
	Occurrence  Occurrence
	Optional    bool
}

// Label identifies the directive in messages: its name if set, otherwise
// its 1-based position.
func (d Directive) Label(index int) string {
	if d.Name != "" {
		return fmt.Sprintf("#%d %q", index+1, d.Name)
	}
	return fmt.Sprintf("#%d", index+1)
}

// Plan is an ordered list of directives applied to one document. Later
// directives see the output of earlier ones, so a needle may be text that
// a previous directive inserted.
type Plan struct {
	Name       string
	Directives []Directive
}

// Validate checks every directive before any file is touched.
func (p Plan) Validate() error {
	for i, d := range p.Directives {
		if d.Needle == "" {
			return &ConfigError{Index: i, Name: d.Name, Field: "needle", Reason: "must not be empty"}
		}
		if d.Occurrence != First && d.Occurrence != All {
			return &ConfigError{Index: i, Name: d.Name, Field: "occurrence",
				Reason: fmt.Sprintf("unknown policy %d", int(d.Occurrence))}
		}
	}
	return nil
}

// Inverse returns the plan that undoes p: directives in reverse order with
// needle and replacement swapped. It fails if any directive has an empty
// replacement, since the inverse would have an empty needle.
//
// Applying p then p.Inverse() restores the original text as long as no
// replacement also occurs elsewhere in the document.
func (p Plan) Inverse() (Plan, error) {
	inv := Plan{Name: p.Name, Directives: make([]Directive, 0, len(p.Directives))}
	for i := len(p.Directives) - 1; i >= 0; i-- {
		d := p.Directives[i]
		if d.Replacement == "" {
			return Plan{}, &ConfigError{Index: i, Name: d.Name, Field: "replacement",
				Reason: "empty replacement cannot be inverted"}
		}
		inv.Directives = append(inv.Directives, Directive{
			Name:        d.Name,
			Needle:      d.Replacement,
			Replacement: d.Needle,
			Occurrence:  d.Occurrence,
			Optional:    d.Optional,
		})
	}
	return inv, nil
}
