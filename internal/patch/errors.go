package patch

import (
	"errors"
	"fmt"
)

var (
	// ErrPreconditionNotMet matches any *PreconditionError.
	ErrPreconditionNotMet = errors.New("precondition not met")
	// ErrInvalidPlan matches any *ConfigError.
	ErrInvalidPlan = errors.New("invalid plan")
)

// PreconditionError reports a required needle that was absent from the
// document at the point its directive was evaluated.
type PreconditionError struct {
	Index  int
	Name   string
	Needle string
}

func (e *PreconditionError) Error() string {
	d := Directive{Name: e.Name}
	return fmt.Sprintf("directive %s: expected snippet not found: %q", d.Label(e.Index), snippet(e.Needle))
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionNotMet
}

// ConfigError reports a malformed directive. It is raised before any I/O.
type ConfigError struct {
	Index  int
	Name   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid plan: %s %s", e.Field, e.Reason)
	}
	d := Directive{Name: e.Name}
	return fmt.Sprintf("invalid directive %s: %s %s", d.Label(e.Index), e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidPlan
}

// IOError wraps a read, write or lock failure on the target.
type IOError struct {
	Op   string // "read", "write", "backup", "lock"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// snippet shortens long needles for error messages.
func snippet(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
