package patch

import "strings"

// StepResult records what one directive did.
type StepResult struct {
	Index        int
	Name         string
	Occurrence   Occurrence
	Replacements int
	Skipped      bool // optional directive whose needle was absent
}

// Apply runs plan against content in memory and returns the transformed
// text. Each needle is looked up in the text produced by the directives
// before it. On a missing required needle it returns a *PreconditionError
// along with the results of the directives that did run; the returned
// string is then the unmodified input.
func Apply(content string, plan Plan) (string, []StepResult, error) {
	if err := plan.Validate(); err != nil {
		return content, nil, err
	}

	cur := content
	steps := make([]StepResult, 0, len(plan.Directives))
	for i, d := range plan.Directives {
		next, n := substitute(cur, d)
		step := StepResult{Index: i, Name: d.Name, Occurrence: d.Occurrence, Replacements: n}
		if n == 0 {
			if !d.Optional {
				return content, steps, &PreconditionError{Index: i, Name: d.Name, Needle: d.Needle}
			}
			step.Skipped = true
		}
		steps = append(steps, step)
		cur = next
	}
	return cur, steps, nil
}

// substitute replaces d.Needle in s according to d.Occurrence and reports
// how many replacements were made.
func substitute(s string, d Directive) (string, int) {
	n := strings.Count(s, d.Needle)
	if n == 0 {
		return s, 0
	}
	if d.Occurrence == All {
		return strings.ReplaceAll(s, d.Needle, d.Replacement), n
	}
	return strings.Replace(s, d.Needle, d.Replacement, 1), 1
}
