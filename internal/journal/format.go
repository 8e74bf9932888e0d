package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatRun renders a run as a text block: one summary line followed by
// one detail line per step, terminated by a blank line.
//
//	2025-01-01T10:00:00Z  id=…  outcome=applied  target="/src/main.dart"  plan="late"  written=true
//	2025-01-01T10:00:00Z    step[1] first  replacements=1  name="pass duration"
func FormatRun(r Run) string {
	ts := r.Time.Format(time.RFC3339)

	var b strings.Builder
	fmt.Fprintf(&b, "%s  id=%s  outcome=%s  target=%q  plan=%q  written=%t",
		ts, r.ID, r.Outcome, r.Target, r.Plan, r.Written)
	if r.Error != "" {
		fmt.Fprintf(&b, "  error=%q", r.Error)
	}
	b.WriteByte('\n')

	for _, s := range r.Steps {
		fmt.Fprintf(&b, "%s    step[%d] %s  replacements=%d", ts, s.Index, s.Occurrence, s.Replacements)
		if s.Skipped {
			b.WriteString("  skipped=true")
		}
		if s.Name != "" {
			fmt.Fprintf(&b, "  name=%q", s.Name)
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// SplitBlocks splits journal content on blank lines, trims whitespace from
// each block, and returns only non-empty blocks.
func SplitBlocks(content string) []string {
	raw := strings.Split(content, "\n\n")
	blocks := make([]string, 0, len(raw))
	for _, b := range raw {
		b = strings.TrimSpace(b)
		if b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// ParseRuns parses journal text produced by FormatRun. Malformed blocks are
// silently skipped.
func ParseRuns(content string) []Run {
	var runs []Run
	for _, block := range SplitBlocks(content) {
		if r, ok := parseBlock(block); ok {
			runs = append(runs, r)
		}
	}
	return runs
}

func parseBlock(block string) (Run, bool) {
	lines := strings.Split(block, "\n")
	ts, fields, ok := parseLine(lines[0])
	if !ok {
		return Run{}, false
	}

	r := Run{
		ID:      fields["id"],
		Time:    ts,
		Target:  fields["target"],
		Plan:    fields["plan"],
		Outcome: Outcome(fields["outcome"]),
		Written: fields["written"] == "true",
		Error:   fields["error"],
	}
	if r.Outcome == "" {
		return Run{}, false
	}

	for _, line := range lines[1:] {
		if s, ok := parseStepLine(line); ok {
			r.Steps = append(r.Steps, s)
		}
	}
	return r, true
}

// parseStepLine extracts a step from a detail line like:
//
//	2025-01-01T00:00:00Z    step[1] first  replacements=1  name="x"
func parseStepLine(line string) (Step, bool) {
	idx := strings.Index(line, "step[")
	if idx < 0 {
		return Step{}, false
	}
	after := line[idx+len("step["):]
	bracket := strings.Index(after, "]")
	if bracket < 0 {
		return Step{}, false
	}
	num, err := strconv.Atoi(after[:bracket])
	if err != nil {
		return Step{}, false
	}

	rest := strings.TrimLeft(after[bracket+1:], " ")
	occ, rest, _ := strings.Cut(rest, " ")
	fields := parseFields(rest)
	n, _ := strconv.Atoi(fields["replacements"])
	return Step{
		Index:        num,
		Name:         fields["name"],
		Occurrence:   occ,
		Replacements: n,
		Skipped:      fields["skipped"] == "true",
	}, true
}

// parseLine splits a summary line into its leading timestamp and key=value
// fields.
func parseLine(line string) (time.Time, map[string]string, bool) {
	tsStr, rest, _ := strings.Cut(line, " ")
	ts, err := time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return time.Time{}, nil, false
	}
	return ts, parseFields(rest), true
}

// parseFields reads space-separated key=value pairs. Values starting with
// a double quote are Go-quoted strings and may contain spaces.
func parseFields(s string) map[string]string {
	fields := map[string]string{}
	for {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return fields
		}
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return fields
		}
		key := s[:eq]
		s = s[eq+1:]

		if strings.HasPrefix(s, `"`) {
			q, err := strconv.QuotedPrefix(s)
			if err != nil {
				return fields
			}
			v, _ := strconv.Unquote(q)
			fields[key] = v
			s = s[len(q):]
			continue
		}

		end := strings.IndexByte(s, ' ')
		if end < 0 {
			fields[key] = s
			return fields
		}
		fields[key] = s[:end]
		s = s[end:]
	}
}

// FilterRunsByDays keeps runs at or after DayCutoff(days). days <= 0 keeps all.
func FilterRunsByDays(runs []Run, days int) []Run {
	if days <= 0 {
		return runs
	}
	cutoff := DayCutoff(days)
	var kept []Run
	for _, r := range runs {
		if !r.Time.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}
