// Package planfile reads and writes patch plans as YAML documents.
//
//	name: late-param
//	target: ../lib/main.dart
//	directives:
//	  - name: pass late duration
//	    needle: "trackedDuration: _currentTrackedDuration(task),\n"
//	    replacement_file: late_param.txt
//	    occurrence: first
//	    required: true
//
// JSON is accepted as well, since it is valid YAML.
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/Mavwarf/anchorpatch/internal/patch"
)

// File is a parsed plan document.
type File struct {
	Plan patch.Plan
	// Target is the file the plan applies to, resolved against the plan's
	// directory. Empty when the document does not name one.
	Target string
	// Path is where the document was read from, if anywhere.
	Path string
}

type document struct {
	Name       string         `yaml:"name"`
	Target     string         `yaml:"target,omitempty"`
	Directives []directiveDoc `yaml:"directives"`
}

type directiveDoc struct {
	Name            string  `yaml:"name,omitempty"`
	Needle          *string `yaml:"needle,omitempty"`
	NeedleFile      string  `yaml:"needle_file,omitempty"`
	Replacement     *string `yaml:"replacement,omitempty"`
	ReplacementFile string  `yaml:"replacement_file,omitempty"`
	Occurrence      string  `yaml:"occurrence,omitempty"`
	Required        *bool   `yaml:"required,omitempty"`
}

// Load reads the plan document at path. Relative target and *_file paths
// are resolved against the document's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	f, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse decodes a plan document. baseDir anchors relative paths.
// Unknown keys are rejected so that a misspelt field cannot silently turn
// into an empty replacement.
func Parse(data []byte, baseDir string) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &patch.ConfigError{Index: -1, Field: "document", Reason: "is empty"}
		}
		return nil, fmt.Errorf("%w: %v", patch.ErrInvalidPlan, err)
	}

	f := &File{Plan: patch.Plan{Name: doc.Name}}
	if doc.Target != "" {
		f.Target = resolve(baseDir, doc.Target)
	}

	for i, dd := range doc.Directives {
		d, err := dd.directive(i, baseDir)
		if err != nil {
			return nil, err
		}
		f.Plan.Directives = append(f.Plan.Directives, d)
	}

	if err := f.Plan.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (dd directiveDoc) directive(i int, baseDir string) (patch.Directive, error) {
	fail := func(field, reason string) (patch.Directive, error) {
		return patch.Directive{}, &patch.ConfigError{Index: i, Name: dd.Name, Field: field, Reason: reason}
	}

	needle, err := literal(dd.Needle, dd.NeedleFile, baseDir)
	if err != nil {
		return fail("needle", err.Error())
	}
	replacement, err := literal(dd.Replacement, dd.ReplacementFile, baseDir)
	if err != nil {
		return fail("replacement", err.Error())
	}
	occ, err := patch.ParseOccurrence(dd.Occurrence)
	if err != nil {
		return fail("occurrence", err.Error())
	}

	required := true
	if dd.Required != nil {
		required = *dd.Required
	}

	return patch.Directive{
		Name:        dd.Name,
		Needle:      needle,
		Replacement: replacement,
		Occurrence:  occ,
		Optional:    !required,
	}, nil
}

// literal returns the inline value or the exact bytes of file. Exactly
// one of the two must be given.
func literal(inline *string, file, baseDir string) (string, error) {
	switch {
	case inline != nil && file != "":
		return "", errors.New("set inline text or a file, not both")
	case inline != nil:
		return *inline, nil
	case file != "":
		b, err := os.ReadFile(resolve(baseDir, file))
		if err != nil {
			return "", fmt.Errorf("reading file: %v", err)
		}
		return string(b), nil
	}
	return "", errors.New("is required (inline or _file)")
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

// quoted is a literal emitted in double-quoted style. Block scalars
// cannot carry a leading tab or a lone line break, and plain scalars lose
// trailing spaces; double quotes escape all of those.
type quoted string

func (q quoted) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: string(q)}, nil
}

type encodedDocument struct {
	Name       string             `yaml:"name,omitempty"`
	Target     string             `yaml:"target,omitempty"`
	Directives []encodedDirective `yaml:"directives"`
}

type encodedDirective struct {
	Name        string `yaml:"name,omitempty"`
	Needle      quoted `yaml:"needle"`
	Replacement quoted `yaml:"replacement"`
	Occurrence  string `yaml:"occurrence,omitempty"`
	Required    *bool  `yaml:"required,omitempty"`
}

// Encode writes plan as a YAML document that Parse reads back to the same
// plan. Needles and replacements are written inline. target is written
// verbatim when non-empty, so callers should pass an absolute path unless
// the document will be stored where a relative one resolves.
func Encode(w io.Writer, plan patch.Plan, target string) error {
	doc := encodedDocument{Name: plan.Name, Target: target, Directives: []encodedDirective{}}
	for i, d := range plan.Directives {
		if !utf8.ValidString(d.Needle) || !utf8.ValidString(d.Replacement) {
			return &patch.ConfigError{Index: i, Name: d.Name, Field: "needle",
				Reason: "is not valid UTF-8 and cannot be written inline; use needle_file/replacement_file"}
		}
		ed := encodedDirective{
			Name:        d.Name,
			Needle:      quoted(d.Needle),
			Replacement: quoted(d.Replacement),
		}
		if d.Occurrence != patch.First {
			ed.Occurrence = d.Occurrence.String()
		}
		if d.Optional {
			f := false
			ed.Required = &f
		}
		doc.Directives = append(doc.Directives, ed)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
