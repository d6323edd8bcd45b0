// Package lesson checks a replayed trace against a lesson's expectations.
// Lessons are YAML files, or Markdown files with YAML frontmatter whose body holds
// the instructions shown to the learner.
package lesson

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/replay"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
	"gopkg.in/yaml.v3"
)

// Lesson is one set of expectations about a program's execution.
type Lesson struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	At          *Checkpoint  `yaml:"at,omitempty"`
	Expect      Expectations `yaml:"expect"`

	// From the Markdown body
	Instructions string `yaml:"-"`

	// Location
	Path string `yaml:"-"`
}

// Checkpoint names the position to evaluate at. Both numbers are 1-based;
// a zero step means the line's last step.
type Checkpoint struct {
	Line int `yaml:"line"`
	Step int `yaml:"step,omitempty"`
}

// Expectations are the checks a lesson makes.
type Expectations struct {
	// Finished requires (true) or forbids (false) the position being the end of the trace.
	Finished *bool `yaml:"finished,omitempty"`

	// Locals maps variable names to expected values. A null value only
	// requires the variable to exist.
	Locals map[string]interface{} `yaml:"locals,omitempty"`

	OutputContains []string `yaml:"output_contains,omitempty"`
}

// Ref is a minimal reference for discovery.
type Ref struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Path        string `yaml:"-" json:"path"`
}

// Result is the outcome of one check.
type Result struct {
	Check  string
	Passed bool
	Detail string
}

// Load loads a lesson from a .yaml/.yml or .md file.
func Load(path string) (*Lesson, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lesson: %w", err)
	}

	var l *Lesson
	if strings.EqualFold(filepath.Ext(path), ".md") {
		l, err = ParseMarkdown(string(content))
	} else {
		l, err = Parse(content)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.Path = path
	return l, nil
}

// Parse parses a YAML lesson.
func Parse(content []byte) (*Lesson, error) {
	l := &Lesson{}
	if err := yaml.Unmarshal(content, l); err != nil {
		return nil, fmt.Errorf("invalid lesson: %w", err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// ParseMarkdown parses a Markdown lesson: YAML frontmatter followed by instructions.
func ParseMarkdown(content string) (*Lesson, error) {
	frontmatter, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}

	l, err := Parse([]byte(frontmatter))
	if err != nil {
		return nil, err
	}

	l.Instructions = strings.TrimSpace(body)
	return l, nil
}

func (l *Lesson) validate() error {
	if l.Name == "" {
		return fmt.Errorf("missing required field: name")
	}
	if err := validateName(l.Name); err != nil {
		return err
	}
	if l.At != nil && (l.At.Line < 1 || l.At.Step < 0) {
		return fmt.Errorf("at: line must be >= 1 and step >= 0")
	}
	if l.Expect.Finished == nil && len(l.Expect.Locals) == 0 && len(l.Expect.OutputContains) == 0 {
		return fmt.Errorf("lesson %q expects nothing", l.Name)
	}
	return nil
}

// splitFrontmatter extracts YAML frontmatter from markdown.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	lines := strings.Split(content, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", fmt.Errorf("missing frontmatter delimiter")
	}

	var fmLines []string
	var bodyStart int
	inFrontmatter := true

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			inFrontmatter = false
			bodyStart = i + 1
			break
		}
		fmLines = append(fmLines, lines[i])
	}

	if inFrontmatter {
		return "", "", fmt.Errorf("unclosed frontmatter")
	}

	frontmatter = strings.Join(fmLines, "\n")
	if bodyStart < len(lines) {
		body = strings.Join(lines[bodyStart:], "\n")
	}

	return frontmatter, body, nil
}

// validateName checks a lesson name: 1-64 lowercase letters, digits and single hyphens.
func validateName(name string) error {
	if len(name) > 64 {
		return fmt.Errorf("name must be 1-64 characters")
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("name cannot start or end with hyphen")
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("name cannot contain consecutive hyphens")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("name can only contain lowercase letters, numbers, and hyphens")
		}
	}
	return nil
}

// Discover finds all lessons in a directory. Files that fail to parse are skipped.
func Discover(dir string) ([]Ref, error) {
	var refs []Ref

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".md":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		l, err := Load(path)
		if err != nil {
			continue
		}
		refs = append(refs, Ref{Name: l.Name, Description: l.Description, Path: path})
	}

	return refs, nil
}

// Position resolves the lesson's checkpoint in tr, defaulting to the final position.
func (l *Lesson) Position(tr *tracefile.Trace) cursor.Position {
	if l.At == nil {
		return replay.PositionAt(tr, 0, 0)
	}
	return replay.PositionAt(tr, l.At.Line, l.At.Step)
}

// Check evaluates the lesson against tr at its checkpoint.
func (l *Lesson) Check(tr *tracefile.Trace) []Result {
	return l.Evaluate(replay.Snapshot(tr, l.Position(tr)))
}

// Evaluate runs every expectation against v. Checks appear in a fixed order:
// finished, then locals by name, then output fragments as listed.
func (l *Lesson) Evaluate(v *replay.View) []Result {
	var results []Result

	if want := l.Expect.Finished; want != nil {
		r := Result{Check: fmt.Sprintf("finished == %t", *want), Passed: v.Finished == *want}
		if !r.Passed {
			r.Detail = fmt.Sprintf("stopped at line %d step %d of %d", v.LineNumber, v.Position.Step+1, v.StepCount)
		}
		results = append(results, r)
	}

	names := make([]string, 0, len(l.Expect.Locals))
	for name := range l.Expect.Locals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		want := l.Expect.Locals[name]
		if want == nil {
			r := Result{Check: fmt.Sprintf("%s is defined", name), Passed: v.HasLocal(name)}
			if !r.Passed {
				r.Detail = "not in scope"
			}
			results = append(results, r)
			continue
		}

		r := Result{Check: fmt.Sprintf("%s == %s", name, tracefile.FormatValue(normalizeYAML(want))), Passed: v.LocalEquals(name, want)}
		if !r.Passed {
			if got, ok := v.LocalValue(name); ok {
				r.Detail = "got " + tracefile.FormatValue(got)
			} else {
				r.Detail = "not in scope"
			}
		}
		results = append(results, r)
	}

	for _, s := range l.Expect.OutputContains {
		r := Result{Check: fmt.Sprintf("output contains %q", s), Passed: v.OutputContains(s)}
		if !r.Passed {
			r.Detail = fmt.Sprintf("output was %q", v.OutputText())
		}
		results = append(results, r)
	}

	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// normalizeYAML converts decoded YAML numbers to float64 so they print like trace values.
func normalizeYAML(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = normalizeYAML(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[k] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
