package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/vinayprograms/tracereplay/internal/lesson"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	nameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
)

// Run checks the trace against every lesson and fails if any check fails.
func (c *CheckCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	tr, err := loadTrace(c.Trace, logger)
	if err != nil {
		return err
	}

	lessons, err := expandLessons(c.Lesson)
	if err != nil {
		return err
	}
	if len(lessons) == 0 {
		return fmt.Errorf("no lessons found")
	}

	failed := checkLessons(os.Stdout, tr, lessons)
	logger.Debug("lessons checked", map[string]interface{}{
		"lessons": len(lessons),
		"failed":  failed,
	})
	if failed > 0 {
		return fmt.Errorf("%d of %d lessons failed", failed, len(lessons))
	}
	return nil
}

// expandLessons loads lesson files, expanding directories to the lessons inside them.
func expandLessons(paths []string) ([]*lesson.Lesson, error) {
	var lessons []*lesson.Lesson
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to access lesson: %w", err)
		}

		if !info.IsDir() {
			l, err := lesson.Load(path)
			if err != nil {
				return nil, err
			}
			lessons = append(lessons, l)
			continue
		}

		refs, err := lesson.Discover(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read lesson directory: %w", err)
		}
		for _, ref := range refs {
			l, err := lesson.Load(ref.Path)
			if err != nil {
				return nil, err
			}
			lessons = append(lessons, l)
		}
	}
	return lessons, nil
}

// checkLessons prints one result table per lesson and returns how many lessons failed.
func checkLessons(w io.Writer, tr *tracefile.Trace, lessons []*lesson.Lesson) int {
	failed := 0
	for _, l := range lessons {
		results := l.Check(tr)

		status := passStyle.Render("PASS")
		if !lesson.Passed(results) {
			status = failStyle.Render("FAIL")
			failed++
		}
		fmt.Fprintf(w, "%s %s\n", status, nameStyle.Render(l.Name))
		if l.Description != "" {
			fmt.Fprintf(w, "  %s\n", l.Description)
		}

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"", "Check", "Detail"})
		for _, r := range results {
			mark := passStyle.Render("✓")
			if !r.Passed {
				mark = failStyle.Render("✗")
			}
			t.AppendRow(table.Row{mark, r.Check, r.Detail})
		}
		t.Render()
		fmt.Fprintln(w)
	}
	return failed
}
