package replay

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Stats holds aggregate statistics for a trace.
type Stats struct {
	Lines       int
	SourceLines int
	Steps       int

	// Steps per event kind
	EventCounts map[tracefile.Event]int

	// Expressions that produced a value
	Evaluations int

	// Distinct variable names seen in locals or var tables
	Variables []string

	// Largest object table of any line
	MaxHeapObjects int

	MaxStepsPerLine      int
	MaxStepsLineNumber   int
	Relationships        int
	StdoutBytes          int
	DroppedSteps         int
	DistinctLinesVisited int
}

// ComputeStats calculates aggregate statistics from a trace.
func ComputeStats(tr *tracefile.Trace) *Stats {
	stats := &Stats{
		Lines:         tr.LineCount(),
		EventCounts:   make(map[tracefile.Event]int),
		Relationships: len(tr.Relationships),
	}
	if tr.Metadata.Code != "" {
		stats.SourceLines = len(splitLines(tr.Metadata.Code))
	}

	vars := make(map[string]bool)
	visited := make(map[int]bool)

	for i := range tr.Lines {
		line := &tr.Lines[i]
		visited[line.LineNumber] = true
		stats.Steps += len(line.Steps)
		stats.DroppedSteps += line.Dropped()

		if len(line.Steps) > stats.MaxStepsPerLine {
			stats.MaxStepsPerLine = len(line.Steps)
			stats.MaxStepsLineNumber = line.LineNumber
		}
		if len(line.ObjectTable) > stats.MaxHeapObjects {
			stats.MaxHeapObjects = len(line.ObjectTable)
		}
		for _, k := range line.Locals.Keys() {
			vars[k] = true
		}
		for _, k := range line.VarTable.Keys() {
			vars[k] = true
		}

		for _, step := range line.Steps {
			stats.EventCounts[step.Event()]++
			if step.Event() == tracefile.EventAfterExpression {
				stats.Evaluations++
			}
			stats.StdoutBytes += len(step.Base().Stdout)
			for _, k := range step.Base().Locals.Keys() {
				vars[k] = true
			}
		}
	}

	for v := range vars {
		stats.Variables = append(stats.Variables, v)
	}
	sort.Strings(stats.Variables)
	stats.DistinctLinesVisited = len(visited)

	return stats
}

// PrintStats outputs the statistics to the writer.
func PrintStats(w io.Writer, stats *Stats) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("TRACE STATISTICS"))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Trace lines", stats.Lines})
	if stats.SourceLines > 0 {
		t.AppendRow(table.Row{"Source lines", stats.SourceLines})
	}
	t.AppendRow(table.Row{"Distinct lines run", stats.DistinctLinesVisited})
	t.AppendRow(table.Row{"Steps", stats.Steps})
	t.AppendRow(table.Row{"Expressions evaluated", stats.Evaluations})
	if stats.MaxStepsPerLine > 0 {
		t.AppendRow(table.Row{"Busiest line", fmt.Sprintf("%d (%d steps)", stats.MaxStepsLineNumber, stats.MaxStepsPerLine)})
	}
	t.AppendRow(table.Row{"Variables", len(stats.Variables)})
	t.AppendRow(table.Row{"Max heap objects", stats.MaxHeapObjects})
	t.AppendRow(table.Row{"Relationships", stats.Relationships})
	t.AppendRow(table.Row{"Stdout bytes", stats.StdoutBytes})
	if stats.DroppedSteps > 0 {
		t.AppendRow(table.Row{"Dropped steps", stats.DroppedSteps})
	}
	t.Render()

	if len(stats.EventCounts) > 0 {
		events := table.NewWriter()
		events.SetOutputMirror(w)
		events.SetStyle(table.StyleLight)
		events.AppendHeader(table.Row{"Event", "Count"})
		for _, e := range []tracefile.Event{
			tracefile.EventBeforeStatement,
			tracefile.EventAfterStatement,
			tracefile.EventBeforeExpression,
			tracefile.EventAfterExpression,
		} {
			if n := stats.EventCounts[e]; n > 0 {
				events.AppendRow(table.Row{string(e), n})
			}
		}
		events.Render()
	}
	fmt.Fprintln(w)
}

func splitLines(code string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			lines = append(lines, code[start:i])
			start = i + 1
		}
	}
	if start < len(code) {
		lines = append(lines, code[start:])
	}
	return lines
}
