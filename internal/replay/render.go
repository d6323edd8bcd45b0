package replay

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/evaltree"
	"github.com/vinayprograms/tracereplay/internal/objgraph"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Renderer formats views as styled terminal text.
type Renderer struct {
	output        io.Writer
	maxValueWidth int  // Maximum width of a rendered value (0 = unlimited)
	showHeap      bool // Print frame and heap tables
	showOutput    bool // Print terminal output so far
	contextLines  int  // Source lines shown around the current line
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithMaxValueWidth truncates rendered values longer than size.
func WithMaxValueWidth(size int) RendererOption {
	return func(r *Renderer) {
		r.maxValueWidth = size
	}
}

// WithHeap toggles the frame and heap tables.
func WithHeap(show bool) RendererOption {
	return func(r *Renderer) {
		r.showHeap = show
	}
}

// WithOutput toggles the terminal output block.
func WithOutput(show bool) RendererOption {
	return func(r *Renderer) {
		r.showOutput = show
	}
}

// WithContextLines sets how many source lines surround the current one.
func WithContextLines(n int) RendererOption {
	return func(r *Renderer) {
		if n >= 0 {
			r.contextLines = n
		}
	}
}

// NewRenderer creates a Renderer writing to output.
func NewRenderer(output io.Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{
		output:        output,
		maxValueWidth: 40,
		showHeap:      true,
		showOutput:    true,
		contextLines:  3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render prints one position.
func (r *Renderer) Render(v *View) {
	r.printHeader(v)
	r.printSource(v)
	r.printOverlay(v)
	if r.showHeap {
		r.printFrame(v)
		r.printHeap(v)
		r.printArrows(v)
	}
	if r.showOutput {
		r.printOutput(v)
	}
}

// RenderString renders one position into a string.
func (r *Renderer) RenderString(v *View) string {
	var buf strings.Builder
	oldOutput := r.output
	r.output = &buf
	r.Render(v)
	r.output = oldOutput
	return buf.String()
}

// Timeline prints every position of tr in traversal order, one row each, followed by a summary.
func (r *Renderer) Timeline(ctx context.Context, tr *tracefile.Trace, mode cursor.Mode) error {
	c := cursor.New(tr)
	c.SetMode(mode)

	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"),
		dimStyle.Render(fmt.Sprintf("(%d lines, %s mode)", tr.LineCount(), mode)))
	fmt.Fprintln(r.output, divider)

	seq := 1
	var last *View
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := Snapshot(tr, c.Position())
		r.printTimelineRow(seq, v)
		last = v
		seq++
		if !c.Next() {
			break
		}
	}

	if last != nil {
		r.printSummary(tr, last)
	}
	return nil
}

func (r *Renderer) printHeader(v *View) {
	fmt.Fprintln(r.output)
	pos := fmt.Sprintf("line %d", v.LineNumber)
	if v.StepCount > 0 {
		pos += fmt.Sprintf("  step %d/%d", v.Position.Step+1, v.StepCount)
	}
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TRACE"), valueStyle.Render(pos))
	fmt.Fprintln(r.output, divider)

	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Mode:  "), valueStyle.Render(v.Mode.String()))
	if v.Event != "" {
		fmt.Fprintf(r.output, "%s %s %s\n", labelStyle.Render("Event: "),
			eventStyle.Render(string(v.Event)), dimStyle.Render(truncate(v.Focus, r.maxValueWidth)))
	}
	switch {
	case v.Finished:
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:"), successStyle.Render("finished"))
	case v.Playing:
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:"), warnStyle.Render("playing"))
	}
	fmt.Fprintln(r.output)
}

func (r *Renderer) printSource(v *View) {
	if v.Source == "" {
		return
	}
	lines := strings.Split(strings.TrimRight(v.Source, "\n"), "\n")
	from := max(1, v.LineNumber-r.contextLines)
	to := min(len(lines), v.LineNumber+r.contextLines)

	fmt.Fprintln(r.output, blockHeaderStyle.Render("source"))
	for n := from; n <= to; n++ {
		num := dimStyle.Render(fmt.Sprintf("%4d", n))
		if n == v.LineNumber {
			fmt.Fprintf(r.output, "%s %s %s\n", gutterMarkStyle.Render("▶"), num, currentLineStyle.Render(lines[n-1]))
			continue
		}
		fmt.Fprintf(r.output, "  %s %s\n", num, dimStyle.Render(lines[n-1]))
	}
	fmt.Fprintln(r.output)
}

func (r *Renderer) printOverlay(v *View) {
	if v.Tree == nil || v.Tree.Width() == 0 {
		return
	}
	fmt.Fprintln(r.output, blockHeaderStyle.Render("evaluation"))
	fmt.Fprintf(r.output, "  %s\n\n", r.overlay(v.Tree))
}

// overlay renders the evaluation tree with values and the highlighted node styled.
func (r *Renderer) overlay(tree *evaltree.Node) string {
	var b strings.Builder
	for _, s := range tree.Segments() {
		text := s.Text
		style := valueStyle
		if s.Evaluated {
			text = "<" + truncate(text, r.maxValueWidth) + ">"
			style = evaluatedStyle
		}
		if s.Highlighted {
			style = highlightStyle
		}
		b.WriteString(style.Render(text))
	}
	return b.String()
}

func (r *Renderer) printFrame(v *View) {
	if v.Graph == nil || len(v.Graph.Frame.Variables) == 0 {
		return
	}
	fmt.Fprintln(r.output, blockHeaderStyle.Render("frame"))

	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Name", "Type", "Value"})
	for _, row := range v.Graph.Frame.Variables {
		mark := ""
		if row.Changed {
			mark = changedStyle.Render("*")
		}
		t.AppendRow(table.Row{mark, row.Label, row.Type, r.formatSlot(row.Slot)})
	}
	t.Render()
	fmt.Fprintln(r.output)
}

func (r *Renderer) printHeap(v *View) {
	if v.Graph == nil || len(v.Graph.Nodes) == 0 {
		return
	}
	fmt.Fprintln(r.output, blockHeaderStyle.Render("heap"))
	for _, n := range v.Graph.Nodes {
		fmt.Fprintf(r.output, "%s %s\n", refStyle.Render("#"+string(n.ID)), labelStyle.Render(n.Type))

		t := table.NewWriter()
		t.SetOutputMirror(r.output)
		t.SetStyle(table.StyleLight)
		header := "Index"
		if n.Kind == tracefile.KindMapping {
			header = "Key"
		}
		t.AppendHeader(table.Row{header, "Value", ""})
		for i, s := range n.Slots {
			t.AppendRow(table.Row{s.Label, r.formatSlot(s), r.arrowsAt(v, n.ID, i)})
		}
		t.Render()
	}
	fmt.Fprintln(r.output)
}

// arrowsAt lists the cursor variables pointing at one heap slot.
func (r *Renderer) arrowsAt(v *View, id tracefile.ObjectID, index int) string {
	var names []string
	for _, a := range v.Arrows {
		if a.Ref == id && a.Index == index {
			names = append(names, a.Relationship.Cursor)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return arrowStyle.Render("← " + strings.Join(names, ", "))
}

func (r *Renderer) printArrows(v *View) {
	if len(v.Arrows) == 0 {
		return
	}
	fmt.Fprintln(r.output, blockHeaderStyle.Render("pointers"))
	for _, a := range v.Arrows {
		fmt.Fprintf(r.output, "  %s %s %s\n",
			valueStyle.Render(a.Relationship.Cursor),
			arrowStyle.Render("→"),
			valueStyle.Render(fmt.Sprintf("%s[%s]", a.Relationship.Container, a.Label)))
	}
	fmt.Fprintln(r.output)
}

func (r *Renderer) printOutput(v *View) {
	if len(v.Output) == 0 {
		return
	}
	fmt.Fprintln(r.output, blockHeaderStyle.Render("output"))
	for _, c := range v.Output {
		for _, line := range strings.Split(strings.TrimRight(c.Text, "\n"), "\n") {
			fmt.Fprintf(r.output, "  %s %s\n", dimStyle.Render(fmt.Sprintf("%4d │", c.LineNumber)), valueStyle.Render(line))
		}
	}
	fmt.Fprintln(r.output)
}

func (r *Renderer) printTimelineRow(seq int, v *View) {
	seqNum := seqStyle.Render(fmt.Sprintf("%d", seq))
	where := dimStyle.Render(fmt.Sprintf("L%-3d s%-2d", v.LineNumber, v.Position.Step))
	event := eventStyle.Render(fmt.Sprintf("%-17s", v.Event))
	content := ""
	if v.Tree != nil {
		content = r.overlay(v.Tree)
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, where, event, content)
}

func (r *Renderer) printSummary(tr *tracefile.Trace, last *View) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	if last.Finished {
		fmt.Fprintln(r.output, successStyle.Render("FINISHED"))
	} else {
		fmt.Fprintln(r.output, warnStyle.Render("INCOMPLETE"))
	}
	if tr.Result != nil {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Result:"), valueStyle.Render(tracefile.FormatValue(tr.Result)))
	}
	if out := last.OutputText(); out != "" {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Output:"), valueStyle.Render(truncate(strings.TrimRight(out, "\n"), 200)))
	}

	PrintStats(r.output, ComputeStats(tr))
}

// formatSlot renders a slot's content for tables.
func (r *Renderer) formatSlot(s objgraph.Slot) string {
	switch s.Kind {
	case objgraph.SlotReference:
		return refStyle.Render("→ #" + string(s.Ref))
	case objgraph.SlotAbsent:
		return errorStyle.Render("<missing #" + string(s.Ref) + ">")
	default:
		return truncate(tracefile.FormatValue(s.Value), r.maxValueWidth)
	}
}

// truncate shortens s to maxLen runes, marking the cut. maxLen <= 0 means unlimited.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
