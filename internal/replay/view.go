package replay

import (
	"context"
	"reflect"
	"strings"

	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/evaltree"
	"github.com/vinayprograms/tracereplay/internal/objgraph"
	"github.com/vinayprograms/tracereplay/internal/relations"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Chunk is the stdout one source line produced at one step.
type Chunk struct {
	LineNumber int
	Text       string
}

// View is everything visible at one cursor position. It is rebuilt from scratch
// for every position and never written back into the player.
type View struct {
	PlayerID string
	Position cursor.Position
	Mode     cursor.Mode
	Playing  bool

	LineNumber int
	LineCount  int
	StepCount  int
	// Source is the full program text for the editor surface.
	Source string
	Event  tracefile.Event
	Focus  string

	Tree   *evaltree.Node
	Graph  *objgraph.Graph
	Arrows []relations.Arrow
	Locals tracefile.Ordered[interface{}]
	Output []Chunk

	Finished bool
}

// View rebuilds the view for the player's current position.
func (p *Player) View(ctx context.Context) *View {
	pos := p.cursor.Position()
	_, span := startRebuildSpan(ctx, p.id, pos, p.cursor.Mode())

	v := Snapshot(p.trace, pos)
	v.PlayerID = p.id
	v.Mode = p.cursor.Mode()
	v.Playing = p.cursor.Playing()
	v.Finished = p.cursor.Finished()

	endRebuildSpan(span, v)
	return v
}

// Snapshot derives the view of tr at pos. It is a pure function of its inputs.
func Snapshot(tr *tracefile.Trace, pos cursor.Position) *View {
	v := &View{
		Position:  pos,
		LineCount: tr.LineCount(),
		Source:    tr.Metadata.Code,
	}

	line, ok := tr.Line(pos.Line)
	if !ok {
		v.Tree = evaltree.Build(tr, nil, 0)
		v.Graph = objgraph.Resolve(nil)
		v.Finished = true
		return v
	}

	v.LineNumber = line.LineNumber
	v.StepCount = len(line.Steps)
	if pos.Step >= 0 && pos.Step < len(line.Steps) {
		step := line.Steps[pos.Step]
		v.Event = step.Event()
		v.Focus = step.Base().Focus
	}

	v.Tree = evaltree.Build(tr, line, pos.Step)
	v.Graph = objgraph.Resolve(line)
	v.Locals = currentLocals(line, pos.Step)
	v.Arrows = relations.Resolve(tr.Relationships, v.Locals, v.Graph)
	v.Output = collectOutput(tr, pos)
	v.Finished = pos.Line >= tr.LineCount()-1 && pos.Step >= len(line.Steps)-1
	return v
}

// PositionAt resolves 1-based line and step numbers in tr, clamping both. A zero line
// means the final position; a zero step means the line's last step.
func PositionAt(tr *tracefile.Trace, line, step int) cursor.Position {
	c := cursor.New(tr)
	if line <= 0 {
		c.End()
		return c.Position()
	}
	c.SetLine(line - 1)
	if step <= 0 {
		c.SetStep(tr.StepCount(c.Position().Line))
	} else {
		c.SetStep(step - 1)
	}
	return c.Position()
}

// currentLocals returns the newest step-level snapshot at or before step, or the
// line's own locals when no step carries one.
func currentLocals(line *tracefile.Line, step int) tracefile.Ordered[interface{}] {
	if step >= len(line.Steps) {
		step = len(line.Steps) - 1
	}
	for i := step; i >= 0; i-- {
		if locals := line.Steps[i].Base().Locals; locals != nil {
			return locals
		}
	}
	return line.Locals
}

// collectOutput concatenates stdout in step order up to and including pos.
func collectOutput(tr *tracefile.Trace, pos cursor.Position) []Chunk {
	var out []Chunk
	for i := 0; i <= pos.Line && i < tr.LineCount(); i++ {
		line := &tr.Lines[i]
		last := len(line.Steps) - 1
		if i == pos.Line && pos.Step < last {
			last = pos.Step
		}
		for s := 0; s <= last; s++ {
			text := line.Steps[s].Base().Stdout
			if text == "" {
				continue
			}
			if k := len(out) - 1; k >= 0 && out[k].LineNumber == line.LineNumber {
				out[k].Text += text
				continue
			}
			out = append(out, Chunk{LineNumber: line.LineNumber, Text: text})
		}
	}
	return out
}

// OutputText joins all output chunks.
func (v *View) OutputText() string {
	var b strings.Builder
	for _, c := range v.Output {
		b.WriteString(c.Text)
	}
	return b.String()
}

// OutputContains reports whether the terminal output so far contains s.
func (v *View) OutputContains(s string) bool {
	return strings.Contains(v.OutputText(), s)
}

// HasLocal reports whether a variable is visible at this position.
func (v *View) HasLocal(name string) bool {
	if v.Locals.Has(name) {
		return true
	}
	if v.Graph != nil {
		_, ok := v.Graph.Frame.Lookup(name)
		return ok
	}
	return false
}

// LocalValue returns a variable's current value. Heap-resident variables resolve
// to the formatted contents of their object.
func (v *View) LocalValue(name string) (interface{}, bool) {
	if val, ok := v.Locals.Get(name); ok {
		return val, true
	}
	if v.Graph == nil {
		return nil, false
	}
	row, ok := v.Graph.Frame.Lookup(name)
	if !ok {
		return nil, false
	}
	if row.Kind == objgraph.SlotPrimitive {
		return row.Value, true
	}
	return v.Graph.Materialize(row.Ref), true
}

// LocalEquals reports whether a variable currently holds want. Numbers compare by value
// regardless of their Go type.
func (v *View) LocalEquals(name string, want interface{}) bool {
	got, ok := v.LocalValue(name)
	if !ok {
		return false
	}
	return reflect.DeepEqual(normalize(got), normalize(want))
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}
