package replay

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

func TestSnapshot_OutputAppearsAtItsStep(t *testing.T) {
	tr := loadFixture(t, "sum.json")

	before := Snapshot(tr, cursor.Position{Line: 3, Step: 3})
	if len(before.Output) != 0 {
		t.Errorf("expected no output before the print returns, got %+v", before.Output)
	}

	at := Snapshot(tr, cursor.Position{Line: 3, Step: 4})
	want := []Chunk{{LineNumber: 4, Text: "7\n"}}
	if diff := cmp.Diff(want, at.Output); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if !at.OutputContains("7") {
		t.Error("OutputContains should find 7")
	}
}

func TestSnapshot_Locals(t *testing.T) {
	tr := loadFixture(t, "sum.json")

	start := Snapshot(tr, cursor.Position{Line: 0, Step: 0})
	if start.HasLocal("a") {
		t.Error("a should not exist before the first statement runs")
	}

	assigned := Snapshot(tr, cursor.Position{Line: 0, Step: 1})
	if !assigned.LocalEquals("a", 3) {
		t.Errorf("expected a == 3, locals %+v", assigned.Locals)
	}

	// no step snapshot yet on line 4: the line's own locals apply
	printing := Snapshot(tr, cursor.Position{Line: 3, Step: 0})
	if !printing.LocalEquals("total", 7) {
		t.Errorf("expected total == 7, locals %+v", printing.Locals)
	}
	if printing.LocalEquals("total", 8) {
		t.Error("total should not equal 8")
	}
	if printing.LocalEquals("missing", nil) {
		t.Error("an unknown variable never equals anything")
	}
}

func TestSnapshot_HeapLocals(t *testing.T) {
	tr := loadFixture(t, "lists.jsonl")
	v := Snapshot(tr, cursor.Position{Line: 3, Step: 7})

	if !v.HasLocal("nums") {
		t.Fatal("nums should be visible through the var table")
	}
	if !v.LocalEquals("nums", []interface{}{10, 20, 30}) {
		got, _ := v.LocalValue("nums")
		t.Errorf("expected nums == [10 20 30], got %v", got)
	}
	if !v.LocalEquals("x", 20) {
		t.Errorf("expected x == 20, locals %+v", v.Locals)
	}
	if len(v.Arrows) != 2 {
		t.Errorf("expected arrows for i and x, got %+v", v.Arrows)
	}
}

func TestSnapshot_Finished(t *testing.T) {
	tr := loadFixture(t, "sum.json")

	if Snapshot(tr, cursor.Position{Line: 3, Step: 4}).Finished {
		t.Error("one step before the end is not finished")
	}
	if !Snapshot(tr, cursor.Position{Line: 3, Step: 5}).Finished {
		t.Error("the last step of the last line is finished")
	}
}

func TestSnapshot_EventAndFocus(t *testing.T) {
	tr := loadFixture(t, "sum.json")
	v := Snapshot(tr, cursor.Position{Line: 2, Step: 3})

	if v.Event != tracefile.EventBeforeExpression {
		t.Errorf("expected before_expression, got %s", v.Event)
	}
	if v.Focus != "b" {
		t.Errorf("expected focus b, got %q", v.Focus)
	}
	if v.LineNumber != 3 || v.StepCount != 6 || v.LineCount != 4 {
		t.Errorf("unexpected shape: line %d steps %d lines %d", v.LineNumber, v.StepCount, v.LineCount)
	}
	if got := v.Tree.String(); got != "total = <3> + b" {
		t.Errorf("unexpected overlay %q", got)
	}
}

func TestSnapshot_Pure(t *testing.T) {
	tr := loadFixture(t, "lists.jsonl")
	pos := cursor.Position{Line: 3, Step: 6}

	if diff := cmp.Diff(Snapshot(tr, pos), Snapshot(tr, pos), viewOpts); diff != "" {
		t.Errorf("snapshot not deterministic (-first +second):\n%s", diff)
	}
}

func TestPlayer_View(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))
	p.End()

	v := p.View(context.Background())
	if v.PlayerID != p.ID() {
		t.Errorf("expected player id %s, got %s", p.ID(), v.PlayerID)
	}
	if !v.Finished {
		t.Error("expected finished view at the end")
	}
	if v.OutputText() != "7\n" {
		t.Errorf("expected output 7, got %q", v.OutputText())
	}
}

func TestPositionAt(t *testing.T) {
	tr := loadFixture(t, "sum.json")

	tests := []struct {
		line, step int
		want       cursor.Position
	}{
		{0, 0, cursor.Position{Line: 3, Step: 5}},
		{1, 0, cursor.Position{Line: 0, Step: 1}},
		{3, 2, cursor.Position{Line: 2, Step: 1}},
		{3, 99, cursor.Position{Line: 2, Step: 5}},
		{99, 1, cursor.Position{Line: 3, Step: 0}},
	}
	for _, tt := range tests {
		if got := PositionAt(tr, tt.line, tt.step); got != tt.want {
			t.Errorf("PositionAt(%d, %d) = %+v, want %+v", tt.line, tt.step, got, tt.want)
		}
	}
}
