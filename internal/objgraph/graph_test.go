package objgraph

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

func decodeLine(t *testing.T, doc string) *tracefile.Line {
	t.Helper()
	tr, err := tracefile.Decode(strings.NewReader(`{"trace":[`+doc+`]}`), tracefile.FormatJSON)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	line, _ := tr.Line(0)
	return line
}

func TestResolve_CycleSafety(t *testing.T) {
	line := decodeLine(t, `{"line_number":1,
		"var_table":{"a":"A"},
		"object_table":{
			"A":{"type":"list","mutable":true,"value":["B"]},
			"B":{"type":"list","mutable":true,"value":["A"]}
		},"steps":[]}`)

	g := Resolve(line)

	if len(g.Nodes) != 2 {
		t.Fatalf("expected exactly 2 materialized nodes, got %d", len(g.Nodes))
	}
	a, ok := g.Node("A")
	if !ok {
		t.Fatal("node A missing")
	}
	if a.Slots[0].Kind != SlotReference || a.Slots[0].Ref != "B" {
		t.Errorf("A should reference B: %+v", a.Slots[0])
	}
	b, _ := g.Node("B")
	if b.Slots[0].Kind != SlotReference || b.Slots[0].Ref != "A" {
		t.Errorf("B should reference A: %+v", b.Slots[0])
	}
}

func TestResolve_SelfReference(t *testing.T) {
	line := decodeLine(t, `{"line_number":1,
		"var_table":{"xs":1},
		"object_table":{"1":{"type":"list","mutable":true,"value":[1,1]}},"steps":[]}`)

	g := Resolve(line)
	if len(g.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(g.Nodes))
	}
	for _, s := range g.Nodes[0].Slots {
		if s.Kind != SlotReference || s.Ref != "1" {
			t.Errorf("expected self reference, got %+v", s)
		}
	}
}

func TestResolve_AliasingSharesNode(t *testing.T) {
	line := decodeLine(t, `{"line_number":1,
		"var_table":{"nums":1,"alias":1,"n":2},
		"object_table":{
			"1":{"type":"list","mutable":true,"value":[2,3]},
			"2":{"type":"int","mutable":false,"value":10},
			"3":{"type":"int","mutable":false,"value":20}
		},"steps":[]}`)

	g := Resolve(line)

	if len(g.Nodes) != 1 {
		t.Fatalf("aliased list should materialize once, got %d nodes", len(g.Nodes))
	}
	nums, _ := g.Frame.Lookup("nums")
	alias, _ := g.Frame.Lookup("alias")
	if nums.Ref != alias.Ref || nums.Kind != SlotReference {
		t.Errorf("aliases should share a reference: %+v vs %+v", nums, alias)
	}
	n, _ := g.Frame.Lookup("n")
	if n.Kind != SlotPrimitive || n.Value != float64(10) || n.Type != "int" {
		t.Errorf("immutable variable should be inline: %+v", n)
	}

	want := []Slot{
		{Label: "0", Kind: SlotPrimitive, Type: "int", Value: float64(10)},
		{Label: "1", Kind: SlotPrimitive, Type: "int", Value: float64(20)},
	}
	if diff := cmp.Diff(want, g.Nodes[0].Slots); diff != "" {
		t.Errorf("list slots mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_MappingOrder(t *testing.T) {
	line := decodeLine(t, `{"line_number":1,
		"var_table":{"d":"d"},
		"object_table":{
			"d":{"type":"dict","mutable":true,"value":{"z":"v1","a":"v2","m":"inner"}},
			"v1":{"type":"int","mutable":false,"value":1},
			"v2":{"type":"str","mutable":false,"value":"two"},
			"inner":{"type":"list","mutable":true,"value":[]}
		},"steps":[]}`)

	g := Resolve(line)
	d, ok := g.Node("d")
	if !ok {
		t.Fatal("dict not materialized")
	}
	var labels []string
	for _, s := range d.Slots {
		labels = append(labels, s.Label)
	}
	if strings.Join(labels, ",") != "z,a,m" {
		t.Errorf("mapping slots out of declaration order: %v", labels)
	}
	if d.Slots[2].Kind != SlotReference || d.Slots[2].Key != "m" {
		t.Errorf("nested list should be a reference: %+v", d.Slots[2])
	}
	if _, ok := g.Node("inner"); !ok {
		t.Error("nested mutable child should be materialized")
	}
}

func TestResolve_MissingIDsDegrade(t *testing.T) {
	line := decodeLine(t, `{"line_number":1,
		"var_table":{"ghost":"nowhere","xs":1},
		"object_table":{
			"1":{"type":"list","mutable":true,"value":[2,"gone",3]},
			"2":{"type":"int","mutable":false,"value":1},
			"3":{"type":"int","mutable":false,"value":3}
		},"steps":[]}`)

	g := Resolve(line)

	if _, ok := g.Frame.Lookup("ghost"); ok {
		t.Error("variable pointing at a missing object should be skipped")
	}
	xs, _ := g.Node("1")
	if len(xs.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(xs.Slots))
	}
	if xs.Slots[1].Kind != SlotAbsent {
		t.Errorf("missing child should be absent: %+v", xs.Slots[1])
	}
	if xs.Slots[2].Label != "2" || xs.Slots[2].Value != float64(3) {
		t.Errorf("later slots must keep their positions: %+v", xs.Slots[2])
	}
}

func TestResolve_LocalsAndDelta(t *testing.T) {
	line := decodeLine(t, `{"line_number":2,
		"locals":{"a":3,"name":"bob","xs":"ignored"},
		"var_table":{"xs":1},
		"object_table":{"1":{"type":"list","mutable":true,"value":[]}},
		"delta":{"a":1},
		"steps":[]}`)

	g := Resolve(line)

	var names []string
	for _, v := range g.Frame.Variables {
		names = append(names, v.Label)
	}
	if strings.Join(names, ",") != "xs,a,name" {
		t.Errorf("unexpected frame order: %v", names)
	}
	a, _ := g.Frame.Lookup("a")
	if !a.Changed || a.Previous != float64(1) {
		t.Errorf("delta should flag a as changed from 1: %+v", a)
	}
	name, _ := g.Frame.Lookup("name")
	if name.Changed || name.Type != "str" {
		t.Errorf("unexpected row for name: %+v", name)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	doc := `{"line_number":1,
		"var_table":{"a":"A","b":"B"},
		"object_table":{
			"A":{"type":"dict","mutable":true,"value":{"k":"B","j":"C"}},
			"B":{"type":"list","mutable":true,"value":["A","C"]},
			"C":{"type":"int","mutable":false,"value":5}
		},"steps":[]}`
	first := Resolve(decodeLine(t, doc))
	second := Resolve(decodeLine(t, doc))

	if diff := cmp.Diff(first, second, cmpopts.IgnoreUnexported(Graph{})); diff != "" {
		t.Errorf("resolution is not deterministic (-first +second):\n%s", diff)
	}
}

func TestResolve_NilLine(t *testing.T) {
	g := Resolve(nil)
	if len(g.Nodes) != 0 || len(g.Frame.Variables) != 0 {
		t.Error("nil line should resolve to an empty graph")
	}
}

func TestMaterialize(t *testing.T) {
	line := decodeLine(t, `{"line_number":1,
		"var_table":{"d":"d","loop":"L"},
		"object_table":{
			"d":{"type":"dict","mutable":true,"value":{"xs":"xs","n":"n"}},
			"xs":{"type":"list","mutable":true,"value":["n","n"]},
			"n":{"type":"int","mutable":false,"value":2},
			"L":{"type":"list","mutable":true,"value":["L"]}
		},"steps":[]}`)
	g := Resolve(line)

	want := map[string]interface{}{
		"xs": []interface{}{float64(2), float64(2)},
		"n":  float64(2),
	}
	if diff := cmp.Diff(want, g.Materialize("d")); diff != "" {
		t.Errorf("materialized dict mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]interface{}{"[...]"}, g.Materialize("L")); diff != "" {
		t.Errorf("self-referencing list mismatch (-want +got):\n%s", diff)
	}
	if g.Materialize("missing") != nil {
		t.Error("unknown id should materialize to nil")
	}
}
