// Package objgraph turns a line's flat variable and object tables into a
// renderable reference graph: one frame of variables plus one node per
// reachable mutable object.
package objgraph

import (
	"strconv"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

var logger = logging.New().WithComponent("objgraph")

// SetLogger routes the package's log lines through parent, keeping its output and level.
func SetLogger(parent *logging.Logger) {
	logger = parent.WithComponent("objgraph")
}

// SlotKind says how a slot's content is shown.
type SlotKind int

const (
	// SlotPrimitive embeds a scalar inline.
	SlotPrimitive SlotKind = iota
	// SlotReference points at a materialized graph node.
	SlotReference
	// SlotAbsent marks a container element whose object id is missing from the table.
	SlotAbsent
)

func (k SlotKind) String() string {
	switch k {
	case SlotReference:
		return "reference"
	case SlotAbsent:
		return "absent"
	default:
		return "primitive"
	}
}

// Slot is one labeled cell: a frame variable, a sequence element or a mapping entry.
type Slot struct {
	Label string
	// Key is the mapping key for mapping slots; empty otherwise.
	Key  string
	Kind SlotKind
	// Type is the object type tag of the slot's content (e.g. "int", "list").
	Type  string
	Value interface{}
	Ref   tracefile.ObjectID
}

// Variable is one frame row.
type Variable struct {
	Slot
	// Changed is set when the line's delta reports this variable as just changed.
	Changed  bool
	Previous interface{}
}

// Frame lists every visible variable of the current line.
type Frame struct {
	Variables []Variable
}

// Lookup returns the frame row for a variable name.
func (f *Frame) Lookup(name string) (*Variable, bool) {
	for i := range f.Variables {
		if f.Variables[i].Label == name {
			return &f.Variables[i], true
		}
	}
	return nil, false
}

// Node is a materialized mutable object.
type Node struct {
	ID    tracefile.ObjectID
	Type  string
	Kind  tracefile.Kind
	Slots []Slot
}

// Graph is the resolved object graph of one line.
type Graph struct {
	Frame Frame
	// Nodes are in materialization order; each object id appears exactly once.
	Nodes []*Node

	byID map[tracefile.ObjectID]*Node
}

// Node returns the materialized node for an object id.
func (g *Graph) Node(id tracefile.ObjectID) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Resolve builds the graph for one trace line. Missing ids degrade locally:
// a variable pointing nowhere is skipped, a container element pointing nowhere
// becomes an absent slot so positions stay aligned.
func Resolve(line *tracefile.Line) *Graph {
	g := &Graph{byID: make(map[tracefile.ObjectID]*Node)}
	if line == nil {
		return g
	}

	w := newWalker(line.ObjectTable)

	for _, v := range line.VarTable {
		entry, ok := line.ObjectTable[v.Value]
		if !ok {
			logger.Debug("variable points at missing object", map[string]interface{}{
				"line":   line.LineNumber,
				"name":   v.Key,
				"object": string(v.Value),
			})
			continue
		}
		slot := w.slotFor(v.Key, "", v.Value, &entry)
		g.Frame.Variables = append(g.Frame.Variables, frameVar(slot, line.Delta))
	}

	// resolved primitives that never made it into the var table
	for _, l := range line.Locals {
		if line.VarTable.Has(l.Key) {
			continue
		}
		slot := Slot{Label: l.Key, Kind: SlotPrimitive, Type: scalarType(l.Value), Value: l.Value}
		g.Frame.Variables = append(g.Frame.Variables, frameVar(slot, line.Delta))
	}

	for _, n := range w.drain() {
		g.Nodes = append(g.Nodes, n)
		g.byID[n.ID] = n
	}
	return g
}

func frameVar(slot Slot, delta map[string]interface{}) Variable {
	prev, changed := delta[slot.Label]
	return Variable{Slot: slot, Changed: changed, Previous: prev}
}

// walker materializes mutable objects with an explicit worklist. Object ids are
// interned into an arena; seen[i] guards against re-materializing shared or cyclic objects.
type walker struct {
	table map[tracefile.ObjectID]tracefile.ObjectEntry
	arena map[tracefile.ObjectID]int
	seen  []bool
	queue []tracefile.ObjectID
	out   []*Node
}

func newWalker(table map[tracefile.ObjectID]tracefile.ObjectEntry) *walker {
	return &walker{
		table: table,
		arena: make(map[tracefile.ObjectID]int, len(table)),
	}
}

func (w *walker) intern(id tracefile.ObjectID) int {
	if i, ok := w.arena[id]; ok {
		return i
	}
	i := len(w.seen)
	w.arena[id] = i
	w.seen = append(w.seen, false)
	return i
}

// schedule queues id for materialization unless it was already scheduled.
func (w *walker) schedule(id tracefile.ObjectID) {
	i := w.intern(id)
	if w.seen[i] {
		return
	}
	w.seen[i] = true
	w.queue = append(w.queue, id)
}

// slotFor describes an entry inline or as a reference, scheduling mutable targets.
func (w *walker) slotFor(label, key string, id tracefile.ObjectID, entry *tracefile.ObjectEntry) Slot {
	if !entry.Mutable {
		return Slot{Label: label, Key: key, Kind: SlotPrimitive, Type: entry.Type, Value: entry.Scalar}
	}
	w.schedule(id)
	return Slot{Label: label, Key: key, Kind: SlotReference, Type: entry.Type, Ref: id}
}

func (w *walker) drain() []*Node {
	for len(w.queue) > 0 {
		id := w.queue[0]
		w.queue = w.queue[1:]
		entry := w.table[id]
		w.out = append(w.out, w.materialize(id, &entry))
	}
	return w.out
}

func (w *walker) materialize(id tracefile.ObjectID, entry *tracefile.ObjectEntry) *Node {
	n := &Node{ID: id, Type: entry.Type, Kind: entry.Kind()}

	switch n.Kind {
	case tracefile.KindSequence:
		n.Slots = make([]Slot, 0, len(entry.Items))
		for i, childID := range entry.Items {
			n.Slots = append(n.Slots, w.child(strconv.Itoa(i), "", childID))
		}
	case tracefile.KindMapping:
		n.Slots = make([]Slot, 0, len(entry.Entries))
		for _, kv := range entry.Entries {
			n.Slots = append(n.Slots, w.child(kv.Key, kv.Key, kv.Value))
		}
	default:
		// mutable object without children (e.g. an opaque instance): show its value inline
		n.Slots = []Slot{{Label: "", Kind: SlotPrimitive, Type: entry.Type, Value: entry.Scalar}}
	}
	return n
}

func (w *walker) child(label, key string, id tracefile.ObjectID) Slot {
	entry, ok := w.table[id]
	if !ok {
		logger.Debug("container slot points at missing object", map[string]interface{}{
			"slot":   label,
			"object": string(id),
		})
		return Slot{Label: label, Key: key, Kind: SlotAbsent, Ref: id}
	}
	return w.slotFor(label, key, id, &entry)
}

// scalarType names the JSON type of an already-resolved local.
func scalarType(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case float64:
		if x == float64(int64(x)) {
			return "int"
		}
		return "float"
	case string:
		return "str"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "dict"
	default:
		return "object"
	}
}

// Materialize converts the object rooted at id into plain values: sequences become
// []interface{}, mappings map[string]interface{}. A reference back into an object
// already being expanded becomes the string "[...]".
func (g *Graph) Materialize(id tracefile.ObjectID) interface{} {
	return g.materialize(id, map[tracefile.ObjectID]bool{})
}

func (g *Graph) materialize(id tracefile.ObjectID, active map[tracefile.ObjectID]bool) interface{} {
	n, ok := g.byID[id]
	if !ok {
		return nil
	}
	if active[id] {
		return "[...]"
	}
	active[id] = true
	defer delete(active, id)

	value := func(s Slot) interface{} {
		switch s.Kind {
		case SlotReference:
			return g.materialize(s.Ref, active)
		case SlotAbsent:
			return nil
		default:
			return s.Value
		}
	}

	switch n.Kind {
	case tracefile.KindMapping:
		out := make(map[string]interface{}, len(n.Slots))
		for _, s := range n.Slots {
			out[s.Key] = value(s)
		}
		return out
	case tracefile.KindSequence:
		out := make([]interface{}, 0, len(n.Slots))
		for _, s := range n.Slots {
			out = append(out, value(s))
		}
		return out
	default:
		if len(n.Slots) == 1 {
			return n.Slots[0].Value
		}
		return nil
	}
}
