// Package tracefile holds the immutable in-memory model of one recorded execution.
package tracefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NodeID identifies an AST node within one trace.
type NodeID int

// NoNode marks the absence of an AST node (e.g. a synthetic root).
const NoNode NodeID = -1

// Location is the source span of an AST node. Columns are byte offsets into the line.
type Location struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`
}

// Node is one AST node as supplied by the instrumentation engine.
type Node struct {
	ID       NodeID    `json:"node_id"`
	Type     string    `json:"type"`
	Location *Location `json:"location,omitempty"`
	Children []Child   `json:"-"`
}

// Child is a named child edge of an AST node. List-valued fields yield one Child per element.
type Child struct {
	Field string
	Node  *Node
}

type rawNode struct {
	ID       NodeID                   `json:"node_id"`
	Type     string                   `json:"type"`
	Location *Location                `json:"location,omitempty"`
	Children Ordered[json.RawMessage] `json:"children,omitempty"`
}

// UnmarshalJSON decodes a node and its recursively-typed children.
// Child fields may hold a node, a list of nodes, or scalars (ignored).
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ID = raw.ID
	n.Type = raw.Type
	n.Location = raw.Location
	n.Children = nil

	for _, f := range raw.Children {
		v := bytes.TrimSpace(f.Value)
		if len(v) == 0 {
			continue
		}
		switch v[0] {
		case '{':
			child := &Node{}
			if err := json.Unmarshal(v, child); err != nil {
				return fmt.Errorf("child %q: %w", f.Key, err)
			}
			n.Children = append(n.Children, Child{Field: f.Key, Node: child})
		case '[':
			var items []json.RawMessage
			if err := json.Unmarshal(v, &items); err != nil {
				return fmt.Errorf("child %q: %w", f.Key, err)
			}
			for _, item := range items {
				item = bytes.TrimSpace(item)
				if len(item) == 0 || item[0] != '{' {
					continue
				}
				child := &Node{}
				if err := json.Unmarshal(item, child); err != nil {
					return fmt.Errorf("child %q: %w", f.Key, err)
				}
				n.Children = append(n.Children, Child{Field: f.Key, Node: child})
			}
		}
	}
	return nil
}

// MarshalJSON encodes the node with its children grouped by field.
func (n *Node) MarshalJSON() ([]byte, error) {
	children := Ordered[json.RawMessage]{}
	grouped := map[string][]*Node{}
	var order []string
	for _, c := range n.Children {
		if _, seen := grouped[c.Field]; !seen {
			order = append(order, c.Field)
		}
		grouped[c.Field] = append(grouped[c.Field], c.Node)
	}
	for _, field := range order {
		nodes := grouped[field]
		var data []byte
		var err error
		if len(nodes) == 1 {
			data, err = json.Marshal(nodes[0])
		} else {
			data, err = json.Marshal(nodes)
		}
		if err != nil {
			return nil, err
		}
		children = append(children, Field[json.RawMessage]{Key: field, Value: data})
	}
	return json.Marshal(rawNode{ID: n.ID, Type: n.Type, Location: n.Location, Children: children})
}

// ObjectID identifies an entry in a line's object table.
// Producers emit ids either as JSON numbers or strings; both decode to the same id.
type ObjectID string

// UnmarshalJSON accepts numeric and string ids.
func (id *ObjectID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ObjectID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid object id %s", data)
	}
	*id = ObjectID(n.String())
	return nil
}

// ObjectEntry is one row of a line's object table.
type ObjectEntry struct {
	Type    string
	Mutable bool

	// Scalar holds the inline value of an immutable entry.
	Scalar interface{}
	// Items holds child ids of a mutable sequence (list, tuple, set, ...).
	Items []ObjectID
	// Entries holds key -> child id pairs of a mutable mapping, in declaration order.
	Entries Ordered[ObjectID]
}

// Kind classifies how an entry's contents are laid out.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// Kind reports the entry's layout.
func (e *ObjectEntry) Kind() Kind {
	switch {
	case !e.Mutable:
		return KindScalar
	case e.Entries != nil:
		return KindMapping
	case e.Items != nil:
		return KindSequence
	default:
		return KindScalar
	}
}

type rawObject struct {
	Type    string          `json:"type"`
	Mutable bool            `json:"mutable"`
	Value   json.RawMessage `json:"value"`
}

// UnmarshalJSON interprets value by mutability: immutable entries carry a scalar,
// mutable ones a list of ids or an id mapping.
func (e *ObjectEntry) UnmarshalJSON(data []byte) error {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Type = raw.Type
	e.Mutable = raw.Mutable
	e.Scalar, e.Items, e.Entries = nil, nil, nil

	v := bytes.TrimSpace(raw.Value)
	if len(v) == 0 {
		return nil
	}
	if !raw.Mutable {
		return json.Unmarshal(v, &e.Scalar)
	}
	switch v[0] {
	case '[':
		items := []ObjectID{}
		if err := json.Unmarshal(v, &items); err != nil {
			return fmt.Errorf("object %s items: %w", raw.Type, err)
		}
		e.Items = items
	case '{':
		entries := Ordered[ObjectID]{}
		if err := json.Unmarshal(v, &entries); err != nil {
			return fmt.Errorf("object %s entries: %w", raw.Type, err)
		}
		e.Entries = entries
	default:
		return json.Unmarshal(v, &e.Scalar)
	}
	return nil
}

// MarshalJSON re-encodes the entry in artifact form.
func (e ObjectEntry) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch e.Kind() {
	case KindMapping:
		value = e.Entries
	case KindSequence:
		value = e.Items
	default:
		value = e.Scalar
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawObject{Type: e.Type, Mutable: e.Mutable, Value: data})
}

// RelationKind names how a cursor variable relates to a container variable.
type RelationKind string

const (
	RelKeyIndex       RelationKind = "key_index"
	RelKeyAccess      RelationKind = "key_access"
	RelValueIndex     RelationKind = "value_index"
	RelDictKey        RelationKind = "dict_key"
	RelDictValue      RelationKind = "dict_value"
	RelMembershipTest RelationKind = "membership_test"
)

// Relationship is a static container/cursor link declared by the trace.
type Relationship struct {
	Container string       `json:"container"`
	Cursor    string       `json:"cursor"`
	Type      RelationKind `json:"type"`
	NodeID    NodeID       `json:"node_id"`
}

// Metadata carries the run's source text, inputs and captured output.
type Metadata struct {
	Code   string                 `json:"code"`
	Inputs map[string]interface{} `json:"inputs,omitempty"`
	Stdout string                 `json:"stdout,omitempty"`
}

// Line is the execution instant of one source line.
type Line struct {
	LineNumber  int                      `json:"line_number"`
	Locals      Ordered[interface{}]     `json:"locals,omitempty"`
	ObjectTable map[ObjectID]ObjectEntry `json:"object_table,omitempty"`
	VarTable    Ordered[ObjectID]        `json:"var_table,omitempty"`
	Delta       map[string]interface{}   `json:"delta,omitempty"`
	Steps       []Step                   `json:"-"`

	dropped int
}

// Dropped returns how many step records were discarded while decoding (unknown events).
func (l *Line) Dropped() int {
	return l.dropped
}

// Trace is one loaded recording. It is never mutated after Load.
type Trace struct {
	AST           *Node
	Relationships []Relationship
	Lines         []Line
	Metadata      Metadata
	Result        interface{}

	nodes       map[NodeID]*Node
	sourceLines []string
}

// New builds a trace and its node index. It is used by the loaders and by tests.
func New(ast *Node, rels []Relationship, lines []Line, meta Metadata, result interface{}) *Trace {
	t := &Trace{
		AST:           ast,
		Relationships: rels,
		Lines:         lines,
		Metadata:      meta,
		Result:        result,
		nodes:         make(map[NodeID]*Node),
	}
	t.indexNodes()
	if meta.Code != "" {
		t.sourceLines = strings.Split(strings.ReplaceAll(meta.Code, "\r\n", "\n"), "\n")
	}
	return t
}

// indexNodes walks the AST once with an explicit stack and records every node by id.
func (t *Trace) indexNodes() {
	if t.AST == nil {
		return
	}
	stack := []*Node{t.AST}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := t.nodes[n.ID]; !dup {
			t.nodes[n.ID] = n
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			if n.Children[i].Node != nil {
				stack = append(stack, n.Children[i].Node)
			}
		}
	}
}

// Node looks up an AST node by id.
func (t *Trace) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// NodeCount returns the number of indexed AST nodes.
func (t *Trace) NodeCount() int {
	return len(t.nodes)
}

// SourceLine returns the raw text of a 1-based source line.
func (t *Trace) SourceLine(lineNumber int) (string, bool) {
	if lineNumber < 1 || lineNumber > len(t.sourceLines) {
		return "", false
	}
	return t.sourceLines[lineNumber-1], true
}

// LineCount returns the number of recorded trace lines.
func (t *Trace) LineCount() int {
	return len(t.Lines)
}

// StepCount returns the number of steps recorded for trace line i (0 when out of range).
func (t *Trace) StepCount(i int) int {
	if i < 0 || i >= len(t.Lines) {
		return 0
	}
	return len(t.Lines[i].Steps)
}

// Line returns trace line i.
func (t *Trace) Line(i int) (*Line, bool) {
	if i < 0 || i >= len(t.Lines) {
		return nil, false
	}
	return &t.Lines[i], true
}

// ExecutionError is the single terminal error object an instrumentation run emits
// in place of a trace when the traced program failed to run.
type ExecutionError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString("traced program failed")
	if e.Line > 0 {
		b.WriteString(" at line ")
		b.WriteString(strconv.Itoa(e.Line))
	}
	if e.Type != "" {
		b.WriteString(": ")
		b.WriteString(e.Type)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}
