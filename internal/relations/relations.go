// Package relations resolves declared container/cursor relationships into index arrows
// against the current locals and object graph.
package relations

import (
	"reflect"
	"strconv"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/tracereplay/internal/objgraph"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

var logger = logging.New().WithComponent("relations")

// SetLogger routes the package's log lines through parent, keeping its output and level.
func SetLogger(parent *logging.Logger) {
	logger = parent.WithComponent("relations")
}

// Arrow points from a cursor variable at one position of a container.
type Arrow struct {
	Relationship tracefile.Relationship
	// Index is the slot position within the container.
	Index int
	// Label is the slot label (index or key) the arrow points at.
	Label string
	// Ref is the container's graph node; empty for containers held inline (strings).
	Ref tracefile.ObjectID
}

type element struct {
	label  string
	key    string
	value  interface{}
	opaque bool
}

type container struct {
	ref     tracefile.ObjectID
	keyed   bool
	members []element
}

// Resolve emits one arrow per relationship that matches. Relationships whose container or
// cursor is not visible, or whose cursor falls outside the container, emit nothing.
func Resolve(rels []tracefile.Relationship, locals tracefile.Ordered[interface{}], g *objgraph.Graph) []Arrow {
	var arrows []Arrow
	for _, rel := range rels {
		c, ok := lookupContainer(rel.Container, locals, g)
		if !ok {
			continue
		}
		cur, ok := lookupValue(rel.Cursor, locals, g)
		if !ok {
			logger.Debug("relationship cursor not visible", map[string]interface{}{
				"container": rel.Container,
				"cursor":    rel.Cursor,
			})
			continue
		}
		idx := c.position(rel.Type, cur)
		if idx < 0 {
			continue
		}
		arrows = append(arrows, Arrow{
			Relationship: rel,
			Index:        idx,
			Label:        c.members[idx].label,
			Ref:          c.ref,
		})
	}
	return arrows
}

func (c *container) position(kind tracefile.RelationKind, cur interface{}) int {
	switch kind {
	case tracefile.RelKeyIndex, tracefile.RelKeyAccess:
		if c.keyed {
			return c.findKey(cur)
		}
		i, ok := tracefile.AsInt(cur)
		if !ok || i < 0 || i >= len(c.members) {
			return -1
		}
		return i
	case tracefile.RelValueIndex, tracefile.RelDictValue:
		return c.findValue(cur)
	case tracefile.RelDictKey:
		if !c.keyed {
			return -1
		}
		return c.findKey(cur)
	case tracefile.RelMembershipTest:
		if c.keyed {
			return c.findKey(cur)
		}
		return c.findValue(cur)
	default:
		logger.Debug("ignoring unknown relationship kind", map[string]interface{}{"type": string(kind)})
		return -1
	}
}

func (c *container) findValue(v interface{}) int {
	for i, m := range c.members {
		if !m.opaque && reflect.DeepEqual(m.value, v) {
			return i
		}
	}
	return -1
}

func (c *container) findKey(v interface{}) int {
	key := keyString(v)
	for i, m := range c.members {
		if m.key == key {
			return i
		}
	}
	return -1
}

// keyString renders a cursor value the way mapping keys are serialized in the trace.
func keyString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return tracefile.FormatValue(v)
}

// lookupValue finds a variable's current value: resolved locals first, then frame rows,
// materializing referenced objects.
func lookupValue(name string, locals tracefile.Ordered[interface{}], g *objgraph.Graph) (interface{}, bool) {
	if v, ok := locals.Get(name); ok {
		return v, true
	}
	if g == nil {
		return nil, false
	}
	v, ok := g.Frame.Lookup(name)
	if !ok {
		return nil, false
	}
	switch v.Kind {
	case objgraph.SlotPrimitive:
		return v.Value, true
	case objgraph.SlotReference:
		return g.Materialize(v.Ref), true
	}
	return nil, false
}

func lookupContainer(name string, locals tracefile.Ordered[interface{}], g *objgraph.Graph) (*container, bool) {
	if g != nil {
		if v, ok := g.Frame.Lookup(name); ok {
			switch v.Kind {
			case objgraph.SlotReference:
				if n, ok := g.Node(v.Ref); ok {
					return fromNode(n, g), true
				}
			case objgraph.SlotPrimitive:
				if s, ok := v.Value.(string); ok {
					return fromString(s), true
				}
			}
		}
	}
	v, ok := locals.Get(name)
	if !ok {
		return nil, false
	}
	switch x := v.(type) {
	case string:
		return fromString(x), true
	case []interface{}:
		c := &container{}
		for i, item := range x {
			c.members = append(c.members, element{label: strconv.Itoa(i), value: item})
		}
		return c, true
	}
	return nil, false
}

// fromNode lists a graph node's slots. Nested objects are compared by their
// materialized value; absent slots never match.
func fromNode(n *objgraph.Node, g *objgraph.Graph) *container {
	c := &container{ref: n.ID, keyed: n.Kind == tracefile.KindMapping}
	for _, s := range n.Slots {
		e := element{label: s.Label, key: s.Key, value: s.Value}
		switch s.Kind {
		case objgraph.SlotReference:
			e.value = g.Materialize(s.Ref)
		case objgraph.SlotAbsent:
			e.opaque = true
		}
		c.members = append(c.members, e)
	}
	return c
}

func fromString(s string) *container {
	c := &container{}
	i := 0
	for _, r := range s {
		c.members = append(c.members, element{label: strconv.Itoa(i), value: string(r)})
		i++
	}
	return c
}
