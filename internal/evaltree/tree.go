// Package evaltree replays a line's steps into a nested tree that shows which parts
// of the source line are still raw text and which have been replaced by values.
package evaltree

import (
	"strings"

	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Fragment is one child of a Node: either literal source text or a nested node.
type Fragment struct {
	Text string
	Node *Node
}

func (f Fragment) width() int {
	if f.Node != nil {
		return f.Node.Width()
	}
	return len(f.Text)
}

// Node is a wrapped span of the source line.
type Node struct {
	NodeID      tracefile.NodeID
	HasValue    bool
	Value       interface{}
	Children    []Fragment
	Highlighted bool
	// Offset is the byte column of the node's first character in the original line.
	Offset int
}

// Text concatenates every leaf text fragment, ignoring values. For a root node it
// always equals the trimmed source line.
func (n *Node) Text() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	for _, c := range n.Children {
		if c.Node != nil {
			c.Node.writeText(b)
			continue
		}
		b.WriteString(c.Text)
	}
}

// Width is the byte length of the source span the node covers.
func (n *Node) Width() int {
	w := 0
	for _, c := range n.Children {
		w += c.width()
	}
	return w
}

// Find returns the first node with id in pre-order.
func (n *Node) Find(id tracefile.NodeID) *Node {
	if n.NodeID == id {
		return n
	}
	for _, c := range n.Children {
		if c.Node == nil {
			continue
		}
		if found := c.Node.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits n and every nested node in pre-order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if c.Node != nil && !c.Node.Walk(fn) {
			return false
		}
	}
	return true
}

// HighlightedNode returns the highlighted node, if any.
func (n *Node) HighlightedNode() *Node {
	var hit *Node
	n.Walk(func(x *Node) bool {
		if x.Highlighted {
			hit = x
			return false
		}
		return true
	})
	return hit
}

func (n *Node) clearHighlight() {
	n.Walk(func(x *Node) bool {
		x.Highlighted = false
		return true
	})
}

// Segment is one run of display text.
type Segment struct {
	Text string
	// Evaluated is set when Text is a rendered value replacing source text.
	Evaluated   bool
	Highlighted bool
}

// Segments flattens the tree into display runs. A node with a value renders as its
// value only; its children are kept for bookkeeping but not shown.
func (n *Node) Segments() []Segment {
	var out []Segment
	n.segments(false, &out)
	return out
}

func (n *Node) segments(hl bool, out *[]Segment) {
	hl = hl || n.Highlighted
	if n.HasValue {
		*out = append(*out, Segment{Text: tracefile.FormatValue(n.Value), Evaluated: true, Highlighted: hl})
		return
	}
	for _, c := range n.Children {
		if c.Node != nil {
			c.Node.segments(hl, out)
			continue
		}
		*out = appendText(*out, Segment{Text: c.Text, Highlighted: hl})
	}
}

// appendText merges adjacent plain runs with the same highlight.
func appendText(out []Segment, s Segment) []Segment {
	if k := len(out) - 1; k >= 0 && !out[k].Evaluated && out[k].Highlighted == s.Highlighted {
		out[k].Text += s.Text
		return out
	}
	return append(out, s)
}

// String renders the tree with evaluated spans shown as <value>.
func (n *Node) String() string {
	var b strings.Builder
	for _, s := range n.Segments() {
		if s.Evaluated {
			b.WriteByte('<')
			b.WriteString(s.Text)
			b.WriteByte('>')
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// wrap encloses the absolute span [start,end) in a new node with id. It descends into
// the nested node containing the span, or groups a run of whole siblings. A span whose
// edge cuts through a nested node cannot be wrapped and is reported as false.
func (n *Node) wrap(start, end int, id tracefile.NodeID) bool {
	if end <= start {
		return false
	}

	pos := n.Offset
	for _, c := range n.Children {
		w := c.width()
		if c.Node != nil && start >= pos && end <= pos+w {
			if start == pos && end == pos+w && c.Node.NodeID == id {
				// evaluated again (loop body, comprehension): back to raw text,
				// dropping nested results of the previous pass
				c.Node.Children = []Fragment{{Text: c.Node.Text()}}
				c.Node.HasValue = false
				c.Node.Value = nil
				return true
			}
			return c.Node.wrap(start, end, id)
		}
		pos += w
	}

	first, last := -1, -1
	var cutStart, cutEnd int
	pos = n.Offset
	for i, c := range n.Children {
		fs, fe := pos, pos+c.width()
		if first < 0 && start >= fs && start < fe {
			if c.Node != nil && start != fs {
				return false
			}
			first, cutStart = i, start-fs
		}
		if end > fs && end <= fe {
			if c.Node != nil && end != fe {
				return false
			}
			last, cutEnd = i, end-fs
		}
		pos = fe
	}
	if first < 0 || last < first {
		return false
	}

	inner := &Node{NodeID: id, Offset: start}
	for i := first; i <= last; i++ {
		c := n.Children[i]
		if c.Node != nil {
			inner.Children = append(inner.Children, c)
			continue
		}
		lo, hi := 0, len(c.Text)
		if i == first {
			lo = cutStart
		}
		if i == last {
			hi = cutEnd
		}
		if hi > lo {
			inner.Children = append(inner.Children, Fragment{Text: c.Text[lo:hi]})
		}
	}

	spliced := make([]Fragment, 0, len(n.Children)+2)
	spliced = append(spliced, n.Children[:first]...)
	if c := n.Children[first]; c.Node == nil && cutStart > 0 {
		spliced = append(spliced, Fragment{Text: c.Text[:cutStart]})
	}
	spliced = append(spliced, Fragment{Node: inner})
	if c := n.Children[last]; c.Node == nil && cutEnd < len(c.Text) {
		spliced = append(spliced, Fragment{Text: c.Text[cutEnd:]})
	}
	spliced = append(spliced, n.Children[last+1:]...)
	n.Children = spliced
	return true
}
