package evaltree

import (
	"strings"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

var logger = logging.New().WithComponent("evaltree")

// SetLogger routes the package's log lines through parent, keeping its output and level.
func SetLogger(parent *logging.Logger) {
	logger = parent.WithComponent("evaltree")
}

// Source resolves AST nodes and source lines. *tracefile.Trace satisfies it.
type Source interface {
	Node(id tracefile.NodeID) (*tracefile.Node, bool)
	SourceLine(lineNumber int) (string, bool)
}

// Build replays steps 0..stepIndex of line into a fresh tree. It never fails:
// steps that cannot be placed (missing node or location, span outside the line)
// leave the tree unchanged. stepIndex is clamped to the line's steps.
func Build(src Source, line *tracefile.Line, stepIndex int) *Node {
	if line == nil {
		return &Node{NodeID: tracefile.NoNode}
	}
	b := &builder{src: src, line: line}
	b.seed()

	if len(line.Steps) == 0 {
		return b.root
	}
	if stepIndex >= len(line.Steps) {
		stepIndex = len(line.Steps) - 1
	}

	for i := 0; i <= stepIndex; i++ {
		step := line.Steps[i]
		b.root.clearHighlight()
		b.fold(step)
		if i == stepIndex {
			b.highlight(step)
		}
	}
	return b.root
}

type builder struct {
	src  Source
	line *tracefile.Line
	root *Node
	// fromFocus is set when the root text came from a step focus instead of the source.
	fromFocus bool
}

// seed creates the root from the trimmed source line, or from step focus text when
// the trace carries no source.
func (b *builder) seed() {
	if text, ok := b.src.SourceLine(b.line.LineNumber); ok {
		b.root = rootFrom(text)
		return
	}

	var pick tracefile.Step
	for _, s := range b.line.Steps {
		if s.Event() == tracefile.EventBeforeStatement {
			pick = s
			break
		}
	}
	if pick == nil {
		for _, s := range b.line.Steps {
			if pick == nil || len(s.Base().Focus) > len(pick.Base().Focus) {
				pick = s
			}
		}
	}
	b.fromFocus = true
	if pick == nil {
		b.root = &Node{NodeID: tracefile.NoNode}
		return
	}
	b.root = b.rootFromStep(pick)
}

func rootFrom(text string) *Node {
	trimmed := strings.TrimSpace(text)
	offset := len(text) - len(strings.TrimLeft(text, " \t"))
	n := &Node{NodeID: tracefile.NoNode, Offset: offset}
	if trimmed != "" {
		n.Children = []Fragment{{Text: trimmed}}
	}
	return n
}

func (b *builder) rootFromStep(s tracefile.Step) *Node {
	n := rootFrom(s.Base().Focus)
	n.Offset = 0
	if ast, ok := b.src.Node(s.Base().NodeID); ok && ast.Location != nil {
		n.Offset = ast.Location.StartCol
	}
	return n
}

func (b *builder) untouched() bool {
	return len(b.root.Children) <= 1 && (len(b.root.Children) == 0 || b.root.Children[0].Node == nil)
}

func (b *builder) fold(step tracefile.Step) {
	base := step.Base()
	switch s := step.(type) {
	case *tracefile.BeforeStatement:
		if b.fromFocus && b.untouched() && len(strings.TrimSpace(s.Focus)) > b.root.Width() {
			b.root = b.rootFromStep(s)
		}
	case *tracefile.BeforeExpression:
		b.wrap(base)
	case *tracefile.AfterExpression:
		target := b.root.Find(base.NodeID)
		if target == nil || target == b.root {
			logger.Debug("no wrapped node for value", map[string]interface{}{
				"line": b.line.LineNumber,
				"step": base.Index,
				"node": int(base.NodeID),
			})
			return
		}
		target.HasValue = true
		target.Value = s.Value
	}
}

func (b *builder) wrap(base *tracefile.StepBase) {
	fields := map[string]interface{}{
		"line": b.line.LineNumber,
		"step": base.Index,
		"node": int(base.NodeID),
	}
	ast, ok := b.src.Node(base.NodeID)
	if !ok {
		logger.Debug("skipping wrap: unknown node", fields)
		return
	}
	loc := ast.Location
	if loc == nil {
		logger.Debug("skipping wrap: node has no location", fields)
		return
	}
	if loc.EndLine != loc.StartLine {
		logger.Debug("skipping wrap: node spans several lines", fields)
		return
	}
	if !b.root.wrap(loc.StartCol, loc.EndCol, base.NodeID) {
		fields["start_col"] = loc.StartCol
		fields["end_col"] = loc.EndCol
		logger.Debug("skipping wrap: span does not fit the tree", fields)
	}
}

func (b *builder) highlight(step tracefile.Step) {
	switch step.Event() {
	case tracefile.EventBeforeStatement, tracefile.EventBeforeExpression, tracefile.EventAfterStatement:
	default:
		return
	}
	if n := b.root.Find(step.Base().NodeID); n != nil && n != b.root {
		n.Highlighted = true
	}
}
