package tracefile

import (
	"encoding/json"
	"fmt"
)

// Event names an instrumentation event.
type Event string

const (
	EventBeforeStatement  Event = "before_statement"
	EventAfterStatement   Event = "after_statement"
	EventBeforeExpression Event = "before_expression"
	EventAfterExpression  Event = "after_expression"
)

// Step is one atomic event within a line. The concrete type is one of
// BeforeStatement, AfterStatement, BeforeExpression or AfterExpression.
type Step interface {
	Event() Event
	Base() *StepBase
	isStep()
}

// StepBase holds the fields every event carries.
type StepBase struct {
	Index  int
	NodeID NodeID
	Focus  string
	// Locals is a snapshot taken at this step, usually on statement boundaries.
	Locals Ordered[interface{}]
	Stdout string
}

func (b *StepBase) Base() *StepBase { return b }
func (b *StepBase) isStep()         {}

// BeforeStatement opens a statement.
type BeforeStatement struct{ StepBase }

// AfterStatement closes a statement.
type AfterStatement struct{ StepBase }

// BeforeExpression starts evaluating a sub-expression.
type BeforeExpression struct{ StepBase }

// AfterExpression finishes a sub-expression and carries its value.
type AfterExpression struct {
	StepBase
	Value interface{}
}

func (*BeforeStatement) Event() Event  { return EventBeforeStatement }
func (*AfterStatement) Event() Event   { return EventAfterStatement }
func (*BeforeExpression) Event() Event { return EventBeforeExpression }
func (*AfterExpression) Event() Event  { return EventAfterExpression }

// rawStep is the wire shape of a step record.
type rawStep struct {
	StepIndex int                  `json:"step_index"`
	Event     Event                `json:"event"`
	NodeID    NodeID               `json:"node_id"`
	Focus     string               `json:"focus,omitempty"`
	Value     interface{}          `json:"value,omitempty"`
	Locals    Ordered[interface{}] `json:"locals,omitempty"`
	Stdout    string               `json:"stdout,omitempty"`
}

// errUnknownEvent is returned by toStep for events this model does not know.
type errUnknownEvent struct{ event Event }

func (e errUnknownEvent) Error() string { return fmt.Sprintf("unknown step event %q", e.event) }

func (r rawStep) toStep() (Step, error) {
	base := StepBase{
		Index:  r.StepIndex,
		NodeID: r.NodeID,
		Focus:  r.Focus,
		Locals: r.Locals,
		Stdout: r.Stdout,
	}
	switch r.Event {
	case EventBeforeStatement:
		return &BeforeStatement{base}, nil
	case EventAfterStatement:
		return &AfterStatement{base}, nil
	case EventBeforeExpression:
		return &BeforeExpression{base}, nil
	case EventAfterExpression:
		return &AfterExpression{StepBase: base, Value: r.Value}, nil
	default:
		return nil, errUnknownEvent{r.Event}
	}
}

func fromStep(s Step) rawStep {
	b := s.Base()
	r := rawStep{
		StepIndex: b.Index,
		Event:     s.Event(),
		NodeID:    b.NodeID,
		Focus:     b.Focus,
		Locals:    b.Locals,
		Stdout:    b.Stdout,
	}
	if ae, ok := s.(*AfterExpression); ok {
		r.Value = ae.Value
	}
	return r
}

type lineAlias Line

type rawLine struct {
	lineAlias
	Steps []rawStep `json:"steps"`
}

// UnmarshalJSON decodes a trace line, turning step records into typed steps.
// Steps with unknown events are dropped; Load reports how many.
func (l *Line) UnmarshalJSON(data []byte) error {
	var raw rawLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Line(raw.lineAlias)
	l.Steps = make([]Step, 0, len(raw.Steps))
	for _, rs := range raw.Steps {
		s, err := rs.toStep()
		if err != nil {
			l.dropped++
			continue
		}
		l.Steps = append(l.Steps, s)
	}
	return nil
}

// MarshalJSON encodes the line in artifact form.
func (l Line) MarshalJSON() ([]byte, error) {
	raw := rawLine{lineAlias: lineAlias(l)}
	raw.Steps = make([]rawStep, len(l.Steps))
	for i, s := range l.Steps {
		raw.Steps[i] = fromStep(s)
	}
	return json.Marshal(raw)
}
