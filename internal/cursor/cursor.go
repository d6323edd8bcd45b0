// Package cursor implements the navigation state machine over a recorded trace.
package cursor

import "time"

// Mode selects the granularity of Next/Prev.
type Mode int

const (
	// ModeStep walks every sub-step of every line.
	ModeStep Mode = iota
	// ModeLine jumps from line to line.
	ModeLine
)

func (m Mode) String() string {
	switch m {
	case ModeLine:
		return "line"
	default:
		return "step"
	}
}

// ParseMode maps "line"/"step" to a Mode; anything else is step mode.
func ParseMode(s string) Mode {
	if s == "line" {
		return ModeLine
	}
	return ModeStep
}

// DefaultInterval is the auto-play period when none is configured.
const DefaultInterval = 800 * time.Millisecond

// Bounds exposes the shape of a trace. *tracefile.Trace satisfies it.
type Bounds interface {
	LineCount() int
	StepCount(line int) int
}

// Position is a (line index, step index) pair.
type Position struct {
	Line int
	Step int
}

// Cursor tracks the current position, traversal mode and playback state.
// Every mutation clamps to valid ranges; no input makes it panic.
type Cursor struct {
	bounds   Bounds
	line     int
	step     int
	mode     Mode
	playing  bool
	interval time.Duration
}

// New creates a cursor at (0,0) in step mode.
func New(bounds Bounds) *Cursor {
	return &Cursor{
		bounds:   bounds,
		interval: DefaultInterval,
	}
}

// Position returns the current position.
func (c *Cursor) Position() Position {
	return Position{Line: c.line, Step: c.step}
}

// Mode returns the traversal mode.
func (c *Cursor) Mode() Mode { return c.mode }

// SetMode changes the traversal mode. The position is kept.
func (c *Cursor) SetMode(m Mode) { c.mode = m }

// Playing reports whether auto-play is on.
func (c *Cursor) Playing() bool { return c.playing }

// Interval returns the auto-play period.
func (c *Cursor) Interval() time.Duration { return c.interval }

// SetInterval sets the auto-play period; non-positive values restore the default.
func (c *Cursor) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	c.interval = d
}

func (c *Cursor) maxLine() int {
	n := c.bounds.LineCount()
	if n <= 0 {
		return 0
	}
	return n - 1
}

func (c *Cursor) lastStep(line int) int {
	n := c.bounds.StepCount(line)
	if n <= 0 {
		return 0
	}
	return n - 1
}

// Next advances one unit in the current mode and reports whether it moved.
// Reaching the end (or failing to move) stops auto-play.
func (c *Cursor) Next() bool {
	moved := false
	switch c.mode {
	case ModeLine:
		if c.line < c.maxLine() {
			c.line++
			c.step = 0
			moved = true
		} else if c.step < c.lastStep(c.line) {
			// last line: surface its remaining sub-steps in one go
			c.step = c.lastStep(c.line)
			moved = true
		}
	default:
		if c.step < c.lastStep(c.line) {
			c.step++
			moved = true
		} else if c.line < c.maxLine() {
			c.line++
			c.step = 0
			moved = true
		}
	}
	if !moved || !c.HasNext() {
		c.playing = false
	}
	return moved
}

// Prev moves back one unit. Landing on an earlier line resumes at its last step,
// the most complete state of that line.
func (c *Cursor) Prev() bool {
	switch c.mode {
	case ModeLine:
		if c.line > 0 {
			c.line--
			c.step = c.lastStep(c.line)
			return true
		}
		if c.step > 0 {
			c.step = 0
			return true
		}
	default:
		if c.step > 0 {
			c.step--
			return true
		}
		if c.line > 0 {
			c.line--
			c.step = c.lastStep(c.line)
			return true
		}
	}
	return false
}

// HasNext reports whether Next would move.
func (c *Cursor) HasNext() bool {
	return c.line < c.maxLine() || c.step < c.lastStep(c.line)
}

// HasPrev reports whether Prev would move.
func (c *Cursor) HasPrev() bool {
	return c.line > 0 || c.step > 0
}

// Finished reports whether the cursor sits on the final step of the final line.
func (c *Cursor) Finished() bool {
	return !c.HasNext()
}

// SetLine jumps to a line (clamped). Changing the line resets the step to 0.
func (c *Cursor) SetLine(n int) {
	n = clamp(n, 0, c.maxLine())
	if n != c.line {
		c.line = n
		c.step = 0
	}
}

// SetStep jumps to a step of the current line (clamped).
func (c *Cursor) SetStep(n int) {
	c.step = clamp(n, 0, c.lastStep(c.line))
}

// Seek jumps to an arbitrary position, clamping both coordinates.
func (c *Cursor) Seek(p Position) {
	c.line = clamp(p.Line, 0, c.maxLine())
	c.step = clamp(p.Step, 0, c.lastStep(c.line))
}

// End jumps to the final step of the final line.
func (c *Cursor) End() {
	c.line = c.maxLine()
	c.step = c.lastStep(c.line)
}

// TogglePlay flips auto-play and returns the new state. While playing, a driver
// calls Next every Interval until it stops moving.
func (c *Cursor) TogglePlay() bool {
	c.playing = !c.playing
	return c.playing
}

// Stop turns auto-play off.
func (c *Cursor) Stop() { c.playing = false }

// Reset returns to (0,0) unless auto-play is on.
func (c *Cursor) Reset() bool {
	if c.playing {
		return false
	}
	c.line, c.step = 0, 0
	return true
}

// Rebind points the cursor at new bounds (e.g. a reloaded trace) and clamps the position.
func (c *Cursor) Rebind(bounds Bounds) {
	c.bounds = bounds
	c.Seek(Position{Line: c.line, Step: c.step})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
