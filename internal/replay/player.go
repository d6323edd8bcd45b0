// Package replay drives navigation over a loaded trace and renders what each position shows.
package replay

import (
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Player owns the replay state: the loaded trace and the cursor over it.
// Its navigation methods are the only mutators; views are computed from snapshots.
type Player struct {
	id     string
	trace  *tracefile.Trace
	cursor *cursor.Cursor
	logger *logging.Logger

	// generation increments whenever playback starts or stops so ticks armed
	// for an earlier run can be recognized and dropped.
	generation uint64
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithMode sets the initial traversal mode.
func WithMode(m cursor.Mode) PlayerOption {
	return func(p *Player) {
		p.cursor.SetMode(m)
	}
}

// WithInterval sets the auto-play period.
func WithInterval(d time.Duration) PlayerOption {
	return func(p *Player) {
		p.cursor.SetInterval(d)
	}
}

// WithStartLine positions the cursor on a 1-based trace line before the first view.
func WithStartLine(n int) PlayerOption {
	return func(p *Player) {
		if n > 0 {
			p.cursor.SetLine(n - 1)
		}
	}
}

// WithLogger derives the player's logger from parent.
func WithLogger(parent *logging.Logger) PlayerOption {
	return func(p *Player) {
		p.logger = parent.WithComponent("replay")
	}
}

// NewPlayer creates a player at the first step of the first line.
func NewPlayer(tr *tracefile.Trace, opts ...PlayerOption) *Player {
	p := &Player{
		id:     uuid.New().String(),
		trace:  tr,
		cursor: cursor.New(tr),
	}
	p.logger = logging.New().WithComponent("replay")
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the player's instance id.
func (p *Player) ID() string { return p.id }

// Trace returns the loaded trace.
func (p *Player) Trace() *tracefile.Trace { return p.trace }

// Position returns the cursor position.
func (p *Player) Position() cursor.Position { return p.cursor.Position() }

// Mode returns the traversal mode.
func (p *Player) Mode() cursor.Mode { return p.cursor.Mode() }

// Playing reports whether auto-play is on.
func (p *Player) Playing() bool { return p.cursor.Playing() }

// Interval returns the auto-play period.
func (p *Player) Interval() time.Duration { return p.cursor.Interval() }

// Generation identifies the current playback run.
func (p *Player) Generation() uint64 { return p.generation }

// Finished reports whether the cursor is on the last step of the last line.
func (p *Player) Finished() bool { return p.cursor.Finished() }

// HasNext reports whether Next would move.
func (p *Player) HasNext() bool { return p.cursor.HasNext() }

// HasPrev reports whether Prev would move.
func (p *Player) HasPrev() bool { return p.cursor.HasPrev() }

// Next advances one unit in the current mode.
func (p *Player) Next() bool {
	playing := p.cursor.Playing()
	moved := p.cursor.Next()
	if playing && !p.cursor.Playing() {
		p.generation++
		p.logger.Debug("playback reached the end", map[string]interface{}{
			"player": p.id,
			"line":   p.cursor.Position().Line,
			"step":   p.cursor.Position().Step,
		})
	}
	return moved
}

// Prev moves back one unit in the current mode.
func (p *Player) Prev() bool { return p.cursor.Prev() }

// SetLine jumps to a 0-based trace line.
func (p *Player) SetLine(n int) { p.cursor.SetLine(n) }

// SetStep jumps to a step of the current line.
func (p *Player) SetStep(n int) { p.cursor.SetStep(n) }

// Seek jumps to an arbitrary position.
func (p *Player) Seek(pos cursor.Position) { p.cursor.Seek(pos) }

// End jumps to the final position.
func (p *Player) End() { p.cursor.End() }

// SetMode changes the traversal mode.
func (p *Player) SetMode(m cursor.Mode) { p.cursor.SetMode(m) }

// ToggleMode flips between line and step mode.
func (p *Player) ToggleMode() cursor.Mode {
	if p.cursor.Mode() == cursor.ModeLine {
		p.cursor.SetMode(cursor.ModeStep)
	} else {
		p.cursor.SetMode(cursor.ModeLine)
	}
	return p.cursor.Mode()
}

// SetInterval sets the auto-play period.
func (p *Player) SetInterval(d time.Duration) { p.cursor.SetInterval(d) }

// TogglePlay starts or stops auto-play and returns the new state.
// Starting at the end of the trace is refused.
func (p *Player) TogglePlay() bool {
	if !p.cursor.Playing() && !p.cursor.HasNext() {
		return false
	}
	p.generation++
	playing := p.cursor.TogglePlay()
	p.logger.Debug("playback toggled", map[string]interface{}{
		"player":   p.id,
		"playing":  playing,
		"interval": p.cursor.Interval().String(),
	})
	return playing
}

// Stop turns auto-play off.
func (p *Player) Stop() {
	if p.cursor.Playing() {
		p.generation++
		p.cursor.Stop()
	}
}

// Reset returns to the start unless auto-play is on.
func (p *Player) Reset() bool { return p.cursor.Reset() }

// Tick performs one auto-play advance for the run identified by gen. Ticks from an
// earlier run, or arriving after playback stopped, are ignored. It reports whether
// the driver should arm another tick.
func (p *Player) Tick(gen uint64) bool {
	if gen != p.generation || !p.cursor.Playing() {
		return false
	}
	p.Next()
	return p.cursor.Playing()
}

// Reload swaps in a new trace (e.g. the file was rewritten) and clamps the cursor.
func (p *Player) Reload(tr *tracefile.Trace) {
	p.trace = tr
	p.cursor.Rebind(tr)
	p.logger.Debug("trace reloaded", map[string]interface{}{
		"player": p.id,
		"lines":  tr.LineCount(),
		"line":   p.cursor.Position().Line,
		"step":   p.cursor.Position().Step,
	})
}
