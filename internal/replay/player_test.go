package replay

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/objgraph"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

func loadFixture(t *testing.T, name string) *tracefile.Trace {
	t.Helper()
	tr, err := tracefile.Load(filepath.Join("..", "..", "testdata", name))
	if err != nil {
		t.Fatalf("failed to load %s: %v", name, err)
	}
	return tr
}

var viewOpts = cmpopts.IgnoreUnexported(objgraph.Graph{})

func TestNewPlayer_Defaults(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))

	if p.ID() == "" {
		t.Error("expected a player id")
	}
	if got := p.Position(); got != (cursor.Position{}) {
		t.Errorf("expected start at (0,0), got %+v", got)
	}
	if p.Mode() != cursor.ModeStep {
		t.Errorf("expected step mode, got %s", p.Mode())
	}
	if p.Interval() != cursor.DefaultInterval {
		t.Errorf("expected default interval, got %s", p.Interval())
	}
	if p.Playing() {
		t.Error("should not be playing")
	}
}

func TestNewPlayer_Options(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"),
		WithMode(cursor.ModeLine),
		WithInterval(250*time.Millisecond),
		WithStartLine(3),
	)

	if p.Mode() != cursor.ModeLine {
		t.Errorf("expected line mode, got %s", p.Mode())
	}
	if p.Interval() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", p.Interval())
	}
	if got := p.Position(); got != (cursor.Position{Line: 2}) {
		t.Errorf("expected line index 2, got %+v", got)
	}
}

func TestPlayer_ForwardBackwardConsistency(t *testing.T) {
	tr := loadFixture(t, "sum.json")
	p := NewPlayer(tr)

	var forward []cursor.Position
	forward = append(forward, p.Position())
	for p.Next() {
		forward = append(forward, p.Position())
	}
	if len(forward) != 16 {
		t.Fatalf("expected 16 positions in step mode, got %d", len(forward))
	}
	if !p.Finished() {
		t.Error("expected finished after walking forward")
	}

	for i := len(forward) - 1; i >= 0; i-- {
		if got := p.Position(); got != forward[i] {
			t.Fatalf("backward walk diverged at %d: got %+v, want %+v", i, got, forward[i])
		}
		if diff := cmp.Diff(Snapshot(tr, forward[i]), Snapshot(tr, p.Position()), viewOpts); diff != "" {
			t.Errorf("view mismatch at %+v (-want +got):\n%s", forward[i], diff)
		}
		p.Prev()
	}
	if p.HasPrev() {
		t.Error("expected to be back at the start")
	}
}

func TestPlayer_ToggleMode(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))

	if got := p.ToggleMode(); got != cursor.ModeLine {
		t.Fatalf("expected line mode, got %s", got)
	}
	p.Next()
	p.Next()
	if got := p.Position(); got != (cursor.Position{Line: 2}) {
		t.Errorf("expected line index 2 step 0, got %+v", got)
	}
	if got := p.ToggleMode(); got != cursor.ModeStep {
		t.Fatalf("expected step mode, got %s", got)
	}
}

func TestPlayer_TogglePlayRefusedAtEnd(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))
	p.End()

	gen := p.Generation()
	if p.TogglePlay() {
		t.Error("playback must not start at the end")
	}
	if p.Generation() != gen {
		t.Error("refused start must not bump the generation")
	}
}

func TestPlayer_TickAdvances(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))

	if !p.TogglePlay() {
		t.Fatal("expected playback to start")
	}
	gen := p.Generation()

	if !p.Tick(gen) {
		t.Error("expected tick to re-arm")
	}
	if got := p.Position(); got != (cursor.Position{Step: 1}) {
		t.Errorf("expected (0,1), got %+v", got)
	}
}

func TestPlayer_StaleTickIgnored(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))

	p.TogglePlay()
	stale := p.Generation()
	p.Stop()

	if p.Tick(stale) {
		t.Error("stale tick must not re-arm")
	}
	if got := p.Position(); got != (cursor.Position{}) {
		t.Errorf("stale tick moved the cursor to %+v", got)
	}

	// restart: a tick from the first run still belongs to the past
	p.TogglePlay()
	if p.Tick(stale) {
		t.Error("tick from an earlier run must not re-arm")
	}
	if got := p.Position(); got != (cursor.Position{}) {
		t.Errorf("tick from an earlier run moved the cursor to %+v", got)
	}
	if !p.Tick(p.Generation()) {
		t.Error("current tick should re-arm")
	}
}

func TestPlayer_TickStopsAtEnd(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"), WithMode(cursor.ModeLine))
	p.TogglePlay()

	ticks := 0
	for p.Tick(p.Generation()) {
		ticks++
		if ticks > 10 {
			t.Fatal("playback never stopped")
		}
	}
	if p.Playing() {
		t.Error("playback should stop at the end")
	}
	if !p.Finished() {
		t.Errorf("expected finished, at %+v", p.Position())
	}
}

func TestPlayer_ResetRefusedWhilePlaying(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))
	p.Next()
	p.TogglePlay()

	if p.Reset() {
		t.Error("reset must be refused while playing")
	}
	p.Stop()
	if !p.Reset() {
		t.Error("reset should succeed once stopped")
	}
	if got := p.Position(); got != (cursor.Position{}) {
		t.Errorf("expected (0,0), got %+v", got)
	}
}

func TestPlayer_ReloadClamps(t *testing.T) {
	p := NewPlayer(loadFixture(t, "sum.json"))
	p.End()

	shorter, err := tracefile.Decode(
		strings.NewReader(`{"trace":[{"line_number":1,"steps":[{"step_index":0,"event":"before_statement","node_id":1}]}]}`),
		tracefile.FormatJSON,
	)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	p.Reload(shorter)
	if got := p.Position(); got != (cursor.Position{}) {
		t.Errorf("expected clamp to (0,0), got %+v", got)
	}
	if p.Trace() != shorter {
		t.Error("expected the reloaded trace to be current")
	}
}
