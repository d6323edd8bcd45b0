package replay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

func newTestModel(t *testing.T) *pagerModel {
	t.Helper()
	p := NewPlayer(loadFixture(t, "sum.json"))
	m := newPagerModel(context.Background(), "sum.json", p, NewRenderer(nil))
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestPager_StepKeys(t *testing.T) {
	m := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(runeKey('l'))
	if got := m.player.Position(); got != (cursor.Position{Line: 1}) {
		t.Fatalf("expected (1,0), got %+v", got)
	}
	if m.view.LineNumber != 2 {
		t.Errorf("view not rebuilt, line %d", m.view.LineNumber)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if got := m.player.Position(); got != (cursor.Position{Step: 1}) {
		t.Errorf("expected (0,1), got %+v", got)
	}
}

func TestPager_ModeAndEnds(t *testing.T) {
	m := newTestModel(t)

	m.Update(runeKey('m'))
	if m.player.Mode() != cursor.ModeLine {
		t.Fatalf("expected line mode, got %s", m.player.Mode())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	if !m.player.Finished() || !m.view.Finished {
		t.Error("expected the end of the trace")
	}

	m.Update(runeKey('r'))
	if got := m.player.Position(); got != (cursor.Position{}) {
		t.Errorf("expected reset to (0,0), got %+v", got)
	}
}

func TestPager_IntervalKeys(t *testing.T) {
	m := newTestModel(t)
	m.player.SetInterval(300 * time.Millisecond)

	for i := 0; i < 5; i++ {
		m.Update(runeKey('+'))
	}
	if got := m.player.Interval(); got != intervalStep {
		t.Errorf("speeding up should stop at %s, got %s", intervalStep, got)
	}

	m.Update(runeKey('-'))
	if got := m.player.Interval(); got != 2*intervalStep {
		t.Errorf("expected %s, got %s", 2*intervalStep, got)
	}
}

func TestPager_PlayAndTick(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(runeKey('p'))
	if !m.player.Playing() {
		t.Fatal("expected playback to start")
	}
	if cmd == nil {
		t.Fatal("expected a tick to be armed")
	}

	m.Update(tickMsg{gen: m.player.Generation()})
	if got := m.player.Position(); got != (cursor.Position{Step: 1}) {
		t.Errorf("expected one advance, got %+v", got)
	}
	if !m.view.Playing {
		t.Error("view should show playback")
	}
}

func TestPager_StaleTickAfterStop(t *testing.T) {
	m := newTestModel(t)

	m.Update(runeKey('p'))
	stale := m.player.Generation()
	m.Update(runeKey('p'))
	if m.player.Playing() {
		t.Fatal("expected playback to stop")
	}

	m.Update(tickMsg{gen: stale})
	if got := m.player.Position(); got != (cursor.Position{}) {
		t.Errorf("stale tick moved the cursor to %+v", got)
	}
}

func TestPager_ManualStepStopsPlayback(t *testing.T) {
	m := newTestModel(t)

	m.Update(runeKey('p'))
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.player.Playing() {
		t.Error("manual navigation should stop playback")
	}
}

func TestPager_Reload(t *testing.T) {
	m := newTestModel(t)
	m.player.End()

	shorter, err := tracefile.Decode(
		strings.NewReader(`{"trace":[{"line_number":1,"steps":[{"step_index":0,"event":"before_statement","node_id":1}]}]}`),
		tracefile.FormatJSON,
	)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	m.load = func() (*tracefile.Trace, error) { return shorter, nil }

	m.Update(fileChangedMsg{})
	if m.player.Trace() != shorter {
		t.Fatal("expected reloaded trace")
	}
	if got := m.player.Position(); got != (cursor.Position{}) {
		t.Errorf("expected clamped position, got %+v", got)
	}
	if m.view.LineCount != 1 {
		t.Errorf("view not rebuilt after reload, %d lines", m.view.LineCount)
	}
}

func TestPager_ReloadFailureKeepsTrace(t *testing.T) {
	m := newTestModel(t)
	before := m.player.Trace()
	m.load = func() (*tracefile.Trace, error) { return nil, errors.New("truncated") }

	m.Update(fileChangedMsg{})
	if m.player.Trace() != before {
		t.Error("failed reload must keep the current trace")
	}
	if !strings.Contains(m.View(), "reload failed") {
		t.Error("footer should report the failed reload")
	}
}

func TestPager_Search(t *testing.T) {
	m := newTestModel(t)

	m.searchQuery = "b = 4"
	m.executeSearch()
	if len(m.searchLines) == 0 {
		t.Fatal("expected the source listing to match")
	}

	m.searchQuery = "no such text"
	m.executeSearch()
	if !m.searchFailed {
		t.Error("expected search failure")
	}
}

func TestWrapContent(t *testing.T) {
	short := "a short line"
	if got := wrapContent(short, 80); got != short {
		t.Errorf("short line changed: %q", got)
	}

	long := "   12 │ L3   s2  │ " + strings.TrimSpace(strings.Repeat("word ", 30))
	wrapped := strings.Split(wrapContent(long, 60), "\n")
	if len(wrapped) < 2 {
		t.Fatalf("expected wrapping, got %q", wrapped)
	}
	// continuation lines start under the first word after the last separator
	indent := strings.Repeat(" ", 19)
	for _, line := range wrapped[1:] {
		if !strings.HasPrefix(line, indent) || strings.TrimSpace(line) == "" {
			t.Errorf("continuation line not aligned: %q", line)
		}
	}
}
