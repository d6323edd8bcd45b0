package replay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Pager is an interactive terminal player for a trace.
type Pager struct {
	title    string
	player   *Player
	renderer *Renderer
}

// pagerStyle for the header/footer
var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	pagerHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// intervalStep is how much +/- change the auto-play period.
const intervalStep = 100 * time.Millisecond

// NewPager creates a new interactive pager over player.
func NewPager(title string, player *Player, renderer *Renderer) *Pager {
	return &Pager{
		title:    title,
		player:   player,
		renderer: renderer,
	}
}

// Run starts the interactive pager.
func (p *Pager) Run(ctx context.Context) error {
	prog := tea.NewProgram(
		newPagerModel(ctx, p.title, p.player, p.renderer),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err := prog.Run()
	return err
}

// RunLive starts the interactive pager and reloads the trace whenever filePath changes.
func (p *Pager) RunLive(ctx context.Context, filePath string, load func() (*tracefile.Trace, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filePath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	m := newPagerModel(ctx, p.title, p.player, p.renderer)
	m.live = true
	m.load = load
	m.watcher = watcher

	prog := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err = prog.Run()
	watcher.Close()
	return err
}

// fileChangedMsg is sent when the watched file changes.
type fileChangedMsg struct{}

// tickMsg drives auto-play; gen ties it to the playback run that armed it.
type tickMsg struct {
	gen uint64
}

// pagerModel is the Bubble Tea model for the pager.
type pagerModel struct {
	ctx            context.Context
	viewport       viewport.Model
	title          string
	content        string
	wrappedContent string // Wrapped content for accurate line searching
	ready          bool

	player   *Player
	renderer *Renderer
	view     *View

	live       bool
	load       func() (*tracefile.Trace, error)
	watcher    *fsnotify.Watcher
	lastUpdate time.Time
	loadErr    error

	// Search state
	searching    bool
	searchInput  textinput.Model
	searchQuery  string
	searchLines  []int // Line numbers matching search (in wrapped content)
	searchIndex  int   // Current match index
	searchFailed bool  // No matches found
}

func newPagerModel(ctx context.Context, title string, player *Player, renderer *Renderer) *pagerModel {
	m := &pagerModel{
		ctx:      ctx,
		title:    title,
		player:   player,
		renderer: renderer,
	}
	m.rebuild()
	return m
}

func (m *pagerModel) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.live && m.watcher != nil {
		cmds = append(cmds, m.watchFile())
	}
	if m.player.Playing() {
		cmds = append(cmds, m.tick())
	}
	return tea.Batch(cmds...)
}

// tick arms the next auto-play step for the current playback run.
func (m *pagerModel) tick() tea.Cmd {
	gen := m.player.Generation()
	return tea.Tick(m.player.Interval(), func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// watchFile returns a command that waits for file changes.
func (m *pagerModel) watchFile() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Debounce: wait a bit for writes to settle
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
				// Ignore errors, keep watching
			}
		}
	}
}

// rebuild recomputes the view for the current position and refreshes the viewport.
func (m *pagerModel) rebuild() {
	m.view = m.player.View(m.ctx)
	m.content = m.renderer.RenderString(m.view)
	if m.ready {
		m.wrappedContent = wrapContent(m.content, m.viewport.Width)
		m.viewport.SetContent(m.wrappedContent)
		if m.searchQuery != "" {
			m.executeSearch()
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	// Handle search input mode
	if m.searching {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "enter":
				m.searchQuery = m.searchInput.Value()
				m.searching = false
				m.executeSearch()
				if len(m.searchLines) > 0 {
					m.jumpToMatch(0)
				}
				return m, nil
			case "esc", "ctrl+c":
				m.searching = false
				m.searchQuery = ""
				m.searchLines = nil
				m.searchFailed = false
				return m, nil
			}
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tickMsg:
		// a tick armed before the last start/stop belongs to a finished run
		if m.player.Tick(msg.gen) {
			cmds = append(cmds, m.tick())
		}
		m.rebuild()
		return m, tea.Batch(cmds...)

	case fileChangedMsg:
		if m.load != nil {
			tr, err := m.load()
			m.loadErr = err
			if err == nil {
				m.player.Reload(tr)
				m.lastUpdate = time.Now()
				m.rebuild()
			}
		}
		// Continue watching
		cmds = append(cmds, m.watchFile())

	case tea.KeyMsg:
		// Ignore modifier-only key presses (cmd, alt, ctrl, shift by themselves)
		keyStr := msg.String()
		if keyStr == "" || keyStr == "ctrl" || keyStr == "alt" || keyStr == "shift" || keyStr == "super" {
			return m, nil
		}

		switch keyStr {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			// Clear search highlight if searching, otherwise quit
			if m.searchQuery != "" {
				m.searchQuery = ""
				m.searchLines = nil
				m.searchFailed = false
			} else {
				return m, tea.Quit
			}
		case "right", "l":
			m.player.Stop()
			m.player.Next()
			m.rebuild()
			return m, nil
		case "left", "h":
			m.player.Stop()
			m.player.Prev()
			m.rebuild()
			return m, nil
		case " ", "space", "p":
			if m.player.TogglePlay() {
				cmds = append(cmds, m.tick())
			}
			m.rebuild()
			return m, tea.Batch(cmds...)
		case "m":
			m.player.ToggleMode()
			m.rebuild()
			return m, nil
		case "r":
			if m.player.Reset() {
				m.rebuild()
			}
			return m, nil
		case "home":
			m.player.Stop()
			m.player.Seek(cursor.Position{})
			m.rebuild()
			return m, nil
		case "end":
			m.player.Stop()
			m.player.End()
			m.rebuild()
			return m, nil
		case "+", "=":
			m.player.SetInterval(max(intervalStep, m.player.Interval()-intervalStep))
			return m, nil
		case "-":
			m.player.SetInterval(m.player.Interval() + intervalStep)
			return m, nil
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.Focus()
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			if m.searchQuery != "" {
				m.searchInput.SetValue(m.searchQuery)
			}
			return m, textinput.Blink
		case "n":
			if len(m.searchLines) > 0 {
				m.searchIndex = (m.searchIndex + 1) % len(m.searchLines)
				m.jumpToMatch(m.searchIndex)
			}
		case "N":
			if len(m.searchLines) > 0 {
				m.searchIndex--
				if m.searchIndex < 0 {
					m.searchIndex = len(m.searchLines) - 1
				}
				m.jumpToMatch(m.searchIndex)
			}
		}

	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 1

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.wrappedContent = wrapContent(m.content, msg.Width)
			m.viewport.SetContent(m.wrappedContent)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
			m.wrappedContent = wrapContent(m.content, msg.Width)
			m.viewport.SetContent(m.wrappedContent)
			if m.searchQuery != "" {
				m.executeSearch()
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// executeSearch finds all lines matching the search query in wrapped content.
func (m *pagerModel) executeSearch() {
	m.searchLines = nil
	m.searchIndex = 0
	m.searchFailed = false

	if m.searchQuery == "" {
		return
	}

	query := strings.ToLower(m.searchQuery)
	for i, line := range strings.Split(m.wrappedContent, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.searchLines = append(m.searchLines, i)
		}
	}

	if len(m.searchLines) == 0 {
		m.searchFailed = true
	}
}

// jumpToMatch scrolls to the given match index.
func (m *pagerModel) jumpToMatch(index int) {
	if index < 0 || index >= len(m.searchLines) {
		return
	}

	// Center the match on screen if possible
	targetOffset := m.searchLines[index] - m.viewport.Height/2
	if targetOffset < 0 {
		targetOffset = 0
	}
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if targetOffset > maxOffset {
		targetOffset = maxOffset
	}
	if maxOffset < 0 {
		targetOffset = 0
	}
	m.viewport.YOffset = targetOffset
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	// Header
	title := pagerTitleStyle.Render(m.title)
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerInfoStyle.Render(line))

	pos := m.player.Position()
	info := fmt.Sprintf(" L%d %d/%d %s ", m.view.LineNumber, pos.Step+1, max(1, m.view.StepCount), m.player.Mode())

	var footer string
	if m.searching {
		searchPrompt := lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Render("/")
		footer = searchPrompt + m.searchInput.View()
	} else {
		var help string

		switch {
		case m.loadErr != nil:
			reloadErr := lipgloss.NewStyle().
				Foreground(lipgloss.Color("9")).
				Render("reload failed: " + truncate(m.loadErr.Error(), 40))
			help = fmt.Sprintf(" %s │ q: quit ", reloadErr)
		case m.searchFailed:
			notFound := lipgloss.NewStyle().
				Foreground(lipgloss.Color("9")).
				Render("Pattern not found")
			help = fmt.Sprintf(" %s │ /: search ", notFound)
		case len(m.searchLines) > 0:
			matchInfo := lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Render(fmt.Sprintf("[%d/%d]", m.searchIndex+1, len(m.searchLines)))
			help = fmt.Sprintf(" %s │ n/N: next/prev │ /: search │ esc: clear ", matchInfo)
		case m.player.Playing():
			playing := lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("11")).
				Render(fmt.Sprintf("▶ %s", m.player.Interval()))
			help = fmt.Sprintf(" %s │ space: pause │ +/-: speed │ q: quit ", playing)
		case m.live:
			liveIndicator := lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("10")).
				Render("● LIVE")
			help = fmt.Sprintf(" %s │ ←/→: step │ space: play │ m: mode │ q: quit ", liveIndicator)
		default:
			help = " ←/→: step │ space: play │ m: mode │ r: reset │ /: search │ q: quit "
		}

		footer = pagerHelpStyle.Render(help) + pagerInfoStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))) + pagerInfoStyle.Render(info)
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// wrapContent wraps each line to fit within the given width.
// Preserves ANSI escape codes and keeps timeline and table continuation lines aligned.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}

	lines := strings.Split(content, "\n")
	var result []string

	for _, line := range lines {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}

		// Timeline and output rows: "  seq │ where │ content"
		if strings.Contains(line, "│") {
			lastPipe := strings.LastIndex(line, "│")
			if lastPipe > 0 && lastPipe < len(line)-1 {
				prefix := line[:lastPipe+len("│")]
				prefixWidth := lipgloss.Width(prefix) + 1

				contentWidth := width - prefixWidth
				if contentWidth < 20 {
					contentWidth = 20
				}

				contentStart := lastPipe + len("│")
				for contentStart < len(line) && line[contentStart] == ' ' {
					contentStart++
				}
				wrappedLines := strings.Split(wordwrap.String(line[contentStart:], contentWidth), "\n")

				contIndent := strings.Repeat(" ", prefixWidth)
				result = append(result, line[:contentStart]+wrappedLines[0])
				for i := 1; i < len(wrappedLines); i++ {
					result = append(result, contIndent+wrappedLines[i])
				}
				continue
			}
		}

		wrapped := wordwrap.String(line, width)
		result = append(result, strings.Split(wrapped, "\n")...)
	}

	return strings.Join(result, "\n")
}
