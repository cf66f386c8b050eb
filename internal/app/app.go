// Package app is the Bubble Tea front end: a stage of scrolling praises with
// a status footer and a few overlays.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/praise-danmaku/danmaku/internal/client"
	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/config"
	"github.com/praise-danmaku/danmaku/internal/loop"
	"github.com/praise-danmaku/danmaku/internal/metrics"
	"github.com/praise-danmaku/danmaku/internal/praise"
	"github.com/praise-danmaku/danmaku/internal/session"
	"github.com/praise-danmaku/danmaku/internal/theme"
	"github.com/praise-danmaku/danmaku/internal/views/debug"
	"github.com/praise-danmaku/danmaku/internal/views/help"
	"github.com/praise-danmaku/danmaku/internal/views/lanes"
	"github.com/praise-danmaku/danmaku/internal/views/prompt"
	"github.com/praise-danmaku/danmaku/internal/views/stage"
	"github.com/praise-danmaku/danmaku/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayPrompt
	OverlayDebug
	OverlayLanes
	OverlayHelp
)

// chrome rows: title, status bar (3 with border) and key hints.
const chromeRows = 5

type (
	startMsg struct{}
	frameMsg time.Time
	statsMsg time.Time
)

// Deps are the collaborators a Model runs against. Clock and Dispatcher are
// required; the rest default.
type Deps struct {
	Clock      clock.Clock
	Dispatcher loop.Dispatcher
	Dialer     client.Dialer
	Document   *praise.Document
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Rand       *rand.Rand
	HelpStyle  string
}

// ui is the mutable state shared by every copy of Model.
type ui struct {
	stage   *stage.Model
	session *session.Session
	debug   debug.Model
	status  status.Model
}

// Model is the root Bubble Tea model.
type Model struct {
	cfg       *config.Config
	clk       clock.Clock
	keys      KeyMap
	helpStyle string

	width   int
	height  int
	overlay Overlay
	prompt  prompt.Model
	help    string

	ui *ui
}

// New creates the root model and its session.
func New(cfg *config.Config, deps Deps) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return Model{}, err
	}
	fps := int(time.Second / cfg.UI.FrameInterval)
	u := &ui{
		stage:  stage.New(cfg.UI.CellWidth, cfg.UI.CellHeight),
		debug:  debug.New(),
		status: status.New(fps),
	}
	clk := deps.Clock

	s, err := session.New(session.Options{
		Config:     cfg,
		Surface:    u.stage,
		Clock:      clk,
		Dispatcher: deps.Dispatcher,
		Dialer:     deps.Dialer,
		Document:   deps.Document,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
		Rand:       deps.Rand,
		OnEvent:    func(kind, msg string) { u.debug.Add(clk.Now(), kind, msg) },
	})
	if err != nil {
		return Model{}, err
	}
	u.session = s

	m := Model{
		cfg:       cfg,
		clk:       clk,
		keys:      DefaultKeyMap(),
		helpStyle: deps.HelpStyle,
		prompt:    prompt.New(cfg.Stream.Demand),
		ui:        u,
	}
	if m.helpStyle == "" {
		m.helpStyle = "dark"
	}
	if cfg.UI.Prompt && !cfg.Offline.Enabled {
		m.overlay = OverlayPrompt
	}
	return m, nil
}

// Session exposes the running session.
func (m Model) Session() *session.Session { return m.ui.session }

// Overlay returns the active overlay.
func (m Model) Overlay() Overlay { return m.overlay }

// Init starts the tickers and, unless a demand is being asked for, the
// session.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.frameTick(), statsTick()}
	if m.overlay == OverlayPrompt {
		cmds = append(cmds, m.prompt.Init())
	} else {
		cmds = append(cmds, start)
	}
	return tea.Batch(cmds...)
}

func start() tea.Msg { return startMsg{} }

func (m Model) frameTick() tea.Cmd {
	return tea.Tick(m.cfg.UI.FrameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func statsTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return statsMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RunMsg:
		msg()
		m.refresh()
		return m, nil

	case startMsg:
		m.ui.session.Start(m.demand())
		m.refresh()
		return m, nil

	case frameMsg:
		m.refresh()
		m.ui.status.Animate()
		return m, m.frameTick()

	case statsMsg:
		m.ui.session.Tracker().Tick(m.clk.Now())
		m.refresh()
		return m, statsTick()

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.overlay == OverlayPrompt {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay == OverlayPrompt {
		switch {
		case msg.Type == tea.KeyCtrlC:
			return m.quit()
		case key.Matches(msg, m.keys.Enter):
			m.overlay = OverlayNone
			return m, start
		case key.Matches(msg, m.keys.Escape):
			m.prompt = prompt.New(m.cfg.Stream.Demand)
			m.overlay = OverlayNone
			return m, start
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.ui.debug.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.ui.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug

	case key.Matches(msg, m.keys.Lanes):
		m.overlay = OverlayLanes

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp

	case key.Matches(msg, m.keys.Reconnect):
		if m.ui.session.Reconnect() {
			m.refresh()
		}
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.Shutdown()
	return m, tea.Quit
}

// Shutdown stops the session. It is safe to call more than once.
func (m Model) Shutdown() {
	m.ui.session.Stop()
}

func (m Model) demand() string {
	if m.cfg.UI.Prompt {
		return m.prompt.Value()
	}
	return m.cfg.Stream.Demand
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	u := m.ui
	eng := u.session.Engine()
	rows := min(u.stage.RowsFor(eng.Height()), max(height-chromeRows, 1))
	u.stage.SetSize(width, rows)
	eng.SetViewportWidth(u.stage.ViewportWidth())
	u.status.Width = width - 2
	m.prompt.SetWidth(width)
	m.refresh()

	var bindings []help.Binding
	for _, b := range m.keys.Bindings() {
		bindings = append(bindings, help.Binding{Keys: b.Help().Key, Desc: b.Help().Desc})
	}
	out, err := help.Render(bindings, min(width, 80), m.helpStyle)
	if err != nil {
		out = theme.StyleDimmed.Render(err.Error())
	}
	m.help = out
}

// refresh copies session figures into the footer.
func (m Model) refresh() {
	u := m.ui
	tr := u.session.Tracker()
	u.status.State = u.session.Mode()
	u.status.Elapsed = tr.Elapsed()
	u.status.SetTokens(tr.Tokens())
	u.status.Active = u.session.Engine().Manager().Len()
	u.status.Dropped = tr.Dropped()
	u.status.Note = ""
	if u.session.Lost() && u.session.Mode() == session.ModeOffline {
		u.status.Note = "connection lost"
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	u := m.ui
	now := m.clk.Now()

	title := theme.StyleAccent.Render(" PRAISE DANMAKU ")
	if d := u.session.Demand(); d != "" {
		title += theme.StyleDimmed.Render(" " + d)
	}

	body := u.stage.View(now)
	if o := m.overlayView(now); o != "" {
		body = lipgloss.Place(m.width, max(u.stage.Rows, lipgloss.Height(o)), lipgloss.Center, lipgloss.Center, o)
	}

	hints := theme.StyleDimmed.Render(m.hints())
	return lipgloss.JoinVertical(lipgloss.Left, title, body, u.status.View(), hints)
}

func (m Model) overlayView(now time.Time) string {
	u := m.ui
	switch m.overlay {
	case OverlayPrompt:
		return m.prompt.View()
	case OverlayDebug:
		return u.debug.View(min(m.width, 100), u.stage.Rows)
	case OverlayLanes:
		eng := u.session.Engine()
		return lanes.View(lanes.Snapshot(eng.Allocator(), eng.Manager().Active(), now), min(m.width, 60))
	case OverlayHelp:
		return m.help
	}
	return ""
}

func (m Model) hints() string {
	if m.overlay == OverlayPrompt {
		return "  enter:start  esc:default demand  ctrl+c:quit"
	}
	parts := []string{"d:log", "l:lanes", "?:help"}
	if m.ui.session.Mode() == session.ModeLost || m.ui.session.Client().Exhausted() {
		parts = append(parts, "r:reconnect")
	}
	parts = append(parts, "q:quit")
	return "  " + strings.Join(parts, "  ")
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, cfg *config.Config, deps Deps) error {
	disp := &Dispatcher{}
	if deps.Clock == nil {
		deps.Clock = clock.NewReal(disp)
	}
	deps.Dispatcher = disp

	m, err := New(cfg, deps)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	disp.Attach(p)

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Shutdown()
	} else {
		m.Shutdown()
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
