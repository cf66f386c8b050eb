// Package status renders the footer bar: connection state, session clock,
// token total and caption counts.
package status

import (
	"fmt"
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/praise-danmaku/danmaku/internal/stats"
	"github.com/praise-danmaku/danmaku/internal/theme"
)

// Model holds the footer state.
type Model struct {
	State   string // connection state name, or "offline"/"lost"
	Elapsed int
	Tokens  float64
	Active  int
	Dropped int
	Note    string // shown in red after the counts
	Width   int

	spring harmonica.Spring
	pulse  float64
	vel    float64
}

// New creates a footer animated at fps frames per second.
func New(fps int) Model {
	return Model{
		State:  "closed",
		spring: harmonica.NewSpring(harmonica.FPS(max(fps, 1)), 8.0, 0.4),
	}
}

// SetTokens updates the total and kicks the highlight when it grew.
func (m *Model) SetTokens(tokens float64) {
	if tokens > m.Tokens {
		m.pulse = 1
	}
	m.Tokens = tokens
}

// Animate advances the highlight one frame.
func (m *Model) Animate() {
	m.pulse, m.vel = m.spring.Update(m.pulse, m.vel, 0)
	if math.Abs(m.pulse) < 0.01 && math.Abs(m.vel) < 0.01 {
		m.pulse, m.vel = 0, 0
	}
}

// Pulsing reports whether the token highlight is still visible.
func (m Model) Pulsing() bool { return m.pulse > 0.15 }

func (m Model) View() string {
	width := max(m.Width, 40)

	conn := lipgloss.NewStyle().
		Foreground(theme.StateColor(m.State)).
		Render(theme.StateGlyph(m.State) + " " + stateLabel(m.State))

	tokStyle := lipgloss.NewStyle().Foreground(theme.ColorBright)
	if m.Pulsing() {
		tokStyle = theme.StyleAccent
	}
	tokens := tokStyle.Render(stats.FormatTokens(m.Tokens) + " tokens")

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := conn + sep +
		stats.FormatElapsed(m.Elapsed) + sep +
		tokens + sep +
		fmt.Sprintf("%d on screen  %d dropped", m.Active, m.Dropped)
	if m.Note != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorClosed).Render(m.Note)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func stateLabel(state string) string {
	switch state {
	case "open":
		return "Connected"
	case "connecting":
		return "Connecting..."
	case "reconnecting":
		return "Reconnecting..."
	case "offline":
		return "Offline"
	case "lost":
		return "Connection lost"
	default:
		return "Disconnected"
	}
}
