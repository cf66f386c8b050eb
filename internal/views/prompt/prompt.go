// Package prompt asks for the demand sent to the praise stream on connect.
package prompt

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/praise-danmaku/danmaku/internal/theme"
)

const charLimit = 200

// Model wraps a single-line input with a fallback for blank submissions.
type Model struct {
	input    textinput.Model
	fallback string
}

// New returns a focused input. fallback is used when the user submits
// nothing.
func New(fallback string) Model {
	ti := textinput.New()
	ti.Prompt = "demand> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(theme.ColorAccent)
	ti.Placeholder = fallback
	ti.CharLimit = charLimit
	ti.Width = 48
	ti.Focus()
	return Model{input: ti, fallback: fallback}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// SetWidth fits the input into a box of width cells.
func (m *Model) SetWidth(width int) {
	m.input.Width = max(width-len(m.input.Prompt)-8, 10)
}

// Value returns the trimmed input, or the fallback when it is blank.
func (m Model) Value() string {
	if v := strings.TrimSpace(m.input.Value()); v != "" {
		return v
	}
	return m.fallback
}

func (m Model) View() string {
	title := theme.StyleHeader.Render("What do you need to hear?")
	hint := theme.StyleDimmed.Render("enter:start  esc:use default  ctrl+c:quit")
	return theme.StyleBorder.Padding(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, "", m.input.View(), "", hint))
}
