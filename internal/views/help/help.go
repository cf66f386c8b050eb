// Package help renders the key reference overlay from markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/praise-danmaku/danmaku/internal/theme"
)

const doc = `# Praise Danmaku

Praises scroll right to left across the lanes. Each one is placed on the
first free lane, or on the lane that frees up soonest.

| Key | Action |
| --- | --- |
%s
The footer shows the connection, the session clock and the running token total.
`

// Binding is one row of the key table.
type Binding struct {
	Keys string
	Desc string
}

// Render returns the overlay. style is a glamour standard style name such as
// "dark", "light" or "notty".
func Render(bindings []Binding, width int, style string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-8, 20)),
	)
	if err != nil {
		return "", fmt.Errorf("help renderer: %w", err)
	}

	var rows strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&rows, "| `%s` | %s |\n", b.Keys, b.Desc)
	}
	out, err := r.Render(fmt.Sprintf(doc, rows.String()))
	if err != nil {
		return "", fmt.Errorf("render help: %w", err)
	}
	return theme.StyleBorder.Render(strings.TrimRight(out, "\n")), nil
}
