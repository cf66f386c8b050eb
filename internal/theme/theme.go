// Package theme provides the Lip Gloss palette and reusable styles for the
// danmaku TUI. It is a leaf package with no internal imports to avoid import
// cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection colors.
var (
	ColorOpen         = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorReconnecting = lipgloss.Color("#f59e0b")
	ColorClosed       = lipgloss.Color("#dc2626")
	ColorOffline      = lipgloss.Color("#a855f7")
)

// Lane occupancy thresholds.
var (
	ColorLaneFree = lipgloss.Color("#22c55e")
	ColorLaneBusy = lipgloss.Color("#d97706")
	ColorLaneFull = lipgloss.Color("#dc2626")
)

// Log kind colors.
var (
	ColorKindStream  = lipgloss.Color("#2563eb")
	ColorKindCaption = lipgloss.Color("#7c3aed")
	ColorKindError   = lipgloss.Color("#dc2626")
	ColorKindOffline = lipgloss.Color("#a855f7")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#f472b6")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a connection state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return ColorOpen
	case "connecting":
		return ColorConnecting
	case "reconnecting":
		return ColorReconnecting
	case "closed", "lost":
		return ColorClosed
	case "offline":
		return ColorOffline
	default:
		return ColorDefault
	}
}

// StateGlyph returns a glyph for a connection state name.
func StateGlyph(state string) string {
	switch state {
	case "open":
		return "●"
	case "connecting", "reconnecting":
		return "◌"
	case "offline":
		return "◎"
	case "closed", "lost":
		return "✗"
	default:
		return "·"
	}
}

// LaneColor returns the color for a lane's remaining block fraction.
func LaneColor(pct float64) lipgloss.Color {
	switch {
	case pct > 0.8:
		return ColorLaneFull
	case pct > 0:
		return ColorLaneBusy
	default:
		return ColorLaneFree
	}
}

// KindColor returns the color for a debug log kind.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "ws":
		return ColorKindStream
	case "cap":
		return ColorKindCaption
	case "err":
		return ColorKindError
	case "off":
		return ColorKindOffline
	default:
		return ColorDimmed
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleAccent = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)
)
