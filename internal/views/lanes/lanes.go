// Package lanes renders a per-track occupancy panel: how much of each lane's
// placement gap remains and how many captions are flying on it.
package lanes

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/praise-danmaku/danmaku/internal/danmaku"
	"github.com/praise-danmaku/danmaku/internal/theme"
)

// Lane is one row of the panel.
type Lane struct {
	Index    int
	Blocked  float64 // fraction of the min gap still to run, in [0, 1]
	Captions int
}

// Snapshot reads lane state at now.
func Snapshot(alloc *danmaku.Allocator, active []*danmaku.Item, now time.Time) []Lane {
	out := make([]Lane, alloc.Len())
	gap := alloc.MinGap()
	for i := range out {
		out[i].Index = i
		left := alloc.AvailableAt(i).Sub(now)
		if left > 0 && gap > 0 {
			out[i].Blocked = min(float64(left)/float64(gap), 1)
		}
	}
	for _, it := range active {
		if it.Track >= 0 && it.Track < len(out) {
			out[it.Track].Captions++
		}
	}
	return out
}

// View renders the lanes inside a bordered panel.
func View(lanes []Lane, width int) string {
	innerW := max(width-4, 24)
	barW := max(innerW-18, 8)

	rows := []string{theme.StyleHeader.Render(" LANES ")}
	for _, l := range lanes {
		label := theme.StyleDimmed.Render(fmt.Sprintf("%2d", l.Index))
		count := lipgloss.NewStyle().Foreground(theme.ColorBright).Width(4).Align(lipgloss.Right).
			Render(fmt.Sprintf("%d", l.Captions))
		rows = append(rows, fmt.Sprintf("%s %s %s", label, bar(l.Blocked, barW), count))
	}
	return theme.StyleBorder.Width(innerW).Padding(0, 1).Render(strings.Join(rows, "\n"))
}

func bar(pct float64, width int) string {
	labelW := 5
	fillW := max(width-labelW, 3)
	filled := max(0, min(int(pct*float64(fillW)), fillW))

	color := theme.LaneColor(pct)
	s := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	s += lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", fillW-filled))
	return s + lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf(" %3.0f%%", pct*100))
}
