// Package stage draws scrolling captions onto a terminal cell grid. It is
// the danmaku.Surface of the TUI: the engine mounts and unmounts items, and
// View samples every mounted item's position at the frame time.
package stage

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/praise-danmaku/danmaku/internal/danmaku"
)

type cell struct {
	r     rune
	color string
	width int  // 0 for blank, 1 or 2 for a glyph head
	cont  bool // right half of a wide glyph
}

// Model holds mounted captions and the grid geometry.
type Model struct {
	items map[string]*danmaku.Item

	// CellWidth and CellHeight are the pixel size of one terminal cell.
	CellWidth  int
	CellHeight int

	Cols int
	Rows int
}

// New creates an empty stage.
func New(cellWidth, cellHeight int) *Model {
	return &Model{
		items:      make(map[string]*danmaku.Item),
		CellWidth:  max(cellWidth, 1),
		CellHeight: max(cellHeight, 1),
	}
}

func (m *Model) Mount(it *danmaku.Item) { m.items[it.ID] = it }

func (m *Model) Unmount(id string) { delete(m.items, id) }

func (m *Model) Clear() { m.items = make(map[string]*danmaku.Item) }

// Len returns the number of mounted captions.
func (m *Model) Len() int { return len(m.items) }

// SetSize sets the grid in cells.
func (m *Model) SetSize(cols, rows int) {
	m.Cols = max(cols, 0)
	m.Rows = max(rows, 0)
}

// ViewportWidth is the grid width in pixels.
func (m *Model) ViewportWidth() int { return m.Cols * m.CellWidth }

// RowsFor returns how many cell rows a drawing region of heightPx needs.
func (m *Model) RowsFor(heightPx int) int {
	return (heightPx + m.CellHeight - 1) / m.CellHeight
}

// View renders the grid at now. Higher Z captions paint over lower ones.
func (m *Model) View(now time.Time) string {
	if m.Rows == 0 || m.Cols == 0 {
		return ""
	}
	grid := make([][]cell, m.Rows)
	for i := range grid {
		grid[i] = make([]cell, m.Cols)
	}

	vw := m.ViewportWidth()
	for _, it := range m.sorted() {
		row := it.Top / m.CellHeight
		if row < 0 || row >= m.Rows {
			continue
		}
		col := int(math.Floor(it.X(now, vw) / float64(m.CellWidth)))
		for _, r := range it.Text {
			w := runewidth.RuneWidth(r)
			if w == 0 {
				continue
			}
			if col >= 0 && col+w <= m.Cols {
				put(grid[row], col, r, w, it.Color)
			}
			col += w
			if col >= m.Cols {
				break
			}
		}
	}

	lines := make([]string, m.Rows)
	for i, row := range grid {
		lines[i] = renderRow(row)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) sorted() []*danmaku.Item {
	out := make([]*danmaku.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// put writes a glyph, blanking any wide glyph it splits.
func put(row []cell, col int, r rune, w int, color string) {
	for c := col; c < col+w; c++ {
		if row[c].cont && c > 0 {
			row[c-1] = cell{}
		}
		if row[c].width == 2 && c+1 < len(row) {
			row[c+1] = cell{}
		}
	}
	row[col] = cell{r: r, color: color, width: w}
	if w == 2 {
		row[col+1] = cell{color: color, cont: true}
	}
}

func renderRow(row []cell) string {
	var b strings.Builder
	var run strings.Builder
	runColor := ""

	flush := func() {
		if run.Len() == 0 {
			return
		}
		if runColor == "" {
			b.WriteString(run.String())
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runColor)).Render(run.String()))
		}
		run.Reset()
	}

	for _, c := range row {
		if c.cont {
			continue
		}
		color := c.color
		ch := c.r
		if c.width == 0 {
			color, ch = "", ' '
		}
		if color != runColor {
			flush()
			runColor = color
		}
		run.WriteRune(ch)
	}
	flush()
	return b.String()
}
