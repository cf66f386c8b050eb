package danmaku

import "time"

// Message is a praise ready for placement.
type Message struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Tokens    float64 `json:"tokens"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Item is the visual handle of a placed caption. Positions are in pixels;
// surfaces map them to whatever unit they draw in.
type Item struct {
	ID       string
	Text     string
	Tokens   float64
	Track    int
	Top      int
	FontSize int
	Color    string
	Z        int
	Width    int
	Duration time.Duration
	Start    time.Time
}

// Progress returns how far the caption has travelled, in [0, 1].
func (it *Item) Progress(now time.Time) float64 {
	if it.Duration <= 0 {
		return 1
	}
	p := float64(now.Sub(it.Start)) / float64(it.Duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// X returns the left edge of the caption at now. It starts just off the
// right edge of the viewport and ends one caption width past the left edge.
func (it *Item) X(now time.Time, viewportWidth int) float64 {
	vw := float64(max(viewportWidth, 0))
	return vw - (vw+float64(it.Width))*it.Progress(now)
}

// Done reports whether the travel animation has finished.
func (it *Item) Done(now time.Time) bool {
	return !now.Before(it.Start.Add(it.Duration))
}

// Surface is where placed captions are drawn.
type Surface interface {
	Mount(it *Item)
	Unmount(id string)
	Clear()
}
